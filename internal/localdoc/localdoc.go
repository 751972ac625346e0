// Package localdoc extracts text from documents already on disk so local
// evidence lands in the archive alongside fetched sources.
package localdoc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"evidencer/internal/fetch"
	"evidencer/internal/instruction"
)

// Document is one extracted local file.
type Document struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	ContentHash string `json:"content_hash"`
	Format      string `json:"format"`
	Lang        string `json:"lang,omitempty"`
}

// ErrUnsupportedFormat reports a file extension no extractor handles.
type ErrUnsupportedFormat struct {
	Path string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("localdoc: unsupported format: %s", e.Path)
}

// supportedExtensions lists the formats Extract handles, used when walking
// directories.
var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	".pdf":  true,
}

// Resolve expands a local spec into concrete file paths: a file spec yields
// itself, a dir spec walks recursively for supported extensions, a glob spec
// matches the pattern. Paths come back sorted for deterministic runs.
func Resolve(spec instruction.LocalSpec) ([]string, error) {
	switch spec.Kind {
	case instruction.LocalFile:
		if _, err := os.Stat(spec.Path); err != nil {
			return nil, fmt.Errorf("localdoc: %w", err)
		}
		return []string{spec.Path}, nil

	case instruction.LocalDir:
		var paths []string
		err := filepath.WalkDir(spec.Path, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supportedExtensions[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("localdoc: walk %s: %w", spec.Path, err)
		}
		sort.Strings(paths)
		return paths, nil

	case instruction.LocalGlob:
		paths, err := filepath.Glob(spec.Path)
		if err != nil {
			return nil, fmt.Errorf("localdoc: glob %s: %w", spec.Path, err)
		}
		sort.Strings(paths)
		return paths, nil
	}
	return nil, fmt.Errorf("localdoc: unknown spec kind %q", spec.Kind)
}

// Extract reads one file and returns its text, title, and content hash. The
// title falls back to the base filename when the spec carries none and the
// document yields none.
func Extract(path string, spec instruction.LocalSpec) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("localdoc: read %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	doc := &Document{
		Path:        path,
		Title:       spec.Title,
		ContentHash: hashContent(data),
		Format:      strings.TrimPrefix(ext, "."),
		Lang:        spec.Lang,
	}

	switch ext {
	case ".txt", ".md":
		doc.Text = fetch.CleanWhitespace(string(data))

	case ".html", ".htm":
		text, err := fetch.ExtractMainText(string(data), fetch.ArticleSelectors())
		if err != nil {
			return nil, fmt.Errorf("localdoc: parse %s: %w", path, err)
		}
		doc.Text = text
		if doc.Title == "" {
			doc.Title = fetch.ExtractTitle(string(data))
		}

	case ".pdf":
		text, err := extractPDF(data)
		if err != nil {
			return nil, fmt.Errorf("localdoc: pdf %s: %w", path, err)
		}
		doc.Text = text

	default:
		return nil, &ErrUnsupportedFormat{Path: path}
	}

	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(path), ext)
	}
	return doc, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // unreadable page, keep the rest
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return fetch.CleanWhitespace(sb.String()), nil
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
