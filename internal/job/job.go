// Package job defines the immutable unit of ingestion work built from one
// parsed instruction. A Job is constructed once at preparation time; the
// agentic controller derives narrowed copies but never mutates the original.
package job

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"evidencer/internal/instruction"
)

// Provider namespaces. Each owns a disjoint subtree of the archive.
const (
	NamespaceWebSearch  = "websearch"
	NamespaceWebExtract = "webextract"
	NamespaceAcademic   = "academic"
	NamespacePreprint   = "preprint"
	NamespaceVideo      = "video"
	NamespaceLocalDocs  = "localdocs"
)

// ProviderConfig holds the enabled flag and per-run result limit for one
// provider family.
type ProviderConfig struct {
	Enabled bool `json:"enabled"`
	Limit   int  `json:"limit" validate:"gte=0"`
}

// Providers aggregates per-provider toggles and limits.
type Providers struct {
	WebSearch ProviderConfig `json:"websearch"`
	Academic  ProviderConfig `json:"academic"`
	Preprint  ProviderConfig `json:"preprint"`
	Video     ProviderConfig `json:"video"`
	LocalDocs ProviderConfig `json:"localdocs"`
}

// Enabled reports whether the named provider namespace is enabled.
// Web-extract piggybacks on the web-search toggle: both talk to the web.
func (p Providers) Enabled(namespace string) bool {
	switch namespace {
	case NamespaceWebSearch, NamespaceWebExtract:
		return p.WebSearch.Enabled
	case NamespaceAcademic:
		return p.Academic.Enabled
	case NamespacePreprint:
		return p.Preprint.Enabled
	case NamespaceVideo:
		return p.Video.Enabled
	case NamespaceLocalDocs:
		return p.LocalDocs.Enabled
	}
	return false
}

// Job is one fully-configured ingestion run. Treat as immutable after New.
type Job struct {
	Date            time.Time `validate:"required"`
	InstructionPath string
	RootDir         string `validate:"required"`
	ArchiveDir      string `validate:"required"`
	RunID           string `validate:"required"`
	Language        string

	Providers   Providers
	DownloadPDF bool
	UpdateMode  bool

	Queries     []string
	QuerySpecs  []instruction.QuerySpec
	LocalSpecs  []instruction.LocalSpec
	URLs        []string
	AcademicIDs []string
	Hints       []string
	RawLines    []string
}

// Options configures job construction.
type Options struct {
	Date            time.Time
	InstructionPath string
	RootDir         string
	RunID           string
	Language        string
	Providers       Providers
	DownloadPDF     bool
	UpdateMode      bool
}

var validate = validator.New()

// New builds a Job from parsed instruction tokens. The tokens' derived lists
// arrive already deduplicated in first-seen order; New copies them so later
// parser reuse cannot alias the job's state.
func New(opts Options, tokens *instruction.Tokens) (*Job, error) {
	if opts.Date.IsZero() {
		opts.Date = time.Now()
	}
	if opts.RunID == "" {
		opts.RunID = opts.Date.Format("2006-01-02") + "-" + uuid.NewString()[:8]
	}
	if opts.RootDir == "" {
		return nil, fmt.Errorf("job: output root directory is required")
	}

	j := &Job{
		Date:            opts.Date,
		InstructionPath: opts.InstructionPath,
		RootDir:         opts.RootDir,
		ArchiveDir:      filepath.Join(opts.RootDir, "archive"),
		RunID:           opts.RunID,
		Language:        opts.Language,
		Providers:       opts.Providers,
		DownloadPDF:     opts.DownloadPDF,
		UpdateMode:      opts.UpdateMode,
		Queries:         append([]string(nil), tokens.Queries()...),
		QuerySpecs:      append([]instruction.QuerySpec(nil), tokens.QuerySpecs...),
		LocalSpecs:      append([]instruction.LocalSpec(nil), tokens.LocalSpecs...),
		URLs:            append([]string(nil), tokens.URLs...),
		AcademicIDs:     append([]string(nil), tokens.AcademicIDs...),
		Hints:           append([]string(nil), tokens.Hints...),
		RawLines:        append([]string(nil), tokens.RawLines...),
	}

	if len(j.Queries) != len(j.QuerySpecs) {
		return nil, fmt.Errorf("job: queries and query specs diverged (%d vs %d)", len(j.Queries), len(j.QuerySpecs))
	}
	if err := validate.Struct(j); err != nil {
		return nil, fmt.Errorf("job: invalid configuration: %w", err)
	}

	return j, nil
}

// DownloadDir is where PDF side-effect downloads land.
func (j *Job) DownloadDir() string {
	return filepath.Join(j.RootDir, "downloads")
}

// narrowed returns a copy of the job with all input lists cleared and update
// mode forced, preserving locations and provider config. The copy shares no
// slice backing with the parent.
func (j *Job) narrowed() *Job {
	clone := *j
	clone.UpdateMode = true
	clone.Queries = nil
	clone.QuerySpecs = nil
	clone.LocalSpecs = nil
	clone.URLs = nil
	clone.AcademicIDs = nil
	clone.Hints = nil
	clone.RawLines = append([]string(nil), j.RawLines...)
	return &clone
}

// CloneForQuery returns a narrowed update-mode copy scoped to one query.
func (j *Job) CloneForQuery(query string, maxResults int) *Job {
	clone := j.narrowed()
	clone.Queries = []string{query}
	clone.QuerySpecs = []instruction.QuerySpec{{Text: query}}
	if maxResults > 0 {
		clone.Providers.WebSearch.Limit = maxResults
		clone.Providers.Academic.Limit = maxResults
		clone.Providers.Preprint.Limit = maxResults
		clone.Providers.Video.Limit = maxResults
	}
	return clone
}

// CloneForURL returns a narrowed update-mode copy scoped to one URL.
func (j *Job) CloneForURL(url string) *Job {
	clone := j.narrowed()
	clone.URLs = []string{url}
	return clone
}

// QueryAllowedFor reports whether a query spec's hints permit the given
// provider namespace. A spec with no provider-scoping hints permits all.
func QueryAllowedFor(spec instruction.QuerySpec, namespace string) bool {
	var scoped bool
	for _, hint := range spec.Hints {
		switch hint {
		case "web":
			if namespace == NamespaceWebSearch || namespace == NamespaceWebExtract {
				return true
			}
			scoped = true
		case "academic":
			if namespace == NamespaceAcademic {
				return true
			}
			scoped = true
		case "preprint":
			if namespace == NamespacePreprint {
				return true
			}
			scoped = true
		case "video":
			if namespace == NamespaceVideo {
				return true
			}
			scoped = true
		}
	}
	return !scoped
}

// SiteHints extracts the "site:" hints from a query spec, without the prefix.
func SiteHints(spec instruction.QuerySpec) []string {
	var sites []string
	for _, hint := range spec.Hints {
		if len(hint) > len("site:") && hint[:len("site:")] == "site:" {
			sites = append(sites, hint[len("site:"):])
		}
	}
	return sites
}
