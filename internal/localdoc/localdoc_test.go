package localdoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidencer/internal/instruction"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolve_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.md", "# notes")

	paths, err := Resolve(instruction.LocalSpec{Kind: instruction.LocalFile, Path: path})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestResolve_FileMissing(t *testing.T) {
	_, err := Resolve(instruction.LocalSpec{Kind: instruction.LocalFile, Path: "/nonexistent/file.txt"})
	require.Error(t, err)
}

func TestResolve_DirWalksSupportedOnly(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")
	b := writeFile(t, dir, "sub/b.md", "b")
	writeFile(t, dir, "skip.bin", "binary")

	paths, err := Resolve(instruction.LocalSpec{Kind: instruction.LocalDir, Path: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, paths)
}

func TestResolve_Glob(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "p1.txt", "1")
	writeFile(t, dir, "p2.md", "2")

	paths, err := Resolve(instruction.LocalSpec{Kind: instruction.LocalGlob, Path: filepath.Join(dir, "*.txt")})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, paths)
}

func TestExtract_Text(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "  line one  \n\n line two \n")

	doc, err := Extract(path, instruction.LocalSpec{Kind: instruction.LocalFile, Path: path})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", doc.Text)
	assert.Equal(t, "notes", doc.Title, "falls back to base filename")
	assert.Equal(t, "txt", doc.Format)
	assert.Len(t, doc.ContentHash, 64)
}

func TestExtract_HTMLTitleAndText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html",
		`<html><head><title>Saved Page</title></head><body><nav>menu</nav><main>Body text.</main></body></html>`)

	doc, err := Extract(path, instruction.LocalSpec{Kind: instruction.LocalFile, Path: path})
	require.NoError(t, err)
	assert.Equal(t, "Saved Page", doc.Title)
	assert.Contains(t, doc.Text, "Body text.")
	assert.NotContains(t, doc.Text, "menu")
}

func TestExtract_SpecMetadataWins(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.md", "content")

	doc, err := Extract(path, instruction.LocalSpec{
		Kind:  instruction.LocalFile,
		Path:  path,
		Title: "Override Title",
		Lang:  "de",
	})
	require.NoError(t, err)
	assert.Equal(t, "Override Title", doc.Title)
	assert.Equal(t, "de", doc.Lang)
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "image.png", "not really a png")

	_, err := Extract(path, instruction.LocalSpec{Kind: instruction.LocalFile, Path: path})
	require.Error(t, err)

	var unsupported *ErrUnsupportedFormat
	assert.ErrorAs(t, err, &unsupported)
}

func TestExtract_HashIsStable(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "one.txt", "same content")
	p2 := writeFile(t, dir, "two.txt", "same content")

	d1, err := Extract(p1, instruction.LocalSpec{Kind: instruction.LocalFile, Path: p1})
	require.NoError(t, err)
	d2, err := Extract(p2, instruction.LocalSpec{Kind: instruction.LocalFile, Path: p2})
	require.NoError(t, err)
	assert.Equal(t, d1.ContentHash, d2.ContentHash, "hash depends on content, not path")
}
