// Package instruction parses free-text research instructions into typed tokens.
// An instruction is a UTF-8 text split into sections by blank lines or divider
// lines; each non-empty line classifies as a local-file directive, a URL, an
// academic ID, a provider hint, or a free-text query.
package instruction

import (
	"net/url"
	"os"
	"regexp"
	"strings"
)

// LocalKind identifies how a local-file directive path should be interpreted.
type LocalKind string

// Local directive kinds.
const (
	LocalFile LocalKind = "file"
	LocalDir  LocalKind = "dir"
	LocalGlob LocalKind = "glob"
)

// LocalSpec is one parsed local-file directive.
type LocalSpec struct {
	Kind  LocalKind `json:"kind"`
	Path  string    `json:"path"`
	Title string    `json:"title,omitempty"`
	Tags  []string  `json:"tags,omitempty"`
	Lang  string    `json:"lang,omitempty"`
}

// QuerySpec is a free-text query together with the provider hints it
// inherited from its section.
type QuerySpec struct {
	Text  string   `json:"text"`
	Hints []string `json:"hints,omitempty"`
}

// Tokens is the full parse result of one instruction text.
type Tokens struct {
	Sections   [][]string // trimmed non-empty, non-divider lines per section
	QuerySpecs []QuerySpec
	URLs       []string
	AcademicIDs []string
	LocalSpecs []LocalSpec
	Hints      []string // union of all section hints, first-seen order
	RawLines   []string // every classified line, in input order
}

// Queries returns just the query texts, element-for-element with QuerySpecs.
func (t *Tokens) Queries() []string {
	out := make([]string, len(t.QuerySpecs))
	for i, q := range t.QuerySpecs {
		out[i] = q.Text
	}
	return out
}

// Empty reports whether parsing produced no actionable input at all.
func (t *Tokens) Empty() bool {
	return len(t.QuerySpecs) == 0 && len(t.URLs) == 0 &&
		len(t.AcademicIDs) == 0 && len(t.LocalSpecs) == 0
}

// localDirectivePrefix marks a local-file directive line.
const localDirectivePrefix = "local:"

var (
	// arXiv IDs, with or without the "arXiv:" prefix and version suffix.
	arxivPrefixed = regexp.MustCompile(`(?i)^arxiv:\s*(\d{4}\.\d{4,5})(v\d+)?$`)
	arxivBare     = regexp.MustCompile(`^(\d{4}\.\d{4,5})(v\d+)?$`)
	// DOIs and OpenAlex work IDs.
	doiPattern      = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	openAlexPattern = regexp.MustCompile(`^W\d{6,}$`)

	// Provider-scoping hint lines, e.g. "only video platform" or "web only".
	hintPattern = regexp.MustCompile(`(?i)^(?:only\s+)?(web|video|academic|preprint)(?:\s+(?:platform|search|sources?))?(?:\s+only)?$`)
)

// Parse splits text into sections and classifies every line. Queries inherit
// all hints collected in their own section, wherever in the section the hint
// line appears; hints never leak across section boundaries.
func Parse(text string) *Tokens {
	tokens := &Tokens{}

	for _, section := range splitSections(text) {
		tokens.Sections = append(tokens.Sections, section)

		// Hints are section-scoped: collect them before classifying queries.
		var sectionHints []string
		for _, line := range section {
			if h, ok := classifyHint(line); ok {
				sectionHints = append(sectionHints, h)
			}
		}

		for _, line := range section {
			tokens.RawLines = append(tokens.RawLines, line)

			switch {
			case strings.HasPrefix(strings.ToLower(line), localDirectivePrefix):
				if spec, ok := parseLocalDirective(line); ok {
					tokens.LocalSpecs = append(tokens.LocalSpecs, spec)
				}
			case isAbsoluteURL(line):
				tokens.URLs = append(tokens.URLs, line)
			case isAcademicID(line):
				tokens.AcademicIDs = append(tokens.AcademicIDs, NormalizeAcademicID(line))
			case isHint(line):
				// already collected into sectionHints
			default:
				tokens.QuerySpecs = append(tokens.QuerySpecs, QuerySpec{
					Text:  line,
					Hints: append([]string(nil), sectionHints...),
				})
			}
		}

		tokens.Hints = append(tokens.Hints, sectionHints...)
	}

	tokens.URLs = dedupe(tokens.URLs)
	tokens.AcademicIDs = dedupe(tokens.AcademicIDs)
	tokens.Hints = dedupe(tokens.Hints)

	return tokens
}

// splitSections breaks text into sections at blank lines and divider lines,
// returning trimmed non-empty lines per section. Empty sections are dropped.
func splitSections(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var sections [][]string
	var current []string

	flush := func() {
		if len(current) > 0 {
			sections = append(sections, current)
			current = nil
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || isDivider(line) {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return sections
}

// isDivider reports whether a line consists entirely of one punctuation
// character repeated at least three times (e.g. "----", "====", "***").
func isDivider(line string) bool {
	runes := []rune(line)
	if len(runes) < 3 {
		return false
	}
	first := runes[0]
	if !strings.ContainsRune(`-=*_~#+.`, first) {
		return false
	}
	for _, r := range runes[1:] {
		if r != first {
			return false
		}
	}
	return true
}

func isAbsoluteURL(line string) bool {
	if strings.ContainsAny(line, " \t") {
		return false
	}
	parsed, err := url.Parse(line)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func isAcademicID(line string) bool {
	return arxivPrefixed.MatchString(line) ||
		arxivBare.MatchString(line) ||
		doiPattern.MatchString(line) ||
		openAlexPattern.MatchString(line)
}

// NormalizeAcademicID strips the "arXiv:" prefix and surrounding whitespace
// from an academic ID line. Version suffixes are preserved here; the preprint
// namespace strips them when deriving identity keys.
func NormalizeAcademicID(line string) string {
	if m := arxivPrefixed.FindStringSubmatch(line); m != nil {
		return m[1] + m[2]
	}
	return strings.TrimSpace(line)
}

// IsArxivID reports whether an already-normalized academic ID is an arXiv ID.
func IsArxivID(id string) bool {
	return arxivBare.MatchString(id)
}

// IsDOI reports whether an already-normalized academic ID is a DOI.
func IsDOI(id string) bool {
	return doiPattern.MatchString(id)
}

func isHint(line string) bool {
	_, ok := classifyHint(line)
	return ok
}

// classifyHint normalizes a bare hint line to its canonical token: one of
// "web", "video", "academic", "preprint", or a verbatim "site:<domain>" hint.
func classifyHint(line string) (string, bool) {
	if strings.HasPrefix(strings.ToLower(line), "site:") && !strings.ContainsAny(line, " \t") {
		return strings.ToLower(line), true
	}
	if m := hintPattern.FindStringSubmatch(line); m != nil {
		return strings.ToLower(m[1]), true
	}
	return "", false
}

// parseLocalDirective parses lines of the form
//
//	local: ./papers/*.pdf | kind=glob | title="Survey papers" | tags=quantum,review | lang=en
//
// The first pipe-delimited segment is the path (env vars expanded, quotes
// stripped); remaining segments are key=value metadata. Kind defaults from
// the path shape when not given explicitly.
func parseLocalDirective(line string) (LocalSpec, bool) {
	rest := strings.TrimSpace(line[len(localDirectivePrefix):])
	if rest == "" {
		return LocalSpec{}, false
	}

	segments := strings.Split(rest, "|")
	path := os.ExpandEnv(stripQuotes(strings.TrimSpace(segments[0])))
	if path == "" {
		return LocalSpec{}, false
	}

	spec := LocalSpec{Path: path}
	for _, seg := range segments[1:] {
		key, value, found := strings.Cut(strings.TrimSpace(seg), "=")
		if !found {
			continue
		}
		value = os.ExpandEnv(stripQuotes(strings.TrimSpace(value)))
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "kind":
			spec.Kind = LocalKind(strings.ToLower(value))
		case "title":
			spec.Title = value
		case "tags":
			for _, tag := range strings.Split(value, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					spec.Tags = append(spec.Tags, tag)
				}
			}
		case "lang":
			spec.Lang = value
		}
	}

	if spec.Kind == "" {
		spec.Kind = inferLocalKind(spec.Path)
	}
	switch spec.Kind {
	case LocalFile, LocalDir, LocalGlob:
	default:
		return LocalSpec{}, false
	}

	return spec, true
}

func inferLocalKind(path string) LocalKind {
	if strings.ContainsAny(path, "*?[") {
		return LocalGlob
	}
	if strings.HasSuffix(path, "/") {
		return LocalDir
	}
	return LocalFile
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(items []string) []string {
	if len(items) == 0 {
		return items
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
