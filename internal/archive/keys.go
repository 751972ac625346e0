package archive

import (
	"regexp"
	"strings"

	"evidencer/internal/job"
)

// Identity-key extraction is namespace-specific, with a shared fallback chain
// so partial metadata never yields an empty key silently: short ID first,
// then a DOI-like key, then a sanitized title. An empty return means the
// record cannot participate in update-mode dedup.
func identityKey(namespace string, record map[string]any) string {
	return PeekKey(namespace, record)
}

// PeekKey computes the identity key a record would get on append, letting
// collectors dedup before doing work.
func PeekKey(namespace string, record map[string]any) string {
	switch namespace {
	case job.NamespaceVideo:
		if key := stringField(record, "video_id"); key != "" {
			return key
		}
	case job.NamespaceAcademic:
		if key := stringField(record, "work_id"); key != "" {
			return shortWorkID(key)
		}
	case job.NamespacePreprint:
		if key := stringField(record, "arxiv_id"); key != "" {
			return stripVersion(key)
		}
	case job.NamespaceLocalDocs:
		if key := stringField(record, "content_hash"); key != "" {
			return key
		}
	case job.NamespaceWebSearch, job.NamespaceWebExtract:
		if key := stringField(record, "url"); key != "" {
			return key
		}
	}

	// Fallback chain shared by every namespace.
	if key := stringField(record, "id"); key != "" {
		return key
	}
	if key := stringField(record, "doi"); key != "" {
		return normalizeDOI(key)
	}
	if key := stringField(record, "title"); key != "" {
		return sanitizeTitle(key)
	}
	return ""
}

func stringField(record map[string]any, field string) string {
	value, _ := record[field].(string)
	return strings.TrimSpace(value)
}

// stripVersion removes an arXiv version suffix: "2401.01234v2" -> "2401.01234".
var versionSuffix = regexp.MustCompile(`v\d+$`)

func stripVersion(id string) string {
	return versionSuffix.ReplaceAllString(id, "")
}

// shortWorkID reduces an OpenAlex URL-shaped ID to its short form:
// "https://openalex.org/W123" -> "W123".
func shortWorkID(id string) string {
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

func normalizeDOI(doi string) string {
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9]+`)

// sanitizeTitle lowercases a title and collapses runs of non-alphanumerics to
// single hyphens, giving a stable last-resort key.
func sanitizeTitle(title string) string {
	key := nonKeyChars.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(key, "-")
}
