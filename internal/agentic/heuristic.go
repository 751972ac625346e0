package agentic

import (
	"evidencer/internal/archive"
	"evidencer/internal/job"
)

// searchActionFor maps searchable namespaces to their planner action type.
// Local docs are absent: there is nothing to search for on disk.
var searchActionFor = map[string]string{
	job.NamespaceWebSearch: ActionWebSearch,
	job.NamespaceAcademic:  ActionAcademicSearch,
	job.NamespacePreprint:  ActionPreprintSearch,
	job.NamespaceVideo:     ActionVideoSearch,
}

// queryVariants broaden an exhausted base query, tried in order.
var queryVariants = []string{
	"",
	" survey",
	" benchmarks",
	" recent advances",
	" open problems",
}

// maxFallbackActions caps one heuristic round.
const maxFallbackActions = 3

// Fallback proposes the next actions without an LLM: extract pending search
// hits first, then search the thinnest namespaces with progressively
// broadened queries. Every proposal is filtered through the executed set, so
// a returned non-stop action always makes forward progress. When nothing
// executable remains the single stop action is returned.
func Fallback(j *job.Job, m Metrics, executed map[string]bool) []Action {
	var actions []Action

	add := func(a Action) bool {
		if executed[a.Key()] {
			return false
		}
		for _, existing := range actions {
			if existing.Key() == a.Key() {
				return false
			}
		}
		actions = append(actions, a)
		return len(actions) >= maxFallbackActions
	}

	// Unextracted search hits are the cheapest evidence available.
	for _, url := range m.CandidateURLs {
		if add(Action{Type: ActionWebExtract, URL: url}) {
			return actions
		}
	}

	// Thinnest coverage first.
	for _, namespace := range archive.SortedNamespaces(m.Counts) {
		actionType, searchable := searchActionFor[namespace]
		if !searchable {
			continue
		}
		query, ok := nextQuery(j, actionType, executed, actions)
		if !ok {
			continue
		}
		if add(Action{Type: actionType, Query: query}) {
			return actions
		}
	}

	if len(actions) == 0 {
		return []Action{{Type: ActionStop}}
	}
	return actions
}

// nextQuery picks the first base-query variant not yet executed for the
// action type.
func nextQuery(j *job.Job, actionType string, executed map[string]bool, pending []Action) (string, bool) {
	bases := j.Queries
	if len(bases) == 0 && len(j.Hints) > 0 {
		bases = j.Hints
	}

	for _, suffix := range queryVariants {
		for _, base := range bases {
			query := base + suffix
			candidate := Action{Type: actionType, Query: query}
			if executed[candidate.Key()] {
				continue
			}
			taken := false
			for _, p := range pending {
				if p.Key() == candidate.Key() {
					taken = true
					break
				}
			}
			if !taken {
				return query, true
			}
		}
	}
	return "", false
}
