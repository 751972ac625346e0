package agentic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"evidencer/internal/archive"
	"evidencer/internal/collectors"
	"evidencer/internal/job"
)

// DefaultMaxIterations bounds the loop when the caller does not.
const DefaultMaxIterations = 5

// maxActionsPerRound is what the planner is told and what execution enforces.
const maxActionsPerRound = 5

// historyTail is how many trace entries the planner prompt carries.
const historyTail = 4

// actionNamespace maps action types to the namespace they write into.
var actionNamespace = map[string]string{
	ActionWebSearch:      job.NamespaceWebSearch,
	ActionWebExtract:     job.NamespaceWebExtract,
	ActionAcademicSearch: job.NamespaceAcademic,
	ActionPreprintSearch: job.NamespacePreprint,
	ActionVideoSearch:    job.NamespaceVideo,
}

// Controller drives the plan, execute, review loop over the collectors. The
// planner and reviewer are optional; without them every round uses the
// deterministic heuristic.
type Controller struct {
	Planner       Planner
	Reviewer      Reviewer
	Executors     map[string]collectors.Collector // keyed by action type
	MaxIterations int
}

// Executors builds the action-type dispatch table from per-namespace
// collectors. Nil entries are allowed and simply make the action unexecutable.
func Executors(webSearch, webExtract, academicC, preprintC, videoC collectors.Collector) map[string]collectors.Collector {
	m := make(map[string]collectors.Collector, 5)
	put := func(actionType string, c collectors.Collector) {
		if c != nil {
			m[actionType] = c
		}
	}
	put(ActionWebSearch, webSearch)
	put(ActionWebExtract, webExtract)
	put(ActionAcademicSearch, academicC)
	put(ActionPreprintSearch, preprintC)
	put(ActionVideoSearch, videoC)
	return m
}

// Run executes the loop until the planner declares completion, nothing
// executable remains, or the iteration cap is hit. The original job is never
// mutated; every action runs against a narrowed update-mode clone.
func (c *Controller) Run(ctx context.Context, j *job.Job, w *archive.Writer, log *slog.Logger) error {
	maxIter := c.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	trace := NewTrace(w.Dir())
	goal := goalFor(j)

	metrics, err := CollectMetrics(j, w)
	if err != nil {
		return err
	}
	if err := trace.Add(TraceEntry{Stage: StageBootstrap, Metrics: metrics.Format()}); err != nil {
		log.Warn("trace write failed", "error", err)
	}

	executed := make(map[string]bool)

	for iteration := 1; iteration <= maxIter; iteration++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		plan, source := c.plan(ctx, j, metrics, trace.Tail(historyTail), executed, goal, log)

		executable := c.executableActions(j, plan.Actions, executed, log)
		stopRequested := plan.Done || containsStop(plan.Actions)

		if err := trace.Add(TraceEntry{
			Iteration: iteration,
			Stage:     StagePlan,
			Source:    source,
			Done:      plan.Done,
			Reason:    plan.Reason,
			Metrics:   metrics.Format(),
			Actions:   plan.Actions,
		}); err != nil {
			log.Warn("trace write failed", "error", err)
		}

		if stopRequested {
			log.Info("planner requested stop", "iteration", iteration, "reason", plan.Reason)
			break
		}
		if len(executable) == 0 {
			log.Info("no executable actions remain, stopping", "iteration", iteration)
			break
		}

		results := make([]ActionResult, 0, len(executable))
		newRecords := 0
		for _, action := range executable {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result := c.execute(ctx, j, w, action, log)
			results = append(results, result)
			newRecords += result.NewRecords
			executed[action.Key()] = true
		}
		if err := trace.Add(TraceEntry{
			Iteration: iteration,
			Stage:     StageExecute,
			Results:   results,
			Executed:  len(results),
		}); err != nil {
			log.Warn("trace write failed", "error", err)
		}

		before := metrics
		metrics, err = CollectMetrics(j, w)
		if err != nil {
			return err
		}

		review := c.review(ctx, goal, metrics, results, newRecords, log)
		if err := trace.Add(TraceEntry{
			Iteration: iteration,
			Stage:     StageReview,
			Reason:    review.Notes,
			Metrics:   metrics.Format(),
			Executed:  len(results),
			Deltas:    metrics.Deltas(before),
		}); err != nil {
			log.Warn("trace write failed", "error", err)
		}

		if review.Sufficient {
			log.Info("review declared evidence sufficient", "iteration", iteration, "notes", review.Notes)
			break
		}
	}

	if err := trace.WriteSummary(); err != nil {
		log.Warn("trace summary write failed", "error", err)
	}
	return nil
}

// plan asks the configured planner and falls back to the heuristic on any
// failure, so a broken or absent LLM never stalls the loop.
func (c *Controller) plan(ctx context.Context, j *job.Job, metrics Metrics, history []string, executed map[string]bool, goal string, log *slog.Logger) (*Plan, string) {
	if c.Planner != nil {
		plan, err := c.Planner.PlanActions(ctx, PlanInput{
			Goal:       goal,
			RawLines:   j.RawLines,
			Metrics:    metrics.Format(),
			History:    history,
			Candidates: metrics.CandidateURLs,
			MaxActions: maxActionsPerRound,
		})
		if err == nil {
			return plan, "llm"
		}
		log.Warn("planner failed, using heuristic", "error", err)
	}

	return &Plan{Reason: "heuristic coverage fill", Actions: Fallback(j, metrics, executed)}, "heuristic"
}

// executableActions drops stop markers, already-executed actions, actions
// for disabled providers, and everything past the per-round cap.
func (c *Controller) executableActions(j *job.Job, actions []Action, executed map[string]bool, log *slog.Logger) []Action {
	var out []Action
	for _, action := range actions {
		if action.Type == ActionStop {
			continue
		}
		if executed[action.Key()] {
			log.Debug("dropping repeated action", "action", describeAction(action))
			continue
		}
		namespace := actionNamespace[action.Type]
		if !j.Providers.Enabled(namespace) {
			log.Debug("dropping action for disabled provider", "action", describeAction(action))
			continue
		}
		if c.Executors[action.Type] == nil {
			log.Debug("dropping action with no executor", "action", describeAction(action))
			continue
		}
		out = append(out, action)
		if len(out) >= maxActionsPerRound {
			break
		}
	}
	return out
}

// execute dispatches one action to its collector against a narrowed clone of
// the job and reports how many records it added.
func (c *Controller) execute(ctx context.Context, j *job.Job, w *archive.Writer, action Action, log *slog.Logger) ActionResult {
	namespace := actionNamespace[action.Type]
	collector := c.Executors[action.Type]

	var clone *job.Job
	if action.Type == ActionWebExtract {
		clone = j.CloneForURL(action.URL)
	} else {
		clone = j.CloneForQuery(action.Query, action.MaxResults)
	}

	before := w.Count(namespace)
	log.Info("executing action", "action", describeAction(action))

	result := ActionResult{Action: action}
	if err := collector.Run(ctx, clone, w, log); err != nil {
		result.Error = err.Error()
		return result
	}
	result.NewRecords = w.Count(namespace) - before
	return result
}

// review consults the reviewer when present; otherwise a round that added
// nothing new ends the loop.
func (c *Controller) review(ctx context.Context, goal string, metrics Metrics, results []ActionResult, newRecords int, log *slog.Logger) Review {
	if c.Reviewer != nil {
		review, err := c.Reviewer.ReviewEvidence(ctx, ReviewInput{
			Goal:    goal,
			Metrics: metrics.Format(),
			Results: results,
		})
		if err == nil {
			return *review
		}
		log.Warn("reviewer failed, using heuristic review", "error", err)
	}

	if newRecords == 0 {
		return Review{Sufficient: true, Notes: "round added no new records"}
	}
	return Review{Notes: fmt.Sprintf("round added %d records", newRecords)}
}

func containsStop(actions []Action) bool {
	for _, action := range actions {
		if action.Type == ActionStop {
			return true
		}
	}
	return false
}

// goalFor derives the research goal text shown to the planner.
func goalFor(j *job.Job) string {
	if len(j.Queries) > 0 {
		return strings.Join(j.Queries, "; ")
	}
	if len(j.RawLines) > 0 {
		return strings.Join(j.RawLines, "; ")
	}
	return "collect supporting evidence"
}

