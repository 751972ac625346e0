package agentic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"evidencer/internal/llm"
	"evidencer/internal/prompts"
)

// PlanInput is everything a planning round knows: the goal, the raw
// instruction lines, current coverage, and the tail of the loop's trace.
type PlanInput struct {
	Goal       string
	RawLines   []string
	Metrics    string
	History    []string // last few trace entries, oldest first
	Candidates []string
	MaxActions int
}

// Planner proposes the next actions for a round.
type Planner interface {
	PlanActions(ctx context.Context, in PlanInput) (*Plan, error)
}

// Review is one reviewer verdict on the archive after a round.
type Review struct {
	Sufficient bool     `json:"sufficient"`
	Gaps       []string `json:"gaps"`
	Notes      string   `json:"notes"`
}

// ReviewInput is what the reviewer sees.
type ReviewInput struct {
	Goal    string
	Metrics string
	Results []ActionResult
}

// Reviewer judges whether collection can stop.
type Reviewer interface {
	ReviewEvidence(ctx context.Context, in ReviewInput) (*Review, error)
}

// LLMPlanner plans and reviews through an LLM client.
type LLMPlanner struct {
	Client llm.Client
	Log    *slog.Logger
}

// PlanActions asks the model for the next batch and parses its response.
func (p *LLMPlanner) PlanActions(ctx context.Context, in PlanInput) (*Plan, error) {
	template, err := prompts.Get("agentic.json", "plan-actions")
	if err != nil {
		return nil, err
	}

	prompt := prompts.Format(template, map[string]string{
		"Goal":       in.Goal,
		"RawLines":   bulleted(in.RawLines),
		"Metrics":    in.Metrics,
		"History":    bulleted(in.History),
		"Candidates": bulleted(in.Candidates),
		"MaxActions": strconv.Itoa(in.MaxActions),
	})

	raw, err := llm.GenerateJSONWithRetry(ctx, p.Client, prompt, llm.TierAdvanced, p.Log)
	if err != nil {
		return nil, fmt.Errorf("agentic: planner request failed: %w", err)
	}
	return ParsePlan(raw, p.Log)
}

// bulleted renders a list as markdown bullets, "(none)" when empty.
func bulleted(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return "- " + strings.Join(items, "\n- ")
}

// ReviewEvidence asks the model whether the archive now covers the goal.
func (p *LLMPlanner) ReviewEvidence(ctx context.Context, in ReviewInput) (*Review, error) {
	template, err := prompts.Get("agentic.json", "review-evidence")
	if err != nil {
		return nil, err
	}

	var results strings.Builder
	for _, result := range in.Results {
		if result.Error != "" {
			fmt.Fprintf(&results, "- %s: failed (%s)\n", describeAction(result.Action), result.Error)
		} else {
			fmt.Fprintf(&results, "- %s: %d new records\n", describeAction(result.Action), result.NewRecords)
		}
	}

	prompt := prompts.Format(template, map[string]string{
		"Goal":    in.Goal,
		"Metrics": in.Metrics,
		"Results": results.String(),
	})

	raw, err := llm.GenerateJSONWithRetry(ctx, p.Client, prompt, llm.TierStandard, p.Log)
	if err != nil {
		return nil, fmt.Errorf("agentic: review request failed: %w", err)
	}

	var review Review
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(raw)), &review); err != nil {
		return nil, fmt.Errorf("agentic: decode review: %w", err)
	}
	return &review, nil
}
