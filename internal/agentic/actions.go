// Package agentic implements the iterative plan, execute, review loop that
// steers collectors beyond the instruction's explicit inputs. A planner
// proposes the next actions from archive coverage; a deterministic heuristic
// takes over when no planner is available or its output cannot be parsed.
package agentic

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"evidencer/internal/llm"
	"evidencer/internal/schemas"
)

// Planner action types.
const (
	ActionWebSearch      = "web-search"
	ActionWebExtract     = "web-extract"
	ActionAcademicSearch = "academic-search"
	ActionPreprintSearch = "preprint-recent-search"
	ActionVideoSearch    = "video-search"
	ActionStop           = "stop"
)

// Action is one planner-proposed step.
type Action struct {
	Type       string `json:"type" validate:"required,oneof=web-search web-extract academic-search preprint-recent-search video-search stop"`
	Query      string `json:"query,omitempty"`
	URL        string `json:"url,omitempty" validate:"omitempty,url"`
	MaxResults int    `json:"max_results,omitempty" validate:"gte=0,lte=50"`
}

// Key returns the dedup identity of an action so the controller never
// executes the same step twice in one run.
func (a Action) Key() string {
	switch a.Type {
	case ActionWebExtract:
		return a.Type + "|" + a.URL
	case ActionStop:
		return a.Type
	default:
		return a.Type + "|" + a.Query
	}
}

// NeedsQuery reports whether the action type requires a query.
func (a Action) NeedsQuery() bool {
	switch a.Type {
	case ActionWebSearch, ActionAcademicSearch, ActionPreprintSearch, ActionVideoSearch:
		return true
	}
	return false
}

// Plan is one planner response.
type Plan struct {
	Done    bool     `json:"done"`
	Reason  string   `json:"reason"`
	Actions []Action `json:"actions"`
}

// planSchema guards the response envelope before any field is trusted.
// Individual actions are validated one by one so a single bad action cannot
// sink the rest of the plan.
const planSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["done", "actions"],
  "properties": {
    "done": {"type": "boolean"},
    "reason": {"type": "string"},
    "actions": {
      "type": "array",
      "items": {"type": "object"}
    }
  },
  "additionalProperties": false
}`

var validate = validator.New()

// ParsePlan validates and decodes a raw planner response. Code fences and
// conversational preamble are tolerated; a structurally invalid envelope is
// an error so the caller can fall back to the heuristic. Malformed actions
// inside a valid envelope are skipped with a log line and the remaining
// actions survive.
func ParsePlan(raw string, log *slog.Logger) (*Plan, error) {
	if log == nil {
		log = slog.Default()
	}

	cleaned := llm.CleanJSONBlock(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("agentic: empty planner response")
	}

	if err := schemas.ValidateJSONString(planSchema, cleaned); err != nil {
		return nil, fmt.Errorf("agentic: plan rejected by schema: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, fmt.Errorf("agentic: decode plan: %w", err)
	}

	valid := make([]Action, 0, len(plan.Actions))
	for i, action := range plan.Actions {
		if err := validateAction(action); err != nil {
			log.Warn("skipping malformed action", "index", i, "type", action.Type, "error", err)
			continue
		}
		valid = append(valid, action)
	}
	plan.Actions = valid
	return &plan, nil
}

func validateAction(a Action) error {
	if err := validate.Struct(a); err != nil {
		return err
	}
	if a.NeedsQuery() && a.Query == "" {
		return fmt.Errorf("missing query")
	}
	if a.Type == ActionWebExtract && a.URL == "" {
		return fmt.Errorf("missing url")
	}
	return nil
}
