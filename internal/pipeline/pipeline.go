// Package pipeline provides the high-level orchestration for one ingestion
// run: parse the instruction, build the job, sweep the collectors, optionally
// drive the agentic loop, and write the run manifest.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"evidencer/internal/agentic"
	"evidencer/internal/archive"
	"evidencer/internal/collectors"
	"evidencer/internal/instruction"
	"evidencer/internal/job"
	"evidencer/internal/llm"
)

// RunOptions holds configuration for running the pipeline.
type RunOptions struct {
	Job *job.Job

	// Collectors for the bootstrap sweep, in execution order.
	Collectors []collectors.Collector

	// LLMClient powers the agentic planner and reviewer. Nil means the
	// heuristic drives every round.
	LLMClient llm.Client

	AgenticSearch bool
	MaxIterations int
	Parallel      bool
}

// Run executes one ingestion run end to end.
func Run(ctx context.Context, opts RunOptions, w *archive.Writer, log *slog.Logger) error {
	j := opts.Job
	if j == nil {
		return fmt.Errorf("pipeline: job is required")
	}

	log.Info("run starting",
		"run_id", j.RunID,
		"update_mode", j.UpdateMode,
		"queries", len(j.Queries),
		"urls", len(j.URLs),
		"academic_ids", len(j.AcademicIDs),
		"local_specs", len(j.LocalSpecs))

	if err := collectors.RunAll(ctx, j, w, log, opts.Parallel, opts.Collectors...); err != nil {
		return fmt.Errorf("pipeline: bootstrap sweep: %w", err)
	}

	if opts.AgenticSearch {
		if err := runAgentic(ctx, opts, w, log); err != nil {
			return fmt.Errorf("pipeline: agentic loop: %w", err)
		}
	}

	if err := archive.WriteManifest(j, w); err != nil {
		return err
	}

	log.Info("run finished", "run_id", j.RunID)
	return nil
}

func runAgentic(ctx context.Context, opts RunOptions, w *archive.Writer, log *slog.Logger) error {
	byName := make(map[string]collectors.Collector, len(opts.Collectors))
	for _, c := range opts.Collectors {
		byName[c.Name()] = c
	}

	controller := &agentic.Controller{
		Executors: agentic.Executors(
			byName[job.NamespaceWebSearch],
			byName[job.NamespaceWebExtract],
			byName[job.NamespaceAcademic],
			byName[job.NamespacePreprint],
			byName[job.NamespaceVideo],
		),
		MaxIterations: opts.MaxIterations,
	}
	if opts.LLMClient != nil {
		planner := &agentic.LLMPlanner{Client: opts.LLMClient, Log: log}
		controller.Planner = planner
		controller.Reviewer = planner
	} else {
		log.Info("no LLM configured, agentic loop runs on the heuristic")
	}

	return controller.Run(ctx, opts.Job, w, log)
}

// PrepareJob reads and parses an instruction file and builds the job.
func PrepareJob(instructionPath string, opts job.Options) (*job.Job, error) {
	data, err := os.ReadFile(instructionPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read instruction: %w", err)
	}

	tokens := instruction.Parse(string(data))
	if tokens.Empty() {
		return nil, fmt.Errorf("pipeline: instruction %s contains no usable input", instructionPath)
	}

	opts.InstructionPath = instructionPath
	return job.New(opts, tokens)
}
