package agentic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidencer/internal/archive"
	"evidencer/internal/collectors"
	"evidencer/internal/instruction"
	"evidencer/internal/job"
)

func testLog() *slog.Logger {
	return archive.NewTestLog(io.Discard)
}

func newJob(t *testing.T, text string) *job.Job {
	t.Helper()
	j, err := job.New(job.Options{
		RootDir: t.TempDir(),
		Providers: job.Providers{
			WebSearch: job.ProviderConfig{Enabled: true, Limit: 5},
			Academic:  job.ProviderConfig{Enabled: true, Limit: 5},
			Preprint:  job.ProviderConfig{Enabled: true, Limit: 5},
			Video:     job.ProviderConfig{Enabled: true, Limit: 5},
		},
	}, instruction.Parse(text))
	require.NoError(t, err)
	return j
}

func newWriter(t *testing.T, j *job.Job) *archive.Writer {
	t.Helper()
	w, err := archive.NewWriter(j.ArchiveDir, testLog())
	require.NoError(t, err)
	return w
}

// recordingCollector archives one synthetic record per Run call and remembers
// the clones it was handed.
type recordingCollector struct {
	namespace string
	clones    []*job.Job
	counter   int
	err       error
}

func (r *recordingCollector) Name() string { return r.namespace }

func (r *recordingCollector) Run(_ context.Context, j *job.Job, w *archive.Writer, _ *slog.Logger) error {
	r.clones = append(r.clones, j)
	if r.err != nil {
		return r.err
	}
	r.counter++
	_, err := w.Append(r.namespace, map[string]any{
		"url":      "https://synthetic.example/" + r.namespace + "/" + string(rune('a'+r.counter)),
		"video_id": "vid" + string(rune('a'+r.counter)),
		"work_id":  "W" + string(rune('a'+r.counter)),
		"arxiv_id": "240" + string(rune('0'+r.counter)) + ".0000" + string(rune('0'+r.counter)),
	})
	return err
}

type scriptedPlanner struct {
	plans []*Plan
	errs  []error
	calls int
}

func (s *scriptedPlanner) PlanActions(_ context.Context, _ PlanInput) (*Plan, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.plans) {
		return s.plans[i], nil
	}
	return &Plan{Done: true, Reason: "script exhausted"}, nil
}

func TestController_StopsWhenPlannerDone(t *testing.T) {
	j := newJob(t, "sparse attention")
	w := newWriter(t, j)

	search := &recordingCollector{namespace: job.NamespaceWebSearch}
	c := &Controller{
		Planner: &scriptedPlanner{plans: []*Plan{
			{Actions: []Action{{Type: ActionWebSearch, Query: "sparse attention"}}},
			{Done: true, Reason: "covered"},
		}},
		Executors:     Executors(search, nil, nil, nil, nil),
		MaxIterations: 10,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))
	assert.Len(t, search.clones, 1)
	assert.Equal(t, 1, w.Count(job.NamespaceWebSearch))
}

func TestController_ClonesAreNarrowedUpdateMode(t *testing.T) {
	j := newJob(t, "sparse attention\nhttps://keep.example/page")
	w := newWriter(t, j)

	search := &recordingCollector{namespace: job.NamespaceWebSearch}
	c := &Controller{
		Planner: &scriptedPlanner{plans: []*Plan{
			{Actions: []Action{{Type: ActionWebSearch, Query: "narrow query", MaxResults: 3}}},
			{Done: true},
		}},
		Executors:     Executors(search, nil, nil, nil, nil),
		MaxIterations: 10,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))
	require.Len(t, search.clones, 1)

	clone := search.clones[0]
	assert.True(t, clone.UpdateMode)
	assert.Equal(t, []string{"narrow query"}, clone.Queries)
	assert.Empty(t, clone.URLs, "clone drops unrelated inputs")
	assert.Equal(t, 3, clone.Providers.WebSearch.Limit)

	// Original job untouched.
	assert.False(t, j.UpdateMode)
	assert.Equal(t, []string{"sparse attention"}, j.Queries)
	assert.Equal(t, []string{"https://keep.example/page"}, j.URLs)
}

func TestController_NeverRepeatsAnAction(t *testing.T) {
	j := newJob(t, "sparse attention")
	w := newWriter(t, j)

	search := &recordingCollector{namespace: job.NamespaceWebSearch}
	same := Action{Type: ActionWebSearch, Query: "same query"}
	c := &Controller{
		Planner: &scriptedPlanner{plans: []*Plan{
			{Actions: []Action{same}},
			{Actions: []Action{same}}, // repeat: nothing executable, loop ends
			{Actions: []Action{same}},
		}},
		Executors:     Executors(search, nil, nil, nil, nil),
		MaxIterations: 10,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))
	assert.Len(t, search.clones, 1, "repeated action executes once")
}

func TestController_PlannerFailureFallsBackToHeuristic(t *testing.T) {
	j := newJob(t, "sparse attention")
	w := newWriter(t, j)

	search := &recordingCollector{namespace: job.NamespaceWebSearch}
	academicC := &recordingCollector{namespace: job.NamespaceAcademic}
	preprintC := &recordingCollector{namespace: job.NamespacePreprint}
	videoC := &recordingCollector{namespace: job.NamespaceVideo}

	c := &Controller{
		Planner:       &scriptedPlanner{errs: []error{errors.New("model unavailable")}},
		Executors:     Executors(search, nil, academicC, preprintC, videoC),
		MaxIterations: 1,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))
	total := len(search.clones) + len(academicC.clones) + len(preprintC.clones) + len(videoC.clones)
	assert.Greater(t, total, 0, "heuristic proposed executable work")
}

func TestController_HeuristicOnlyTerminates(t *testing.T) {
	j := newJob(t, "sparse attention")
	w := newWriter(t, j)

	// Failing collectors add no records, so the heuristic review stops the
	// loop after the first round.
	search := &recordingCollector{namespace: job.NamespaceWebSearch, err: errors.New("down")}
	academicC := &recordingCollector{namespace: job.NamespaceAcademic, err: errors.New("down")}

	c := &Controller{
		Executors:     Executors(search, nil, academicC, nil, nil),
		MaxIterations: 50,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))
	assert.LessOrEqual(t, len(search.clones)+len(academicC.clones), 6)
}

func TestController_MaxIterationsBound(t *testing.T) {
	j := newJob(t, "sparse attention")
	w := newWriter(t, j)

	// A planner that always proposes fresh work.
	fresh := &dynamicPlanner{}
	search := &recordingCollector{namespace: job.NamespaceWebSearch}

	c := &Controller{
		Planner:       fresh,
		Executors:     Executors(search, nil, nil, nil, nil),
		MaxIterations: 3,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))
	assert.Len(t, search.clones, 3, "one action per iteration, capped at max")
}

type dynamicPlanner struct{ n int }

func (d *dynamicPlanner) PlanActions(_ context.Context, _ PlanInput) (*Plan, error) {
	d.n++
	return &Plan{Actions: []Action{{Type: ActionWebSearch, Query: "query " + string(rune('a'+d.n))}}}, nil
}

func TestController_WritesTraceFiles(t *testing.T) {
	j := newJob(t, "sparse attention")
	w := newWriter(t, j)

	search := &recordingCollector{namespace: job.NamespaceWebSearch}
	c := &Controller{
		Planner: &scriptedPlanner{plans: []*Plan{
			{Reason: "fill web", Actions: []Action{{Type: ActionWebSearch, Query: "q1"}}},
			{Done: true, Reason: "enough"},
		}},
		Executors:     Executors(search, nil, nil, nil, nil),
		MaxIterations: 10,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))

	jsonl, err := os.ReadFile(filepath.Join(j.ArchiveDir, "agentic_trace.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(jsonl), `"stage":"bootstrap"`)
	assert.Contains(t, string(jsonl), `"stage":"plan"`)
	assert.Contains(t, string(jsonl), `"stage":"execute"`)

	md, err := os.ReadFile(filepath.Join(j.ArchiveDir, "agentic_trace.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Agentic trace")
	assert.Contains(t, string(md), "fill web")
}

func TestController_TraceCarriesDecisionAndDeltas(t *testing.T) {
	j := newJob(t, "sparse attention")
	w := newWriter(t, j)

	search := &recordingCollector{namespace: job.NamespaceWebSearch}
	c := &Controller{
		Planner: &scriptedPlanner{plans: []*Plan{
			{Actions: []Action{{Type: ActionWebSearch, Query: "q1"}}},
			{Done: true, Reason: "enough"},
		}},
		Executors:     Executors(search, nil, nil, nil, nil),
		MaxIterations: 10,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))

	jsonl, err := os.ReadFile(filepath.Join(j.ArchiveDir, "agentic_trace.jsonl"))
	require.NoError(t, err)
	trace := string(jsonl)
	assert.Contains(t, trace, `"done":true`, "plan entry records the stop decision")
	assert.Contains(t, trace, `"executed":1`, "review entry records the action count")
	assert.Contains(t, trace, `"deltas":{"websearch":1}`, "review entry records per-namespace gains")
	assert.Contains(t, trace, `"metrics":"`, "plan entry carries the pre-iteration snapshot")
}

type capturingPlanner struct {
	inputs []PlanInput
	n      int
}

func (p *capturingPlanner) PlanActions(_ context.Context, in PlanInput) (*Plan, error) {
	p.inputs = append(p.inputs, in)
	p.n++
	return &Plan{Actions: []Action{{Type: ActionWebSearch, Query: "query " + string(rune('a'+p.n))}}}, nil
}

func TestController_PlannerSeesRawLinesAndBoundedHistory(t *testing.T) {
	j := newJob(t, "sparse attention\nlinear attention")
	w := newWriter(t, j)

	planner := &capturingPlanner{}
	search := &recordingCollector{namespace: job.NamespaceWebSearch}
	c := &Controller{
		Planner:       planner,
		Executors:     Executors(search, nil, nil, nil, nil),
		MaxIterations: 5,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))
	require.GreaterOrEqual(t, len(planner.inputs), 3)

	first := planner.inputs[0]
	assert.Equal(t, j.RawLines, first.RawLines)
	assert.Len(t, first.History, 1, "only the bootstrap entry exists before round one")
	assert.Contains(t, first.History[0], "bootstrap")

	for _, in := range planner.inputs {
		assert.LessOrEqual(t, len(in.History), 4, "prompt history is capped at the trace tail")
	}
	last := planner.inputs[len(planner.inputs)-1]
	assert.Len(t, last.History, 4)
}

func TestController_DisabledProviderActionsDropped(t *testing.T) {
	j, err := job.New(job.Options{
		RootDir: t.TempDir(),
		Providers: job.Providers{
			WebSearch: job.ProviderConfig{Enabled: true, Limit: 5},
			// video disabled
		},
	}, instruction.Parse("sparse attention"))
	require.NoError(t, err)
	w := newWriter(t, j)

	videoC := &recordingCollector{namespace: job.NamespaceVideo}
	c := &Controller{
		Planner: &scriptedPlanner{plans: []*Plan{
			{Actions: []Action{{Type: ActionVideoSearch, Query: "talk"}}},
		}},
		Executors:     Executors(nil, nil, nil, nil, videoC),
		MaxIterations: 2,
	}

	require.NoError(t, c.Run(context.Background(), j, w, testLog()))
	assert.Empty(t, videoC.clones, "actions for disabled providers never execute")
}

var _ collectors.Collector = (*recordingCollector)(nil)
