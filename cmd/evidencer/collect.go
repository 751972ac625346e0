package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"evidencer/internal/academic"
	"evidencer/internal/archive"
	"evidencer/internal/collectors"
	"evidencer/internal/config"
	"evidencer/internal/job"
	"evidencer/internal/llm"
	"evidencer/internal/observability"
	"evidencer/internal/pipeline"
	"evidencer/internal/preprint"
	"evidencer/internal/video"
	"evidencer/internal/websearch"
)

var collectCommand = &cobra.Command{
	Use:   "collect",
	Short: "Run one evidence collection pass over an instruction file",
	Long: `Parses the instruction file, sweeps every enabled provider, and archives
deduplicated records under <out>/archive. With --agentic-search the sweep is
followed by a plan/execute/review loop that fills coverage gaps.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	RunE: runCollectCmd,
}

var (
	collectConfigPath    string
	collectInstruction   string
	collectOutDir        string
	collectDate          string
	collectUpdateRun     string
	collectAgentic       bool
	collectMaxIterations int
	collectMaxResults    int
	collectRecencyDays   int
	collectParallel      bool
	collectDownloadPDF   bool
	collectLanguage      string
	collectAPIKey        string
	collectSearchKey     string
	collectEngineID      string
	collectMailto        string
	collectVerbose       bool

	collectNoWeb      bool
	collectNoAcademic bool
	collectNoPreprint bool
	collectNoVideo    bool
	collectNoLocal    bool
)

// searchDelay spaces out consecutive provider requests within one collector.
const searchDelay = 500 * time.Millisecond

func init() {
	// Config file flag (processed first)
	collectCommand.Flags().StringVar(&collectConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	collectCommand.Flags().StringVarP(&collectInstruction, "instruction", "i", "", "Path to the instruction text file")
	collectCommand.Flags().StringVarP(&collectOutDir, "out", "o", "", "Root output directory for the run")
	collectCommand.Flags().StringVar(&collectDate, "date", "", "Run date as YYYY-MM-DD (defaults to today)")
	collectCommand.Flags().StringVar(&collectUpdateRun, "update-run", "", "Run ID to extend; new records append to the existing archive")
	collectCommand.Flags().BoolVar(&collectAgentic, "agentic-search", false, "Follow the sweep with the plan/execute/review loop")
	collectCommand.Flags().IntVar(&collectMaxIterations, "max-iter", 0, "Maximum agentic iterations")
	collectCommand.Flags().IntVar(&collectMaxResults, "max-results", 0, "Per-provider result limit")
	collectCommand.Flags().IntVar(&collectRecencyDays, "recency-days", 0, "Restrict literature and preprint searches to the last N days (0 = unrestricted)")
	collectCommand.Flags().BoolVar(&collectParallel, "parallel", false, "Run collectors concurrently")
	collectCommand.Flags().BoolVar(&collectDownloadPDF, "download-pdf", false, "Download PDFs alongside metadata")
	collectCommand.Flags().StringVar(&collectLanguage, "lang", "", "Preferred transcript/document language")
	collectCommand.Flags().BoolVarP(&collectVerbose, "verbose", "v", false, "Print detailed debug information")

	// Credentials can be passed as flags, or read from the environment
	collectCommand.Flags().StringVar(&collectAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	collectCommand.Flags().StringVar(&collectSearchKey, "search-key", "", "Google API key for search and video (optional, defaults to GOOGLE_API_KEY env var)")
	collectCommand.Flags().StringVar(&collectEngineID, "search-engine-id", "", "Programmable search engine ID (optional, defaults to SEARCH_ENGINE_ID env var)")
	collectCommand.Flags().StringVar(&collectMailto, "mailto", "", "Contact address sent to polite API pools (optional, defaults to OPENALEX_MAILTO env var)")

	collectCommand.Flags().BoolVar(&collectNoWeb, "no-web", false, "Disable web search and page extraction")
	collectCommand.Flags().BoolVar(&collectNoAcademic, "no-academic", false, "Disable published-literature search")
	collectCommand.Flags().BoolVar(&collectNoPreprint, "no-preprint", false, "Disable preprint search")
	collectCommand.Flags().BoolVar(&collectNoVideo, "no-video", false, "Disable video search")
	collectCommand.Flags().BoolVar(&collectNoLocal, "no-local", false, "Disable local document ingestion")

	rootCmd.AddCommand(collectCommand)
}

func runCollectCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if collectConfigPath != "" {
		loadedCfg, err := config.LoadConfig(collectConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("instruction") {
		cfg.Instruction = collectInstruction
	}
	if cmd.Flags().Changed("out") {
		cfg.OutDir = collectOutDir
	}
	if cmd.Flags().Changed("max-results") {
		cfg.MaxResults = collectMaxResults
	}
	if cmd.Flags().Changed("max-iter") {
		cfg.MaxIterations = collectMaxIterations
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = collectAPIKey
	}
	if cmd.Flags().Changed("search-key") {
		cfg.SearchKey = collectSearchKey
	}
	if cmd.Flags().Changed("search-engine-id") {
		cfg.SearchEngineID = collectEngineID
	}
	if cmd.Flags().Changed("mailto") {
		cfg.Mailto = collectMailto
	}
	if cmd.Flags().Changed("lang") {
		cfg.Language = collectLanguage
	}
	if cmd.Flags().Changed("agentic-search") {
		cfg.AgenticSearch = collectAgentic
	}
	if cmd.Flags().Changed("download-pdf") {
		cfg.DownloadPDF = collectDownloadPDF
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Parallel = collectParallel
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = collectVerbose
	}

	// Step 3: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(config.Config{
		OutDir:        "research",
		MaxResults:    10,
		MaxIterations: 5,
	})

	// Step 4: Validate required fields
	if cfg.Instruction == "" {
		return fmt.Errorf("--instruction is required (via flag or config)")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	date, err := parseRunDate(collectDate)
	if err != nil {
		return err
	}

	j, err := pipeline.PrepareJob(cfg.Instruction, job.Options{
		Date:        date,
		RootDir:     cfg.OutDir,
		RunID:       collectUpdateRun,
		UpdateMode:  collectUpdateRun != "",
		Language:    cfg.Language,
		DownloadPDF: cfg.DownloadPDF,
		Providers:   buildProviders(cfg.MaxResults),
	})
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	if cfg.Verbose {
		printer.PrintJob(j)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log, closer, err := archive.OpenRunLog(j.ArchiveDir, level)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer func() { _ = closer.Close() }()

	creds := config.LoadCredentials(cfg, log)

	var llmClient llm.Client
	if creds.GeminiKey != "" {
		llmClient, err = llm.NewClient(ctx, nil, creds.GeminiKey)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
	}

	collectorSet, err := buildCollectors(ctx, creds, llmClient, log)
	if err != nil {
		return err
	}

	w, err := archive.NewWriter(j.ArchiveDir, log)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	if err := pipeline.Run(ctx, pipeline.RunOptions{
		Job:           j,
		Collectors:    collectorSet,
		LLMClient:     llmClient,
		AgenticSearch: cfg.AgenticSearch,
		MaxIterations: cfg.MaxIterations,
		Parallel:      cfg.Parallel,
	}, w, log); err != nil {
		return err
	}

	if cfg.Verbose {
		printer.PrintSnapshot(archive.Snapshot(j, w))
	}
	return nil
}

// parseRunDate parses the --date flag. Empty means today.
func parseRunDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", value, err)
	}
	return date, nil
}

// buildProviders maps the --no-* toggles onto provider configs, all sharing
// one result limit.
func buildProviders(maxResults int) job.Providers {
	return job.Providers{
		WebSearch: job.ProviderConfig{Enabled: !collectNoWeb, Limit: maxResults},
		Academic:  job.ProviderConfig{Enabled: !collectNoAcademic, Limit: maxResults},
		Preprint:  job.ProviderConfig{Enabled: !collectNoPreprint, Limit: maxResults},
		Video:     job.ProviderConfig{Enabled: !collectNoVideo, Limit: maxResults},
		LocalDocs: job.ProviderConfig{Enabled: !collectNoLocal, Limit: maxResults},
	}
}

// buildCollectors constructs the full collector set. Providers whose
// credentials are missing keep a nil client and no-op with a warning.
func buildCollectors(ctx context.Context, creds config.Credentials, llmClient llm.Client, log *slog.Logger) ([]collectors.Collector, error) {
	recency := time.Duration(collectRecencyDays) * 24 * time.Hour

	webSearch := &collectors.WebSearch{Delay: searchDelay}
	if creds.SearchKey != "" && creds.SearchEngineID != "" {
		client, err := websearch.NewClient(ctx, creds.SearchKey, creds.SearchEngineID)
		if err != nil {
			return nil, fmt.Errorf("failed to create web search client: %w", err)
		}
		webSearch.Client = client
	}

	webExtract := collectors.NewWebExtract()
	if llmClient != nil {
		webExtract.Evidence = func(ctx context.Context, text string) (map[string]any, error) {
			return llm.ExtractPageEvidence(ctx, llmClient, text, log)
		}
	}

	videoCollector := &collectors.Video{Delay: searchDelay}
	if creds.SearchKey != "" {
		client, err := video.NewClient(ctx, creds.SearchKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create video client: %w", err)
		}
		videoCollector.Client = client
	}

	academicCollector := &collectors.Academic{
		Client:        academic.NewClient(creds.Mailto),
		Delay:         searchDelay,
		RecencyWindow: recency,
	}

	preprintCollector := collectors.NewPreprint(preprint.NewClient())
	preprintCollector.Delay = searchDelay
	preprintCollector.RecencyWindow = recency

	return []collectors.Collector{
		webSearch,
		webExtract,
		academicCollector,
		preprintCollector,
		videoCollector,
		&collectors.LocalDocs{},
	}, nil
}
