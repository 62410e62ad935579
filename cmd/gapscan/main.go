package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gapscan/gapscan/internal/analyzer"
	"github.com/gapscan/gapscan/internal/chunker"
	"github.com/gapscan/gapscan/internal/config"
	"github.com/gapscan/gapscan/internal/controls"
	"github.com/gapscan/gapscan/internal/embedding"
	"github.com/gapscan/gapscan/internal/ingest"
	"github.com/gapscan/gapscan/internal/llm"
	"github.com/gapscan/gapscan/internal/llm/anthropic"
	"github.com/gapscan/gapscan/internal/llm/ollama"
	"github.com/gapscan/gapscan/internal/llm/openai"
	"github.com/gapscan/gapscan/internal/metrics"
	"github.com/gapscan/gapscan/internal/observability"
	"github.com/gapscan/gapscan/internal/report"
	"github.com/gapscan/gapscan/internal/retrieval"
	"github.com/gapscan/gapscan/internal/secrets"
	"github.com/gapscan/gapscan/internal/vector"
	"github.com/gapscan/gapscan/internal/vector/qdrant"
)

func main() {
	var (
		configPath  string
		dataDir     string
		controlsArg string
		reportPath  string
		exportDir   string
		title       string
		jsonReport  bool
	)

	rootCmd := &cobra.Command{
		Use:   "gapscan",
		Short: "Retrieval-augmented compliance gap analysis",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (defaults + GAPSCAN_* env when omitted)")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk and embed the policy corpus into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(configPath, dataDir, jsonReport)
		},
	}
	ingestCmd.Flags().StringVar(&dataDir, "data", "", "Policy data directory (overrides config)")
	ingestCmd.Flags().BoolVar(&jsonReport, "json", false, "Output run metrics as JSON")

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Evaluate every control against the indexed policy corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(configPath, controlsArg, reportPath, title, jsonReport)
		},
	}
	analyzeCmd.Flags().StringVar(&controlsArg, "controls", "", "Controls JSON file (overrides config)")
	analyzeCmd.Flags().StringVar(&reportPath, "output", "", "Report output path (overrides config)")
	analyzeCmd.Flags().StringVar(&title, "title", "", "Report title")
	analyzeCmd.Flags().BoolVar(&jsonReport, "json", false, "Output run metrics as JSON")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export an existing gap report to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(configPath, reportPath, exportDir)
		},
	}
	exportCmd.Flags().StringVar(&reportPath, "report", "", "Gap report JSON to export (overrides config)")
	exportCmd.Flags().StringVar(&exportDir, "out", "", "Directory for the CSV file (overrides config)")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the policy corpus and controls file before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(configPath, dataDir, controlsArg)
		},
	}
	validateCmd.Flags().StringVar(&dataDir, "data", "", "Policy data directory (overrides config)")
	validateCmd.Flags().StringVar(&controlsArg, "controls", "", "Controls JSON file (overrides config)")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-14s %s\n", name, url)
			}
			fmt.Println("  custom         (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println()
			fmt.Println("Configure in gapscan.yaml or via environment:")
			fmt.Println("  GAPSCAN_LLM_PROVIDER=ollama")
			fmt.Println("  GAPSCAN_LLM_MODEL=llama3")
			fmt.Println("  GAPSCAN_LLM_EMBED_MODEL=nomic-embed-text")
		},
	}

	rootCmd.AddCommand(ingestCmd, analyzeCmd, exportCmd, validateCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildFactory registers every provider constructor.
func buildFactory() *llm.ProviderFactory {
	factory := llm.NewFactory()
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})
	factory.Register("ollama", func(c llm.ProviderConfig) (llm.Provider, error) {
		return ollama.New(c.BaseURL, c.Model, c.EmbedModel), nil
	})
	// OpenAI-compatible hosted providers plus fully custom endpoints.
	for _, p := range []struct{ name, url string }{
		{"groq", llm.KnownProviders["groq"]},
		{"together", llm.KnownProviders["together"]},
		{"deepseek", llm.KnownProviders["deepseek"]},
		{"custom", ""},
	} {
		p := p
		factory.Register(p.name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = p.url
			}
			return openai.New(c.APIKey, c.Model, base, c.EmbedModel), nil
		})
	}
	return factory
}

// newProvider builds the configured provider. Commands that embed or
// complete require one; validate and export do not. A key left out of the
// config is resolved through the secrets backend (env vars by default, so
// GAPSCAN_LLM_API_KEY or e.g. OPENAI_API_KEY both work).
func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	pc := llm.DefaultProviderConfig()
	pc.Provider = cfg.LLM.Provider
	pc.APIKey = cfg.LLM.APIKey
	if pc.APIKey == "" {
		pc.APIKey = resolveAPIKey(ctx, cfg)
	}
	pc.Model = cfg.LLM.Model
	pc.BaseURL = cfg.LLM.BaseURL
	pc.EmbedModel = cfg.LLM.EmbedModel
	pc.RequestsPerMinute = cfg.LLM.RequestsPerMinute

	provider, err := buildFactory().Create(pc)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: configure llm.provider (see 'gapscan providers')", llm.ErrProviderUnavailable)
	}
	return provider, nil
}

func resolveAPIKey(ctx context.Context, cfg *config.Config) string {
	sc := &secrets.Config{Backend: cfg.Secrets.Backend}
	switch cfg.Secrets.Backend {
	case "vault":
		sc.Vault = &secrets.VaultConfig{
			Address:    cfg.Secrets.VaultAddress,
			Token:      cfg.Secrets.VaultToken,
			MountPath:  cfg.Secrets.VaultMount,
			SecretPath: cfg.Secrets.VaultPath,
		}
	case "file":
		sc.File = &secrets.FileConfig{Path: cfg.Secrets.FilePath}
	}
	mgr, err := secrets.NewManager(sc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: secrets backend unavailable: %v\n", err)
		return ""
	}
	return mgr.ResolveLLMAPIKey(ctx, cfg.LLM.Provider)
}

// newIndex connects to the configured vector backend. Host "memory" selects
// the in-process index, useful for smoke runs without a Qdrant instance.
func newIndex(ctx context.Context, cfg *config.Config) (vector.Index, error) {
	if cfg.Vector.Host == "memory" {
		return vector.NewMemoryIndex(), nil
	}
	idx, err := qdrant.New(ctx, cfg.Vector.Host, cfg.Vector.Port)
	if err != nil {
		return nil, fmt.Errorf("connecting to vector index: %w", err)
	}
	return idx, nil
}

func newAuditLogger(cfg *config.Config) *observability.AuditLogger {
	if !cfg.Audit.Enabled {
		return nil
	}
	audit, err := observability.NewAuditLogger(&observability.AuditConfig{
		Enabled:    true,
		OutputPath: cfg.Audit.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: audit logging disabled: %v\n", err)
		return nil
	}
	return audit
}

func initTracing(ctx context.Context, cfg *config.Config) *observability.TracerProvider {
	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "gapscan",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: tracing disabled: %v\n", err)
		return nil
	}
	return tp
}

func requestOptions(cfg *config.Config) *llm.RequestOptions {
	opts := &llm.RequestOptions{}
	if cfg.LLM.MaxTokens > 0 {
		maxTokens := cfg.LLM.MaxTokens
		opts.MaxTokens = &maxTokens
	}
	temp := cfg.LLM.Temperature
	opts.Temperature = &temp
	return opts
}

func runIngest(configPath, dataDir string, jsonReport bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}

	ctx := context.Background()
	tp := initTracing(ctx, cfg)
	if tp != nil {
		defer tp.Shutdown(ctx)
	}
	audit := newAuditLogger(cfg)
	defer audit.Close()

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Using LLM provider: %s\n", provider.Name())

	idx, err := newIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	m := metrics.New("ingest", provider.Name())
	audit.LogRunStart("ingest", map[string]any{
		"data_dir":   cfg.Paths.DataDir,
		"collection": cfg.Vector.Collection,
	})

	pipe := ingest.New(embedding.NewGateway(provider), idx)
	pipe.SetAuditLogger(audit)

	res, err := pipe.Run(ctx, ingest.Config{
		DataDir:    cfg.Paths.DataDir,
		Collection: cfg.Vector.Collection,
	})
	m.Finish()
	audit.LogRunEnd("ingest", err == nil, m.Duration, err)
	if err != nil {
		return err
	}

	m.CollectIngest(res.Documents, res.Statements, res.Dimension, res.EmbedDuration, res.IndexDuration)
	fmt.Printf("Indexed %d statements from %d documents into %s\n",
		res.Statements, res.Documents, cfg.Vector.Collection)

	return printMetrics(m, jsonReport)
}

func runAnalyze(configPath, controlsPath, reportPath, title string, jsonReport bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if controlsPath != "" {
		cfg.Paths.Controls = controlsPath
	}
	if reportPath != "" {
		cfg.Paths.ReportPath = reportPath
	}

	ctx := context.Background()
	tp := initTracing(ctx, cfg)
	if tp != nil {
		defer tp.Shutdown(ctx)
	}
	audit := newAuditLogger(cfg)
	defer audit.Close()

	cs, err := controls.Load(cfg.Paths.Controls)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d controls from %s\n", len(cs), cfg.Paths.Controls)

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Using LLM provider: %s\n", provider.Name())

	idx, err := newIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	retr := retrieval.New(embedding.NewGateway(provider), idx, cfg.Vector.Collection)
	a := analyzer.New(provider, retr, idx, analyzer.Config{
		Collection: cfg.Vector.Collection,
		TopK:       cfg.Vector.TopK,
	})
	a.SetRequestOptions(requestOptions(cfg))
	a.SetAuditLogger(audit)

	if err := a.Setup(ctx); err != nil {
		return err
	}

	m := metrics.New("analyze", provider.Name())
	audit.LogRunStart("analyze", map[string]any{
		"controls":   cfg.Paths.Controls,
		"collection": cfg.Vector.Collection,
	})

	start := time.Now()
	outcomes := a.Run(ctx, cs)

	_, span := observability.StartReportSpan(ctx, cfg.Paths.ReportPath)
	r := report.Assemble(title, outcomes)
	err = report.Write(r, cfg.Paths.ReportPath)
	observability.RecordError(span, err)
	span.End()

	m.Finish()
	audit.LogRunEnd("analyze", err == nil, time.Since(start), err)
	if err != nil {
		return err
	}
	audit.LogReportWrite(cfg.Paths.ReportPath, r.Metadata.TotalControlsAnalyzed)

	failures := 0
	for _, o := range outcomes {
		if o.Failed() {
			failures++
			m.AddError(o.Err)
		}
	}
	m.CollectAnalyze(len(cs),
		r.Metadata.Summary.FullyMet, r.Metadata.Summary.PartiallyMet, r.Metadata.Summary.NotMet, failures)

	fmt.Printf("Gap analysis complete. Report saved to: %s\n", cfg.Paths.ReportPath)
	report.PrintSummary(os.Stdout, r)

	return printMetrics(m, jsonReport)
}

func runExport(configPath, reportPath, exportDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if reportPath != "" {
		cfg.Paths.ReportPath = reportPath
	}
	if exportDir != "" {
		cfg.Paths.ExportDir = exportDir
	}

	r, err := report.Read(cfg.Paths.ReportPath)
	if err != nil {
		return err
	}

	path, err := report.ExportCSV(r, cfg.Paths.ExportDir)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d results to %s\n", len(r.Results), path)
	return nil
}

func runValidate(configPath, dataDir, controlsPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}
	if controlsPath != "" {
		cfg.Paths.Controls = controlsPath
	}

	ok := true

	docs, err := chunker.LoadDir(cfg.Paths.DataDir)
	if err != nil {
		fmt.Printf("[FAIL] policy data: %v\n", err)
		ok = false
	} else if _, err := chunker.Chunk(docs); err != nil {
		fmt.Printf("[FAIL] policy data: %v\n", err)
		ok = false
	} else {
		fmt.Printf("[ OK ] policy data: %d documents in %s\n", len(docs), cfg.Paths.DataDir)
	}

	cs, err := controls.Load(cfg.Paths.Controls)
	if err != nil {
		fmt.Printf("[FAIL] controls: %v\n", err)
		ok = false
	} else {
		fmt.Printf("[ OK ] controls: %d entries in %s\n", len(cs), cfg.Paths.Controls)
	}

	if !ok {
		return fmt.Errorf("validation failed")
	}
	fmt.Println("Validation passed.")
	return nil
}

func printMetrics(m *metrics.RunMetrics, jsonReport bool) error {
	if jsonReport {
		data, err := m.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	m.PrintSummary(os.Stdout)
	return nil
}
