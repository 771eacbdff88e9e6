package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/heliodata/autoanalyst/pkg/dataset"
	"github.com/heliodata/autoanalyst/pkg/ingest"
	"github.com/heliodata/autoanalyst/pkg/pipeline"
	"github.com/heliodata/autoanalyst/pkg/query"
	"github.com/heliodata/autoanalyst/pkg/render"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := newLogger(cfg.Verbose)

	if cfg.MetricsAddr != "" {
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("Failed to start prometheus metrics server listener", "error", err)
				os.Exit(1)
			}
			log.Info("Prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("Failed to start prometheus metrics server", "error", err)
				os.Exit(1)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var llm query.LLMClient
	if !cfg.NoLLM {
		client := query.NewAnthropicClient(query.DefaultModel, 1024)
		caching := query.NewCachingClient(client, cfg.CacheTTL)
		defer caching.Stop()
		llm = caching
	}

	pcfg := pipeline.Config{
		Logger:          log,
		LLM:             llm,
		SkipClean:       cfg.SkipClean,
		SkipFeatures:    cfg.SkipFeatures,
		ExecBudget:      cfg.ExecBudget,
		CompleteTimeout: cfg.CompleteTimeout,
	}

	var out *pipeline.Outcome
	if cfg.Input == "" {
		log.Info("no input file given, using sample sales data", "rows", cfg.SampleRows)
		out, err = pipeline.Run(ctx, ingest.SampleSalesData(cfg.SampleRows), pcfg)
	} else {
		out, err = pipeline.RunFile(ctx, cfg.Input, pcfg)
	}
	if err != nil {
		return err
	}

	fmt.Println(out.Validation.Format())
	for _, line := range out.CleanLog {
		fmt.Println("clean:", line)
	}
	for _, line := range out.FeatureLog {
		fmt.Println("feature:", line)
	}
	if len(out.Charts) > 0 {
		fmt.Println("\nSuggested charts:")
		for _, spec := range out.Charts {
			fmt.Printf("  [%s] %s\n", spec.Kind, spec.Title)
		}
	}

	if len(cfg.Questions) > 0 {
		for _, q := range cfg.Questions {
			ask(ctx, out.Engine, q)
		}
		return nil
	}

	return interact(ctx, out.Engine, out.Dataset)
}

// interact runs the question loop until EOF, "exit", or signal.
func interact(ctx context.Context, engine *query.Engine, ds *dataset.Dataset) error {
	fmt.Printf("\nLoaded %d rows × %d columns. Ask a question, or type 'help'.\n", ds.NumRows(), ds.NumCols())
	for _, s := range engine.Suggestions(3) {
		fmt.Println("  try:", s)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			fmt.Println("Ask questions in plain language. Commands: suggest, history, reset, exit.")
			continue
		case "suggest":
			for _, s := range engine.Suggestions(5) {
				fmt.Println("  ", s)
			}
			continue
		case "history":
			for _, a := range engine.History() {
				status := "ok"
				if !a.Success {
					status = string(a.Kind)
				}
				fmt.Printf("  %d. [%s] %s\n", a.Seq, status, a.Question)
			}
			continue
		case "reset":
			engine.Reset()
			fmt.Println("history cleared")
			continue
		}
		ask(ctx, engine, line)
	}
}

func ask(ctx context.Context, engine *query.Engine, question string) {
	resp, err := engine.Query(ctx, question)
	if err != nil {
		var qerr *query.Error
		if errors.As(err, &qerr) {
			fmt.Printf("could not answer (%s): %s\n", qerr.Kind, qerr.Message)
			return
		}
		fmt.Println("could not answer:", err)
		return
	}
	fmt.Println(resp.Explanation)
	render.Result(os.Stdout, resp.Result)
}

type Config struct {
	ShowVersion bool
	Verbose     bool
	MetricsAddr string

	Input      string
	ConfigFile string
	Questions  []string
	NoLLM      bool
	SampleRows int

	SkipClean    bool
	SkipFeatures bool

	ExecBudget      time.Duration
	CompleteTimeout time.Duration
	CacheTTL        time.Duration
}

// fileConfig is the YAML shape of --config. Durations are strings in Go
// duration syntax ("5s", "2m").
type fileConfig struct {
	Input           string `yaml:"input"`
	MetricsAddr     string `yaml:"metrics_addr"`
	NoLLM           bool   `yaml:"no_llm"`
	SkipClean       bool   `yaml:"skip_clean"`
	SkipFeatures    bool   `yaml:"skip_features"`
	ExecBudget      string `yaml:"exec_budget"`
	CompleteTimeout string `yaml:"complete_timeout"`
	CacheTTL        string `yaml:"cache_ttl"`
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func loadConfig() (Config, error) {
	var cfg Config

	flag.BoolVar(&cfg.ShowVersion, "version", false, "show version and exit")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "verbose mode - show debug logs")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("METRICS_ADDR", ""), "address to listen on for prometheus metrics (env: METRICS_ADDR)")
	flag.StringVar(&cfg.Input, "input", getenv("AUTOANALYST_INPUT", ""), "input file, .csv or .json (env: AUTOANALYST_INPUT; default: built-in sample data)")
	flag.StringVar(&cfg.ConfigFile, "config", getenv("AUTOANALYST_CONFIG", ""), "optional yaml config file (env: AUTOANALYST_CONFIG)")
	flag.StringArrayVar(&cfg.Questions, "question", nil, "question to answer non-interactively, repeatable")
	flag.BoolVar(&cfg.NoLLM, "no-llm", false, "disable the completion service, use rule-based generation only")
	flag.IntVar(&cfg.SampleRows, "sample-rows", 200, "row count for the built-in sample dataset")
	flag.BoolVar(&cfg.SkipClean, "skip-clean", false, "skip the cleaning stage")
	flag.BoolVar(&cfg.SkipFeatures, "skip-features", false, "skip the feature engineering stage")
	flag.DurationVar(&cfg.ExecBudget, "exec-budget", 5*time.Second, "wall-clock budget for evaluating one query")
	flag.DurationVar(&cfg.CompleteTimeout, "complete-timeout", 30*time.Second, "timeout for one completion call")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", 10*time.Minute, "completion cache entry lifetime")

	flag.Parse()

	if cfg.ShowVersion {
		return cfg, nil
	}

	if cfg.ConfigFile != "" {
		if err := applyFileConfig(&cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// applyFileConfig overlays values from the YAML file onto flags left at
// their zero or default values. Flags set on the command line win.
func applyFileConfig(cfg *Config) error {
	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return fmt.Errorf("read config %s: %w", cfg.ConfigFile, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", cfg.ConfigFile, err)
	}

	if cfg.Input == "" {
		cfg.Input = fc.Input
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = fc.MetricsAddr
	}
	if fc.NoLLM {
		cfg.NoLLM = true
	}
	if fc.SkipClean {
		cfg.SkipClean = true
	}
	if fc.SkipFeatures {
		cfg.SkipFeatures = true
	}
	for _, d := range []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"exec-budget", fc.ExecBudget, &cfg.ExecBudget},
		{"complete-timeout", fc.CompleteTimeout, &cfg.CompleteTimeout},
		{"cache-ttl", fc.CacheTTL, &cfg.CacheTTL},
	} {
		if flag.CommandLine.Changed(d.flag) || d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("parse config %s: %s: %w", cfg.ConfigFile, d.flag, err)
		}
		*d.dst = parsed
	}
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
