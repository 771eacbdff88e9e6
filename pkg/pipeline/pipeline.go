// Package pipeline runs the full analysis flow over one input table:
// load, validate, clean, derive features, and stand up a query engine on
// the result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heliodata/autoanalyst/pkg/clean"
	"github.com/heliodata/autoanalyst/pkg/dataset"
	"github.com/heliodata/autoanalyst/pkg/feature"
	"github.com/heliodata/autoanalyst/pkg/ingest"
	"github.com/heliodata/autoanalyst/pkg/query"
	"github.com/heliodata/autoanalyst/pkg/validate"
	"github.com/heliodata/autoanalyst/pkg/viz"
)

// Config controls a pipeline run.
type Config struct {
	Logger *slog.Logger
	// LLM is passed through to the query engine. nil disables completion
	// and every question uses the rule-based generator.
	LLM query.LLMClient
	// Clock defaults to the real clock.
	Clock clockwork.Clock

	// SkipClean leaves the validated dataset as loaded.
	SkipClean bool
	// SkipFeatures disables derived columns.
	SkipFeatures bool

	// ExecBudget and CompleteTimeout pass through to the engine.
	ExecBudget      time.Duration
	CompleteTimeout time.Duration

	// ValidateWorkers bounds validation fan-out.
	ValidateWorkers int
}

// Outcome is everything a run produced.
type Outcome struct {
	Dataset    *dataset.Dataset
	Metadata   *ingest.Metadata
	Validation *validate.Report
	CleanLog   []string
	FeatureLog []string
	Charts     []viz.Spec
	Engine     *query.Engine
}

// RunFile loads path and runs the pipeline over it.
func RunFile(ctx context.Context, path string, cfg Config) (*Outcome, error) {
	ds, meta, err := ingest.LoadFile(path)
	if err != nil {
		return nil, err
	}
	out, err := Run(ctx, ds, cfg)
	if err != nil {
		return nil, err
	}
	out.Metadata = meta
	return out, nil
}

// Run executes the stages in order on ds. The input dataset is never
// modified; cleaning and feature stages work on clones.
func Run(ctx context.Context, ds *dataset.Dataset, cfg Config) (*Outcome, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	out := &Outcome{Dataset: ds}

	report, err := validate.Run(ctx, ds, validate.Config{
		Workers: cfg.ValidateWorkers,
		Clock:   cfg.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	out.Validation = report
	log.Info("validation complete", "rows", report.Rows, "issues", report.Issues())

	if !cfg.SkipClean {
		cleaned := clean.AutoClean(out.Dataset, clean.Options{Logger: log})
		out.Dataset = cleaned.Dataset
		out.CleanLog = cleaned.Log
		log.Info("cleaning complete", "steps", len(cleaned.Log), "rows", out.Dataset.NumRows())
	}

	if !cfg.SkipFeatures {
		engineered := feature.Engineer(out.Dataset, feature.Options{})
		out.Dataset = engineered.Dataset
		out.FeatureLog = engineered.Log
		log.Info("feature engineering complete", "added", len(engineered.Log))
	}

	out.Charts = viz.Recommend(out.Dataset)

	engine, err := query.New(out.Dataset, &query.Config{
		Logger:          log,
		LLM:             cfg.LLM,
		Clock:           cfg.Clock,
		ExecBudget:      cfg.ExecBudget,
		CompleteTimeout: cfg.CompleteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	out.Engine = engine

	return out, nil
}
