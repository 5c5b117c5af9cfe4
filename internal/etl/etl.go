// Package etl orchestrates the three pipeline stages through their CSV
// artifacts, so each stage can also run on its own from the CLI.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avaldezp/olap-horarios/internal/etl/extract"
	"github.com/avaldezp/olap-horarios/internal/etl/load"
	"github.com/avaldezp/olap-horarios/internal/etl/staging"
	"github.com/avaldezp/olap-horarios/internal/etl/transform"
	"github.com/avaldezp/olap-horarios/pkg/config"
	"github.com/avaldezp/olap-horarios/pkg/metrics"
)

// Report summarizes one full pipeline run.
type Report struct {
	JobID           uuid.UUID
	StartedAt       time.Time
	Duration        time.Duration
	Status          string // "ok" or "failed"
	ExtractedRows   int
	ExtractErrors   int
	TransformedRows int
	TransformErrors int
	MergedRows      int
	FactRows        int
	SlotRows        int
	DimsCreated     int
}

// Runner wires the stage components behind the CLI and web entry points.
type Runner struct {
	cfg    config.ETLConfig
	source extract.TableSource
	pool   load.PgxPool
	logger *slog.Logger
}

// New creates a runner. pool may be nil when only the file stages run.
func New(cfg config.ETLConfig, source extract.TableSource, pool load.PgxPool, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, source: source, pool: pool, logger: logger}
}

// Extract sweeps the intake directory, parses every raw PDF and writes the
// staging CSV.
func (r *Runner) Extract(ctx context.Context) (*extract.Result, error) {
	swept, err := extract.SweepIntake(r.cfg.IntakeDir, r.cfg.RawDir, r.cfg.IntakeGlob, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep intake directory: %w", err)
	}
	if len(swept) > 0 {
		r.logger.Info("intake files moved to raw", "count", len(swept))
	}

	paths, err := extract.ListRawPDFs(r.cfg.RawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw PDFs: %w", err)
	}

	extractor := extract.New(r.source, r.cfg.Programas, r.cfg.SalonRegex, r.logger)
	result, err := extractor.Extract(paths)
	if err != nil {
		return nil, err
	}

	if err := staging.WriteRecords(r.cfg.StagingCSV(), result.Records); err != nil {
		return nil, fmt.Errorf("failed to write staging CSV: %w", err)
	}

	metrics.RowsProcessed.WithLabelValues("extract").Add(float64(len(result.Records)))
	metrics.RowErrors.WithLabelValues("extract").Add(float64(len(result.Errors)))
	r.logger.InfoContext(ctx, "extract stage finished",
		"files", len(paths),
		"rows_total", result.TotalRows,
		"rows_parsed", result.ParsedRows,
		"rows_skipped", result.SkippedRows,
		"dropped_salon", result.DroppedSalon,
		"files_failed", result.FilesFailed,
		"staging_csv", r.cfg.StagingCSV())
	return result, nil
}

// Transform reads the staging CSV, explodes and deduplicates rows and writes
// the fact-ready CSV.
func (r *Runner) Transform(ctx context.Context) (*transform.Result, error) {
	records, err := staging.ReadRecords(r.cfg.StagingCSV())
	if err != nil {
		return nil, fmt.Errorf("failed to read staging CSV: %w", err)
	}

	transformer := transform.New(r.cfg.DayMap, r.logger)
	result, err := transformer.Transform(records)
	if err != nil {
		return nil, err
	}

	if err := staging.WriteFactReady(r.cfg.FactReadyCSV(), result.Records); err != nil {
		return nil, fmt.Errorf("failed to write fact-ready CSV: %w", err)
	}

	metrics.RowsProcessed.WithLabelValues("transform").Add(float64(len(result.Records)))
	metrics.RowErrors.WithLabelValues("transform").Add(float64(len(result.Errors)))
	r.logger.InfoContext(ctx, "transform stage finished",
		"rows_in", result.TotalRows,
		"rows_out", len(result.Records),
		"rows_merged", result.MergedRows,
		"row_errors", len(result.Errors),
		"fact_ready_csv", r.cfg.FactReadyCSV())
	return result, nil
}

// Load reads the fact-ready CSV and replaces the active period in the
// warehouse.
func (r *Runner) Load(ctx context.Context) (*load.Summary, error) {
	records, err := staging.ReadFactReady(r.cfg.FactReadyCSV())
	if err != nil {
		return nil, fmt.Errorf("failed to read fact-ready CSV: %w", err)
	}

	loader := load.New(r.pool, r.cfg.Periodo, r.cfg.Plan, r.cfg.DayMap, r.logger)
	summary, err := loader.Load(ctx, records)
	if err != nil {
		return nil, err
	}

	metrics.RowsProcessed.WithLabelValues("load").Add(float64(summary.FactRows))
	r.logger.InfoContext(ctx, "load stage finished",
		"fact_rows", summary.FactRows,
		"slot_rows", summary.SlotRows,
		"deleted_facts", summary.DeletedFacts,
		"deleted_slots", summary.DeletedSlots,
		"dims_created", summary.DimsCreated)
	return summary, nil
}

// Run executes the full pipeline and returns the run report. A stage error
// stops the run; earlier artifacts stay on disk for inspection.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{JobID: uuid.New(), StartedAt: time.Now(), Status: "failed"}
	r.logger.InfoContext(ctx, "ETL run started",
		"job_id", report.JobID,
		"periodo", r.cfg.Periodo,
		"plan", r.cfg.Plan)

	defer func() {
		report.Duration = time.Since(report.StartedAt)
		metrics.RunsTotal.WithLabelValues(report.Status).Inc()
		metrics.RunDuration.Observe(report.Duration.Seconds())
		r.logger.InfoContext(ctx, "ETL run finished",
			"job_id", report.JobID,
			"status", report.Status,
			"duration", report.Duration,
			"extracted", report.ExtractedRows,
			"transformed", report.TransformedRows,
			"fact_rows", report.FactRows,
			"slot_rows", report.SlotRows)
	}()

	extractResult, err := r.Extract(ctx)
	if err != nil {
		return report, fmt.Errorf("extract stage: %w", err)
	}
	report.ExtractedRows = len(extractResult.Records)
	report.ExtractErrors = len(extractResult.Errors)

	transformResult, err := r.Transform(ctx)
	if err != nil {
		return report, fmt.Errorf("transform stage: %w", err)
	}
	report.TransformedRows = len(transformResult.Records)
	report.TransformErrors = len(transformResult.Errors)
	report.MergedRows = transformResult.MergedRows

	summary, err := r.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load stage: %w", err)
	}
	report.FactRows = summary.FactRows
	report.SlotRows = summary.SlotRows
	report.DimsCreated = summary.DimsCreated

	report.Status = "ok"
	return report, nil
}
