package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderrecon/pkg/logger"
	"github.com/angelmondragon/orderrecon/pkg/metrics"
)

const defaultRunLabel = "manual"

type candidateReconciler interface {
	ReconcileCandidate(ctx context.Context, c Candidate) Result
}

// RunRecorder keeps the latest summary per run label.
type RunRecorder interface {
	RecordRun(ctx context.Context, summary RunSummary) error
}

// RunnerParams wires a Runner.
type RunnerParams struct {
	Logger        *logger.Logger
	Source        CandidateSource
	Reconciler    candidateReconciler
	Notifier      Notifier
	PaymentMethod string
	Recorder      RunRecorder
	Metrics       *metrics.ReconcileMetrics
	Now           func() time.Time
}

// Runner drives one pass: scan, reconcile each candidate, group, notify once.
type Runner struct {
	logg          *logger.Logger
	source        CandidateSource
	reconciler    candidateReconciler
	notifier      Notifier
	paymentMethod string
	recorder      RunRecorder
	metrics       *metrics.ReconcileMetrics
	now           func() time.Time
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Source == nil {
		return nil, fmt.Errorf("candidate source required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if strings.TrimSpace(params.PaymentMethod) == "" {
		return nil, fmt.Errorf("payment method required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		logg:          params.Logger,
		source:        params.Source,
		reconciler:    params.Reconciler,
		notifier:      params.Notifier,
		paymentMethod: params.PaymentMethod,
		recorder:      params.Recorder,
		metrics:       params.Metrics,
		now:           now,
	}, nil
}

type runOptions struct {
	label string
}

// RunOption customizes a single Run.
type RunOption func(*runOptions)

// WithLabel tags the run (metrics, logs, stored summary and report).
func WithLabel(label string) RunOption {
	return func(o *runOptions) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			o.label = trimmed
		}
	}
}

// Run reconciles every candidate updated within window. Only a scanner error
// (or cancellation) aborts the run; per-candidate failures end up in the report.
func (r *Runner) Run(ctx context.Context, window time.Duration, opts ...RunOption) (RunSummary, error) {
	o := runOptions{label: defaultRunLabel}
	for _, opt := range opts {
		opt(&o)
	}
	if window <= 0 {
		return RunSummary{}, fmt.Errorf("window must be positive, got %s", window)
	}

	started := r.now().UTC()
	summary := RunSummary{
		RunID:     uuid.New(),
		Label:     o.label,
		Window:    window,
		Since:     started.Add(-window),
		StartedAt: started,
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"run_id":    summary.RunID.String(),
		"run_label": summary.Label,
		"since":     summary.Since.Format(time.RFC3339),
	})
	r.logg.Info(ctx, "reconcile run starting")

	var results []Result
	for candidate, err := range r.source.ListPendingCarts(ctx, r.paymentMethod, summary.Since) {
		if err != nil {
			r.metrics.AddCandidates(summary.Label, summary.Candidates)
			return summary, fmt.Errorf("scan candidates: %w", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.metrics.AddCandidates(summary.Label, summary.Candidates)
			return summary, ctxErr
		}
		summary.Candidates++
		result := r.reconciler.ReconcileCandidate(ctx, candidate)
		if result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		results = append(results, result)
	}
	r.metrics.AddCandidates(summary.Label, summary.Candidates)

	summary.Report = GroupByStore(results)
	summary.Report.RunID = summary.RunID
	summary.Report.Label = summary.Label
	summary.FinishedAt = r.now().UTC()

	if !summary.Report.Empty() {
		if err := r.notifier.SendGroupedReport(ctx, summary.Report); err != nil {
			return summary, fmt.Errorf("send grouped report: %w", err)
		}
	}

	if r.recorder != nil {
		if err := r.recorder.RecordRun(ctx, summary); err != nil {
			r.logg.Error(ctx, "failed to record run summary", err)
		}
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"candidates":  summary.Candidates,
		"succeeded":   summary.Succeeded,
		"failed":      summary.Failed,
		"stores":      len(summary.Report.Stores),
		"duration_ms": summary.FinishedAt.Sub(started).Milliseconds(),
	}), "reconcile run complete")
	return summary, nil
}
