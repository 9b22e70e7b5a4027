package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/orderrecon/internal/reconcile"
	"github.com/angelmondragon/orderrecon/pkg/logger"
)

const (
	QuoteRecoveryJobName = "quote-recovery"
	CatchupJobName       = "quote-recovery-catchup"
)

type runner interface {
	Run(ctx context.Context, window time.Duration, opts ...reconcile.RunOption) (reconcile.RunSummary, error)
}

// ReconcileJobParams configure a scheduled scan-and-reconcile run.
type ReconcileJobParams struct {
	Logger *logger.Logger
	Runner runner
	Name   string
	Window time.Duration
}

// NewReconcileJob builds a job that reconciles carts updated within Window.
// The job name doubles as the run label.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("runner required")
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("job name required")
	}
	if params.Window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	return &reconcileJob{
		logg:   params.Logger,
		runner: params.Runner,
		name:   name,
		window: params.Window,
	}, nil
}

type reconcileJob struct {
	logg   *logger.Logger
	runner runner
	name   string
	window time.Duration
}

func (j *reconcileJob) Name() string { return j.name }

func (j *reconcileJob) Run(ctx context.Context) error {
	summary, err := j.runner.Run(ctx, j.window, reconcile.WithLabel(j.name))
	if err != nil {
		return fmt.Errorf("%s run %s: %w", j.name, summary.RunID, err)
	}
	if summary.Failed > 0 {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"run_id": summary.RunID.String(),
			"failed": summary.Failed,
		}), "reconcile run finished with failed candidates")
	}
	return nil
}
