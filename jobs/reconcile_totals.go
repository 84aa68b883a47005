package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Palpita209/Palpita209-sub001/internal/documents"
	jobmetrics "github.com/Palpita209/Palpita209-sub001/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// TotalsReconciler rewrites header totals that drifted from their items.
type TotalsReconciler interface {
	ReconcileTotals(ctx context.Context) (map[documents.Kind]int64, error)
}

// ReconcileTotalsJob runs TaskReconcileTotals.
type ReconcileTotalsJob struct {
	Reconciler TotalsReconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewReconcileTotalsJob constructs the job handler.
func NewReconcileTotalsJob(reconciler TotalsReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileTotalsJob {
	return &ReconcileTotalsJob{Reconciler: reconciler, Logger: logger, Metrics: metrics}
}

// Handle executes the reconciliation.
func (j *ReconcileTotalsJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Reconciler == nil {
		return errors.New("reconcile totals: reconciler not configured")
	}
	var payload ReconcileTotalsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RunID == "" {
		if id, ok := asynq.GetTaskID(ctx); ok {
			payload.RunID = id
		}
	}
	return j.Run(ctx, payload)
}

// Run reconciles totals outside the queue, as `worker -once` does.
func (j *ReconcileTotalsJob) Run(ctx context.Context, payload ReconcileTotalsPayload) (resultErr error) {
	tracker := j.metrics().Track(TaskReconcileTotals)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if payload.RunID == "" {
		payload.RunID = uuid.NewString()
	}
	start := time.Now()
	repaired, err := j.Reconciler.ReconcileTotals(ctx)
	if err != nil {
		j.log().Error("reconcile totals", slog.String("run_id", payload.RunID), slog.Any("error", err))
		return err
	}
	j.log().Info("reconciled document totals",
		slog.String("run_id", payload.RunID),
		slog.String("trigger", payload.Trigger),
		slog.Int64("po_repaired", repaired[documents.KindPO]),
		slog.Int64("par_repaired", repaired[documents.KindPAR]),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ReconcileTotalsJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReconcileTotalsJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReconcileTotals))
	}
	return slog.Default().With(slog.String("job", TaskReconcileTotals))
}
