package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReconcileTotals recomputes stored header totals from their items.
	TaskReconcileTotals = "documents:reconcile-totals"
)

// ReconcileTotalsPayload identifies one reconciliation run. An empty RunID is
// filled per execution.
type ReconcileTotalsPayload struct {
	RunID   string `json:"run_id"`
	Trigger string `json:"trigger"`
}

// NewReconcileTotalsTask constructs an Asynq task. trigger names the origin, e.g. "cron" or "manual".
func NewReconcileTotalsTask(trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = "manual"
	}
	data, err := json.Marshal(ReconcileTotalsPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileTotals, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
