package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskQuotationExpire sweeps quotations past their validity window.
	TaskQuotationExpire = "quotation:expire"
	// TaskInvoiceOverdue flags unpaid invoices past their due date.
	TaskInvoiceOverdue = "invoice:overdue"
	// TaskIdempotencyCleanup prunes settled idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// SweepPayload carries scheduling metadata shared by the maintenance sweeps.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewQuotationExpireTask constructs an Asynq task for the expiry sweep.
func NewQuotationExpireTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationExpire, body, asynq.Queue(QueueDefault)), nil
}

// NewInvoiceOverdueTask constructs an Asynq task for the overdue sweep.
func NewInvoiceOverdueTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdue, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs an Asynq task for key pruning.
func NewIdempotencyCleanupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
