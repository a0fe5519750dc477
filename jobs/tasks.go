package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTenantSweep pings cached tenant connections and evicts dead ones.
	TaskTenantSweep = "tenant:sweep"
)

// TenantSweepPayload scopes a sweep. An empty TenantID sweeps every
// cached connection.
type TenantSweepPayload struct {
	TenantID string `json:"tenantId,omitempty"`
}

// NewTenantSweepTask constructs an Asynq task.
func NewTenantSweepTask(payload TenantSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTenantSweep, data), nil
}
