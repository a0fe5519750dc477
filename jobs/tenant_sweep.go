package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

// NewTenantSweepHandler builds the handler for TaskTenantSweep: it
// health-checks the registry and evicts entries whose store stopped
// answering, so the next request re-creates them.
func NewTenantSweepHandler(registry *tenant.Registry, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload TenantSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		if payload.TenantID != "" {
			for _, st := range registry.HealthCheck(ctx) {
				if st.TenantID == payload.TenantID && st.State == tenant.StateError {
					registry.Evict(st.TenantID, tenant.StateError)
					logger.Warn("tenant connection swept",
						slog.String("tenant", st.TenantID))
				}
			}
			return nil
		}

		evicted := registry.Sweep(ctx)
		logger.Info("tenant sweep finished", slog.Int("evicted", evicted))
		return nil
	}
}
