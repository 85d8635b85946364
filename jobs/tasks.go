// Package jobs defines background task types and the worker runtime.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAvailabilityRefresh recomputes cached kit availability for one
	// location, or for all locations when the payload has no location.
	TaskAvailabilityRefresh = "availability:refresh"
)

// AvailabilityRefreshPayload selects what to recompute. LocationID 0 means
// every location.
type AvailabilityRefreshPayload struct {
	LocationID int64 `json:"location_id"`
}

// NewAvailabilityRefreshTask constructs an Asynq task.
func NewAvailabilityRefreshTask(payload AvailabilityRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAvailabilityRefresh, data), nil
}

// AvailabilityRefresher recomputes the materialized kit availability view.
type AvailabilityRefresher interface {
	RefreshLocation(ctx context.Context, locationID int64) error
	RefreshAll(ctx context.Context) error
}

// NewAvailabilityRefreshHandler returns the task handler for
// TaskAvailabilityRefresh.
func NewAvailabilityRefreshHandler(refresher AvailabilityRefresher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AvailabilityRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.LocationID == 0 {
			logger.Info("refreshing kit availability for all locations")
			return refresher.RefreshAll(ctx)
		}
		logger.Info("refreshing kit availability", slog.Int64("location_id", payload.LocationID))
		return refresher.RefreshLocation(ctx, payload.LocationID)
	}
}
