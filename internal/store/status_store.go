package store

import (
	"context"

	"worklist-sentinel/internal/models"
)

// StatusStore persists monitor run status.
type StatusStore interface {
	SetStatus(ctx context.Context, status models.RunStatus) error
	GetStatus(ctx context.Context, runID string) (models.RunStatus, bool, error)
}
