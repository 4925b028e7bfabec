// Package worklist reads and overwrites the remote token list.
package worklist

import (
	"context"

	"worklist-sentinel/internal/models"
)

// Store is the remote worklist. Fetch returns the current tokens and the identifier to
// write back to; Persist overwrites that identifier with the given tokens.
type Store interface {
	Fetch(ctx context.Context) (models.Worklist, error)
	Persist(ctx context.Context, list models.Worklist) error
}
