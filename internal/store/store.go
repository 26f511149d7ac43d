// Package store defines snapshot persistence for the pricing engine.
// Implementations include PostgreSQL (source of truth), Redis, and
// in-memory (for testing). The engine holds authoritative state in memory
// and writes a full snapshot through the store after every mutation, the
// same save-on-change discipline the browser demo used against local
// storage.
package store

import (
	"context"
	"errors"

	"github.com/hibrida/pricing-engine/internal/model"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
// Callers treat it as "start from defaults", not as a failure.
var ErrNotFound = errors.New("store: snapshot not found")

// Store persists the engine's full serializable state.
type Store interface {
	// Load returns the most recently saved snapshot, or ErrNotFound.
	Load(ctx context.Context) (*model.Snapshot, error)

	// Save replaces the persisted snapshot.
	Save(ctx context.Context, snap *model.Snapshot) error
}
