// Package store persists documents in SQLite and exposes the repository
// consumed by the pipeline. Writes accumulate in a lazily-opened transaction
// (the unit of work) and become durable on Commit.
package store

import (
	"context"
	"errors"

	"github.com/jackzampolin/corpus/internal/document"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// Repository is the persistence surface the pipeline depends on.
type Repository interface {
	// GetByID returns the document with the given id, including writes made
	// in the current unit of work.
	GetByID(ctx context.Context, id string) (*document.Document, error)

	// List returns all documents ordered by creation time.
	List(ctx context.Context) ([]*document.Document, error)

	// QueryPending returns documents the sweep should pick up: every
	// non-terminal status, plus PublicBucket documents whose source is Blob
	// (the pipeline entry point).
	QueryPending(ctx context.Context) ([]*document.Document, error)

	// Save upserts a document into the current unit of work.
	Save(ctx context.Context, doc *document.Document) error

	// Commit makes all pending writes durable. A no-op when nothing is
	// pending.
	Commit(ctx context.Context) error
}
