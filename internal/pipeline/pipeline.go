// Package pipeline is the reconciliation engine. It advances each document
// through the stage state machine one step at a time, level-triggered: a
// sweep queries whatever is not terminal and pushes every document forward
// by at most one stage.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/corpus/internal/gateway"
	"github.com/jackzampolin/corpus/internal/objectstore"
	"github.com/jackzampolin/corpus/internal/store"
)

// Orchestrator owns the two mutual-exclusion domains of the pipeline: the
// advance slot serializes every stage transition process-wide, and the sweep
// slot coalesces overlapping Drain triggers into one run. Both are instance
// state so independent orchestrators (tests) do not contend.
type Orchestrator struct {
	repo    store.Repository
	objects objectstore.Store
	gateway gateway.Gateway
	logger  *slog.Logger

	advanceSlot chan struct{}
	sweepSlot   chan struct{}
}

// New creates an orchestrator.
func New(repo store.Repository, objects objectstore.Store, gw gateway.Gateway, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		repo:        repo,
		objects:     objects,
		gateway:     gw,
		logger:      logger,
		advanceSlot: make(chan struct{}, 1),
		sweepSlot:   make(chan struct{}, 1),
	}
}

// acquire takes the single slot or gives up when ctx is done.
func acquire(ctx context.Context, slot chan struct{}) error {
	// A free slot and a done context can both be ready; never start work
	// under a context that is already canceled.
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func release(slot chan struct{}) {
	<-slot
}
