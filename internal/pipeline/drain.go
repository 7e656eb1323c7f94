package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jackzampolin/corpus/internal/document"
)

// Drain runs one reconciliation sweep: every pending document is advanced by
// at most one stage, in query order, with per-document fault isolation. The
// sweep slot makes overlapping triggers wait for each other instead of
// racing on the same document set. Pending writes commit once per sweep.
func (o *Orchestrator) Drain(ctx context.Context) error {
	if err := acquire(ctx, o.sweepSlot); err != nil {
		return err
	}
	defer release(o.sweepSlot)

	start := time.Now()
	processed := make(map[string]bool)

	for {
		batch, err := o.repo.QueryPending(ctx)
		if err != nil {
			return fmt.Errorf("failed to query pending documents: %w", err)
		}

		// Each document moves one stage per sweep. Re-querying picks up
		// documents created mid-sweep; anything already handled is skipped,
		// which also keeps sentinel-stuck documents from looping forever.
		var todo []*document.Document
		for _, doc := range batch {
			if !processed[doc.ID] {
				todo = append(todo, doc)
			}
		}
		if len(todo) == 0 {
			break
		}

		for _, doc := range todo {
			processed[doc.ID] = true

			if ctx.Err() != nil {
				_ = o.repo.Commit(context.WithoutCancel(ctx))
				return ctx.Err()
			}

			if _, _, err := o.Advance(ctx, doc.ID); err != nil {
				// One document's failure never aborts the sweep.
				o.logger.Error("advance failed during sweep", "document", doc.ID, "error", err)
				o.markError(ctx, doc.ID, err)
			}
		}
	}

	if err := o.repo.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sweep: %w", err)
	}

	o.logger.Debug("sweep complete", "documents", len(processed), "took", time.Since(start))
	return nil
}

// markError records a broken-invariant failure on the document itself. A
// secondary failure while recording the first is logged and swallowed; the
// sweep must survive persistence being unavailable for one document.
func (o *Orchestrator) markError(ctx context.Context, id string, cause error) {
	doc, err := o.repo.GetByID(ctx, id)
	if err != nil {
		o.logger.Error("failed to load document for error marking", "document", id, "error", err)
		return
	}

	doc.Status = document.StatusError
	doc.ErrorText = cause.Error()
	doc.UpdatedAt = time.Now().UTC()

	if err := o.repo.Save(ctx, doc); err != nil {
		o.logger.Error("failed to record document error", "document", id, "error", err)
	}
}
