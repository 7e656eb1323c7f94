package pipeline

import (
	"context"
	"time"

	"github.com/jackzampolin/corpus/internal/document"
)

// Apply maps a stage result onto the stored document. The in-progress
// sentinel is a strict no-op. Persist failures are logged and the caller
// gets the last-known-good document back; a storage hiccup must not corrupt
// in-memory pipeline state or mask the next retry.
func (o *Orchestrator) Apply(ctx context.Context, doc *document.Document, res document.StageResult) *document.Document {
	if res.InProgress() {
		return doc
	}

	updated := doc.Clone()

	switch res.NextStatus {
	case document.StatusOCR:
		updated.OCRTaskID = res.Payload
	case document.StatusOCRDone:
		updated.OCRText = res.Payload
	case document.StatusDecorating:
		updated.DecoratorTaskID = res.Payload
	case document.StatusDecoratingDone:
		updated.DecoratorText = res.Payload
	case document.StatusDone:
		updated.TrainingTaskID = res.Payload
		when := res.When
		updated.DateTrained = &when
	case document.StatusTrainingDone:
		when := res.When
		updated.DateTrained = &when
	case document.StatusQueuedForRetrain:
		updated.ClearStagePayload("")
	case document.StatusError:
		updated.ErrorText = res.ErrorMessage
	}

	updated.Status = res.NextStatus
	if res.URL != "" {
		updated.URL = res.URL
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := o.repo.Save(ctx, updated); err != nil {
		o.logger.Error("failed to persist stage result",
			"document", doc.ID, "next_status", res.NextStatus, "error", err)
		return doc
	}
	return updated
}
