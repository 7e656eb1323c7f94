package pipeline

import (
	"context"
	"fmt"

	"github.com/jackzampolin/corpus/internal/document"
)

// Advance loads the document, performs at most one stage action, and
// persists the outcome. The advance slot serializes every call process-wide,
// from any caller: sweep, upload flow, or manual retry.
//
// A failed stage is reported through the returned StageResult, not the
// error. The error return is reserved for broken invariants and for
// cancellation while waiting on the slot.
func (o *Orchestrator) Advance(ctx context.Context, id string) (*document.Document, document.StageResult, error) {
	if err := acquire(ctx, o.advanceSlot); err != nil {
		return nil, document.StageResult{}, err
	}
	defer release(o.advanceSlot)

	// Read fresh under the lock; never reuse a document loaded before it.
	doc, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return nil, document.StageResult{}, fmt.Errorf("failed to load document %s: %w", id, err)
	}

	res, err := o.transition(ctx, doc)
	if err != nil {
		return doc, document.StageResult{}, err
	}

	applied := o.Apply(ctx, doc, res)
	return applied, res, nil
}

// transition is the dispatch table: keyed by status, source, and extraction
// mode, nothing else. One call performs at most one stage action so every
// step stays independently retryable.
func (o *Orchestrator) transition(ctx context.Context, doc *document.Document) (document.StageResult, error) {
	switch doc.Status {
	case document.StatusPublicBucket:
		if doc.Source != document.SourceBlob {
			// Site documents wait for scraping, which does not exist yet.
			return document.Pending(), nil
		}
		return o.promote(ctx, doc), nil

	case document.StatusScraping:
		return document.Pending(), nil

	case document.StatusPrivateBucket, document.StatusQueuedForRetrain:
		return o.beginExtraction(ctx, doc), nil

	case document.StatusOCR:
		if o.gateway.ExtractsLocally() {
			return document.Failed("ocr stage is not valid when extracting locally"), nil
		}
		return o.gateway.PollOCR(ctx, doc)

	case document.StatusOCRDone:
		return o.gateway.StartDecorate(ctx, doc), nil

	case document.StatusDecorating:
		return o.gateway.PollDecorate(ctx, doc)

	case document.StatusDecoratingDone:
		return o.gateway.StartTrain(ctx, doc), nil

	default:
		// Done, TrainingDone, Error, Training, unknown tokens.
		return document.Failed(fmt.Sprintf("unsupported state %q", doc.Status)), nil
	}
}

// promote moves a freshly uploaded object from the public intake bucket into
// the private processing bucket and rewrites the document URL.
func (o *Orchestrator) promote(ctx context.Context, doc *document.Document) document.StageResult {
	if doc.ObjectKey == "" {
		return document.Failed("document has no stored object to promote")
	}

	if err := o.objects.Copy(ctx, document.BucketPublic, doc.ObjectKey, document.BucketPrivate, doc.ObjectKey); err != nil {
		o.logger.Error("tier move failed", "document", doc.ID, "error", err)
		return document.Failed(fmt.Sprintf("failed to move object to private bucket: %v", err))
	}
	if err := o.objects.Remove(ctx, document.BucketPublic, doc.ObjectKey); err != nil {
		// The private copy exists; losing the public one later is harmless.
		o.logger.Warn("failed to remove public copy", "document", doc.ID, "error", err)
	}

	url, err := o.objects.PresignedURL(ctx, document.BucketPrivate, doc.ObjectKey)
	if err != nil {
		return document.Failed(fmt.Sprintf("failed to presign private object: %v", err))
	}

	res := document.Completed(document.StatusPrivateBucket, "")
	res.URL = url
	return res
}

// beginExtraction refreshes the presigned URL (stage services fetch the
// content themselves and the old signature may have expired) and either
// extracts locally or starts a remote OCR task.
func (o *Orchestrator) beginExtraction(ctx context.Context, doc *document.Document) document.StageResult {
	url, err := o.objects.PresignedURL(ctx, document.BucketPrivate, doc.ObjectKey)
	if err != nil {
		return document.Failed(fmt.Sprintf("failed to refresh presigned url: %v", err))
	}

	var res document.StageResult
	if o.gateway.ExtractsLocally() {
		res = o.gateway.ExtractText(ctx, doc)
	} else {
		fresh := doc.Clone()
		fresh.URL = url
		res = o.gateway.StartOCR(ctx, fresh)
	}
	if res.Success {
		res.URL = url
	}
	return res
}
