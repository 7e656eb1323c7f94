package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/corpus/internal/document"
	"github.com/jackzampolin/corpus/internal/extract"
)

// resetPlaceholder replaces wiped stage payloads so the wipe stays visible
// in clients that hide empty fields.
const resetPlaceholder = "-"

// UploadRequest describes a document to ingest.
type UploadRequest struct {
	Name        string              `json:"name"`
	DisplayName string              `json:"display_name,omitempty"`
	Description string              `json:"description,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Language    string              `json:"language,omitempty"`
	Citations   []document.Citation `json:"citations,omitempty"`

	Content     []byte `json:"-"`
	ContentType string `json:"-"`
}

// Upload stores the raw content in the public intake bucket and creates the
// document in its entry state. PDF uploads get one synchronous Advance so
// the caller sees the first transition's outcome instead of waiting for the
// next sweep.
func (o *Orchestrator) Upload(ctx context.Context, req UploadRequest) (*document.Document, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("document name is required")
	}
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("document content is required")
	}

	isPDF := extract.IsPDF(req.Content)
	ext := ".txt"
	contentType := req.ContentType
	if isPDF {
		ext = ".pdf"
		if contentType == "" {
			contentType = "application/pdf"
		}
		if _, err := extract.ValidatePDF(req.Content); err != nil {
			return nil, fmt.Errorf("invalid pdf upload: %w", err)
		}
	} else if contentType == "" {
		contentType = "text/plain"
	}

	id := uuid.NewString()
	objectKey := id + ext

	if err := o.objects.Upload(ctx, document.BucketPublic, objectKey, req.Content, contentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	url, err := o.objects.PresignedURL(ctx, document.BucketPublic, objectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	now := time.Now().UTC()
	doc := &document.Document{
		ID:          id,
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Tags:        req.Tags,
		Language:    req.Language,
		Source:      document.SourceBlob,
		Status:      document.StatusPublicBucket,
		URL:         url,
		ObjectKey:   objectKey,
		Citations:   req.Citations,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := o.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	if err := o.repo.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit document: %w", err)
	}

	if !isPDF {
		return doc, nil
	}

	advanced, _, err := o.Advance(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to advance upload: %w", err)
	}
	if err := o.repo.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit first transition: %w", err)
	}
	return advanced, nil
}

// Delete removes a trained document's artifacts from the training backend
// and requeues it. Documents that never finished training are returned
// unchanged.
func (o *Orchestrator) Delete(ctx context.Context, id string) (*document.Document, error) {
	doc, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}

	if doc.Status != document.StatusDone && doc.Status != document.StatusTrainingDone {
		return doc, nil
	}

	if err := o.gateway.DeleteTrained(ctx, doc, false); err != nil {
		return nil, fmt.Errorf("failed to delete trained artifacts: %w", err)
	}

	res := document.Completed(document.StatusQueuedForRetrain, "")
	if url, err := o.objects.PresignedURL(ctx, document.BucketPrivate, doc.ObjectKey); err == nil {
		res.URL = url
	} else {
		o.logger.Warn("failed to refresh url after delete", "document", doc.ID, "error", err)
	}

	updated := o.Apply(ctx, doc, res)
	if err := o.repo.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return updated, nil
}

// Reset forces a document out of whatever state it is in: trained artifacts
// are deleted best-effort, every stage payload is blanked to a visible
// placeholder, and the status becomes the caller-supplied target.
func (o *Orchestrator) Reset(ctx context.Context, id string, target document.Status) (*document.Document, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("invalid target status %q", target)
	}

	doc, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}

	// Forced: not being able to confirm remote deletion must not block a
	// reset.
	if err := o.gateway.DeleteTrained(ctx, doc, true); err != nil {
		return nil, fmt.Errorf("failed to delete trained artifacts: %w", err)
	}

	doc.ClearStagePayload(resetPlaceholder)
	doc.Status = target

	// Only sign a URL for an object that actually lives in the target tier;
	// a reset across tiers must not hand out links to nothing.
	doc.URL = ""
	if ok, err := o.objects.Exists(ctx, target.Bucket(), doc.ObjectKey); err != nil {
		o.logger.Warn("failed to check object after reset", "document", doc.ID, "error", err)
	} else if !ok {
		o.logger.Warn("object missing from target tier after reset",
			"document", doc.ID, "bucket", target.Bucket())
	} else if url, err := o.objects.PresignedURL(ctx, target.Bucket(), doc.ObjectKey); err == nil {
		doc.URL = url
	} else {
		o.logger.Warn("failed to refresh url after reset", "document", doc.ID, "error", err)
	}
	doc.UpdatedAt = time.Now().UTC()

	if err := o.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to persist reset: %w", err)
	}
	if err := o.repo.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reset: %w", err)
	}
	return doc, nil
}

// Destroy deletes the stored object underneath a document, leaving the
// record and any trained artifacts alone. The bucket follows the current
// status.
func (o *Orchestrator) Destroy(ctx context.Context, id string) (*document.Document, error) {
	doc, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}

	if doc.ObjectKey == "" {
		return doc, nil
	}

	if err := o.objects.Remove(ctx, doc.Status.Bucket(), doc.ObjectKey); err != nil {
		return nil, fmt.Errorf("failed to remove stored object: %w", err)
	}

	doc.URL = ""
	doc.UpdatedAt = time.Now().UTC()
	if err := o.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to persist destroy: %w", err)
	}
	if err := o.repo.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit destroy: %w", err)
	}
	return doc, nil
}
