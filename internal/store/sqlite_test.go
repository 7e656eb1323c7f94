package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackzampolin/corpus/internal/document"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestDoc(id string, status document.Status, source document.SourceType) *document.Document {
	now := time.Now().UTC()
	return &document.Document{
		ID:        id,
		Name:      "doc-" + id,
		Tags:      []string{"test"},
		Source:    source,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	trained := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := newTestDoc("d1", document.StatusOCR, document.SourceBlob)
	doc.OCRTaskID = "task-42"
	doc.DateTrained = &trained
	doc.Citations = []document.Citation{{Name: "paper", URL: "http://example.com/p.pdf"}}

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != document.StatusOCR || got.OCRTaskID != "task-42" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.DateTrained == nil || !got.DateTrained.Equal(trained) {
		t.Errorf("DateTrained = %v, want %v", got.DateTrained, trained)
	}
	if len(got.Citations) != 1 || got.Citations[0].Name != "paper" {
		t.Errorf("Citations round trip failed: %+v", got.Citations)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	doc := newTestDoc("d1", document.StatusPrivateBucket, document.SourceBlob)
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	doc.Status = document.StatusOCR
	doc.OCRTaskID = "task-1"
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := s.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != document.StatusOCR || got.OCRTaskID != "task-1" {
		t.Errorf("upsert did not apply: %+v", got)
	}

	docs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("List returned %d documents, want 1", len(docs))
	}
}

func TestUnitOfWorkVisibility(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	doc := newTestDoc("d1", document.StatusPrivateBucket, document.SourceBlob)
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Uncommitted writes must be visible to reads within the unit of work.
	got, err := s.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID before commit failed: %v", err)
	}
	if got.Status != document.StatusPrivateBucket {
		t.Errorf("status = %q before commit", got.Status)
	}

	if err := s.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	// Commit with nothing pending is a no-op.
	if err := s.Commit(ctx); err != nil {
		t.Fatalf("empty Commit failed: %v", err)
	}
}

func TestQueryPending(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	seed := []*document.Document{
		newTestDoc("blob-entry", document.StatusPublicBucket, document.SourceBlob),
		newTestDoc("site-parked", document.StatusPublicBucket, document.SourceSite),
		newTestDoc("in-ocr", document.StatusOCR, document.SourceBlob),
		newTestDoc("queued", document.StatusQueuedForRetrain, document.SourceBlob),
		newTestDoc("done", document.StatusDone, document.SourceBlob),
		newTestDoc("trained", document.StatusTrainingDone, document.SourceBlob),
		newTestDoc("failed", document.StatusError, document.SourceBlob),
	}
	for _, d := range seed {
		if err := s.Save(ctx, d); err != nil {
			t.Fatalf("Save %s failed: %v", d.ID, err)
		}
	}

	docs, err := s.QueryPending(ctx)
	if err != nil {
		t.Fatalf("QueryPending failed: %v", err)
	}

	got := make(map[string]bool, len(docs))
	for _, d := range docs {
		got[d.ID] = true
	}

	for _, want := range []string{"blob-entry", "in-ocr", "queued"} {
		if !got[want] {
			t.Errorf("expected %s in pending set", want)
		}
	}
	for _, skip := range []string{"site-parked", "done", "trained", "failed"} {
		if got[skip] {
			t.Errorf("%s should not be in pending set", skip)
		}
	}
}
