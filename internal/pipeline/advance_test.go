package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/corpus/internal/document"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestOrchestrator(gw *MockGateway) (*Orchestrator, *MockRepository, *MockObjectStore) {
	repo := NewMockRepository()
	objects := NewMockObjectStore()
	return New(repo, objects, gw, discardLogger()), repo, objects
}

// seedDoc stores a document and its backing object in the bucket its status
// maps to.
func seedDoc(repo *MockRepository, objects *MockObjectStore, id string, status document.Status, source document.SourceType) *document.Document {
	now := time.Now().UTC()
	doc := &document.Document{
		ID:        id,
		Name:      "doc-" + id,
		Source:    source,
		Status:    status,
		ObjectKey: id + ".pdf",
		CreatedAt: now,
		UpdatedAt: now,
	}
	repo.Put(doc)
	objects.Upload(context.Background(), status.Bucket(), doc.ObjectKey, []byte("content"), "application/pdf")
	return doc
}

func TestAdvanceSingleStep(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*document.Document)
		want  document.Status
	}{
		{"public bucket blob promotes", func(d *document.Document) {
			d.Status = document.StatusPublicBucket
		}, document.StatusPrivateBucket},
		{"private bucket starts ocr", func(d *document.Document) {
			d.Status = document.StatusPrivateBucket
		}, document.StatusOCR},
		{"queued for retrain starts ocr", func(d *document.Document) {
			d.Status = document.StatusQueuedForRetrain
		}, document.StatusOCR},
		{"ocr polls to ocr done", func(d *document.Document) {
			d.Status = document.StatusOCR
			d.OCRTaskID = "ocr-task-1"
		}, document.StatusOCRDone},
		{"ocr done starts decoration", func(d *document.Document) {
			d.Status = document.StatusOCRDone
			d.OCRText = "raw"
		}, document.StatusDecorating},
		{"decorating polls to decorating done", func(d *document.Document) {
			d.Status = document.StatusDecorating
			d.DecoratorTaskID = "decorate-task-1"
		}, document.StatusDecoratingDone},
		{"decorating done starts training", func(d *document.Document) {
			d.Status = document.StatusDecoratingDone
			d.DecoratorText = "decorated"
		}, document.StatusDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, repo, objects := newTestOrchestrator(&MockGateway{})
			doc := seedDoc(repo, objects, "d1", document.StatusPublicBucket, document.SourceBlob)
			tt.setup(doc)
			repo.Put(doc)
			objects.Upload(context.Background(), doc.Status.Bucket(), doc.ObjectKey, []byte("content"), "")

			got, res, err := o.Advance(context.Background(), "d1")
			if err != nil {
				t.Fatalf("Advance failed: %v", err)
			}
			if !res.Success {
				t.Fatalf("unexpected result: %+v", res)
			}
			if got.Status != tt.want {
				t.Errorf("status = %q, want %q (exactly one step)", got.Status, tt.want)
			}
		})
	}
}

func TestAdvanceSiteDocumentsPark(t *testing.T) {
	for _, status := range []document.Status{document.StatusPublicBucket, document.StatusScraping} {
		t.Run(string(status), func(t *testing.T) {
			o, repo, objects := newTestOrchestrator(&MockGateway{})
			seedDoc(repo, objects, "d1", status, document.SourceSite)

			got, res, err := o.Advance(context.Background(), "d1")
			if err != nil {
				t.Fatalf("Advance failed: %v", err)
			}
			if !res.InProgress() {
				t.Errorf("expected sentinel, got %+v", res)
			}
			if got.Status != status {
				t.Errorf("status changed to %q", got.Status)
			}
		})
	}
}

func TestAdvanceSentinelIdempotence(t *testing.T) {
	gw := &MockGateway{
		PollOCRScript: []document.StageResult{document.Pending(), document.Pending()},
	}
	o, repo, objects := newTestOrchestrator(gw)
	doc := seedDoc(repo, objects, "d1", document.StatusOCR, document.SourceBlob)
	doc.OCRTaskID = "ocr-task-1"
	repo.Put(doc)

	before, err := repo.GetByID(context.Background(), "d1")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		got, res, err := o.Advance(context.Background(), "d1")
		if err != nil {
			t.Fatalf("Advance %d failed: %v", i, err)
		}
		if !res.InProgress() {
			t.Fatalf("Advance %d: expected sentinel, got %+v", i, res)
		}
		if !reflect.DeepEqual(got, before) {
			t.Errorf("Advance %d mutated the document:\n got %+v\nwant %+v", i, got, before)
		}
	}

	after, err := repo.GetByID(context.Background(), "d1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(after, before) {
		t.Errorf("stored document changed across sentinel advances")
	}
}

func TestAdvanceTerminalAbsorption(t *testing.T) {
	for _, status := range []document.Status{
		document.StatusDone,
		document.StatusTrainingDone,
		document.StatusError,
		document.StatusTraining,
	} {
		t.Run(string(status), func(t *testing.T) {
			gw := &MockGateway{}
			o, repo, objects := newTestOrchestrator(gw)
			seedDoc(repo, objects, "d1", status, document.SourceBlob)

			got, res, err := o.Advance(context.Background(), "d1")
			if err != nil {
				t.Fatalf("Advance failed: %v", err)
			}
			if res.Success || res.InProgress() {
				t.Errorf("expected failure result, got %+v", res)
			}
			if got.Status != document.StatusError {
				t.Errorf("status = %q, want error", got.Status)
			}
			if gw.Starts != 0 || gw.Polls != 0 {
				t.Errorf("terminal advance reached the gateway: %+v", gw)
			}
		})
	}
}

func TestAdvanceOCRInvalidWhenExtractingLocally(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{Local: true})
	doc := seedDoc(repo, objects, "d1", document.StatusOCR, document.SourceBlob)
	doc.OCRTaskID = "ocr-task-1"
	repo.Put(doc)

	got, res, err := o.Advance(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if res.Success || got.Status != document.StatusError {
		t.Errorf("expected error state, got %+v", got)
	}
}

func TestAdvanceRefreshesURL(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})
	doc := seedDoc(repo, objects, "d1", document.StatusPrivateBucket, document.SourceBlob)
	stale := "https://signed.example/stale"
	doc.URL = stale
	repo.Put(doc)

	got, _, err := o.Advance(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if got.URL == stale || got.URL == "" {
		t.Errorf("url was not refreshed: %q", got.URL)
	}
}

func TestAdvanceSerialization(t *testing.T) {
	var current, peak atomic.Int32
	gw := &MockGateway{
		OnCall: func() {
			c := current.Add(1)
			for {
				p := peak.Load()
				if c <= p || peak.CompareAndSwap(p, c) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
		},
	}
	o, repo, objects := newTestOrchestrator(gw)

	const n = 8
	for i := 0; i < n; i++ {
		seedDoc(repo, objects, fmt.Sprintf("d%d", i), document.StatusOCRDone, document.SourceBlob)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, _, err := o.Advance(context.Background(), id); err != nil {
				t.Errorf("Advance %s failed: %v", id, err)
			}
		}(fmt.Sprintf("d%d", i))
	}
	wg.Wait()

	if got := peak.Load(); got != 1 {
		t.Errorf("max concurrent advances = %d, want 1", got)
	}
}

func TestAdvanceLockReleasedOnCancellation(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})
	seedDoc(repo, objects, "d1", document.StatusOCRDone, document.SourceBlob)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := o.Advance(canceled, "d1"); err == nil {
		t.Fatal("expected cancellation error")
	}

	// The slot must be free for the next caller.
	if _, _, err := o.Advance(context.Background(), "d1"); err != nil {
		t.Fatalf("Advance after cancellation failed: %v", err)
	}
}

func TestApplyPersistFailureReturnsLastKnownGood(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})
	doc := seedDoc(repo, objects, "d1", document.StatusOCRDone, document.SourceBlob)
	repo.SaveErr = fmt.Errorf("disk full")

	res := document.Completed(document.StatusDecorating, "decorate-task-1")
	got := o.Apply(context.Background(), doc, res)
	if got.Status != document.StatusOCRDone {
		t.Errorf("expected last-known-good document, got status %q", got.Status)
	}
}
