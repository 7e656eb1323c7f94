package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jackzampolin/corpus/internal/document"
)

func mustGet(t *testing.T, repo *MockRepository, id string) *document.Document {
	t.Helper()
	doc, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID %s failed: %v", id, err)
	}
	return doc
}

func TestDrainFaultIsolation(t *testing.T) {
	gw := &MockGateway{
		PollErrFor: map[string]error{"d2": errors.New("task id went missing")},
	}
	o, repo, objects := newTestOrchestrator(gw)

	for _, id := range []string{"d1", "d2", "d3"} {
		doc := seedDoc(repo, objects, id, document.StatusOCR, document.SourceBlob)
		doc.OCRTaskID = "ocr-task-" + id
		repo.Put(doc)
	}

	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	for _, id := range []string{"d1", "d3"} {
		if got := mustGet(t, repo, id); got.Status != document.StatusOCRDone {
			t.Errorf("%s status = %q, want %q", id, got.Status, document.StatusOCRDone)
		}
	}

	failed := mustGet(t, repo, "d2")
	if failed.Status != document.StatusError {
		t.Errorf("d2 status = %q, want error", failed.Status)
	}
	if failed.ErrorText == "" {
		t.Error("d2 has no error text")
	}
}

func TestDrainSecondaryFailureIsSwallowed(t *testing.T) {
	gw := &MockGateway{
		PollErrFor: map[string]error{"d1": errors.New("invariant broken")},
	}
	o, repo, objects := newTestOrchestrator(gw)
	doc := seedDoc(repo, objects, "d1", document.StatusOCR, document.SourceBlob)
	doc.OCRTaskID = "ocr-task-1"
	repo.Put(doc)

	// Recording the error will fail too; Drain must still return cleanly.
	repo.SaveErr = errors.New("store offline")

	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("Drain should swallow the secondary failure: %v", err)
	}
}

func TestDrainSkipsTerminalDocuments(t *testing.T) {
	gw := &MockGateway{}
	o, repo, objects := newTestOrchestrator(gw)

	seedDoc(repo, objects, "done", document.StatusDone, document.SourceBlob)
	seedDoc(repo, objects, "trained", document.StatusTrainingDone, document.SourceBlob)
	seedDoc(repo, objects, "failed", document.StatusError, document.SourceBlob)
	seedDoc(repo, objects, "site", document.StatusPublicBucket, document.SourceSite)

	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if gw.Starts != 0 || gw.Polls != 0 {
		t.Errorf("terminal documents reached the gateway: %+v", gw)
	}
	for _, id := range []string{"done", "trained", "failed", "site"} {
		got := mustGet(t, repo, id)
		if got.ErrorText != "" && id != "failed" {
			t.Errorf("%s gained error text %q", id, got.ErrorText)
		}
	}
}

func TestDrainCommitsOncePerSweep(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})
	seedDoc(repo, objects, "d1", document.StatusOCRDone, document.SourceBlob)
	seedDoc(repo, objects, "d2", document.StatusOCRDone, document.SourceBlob)

	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if repo.Commits != 1 {
		t.Errorf("commits = %d, want 1", repo.Commits)
	}
}

func TestDrainCoalescesOverlappingTriggers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	gw := &MockGateway{
		OnCall: func() {
			once.Do(func() { close(started) })
			<-release
		},
	}
	o, repo, objects := newTestOrchestrator(gw)
	seedDoc(repo, objects, "d1", document.StatusOCRDone, document.SourceBlob)

	done := make(chan error, 2)
	go func() { done <- o.Drain(context.Background()) }()
	<-started

	// A second trigger while the first is mid-flight must wait, not run.
	go func() { done <- o.Drain(context.Background()) }()

	close(release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Errorf("Drain %d failed: %v", i, err)
		}
	}
}

func TestDrainRemoteEndToEnd(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})
	seedDoc(repo, objects, "d1", document.StatusPublicBucket, document.SourceBlob)

	// Entry promotion, then one stage per sweep until trained.
	want := []document.Status{
		document.StatusPrivateBucket,
		document.StatusOCR,
		document.StatusOCRDone,
		document.StatusDecorating,
		document.StatusDecoratingDone,
		document.StatusDone,
	}

	for cycle, wantStatus := range want {
		if err := o.Drain(context.Background()); err != nil {
			t.Fatalf("Drain cycle %d failed: %v", cycle+1, err)
		}
		got := mustGet(t, repo, "d1")
		if got.Status != wantStatus {
			t.Fatalf("after cycle %d status = %q, want %q", cycle+1, got.Status, wantStatus)
		}
	}

	final := mustGet(t, repo, "d1")
	if final.OCRText == "" || final.DecoratorText == "" || final.TrainingTaskID == "" {
		t.Errorf("stage payloads incomplete: %+v", final)
	}
	if final.DateTrained == nil {
		t.Error("DateTrained not set")
	}
	if !objects.Has(document.BucketPrivate, "d1.pdf") || objects.Has(document.BucketPublic, "d1.pdf") {
		t.Error("object did not move to the private bucket")
	}

	// Further sweeps leave the document alone.
	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("post-terminal Drain failed: %v", err)
	}
	if got := mustGet(t, repo, "d1"); got.Status != document.StatusDone {
		t.Errorf("terminal status changed to %q", got.Status)
	}
}

func TestDrainLocalEndToEnd(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{Local: true})
	seedDoc(repo, objects, "d1", document.StatusPublicBucket, document.SourceBlob)

	// Local extraction skips ocr entirely.
	want := []document.Status{
		document.StatusPrivateBucket,
		document.StatusDecoratingDone,
		document.StatusTrainingDone,
	}

	for cycle, wantStatus := range want {
		if err := o.Drain(context.Background()); err != nil {
			t.Fatalf("Drain cycle %d failed: %v", cycle+1, err)
		}
		got := mustGet(t, repo, "d1")
		if got.Status != wantStatus {
			t.Fatalf("after cycle %d status = %q, want %q", cycle+1, got.Status, wantStatus)
		}
	}

	final := mustGet(t, repo, "d1")
	if final.OCRTaskID != "" || final.OCRText != "" {
		t.Errorf("local pipeline wrote ocr fields: %+v", final)
	}
	if final.DateTrained == nil {
		t.Error("DateTrained not set")
	}
}

func TestDrainSentinelHoldsDocument(t *testing.T) {
	gw := &MockGateway{
		PollOCRScript: []document.StageResult{document.Pending(), document.Pending()},
	}
	o, repo, objects := newTestOrchestrator(gw)
	doc := seedDoc(repo, objects, "d1", document.StatusOCR, document.SourceBlob)
	doc.OCRTaskID = "ocr-task-42"
	repo.Put(doc)

	for cycle := 1; cycle <= 2; cycle++ {
		if err := o.Drain(context.Background()); err != nil {
			t.Fatalf("Drain cycle %d failed: %v", cycle, err)
		}
		got := mustGet(t, repo, "d1")
		if got.Status != document.StatusOCR || got.OCRTaskID != "ocr-task-42" {
			t.Fatalf("cycle %d changed the document: %+v", cycle, got)
		}
	}

	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("third Drain failed: %v", err)
	}
	got := mustGet(t, repo, "d1")
	if got.Status != document.StatusOCRDone {
		t.Errorf("status = %q, want %q after the job completed", got.Status, document.StatusOCRDone)
	}
}

func TestDrainPicksUpDocumentsCreatedMidSweep(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})
	seedDoc(repo, objects, "d1", document.StatusOCRDone, document.SourceBlob)

	// Appears in the re-query after d1 is handled, as an upload during the
	// sweep would.
	late := &document.Document{
		ID: "late", Name: "late", Source: document.SourceBlob,
		Status: document.StatusOCRDone, ObjectKey: "late.pdf",
	}
	gw := o.gateway.(*MockGateway)
	gw.OnCall = func() {
		gw.OnCall = nil
		repo.Put(late)
		objects.Upload(context.Background(), document.BucketPrivate, "late.pdf", []byte("x"), "")
	}

	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if got := mustGet(t, repo, "late"); got.Status != document.StatusDecorating {
		t.Errorf("late document status = %q, want %q", got.Status, document.StatusDecorating)
	}
}

func TestDrainCancellation(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})
	for i := 0; i < 3; i++ {
		seedDoc(repo, objects, fmt.Sprintf("d%d", i), document.StatusOCRDone, document.SourceBlob)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.Drain(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}

	// The sweep slot must be free afterwards.
	if err := o.Drain(context.Background()); err != nil {
		t.Fatalf("Drain after cancellation failed: %v", err)
	}
}
