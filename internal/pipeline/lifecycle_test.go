package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/corpus/internal/document"
)

func TestUploadTextDocument(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})

	doc, err := o.Upload(context.Background(), UploadRequest{
		Name:    "notes",
		Tags:    []string{"research"},
		Content: []byte("plain text body"),
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Non-PDF uploads wait for the sweep; no synchronous advance.
	if doc.Status != document.StatusPublicBucket {
		t.Errorf("status = %q, want %q", doc.Status, document.StatusPublicBucket)
	}
	if doc.Source != document.SourceBlob {
		t.Errorf("source = %q", doc.Source)
	}
	if !strings.HasSuffix(doc.ObjectKey, ".txt") {
		t.Errorf("object key = %q", doc.ObjectKey)
	}
	if !objects.Has(document.BucketPublic, doc.ObjectKey) {
		t.Error("content not stored in public bucket")
	}
	if doc.URL == "" {
		t.Error("no presigned url")
	}

	stored := mustGet(t, repo, doc.ID)
	if stored.Name != "notes" || len(stored.Tags) != 1 {
		t.Errorf("stored document = %+v", stored)
	}
	if repo.Commits == 0 {
		t.Error("upload was not committed")
	}
}

func TestUploadPDFAdvancesSynchronously(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})

	doc, err := o.Upload(context.Background(), UploadRequest{
		Name:    "paper",
		Content: buildTestPDF("uploaded pdf body"),
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// The caller sees the first transition's outcome.
	if doc.Status != document.StatusPrivateBucket {
		t.Errorf("status = %q, want %q", doc.Status, document.StatusPrivateBucket)
	}
	if !strings.HasSuffix(doc.ObjectKey, ".pdf") {
		t.Errorf("object key = %q", doc.ObjectKey)
	}
	if !objects.Has(document.BucketPrivate, doc.ObjectKey) {
		t.Error("object not promoted to private bucket")
	}
	if objects.Has(document.BucketPublic, doc.ObjectKey) {
		t.Error("public copy still present")
	}
	if got := mustGet(t, repo, doc.ID); got.Status != document.StatusPrivateBucket {
		t.Errorf("stored status = %q", got.Status)
	}
}

func TestUploadRejectsInvalidInput(t *testing.T) {
	o, _, _ := newTestOrchestrator(&MockGateway{})
	ctx := context.Background()

	if _, err := o.Upload(ctx, UploadRequest{Content: []byte("x")}); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := o.Upload(ctx, UploadRequest{Name: "empty"}); err == nil {
		t.Error("expected error for missing content")
	}
	if _, err := o.Upload(ctx, UploadRequest{Name: "bad", Content: []byte("%PDF-1.4 truncated")}); err == nil {
		t.Error("expected error for corrupt pdf")
	}
}

func TestDeleteRequeuesTrainedDocument(t *testing.T) {
	for _, status := range []document.Status{document.StatusDone, document.StatusTrainingDone} {
		t.Run(string(status), func(t *testing.T) {
			gw := &MockGateway{}
			o, repo, objects := newTestOrchestrator(gw)

			trained := time.Now().UTC()
			doc := seedDoc(repo, objects, "d1", status, document.SourceBlob)
			doc.OCRTaskID = "t1"
			doc.OCRText = "a"
			doc.DecoratorTaskID = "t2"
			doc.DecoratorText = "b"
			doc.TrainingTaskID = "t3"
			doc.DateTrained = &trained
			repo.Put(doc)

			got, err := o.Delete(context.Background(), "d1")
			if err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if got.Status != document.StatusQueuedForRetrain {
				t.Errorf("status = %q, want %q", got.Status, document.StatusQueuedForRetrain)
			}
			if len(gw.DeletedTrained) != 1 {
				t.Errorf("DeleteTrained calls = %v", gw.DeletedTrained)
			}

			// Requeue wipes every stage payload.
			if got.OCRTaskID != "" || got.OCRText != "" || got.DecoratorTaskID != "" ||
				got.DecoratorText != "" || got.TrainingTaskID != "" || got.ErrorText != "" {
				t.Errorf("stage payload not cleared: %+v", got)
			}
			if got.DateTrained != nil {
				t.Error("DateTrained not cleared")
			}
			if got.URL == "" {
				t.Error("url not refreshed")
			}
		})
	}
}

func TestDeleteUntrainedIsUnchanged(t *testing.T) {
	gw := &MockGateway{}
	o, repo, objects := newTestOrchestrator(gw)
	seedDoc(repo, objects, "d1", document.StatusOCR, document.SourceBlob)

	got, err := o.Delete(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got.Status != document.StatusOCR {
		t.Errorf("status changed to %q", got.Status)
	}
	if len(gw.DeletedTrained) != 0 {
		t.Errorf("DeleteTrained should not be called: %v", gw.DeletedTrained)
	}
}

func TestDeleteSurfacesBackendFailure(t *testing.T) {
	gw := &MockGateway{DeleteTrainedErr: fmt.Errorf("archive offline")}
	o, repo, objects := newTestOrchestrator(gw)
	seedDoc(repo, objects, "d1", document.StatusDone, document.SourceBlob)

	if _, err := o.Delete(context.Background(), "d1"); err == nil {
		t.Error("expected error from training backend")
	}
	// The document must not be half-requeued.
	if got := mustGet(t, repo, "d1"); got.Status != document.StatusDone {
		t.Errorf("status = %q after failed delete", got.Status)
	}
}

func TestReset(t *testing.T) {
	gw := &MockGateway{DeleteTrainedErr: fmt.Errorf("cannot confirm deletion")}
	o, repo, objects := newTestOrchestrator(gw)

	doc := seedDoc(repo, objects, "d1", document.StatusError, document.SourceBlob)
	doc.ErrorText = "ocr exploded"
	doc.OCRTaskID = "t1"
	repo.Put(doc)

	got, err := o.Reset(context.Background(), "d1", document.StatusPrivateBucket)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if got.Status != document.StatusPrivateBucket {
		t.Errorf("status = %q", got.Status)
	}

	// Forced deletion: a backend refusal cannot block a reset.
	if len(gw.ForcedDeletes) != 1 {
		t.Errorf("forced deletes = %v", gw.ForcedDeletes)
	}

	// Payloads blank to a visible placeholder, not the empty string.
	if got.OCRTaskID != resetPlaceholder || got.ErrorText != resetPlaceholder {
		t.Errorf("placeholder not applied: %+v", got)
	}
	if got.URL == "" {
		t.Error("url not refreshed")
	}
}

func TestResetAcrossTiersLeavesURLEmpty(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})

	// Object sits in the private tier; resetting to the entry state must not
	// sign a URL against the public bucket where nothing is stored.
	doc := seedDoc(repo, objects, "d1", document.StatusDone, document.SourceBlob)
	doc.URL = "https://signed.example/private/d1.pdf?sig=0"
	repo.Put(doc)

	got, err := o.Reset(context.Background(), "d1", document.StatusPublicBucket)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if got.Status != document.StatusPublicBucket {
		t.Errorf("status = %q", got.Status)
	}
	if got.URL != "" {
		t.Errorf("url = %q, want empty for object outside the target tier", got.URL)
	}
}

func TestResetRejectsUnknownStatus(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})
	seedDoc(repo, objects, "d1", document.StatusError, document.SourceBlob)

	if _, err := o.Reset(context.Background(), "d1", document.Status("limbo")); err == nil {
		t.Error("expected error for unknown target status")
	}
}

func TestDestroy(t *testing.T) {
	gw := &MockGateway{}
	o, repo, objects := newTestOrchestrator(gw)
	seedDoc(repo, objects, "d1", document.StatusDone, document.SourceBlob)

	got, err := o.Destroy(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if objects.Has(document.BucketPrivate, "d1.pdf") {
		t.Error("stored object still present")
	}
	if got.URL != "" {
		t.Errorf("url = %q after destroy", got.URL)
	}
	// Training artifacts are untouched.
	if len(gw.DeletedTrained) != 0 || len(gw.ForcedDeletes) != 0 {
		t.Errorf("destroy touched training artifacts: %+v", gw)
	}
	if got.Status != document.StatusDone {
		t.Errorf("status changed to %q", got.Status)
	}
}

func TestDestroyPublicBucketDocument(t *testing.T) {
	o, repo, objects := newTestOrchestrator(&MockGateway{})
	seedDoc(repo, objects, "d1", document.StatusPublicBucket, document.SourceBlob)

	if _, err := o.Destroy(context.Background(), "d1"); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if objects.Has(document.BucketPublic, "d1.pdf") {
		t.Error("public object still present")
	}
}

// buildTestPDF assembles a minimal one-page PDF with a valid xref table.
func buildTestPDF(text string) []byte {
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)
	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n",
		fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream),
		"5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n",
	}
	for i, obj := range objects {
		offsets[i+1] = b.Len()
		b.WriteString(obj)
	}

	xrefOffset := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	return []byte(b.String())
}
