package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/corpus/internal/document"
	"github.com/jackzampolin/corpus/internal/extract"
	"github.com/jackzampolin/corpus/internal/objectstore"
	"github.com/jackzampolin/corpus/internal/vectorlink"
)

// composite is the Gateway implementation. Each concern independently runs
// against a remote job service or a local backend.
type composite struct {
	ocr       *jobClient
	decorator *jobClient
	trainer   *jobClient
	archive   vectorlink.Archive
	objects   objectstore.Store

	localExtract bool
	localImport  bool

	logger *slog.Logger
}

var _ Gateway = (*composite)(nil)

// ExtractsLocally implements Gateway.
func (g *composite) ExtractsLocally() bool {
	return g.localExtract
}

// ocrPayload is what the OCR service needs to fetch and read a document.
type ocrPayload struct {
	DocumentID string `json:"document_id"`
	URL        string `json:"url"`
	Language   string `json:"language,omitempty"`
}

// StartOCR implements Gateway.
func (g *composite) StartOCR(ctx context.Context, doc *document.Document) document.StageResult {
	taskID, err := g.ocr.startTask(ctx, ocrPayload{
		DocumentID: doc.ID,
		URL:        doc.URL,
		Language:   doc.Language,
	})
	if err != nil {
		g.logger.Error("ocr start failed", "document", doc.ID, "error", err)
		return document.Failed(fmt.Sprintf("failed to start ocr: %v", err))
	}
	return document.Completed(document.StatusOCR, taskID)
}

// PollOCR implements Gateway.
func (g *composite) PollOCR(ctx context.Context, doc *document.Document) (document.StageResult, error) {
	if doc.OCRTaskID == "" {
		return document.StageResult{}, fmt.Errorf("document %s is in ocr but has no ocr task id", doc.ID)
	}
	return g.pollTask(ctx, g.ocr, doc.OCRTaskID, document.StatusOCRDone)
}

// decoratePayload is what the decoration service needs to enrich a
// document's text.
type decoratePayload struct {
	DocumentID string   `json:"document_id"`
	Name       string   `json:"name"`
	Text       string   `json:"text"`
	Tags       []string `json:"tags,omitempty"`
	Language   string   `json:"language,omitempty"`
}

// StartDecorate implements Gateway.
func (g *composite) StartDecorate(ctx context.Context, doc *document.Document) document.StageResult {
	taskID, err := g.decorator.startTask(ctx, decoratePayload{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Text:       doc.OCRText,
		Tags:       doc.Tags,
		Language:   doc.Language,
	})
	if err != nil {
		g.logger.Error("decorate start failed", "document", doc.ID, "error", err)
		return document.Failed(fmt.Sprintf("failed to start decoration: %v", err))
	}
	return document.Completed(document.StatusDecorating, taskID)
}

// PollDecorate implements Gateway.
func (g *composite) PollDecorate(ctx context.Context, doc *document.Document) (document.StageResult, error) {
	if doc.DecoratorTaskID == "" {
		return document.StageResult{}, fmt.Errorf("document %s is decorating but has no decorator task id", doc.ID)
	}
	return g.pollTask(ctx, g.decorator, doc.DecoratorTaskID, document.StatusDecoratingDone)
}

// pollTask translates a remote task state into a stage result: still
// running maps to the in-progress sentinel.
func (g *composite) pollTask(ctx context.Context, c *jobClient, taskID string, next document.Status) (document.StageResult, error) {
	t, err := c.getTask(ctx, taskID)
	if err != nil {
		g.logger.Error("task poll failed", "task", taskID, "error", err)
		return document.Failed(fmt.Sprintf("failed to poll task %s: %v", taskID, err)), nil
	}

	switch t.Status {
	case taskCompleted:
		return document.Completed(next, t.Result), nil
	case taskFailed:
		msg := t.Error
		if msg == "" {
			msg = "task failed without detail"
		}
		return document.Failed(msg), nil
	default:
		return document.Pending(), nil
	}
}

// trainPayload is what the remote training service ingests.
type trainPayload struct {
	DocumentID string              `json:"document_id"`
	Name       string              `json:"name"`
	Text       string              `json:"text"`
	Citations  []document.Citation `json:"citations,omitempty"`
	Tags       []string            `json:"tags,omitempty"`
}

// archiveCitations maps document citations onto the archive's wire type.
func archiveCitations(cs []document.Citation) []vectorlink.Citation {
	if len(cs) == 0 {
		return nil
	}
	out := make([]vectorlink.Citation, len(cs))
	for i, c := range cs {
		out[i] = vectorlink.Citation{Name: c.Name, URL: c.URL}
	}
	return out
}

// StartTrain implements Gateway. The local importer completes the stage in
// one call; the remote service hands back a task id and the document is
// considered trained once submission succeeds.
func (g *composite) StartTrain(ctx context.Context, doc *document.Document) document.StageResult {
	text := doc.DecoratorText
	if text == "" {
		text = doc.OCRText
	}

	if g.localImport {
		err := g.archive.Import(ctx, vectorlink.ImportRequest{
			DocumentID: doc.ID,
			Name:       doc.Name,
			Content:    text,
			Citations:  archiveCitations(doc.Citations),
			Tags:       doc.Tags,
			Language:   doc.Language,
		})
		if err != nil {
			g.logger.Error("archive import failed", "document", doc.ID, "error", err)
			return document.Failed(fmt.Sprintf("failed to import into archive: %v", err))
		}
		return document.Completed(document.StatusTrainingDone, "")
	}

	taskID, err := g.trainer.startTask(ctx, trainPayload{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Text:       text,
		Citations:  doc.Citations,
		Tags:       doc.Tags,
	})
	if err != nil {
		g.logger.Error("training start failed", "document", doc.ID, "error", err)
		return document.Failed(fmt.Sprintf("failed to start training: %v", err))
	}
	return document.Completed(document.StatusDone, taskID)
}

// ExtractText implements Gateway. Downloads the stored object and extracts
// its text in-process.
func (g *composite) ExtractText(ctx context.Context, doc *document.Document) document.StageResult {
	data, err := g.objects.Download(ctx, document.BucketPrivate, doc.ObjectKey)
	if err != nil {
		g.logger.Error("download for extraction failed", "document", doc.ID, "error", err)
		return document.Failed(fmt.Sprintf("failed to download content: %v", err))
	}

	text, err := extract.Text(data)
	if err != nil {
		return document.Failed(fmt.Sprintf("failed to extract text: %v", err))
	}
	return document.Completed(document.StatusDecoratingDone, text)
}

// DeleteTrained implements Gateway.
func (g *composite) DeleteTrained(ctx context.Context, doc *document.Document, force bool) error {
	var err error
	switch {
	case g.localImport:
		err = g.archive.RemoveDocument(ctx, doc.ID)
	case doc.TrainingTaskID == "":
		// Nothing was ever trained remotely.
		return nil
	default:
		err = g.trainer.deleteTask(ctx, doc.TrainingTaskID)
	}

	if err != nil && force {
		g.logger.Warn("forced delete ignoring backend failure", "document", doc.ID, "error", err)
		return nil
	}
	return err
}

// DeleteNamespace implements Gateway.
func (g *composite) DeleteNamespace(ctx context.Context) error {
	if !g.localImport {
		return fmt.Errorf("namespace deletion requires the vectorlink importer")
	}
	return g.archive.RemoveNamespace(ctx)
}
