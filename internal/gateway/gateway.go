// Package gateway executes pipeline stages. Stages either run on remote job
// services (start a task, poll it later) or locally and synchronously
// (pdfcpu extraction, VectorLink import), selected per concern at
// construction time.
package gateway

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/corpus/internal/config"
	"github.com/jackzampolin/corpus/internal/document"
	"github.com/jackzampolin/corpus/internal/objectstore"
	"github.com/jackzampolin/corpus/internal/vectorlink"
)

// Gateway is the stage-execution surface the pipeline depends on.
//
// Stage methods report outcomes as StageResults rather than errors: a failed
// stage is a normal outcome that moves the document to its error state. Go
// errors are reserved for broken invariants (for example polling a stage
// that was never started).
type Gateway interface {
	// ExtractsLocally reports whether text extraction happens in-process,
	// skipping the remote OCR service entirely.
	ExtractsLocally() bool

	// StartOCR submits the document to the remote OCR service. The document
	// URL must be fetchable by the service.
	StartOCR(ctx context.Context, doc *document.Document) document.StageResult

	// PollOCR checks a previously started OCR task.
	PollOCR(ctx context.Context, doc *document.Document) (document.StageResult, error)

	// StartDecorate submits extracted text to the decoration service.
	StartDecorate(ctx context.Context, doc *document.Document) document.StageResult

	// PollDecorate checks a previously started decoration task.
	PollDecorate(ctx context.Context, doc *document.Document) (document.StageResult, error)

	// StartTrain pushes the decorated document into the training backend.
	// The local importer completes synchronously; the remote service returns
	// a task id.
	StartTrain(ctx context.Context, doc *document.Document) document.StageResult

	// ExtractText runs local extraction on the stored object.
	ExtractText(ctx context.Context, doc *document.Document) document.StageResult

	// DeleteTrained removes the document's trained artifacts. With force set,
	// missing artifacts and backend refusals count as success.
	DeleteTrained(ctx context.Context, doc *document.Document, force bool) error

	// DeleteNamespace removes every trained artifact in the archive
	// namespace.
	DeleteNamespace(ctx context.Context) error
}

// New builds a gateway from pipeline configuration. The two backend flags
// are independent: extraction and training each pick local or remote on
// their own.
func New(cfg *config.Config, objects objectstore.Store, logger *slog.Logger) Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	g := &composite{
		ocr:          newJobClient(cfg.Stages.OCR),
		decorator:    newJobClient(cfg.Stages.Decorator),
		trainer:      newJobClient(cfg.Stages.Training),
		objects:      objects,
		localExtract: cfg.Pipeline.UseVectorLinkDocumentExtractors,
		localImport:  cfg.Pipeline.UseVectorLinkImporter,
		logger:       logger,
	}
	if g.localImport {
		g.archive = vectorlink.NewClient(cfg.VectorLink)
	}
	return g
}
