package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackzampolin/corpus/internal/document"
	"github.com/jackzampolin/corpus/internal/gateway"
	"github.com/jackzampolin/corpus/internal/objectstore"
	"github.com/jackzampolin/corpus/internal/store"
)

// MockRepository is an in-memory store.Repository for testing. Documents are
// cloned on the way in and out so callers observe repository reads, not
// shared pointers.
type MockRepository struct {
	mu    sync.Mutex
	docs  map[string]*document.Document
	order []string

	Commits int
	SaveErr error
	GetErr  error
}

var _ store.Repository = (*MockRepository)(nil)

// NewMockRepository creates an empty repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{docs: make(map[string]*document.Document)}
}

// Put seeds a document without going through Save error injection.
func (m *MockRepository) Put(doc *document.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		m.order = append(m.order, doc.ID)
	}
	m.docs[doc.ID] = doc.Clone()
}

// GetByID implements store.Repository.
func (m *MockRepository) GetByID(ctx context.Context, id string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return doc.Clone(), nil
}

// List implements store.Repository.
func (m *MockRepository) List(ctx context.Context) ([]*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*document.Document, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.docs[id].Clone())
	}
	return out, nil
}

// QueryPending implements store.Repository.
func (m *MockRepository) QueryPending(ctx context.Context) ([]*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*document.Document
	for _, id := range m.order {
		if m.docs[id].Advanceable() {
			out = append(out, m.docs[id].Clone())
		}
	}
	return out, nil
}

// Save implements store.Repository.
func (m *MockRepository) Save(ctx context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if _, ok := m.docs[doc.ID]; !ok {
		m.order = append(m.order, doc.ID)
	}
	m.docs[doc.ID] = doc.Clone()
	return nil
}

// Commit implements store.Repository.
func (m *MockRepository) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commits++
	return nil
}

// MockGateway is a configurable stage backend for testing. Stage actions
// succeed immediately unless a script or error is injected.
type MockGateway struct {
	mu sync.Mutex

	// Local selects the local-extraction/importer behavior.
	Local bool

	// OCRText and DecoratedText are the payloads returned on completion.
	OCRText       string
	DecoratedText string
	ExtractedText string

	// PollOCRScript, when non-empty, is consumed one result per PollOCR
	// call before the default completion applies.
	PollOCRScript []document.StageResult

	// PollOCRErr, when set, is returned from PollOCR as a Go error
	// (an invariant violation, not a stage failure).
	PollOCRErr error

	// PollErrFor returns a Go error from PollOCR for specific documents,
	// leaving the rest of a batch untouched.
	PollErrFor map[string]error

	// DeleteTrainedErr simulates a training backend that refuses deletion.
	DeleteTrainedErr error

	// OnCall, when set, runs at the start of every stage method.
	OnCall func()

	Starts           int
	Extracts         int
	Polls            int
	DeletedTrained   []string
	ForcedDeletes    []string
	NamespaceDeleted bool
}

var _ gateway.Gateway = (*MockGateway)(nil)

func (m *MockGateway) enter() {
	if m.OnCall != nil {
		m.OnCall()
	}
}

// ExtractsLocally implements Gateway.
func (m *MockGateway) ExtractsLocally() bool { return m.Local }

// StartOCR implements Gateway.
func (m *MockGateway) StartOCR(ctx context.Context, doc *document.Document) document.StageResult {
	m.enter()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Starts++
	return document.Completed(document.StatusOCR, fmt.Sprintf("ocr-task-%d", m.Starts))
}

// PollOCR implements Gateway.
func (m *MockGateway) PollOCR(ctx context.Context, doc *document.Document) (document.StageResult, error) {
	m.enter()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Polls++
	if m.PollOCRErr != nil {
		return document.StageResult{}, m.PollOCRErr
	}
	if err, ok := m.PollErrFor[doc.ID]; ok {
		return document.StageResult{}, err
	}
	if len(m.PollOCRScript) > 0 {
		res := m.PollOCRScript[0]
		m.PollOCRScript = m.PollOCRScript[1:]
		return res, nil
	}
	return document.Completed(document.StatusOCRDone, m.ocrText()), nil
}

// StartDecorate implements Gateway.
func (m *MockGateway) StartDecorate(ctx context.Context, doc *document.Document) document.StageResult {
	m.enter()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Starts++
	return document.Completed(document.StatusDecorating, fmt.Sprintf("decorate-task-%d", m.Starts))
}

// PollDecorate implements Gateway.
func (m *MockGateway) PollDecorate(ctx context.Context, doc *document.Document) (document.StageResult, error) {
	m.enter()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Polls++
	return document.Completed(document.StatusDecoratingDone, m.decoratedText()), nil
}

// StartTrain implements Gateway.
func (m *MockGateway) StartTrain(ctx context.Context, doc *document.Document) document.StageResult {
	m.enter()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Starts++
	if m.Local {
		return document.Completed(document.StatusTrainingDone, "")
	}
	return document.Completed(document.StatusDone, fmt.Sprintf("train-task-%d", m.Starts))
}

// ExtractText implements Gateway.
func (m *MockGateway) ExtractText(ctx context.Context, doc *document.Document) document.StageResult {
	m.enter()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Extracts++
	text := m.ExtractedText
	if text == "" {
		text = "extracted text"
	}
	return document.Completed(document.StatusDecoratingDone, text)
}

// DeleteTrained implements Gateway.
func (m *MockGateway) DeleteTrained(ctx context.Context, doc *document.Document, force bool) error {
	m.enter()
	m.mu.Lock()
	defer m.mu.Unlock()
	if force {
		m.ForcedDeletes = append(m.ForcedDeletes, doc.ID)
	} else {
		m.DeletedTrained = append(m.DeletedTrained, doc.ID)
	}
	if m.DeleteTrainedErr != nil && !force {
		return m.DeleteTrainedErr
	}
	return nil
}

// DeleteNamespace implements Gateway.
func (m *MockGateway) DeleteNamespace(ctx context.Context) error {
	m.enter()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NamespaceDeleted = true
	return nil
}

func (m *MockGateway) ocrText() string {
	if m.OCRText != "" {
		return m.OCRText
	}
	return "ocr text"
}

func (m *MockGateway) decoratedText() string {
	if m.DecoratedText != "" {
		return m.DecoratedText
	}
	return "decorated text"
}

// MockObjectStore is an in-memory object store for testing. Presigned URLs
// carry a counter so tests can observe refreshes.
type MockObjectStore struct {
	mu      sync.Mutex
	content map[string][]byte

	Presigns   int
	Copies     []string
	Removes    []string
	CopyErr    error
	PresignErr error
	UploadErr  error
}

var _ objectstore.Store = (*MockObjectStore)(nil)

// NewMockObjectStore creates an empty object store.
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{content: make(map[string][]byte)}
}

func objKey(bucket document.Bucket, key string) string {
	return string(bucket) + "/" + key
}

// Has reports whether an object is present, for test assertions.
func (m *MockObjectStore) Has(bucket document.Bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.content[objKey(bucket, key)]
	return ok
}

// Upload implements objectstore.Store.
func (m *MockObjectStore) Upload(ctx context.Context, bucket document.Bucket, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return m.UploadErr
	}
	m.content[objKey(bucket, key)] = append([]byte(nil), data...)
	return nil
}

// Download implements objectstore.Store.
func (m *MockObjectStore) Download(ctx context.Context, bucket document.Bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.content[objKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("no such object: %s/%s", bucket, key)
	}
	return append([]byte(nil), data...), nil
}

// Copy implements objectstore.Store.
func (m *MockObjectStore) Copy(ctx context.Context, srcBucket document.Bucket, srcKey string, dstBucket document.Bucket, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CopyErr != nil {
		return m.CopyErr
	}
	data, ok := m.content[objKey(srcBucket, srcKey)]
	if !ok {
		return fmt.Errorf("no such object: %s/%s", srcBucket, srcKey)
	}
	m.content[objKey(dstBucket, dstKey)] = append([]byte(nil), data...)
	m.Copies = append(m.Copies, objKey(srcBucket, srcKey)+" -> "+objKey(dstBucket, dstKey))
	return nil
}

// Remove implements objectstore.Store.
func (m *MockObjectStore) Remove(ctx context.Context, bucket document.Bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.content, objKey(bucket, key))
	m.Removes = append(m.Removes, objKey(bucket, key))
	return nil
}

// Exists implements objectstore.Store.
func (m *MockObjectStore) Exists(ctx context.Context, bucket document.Bucket, key string) (bool, error) {
	return m.Has(bucket, key), nil
}

// PresignedURL implements objectstore.Store.
func (m *MockObjectStore) PresignedURL(ctx context.Context, bucket document.Bucket, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PresignErr != nil {
		return "", m.PresignErr
	}
	m.Presigns++
	return fmt.Sprintf("https://signed.example/%s/%s?sig=%d", bucket, key, m.Presigns), nil
}
