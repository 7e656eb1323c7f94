package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackzampolin/corpus/internal/document"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	display_name      TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	language          TEXT NOT NULL DEFAULT '',
	source            TEXT NOT NULL,
	status            TEXT NOT NULL,
	url               TEXT NOT NULL DEFAULT '',
	object_key        TEXT NOT NULL DEFAULT '',
	ocr_task_id       TEXT NOT NULL DEFAULT '',
	ocr_text          TEXT NOT NULL DEFAULT '',
	decorator_task_id TEXT NOT NULL DEFAULT '',
	decorator_text    TEXT NOT NULL DEFAULT '',
	training_task_id  TEXT NOT NULL DEFAULT '',
	error_text        TEXT NOT NULL DEFAULT '',
	date_trained      TEXT,
	citations         TEXT NOT NULL DEFAULT '[]',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
`

// SQLite is the Repository implementation backed by modernc.org/sqlite.
// A single pending transaction serves as the unit of work; reads go through
// it so callers observe their own uncommitted writes.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
	tx *sql.Tx
}

var _ Repository = (*SQLite)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The pure-Go driver serializes access per connection; a single
	// connection keeps the pending transaction visible to all reads.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// OpenMemory opens an in-memory database, useful in tests.
func OpenMemory() (*SQLite, error) {
	return Open(":memory:")
}

// Close rolls back any pending unit of work and closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}

// querier returns the pending transaction when one is open, else the db.
func (s *SQLite) querier() interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// begin lazily opens the unit-of-work transaction.
func (s *SQLite) begin(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

const documentColumns = `id, name, display_name, description, tags, language,
	source, status, url, object_key,
	ocr_task_id, ocr_text, decorator_task_id, decorator_text,
	training_task_id, error_text, date_trained, citations,
	created_at, updated_at`

// GetByID implements Repository.
func (s *SQLite) GetByID(ctx context.Context, id string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.querier().QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	return doc, nil
}

// List implements Repository.
func (s *SQLite) List(ctx context.Context) ([]*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.querier().QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// QueryPending implements Repository. PublicBucket is terminal except for
// Blob-sourced documents, for which it is the pipeline entry point.
func (s *SQLite) QueryPending(ctx context.Context) ([]*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.querier().QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE status NOT IN (?, ?, ?)
		  AND NOT (status = ? AND source != ?)
		ORDER BY created_at, id`,
		string(document.StatusDone),
		string(document.StatusTrainingDone),
		string(document.StatusError),
		string(document.StatusPublicBucket),
		string(document.SourceBlob),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// Save implements Repository.
func (s *SQLite) Save(ctx context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(ctx); err != nil {
		return err
	}

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	citations, err := json.Marshal(doc.Citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}

	var dateTrained any
	if doc.DateTrained != nil {
		dateTrained = doc.DateTrained.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.querier().ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			display_name = excluded.display_name,
			description = excluded.description,
			tags = excluded.tags,
			language = excluded.language,
			source = excluded.source,
			status = excluded.status,
			url = excluded.url,
			object_key = excluded.object_key,
			ocr_task_id = excluded.ocr_task_id,
			ocr_text = excluded.ocr_text,
			decorator_task_id = excluded.decorator_task_id,
			decorator_text = excluded.decorator_text,
			training_task_id = excluded.training_task_id,
			error_text = excluded.error_text,
			date_trained = excluded.date_trained,
			citations = excluded.citations,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Name, doc.DisplayName, doc.Description, string(tags),
		doc.Language, string(doc.Source), string(doc.Status), doc.URL,
		doc.ObjectKey, doc.OCRTaskID, doc.OCRText, doc.DecoratorTaskID,
		doc.DecoratorText, doc.TrainingTaskID, doc.ErrorText, dateTrained,
		string(citations),
		doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}
	return nil
}

// Commit implements Repository.
func (s *SQLite) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit unit of work: %w", err)
	}
	return nil
}

func collectDocuments(rows *sql.Rows) ([]*document.Document, error) {
	var docs []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*document.Document, error) {
	var (
		doc         document.Document
		tags        string
		citations   string
		source      string
		status      string
		dateTrained sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(
		&doc.ID, &doc.Name, &doc.DisplayName, &doc.Description, &tags,
		&doc.Language, &source, &status, &doc.URL, &doc.ObjectKey,
		&doc.OCRTaskID, &doc.OCRText, &doc.DecoratorTaskID,
		&doc.DecoratorText, &doc.TrainingTaskID, &doc.ErrorText,
		&dateTrained, &citations, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Source = document.SourceType(source)
	doc.Status = document.Status(status)

	if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(citations), &doc.Citations); err != nil {
		return nil, fmt.Errorf("failed to decode citations: %w", err)
	}

	if dateTrained.Valid && dateTrained.String != "" {
		t, err := time.Parse(time.RFC3339Nano, dateTrained.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date_trained: %w", err)
		}
		doc.DateTrained = &t
	}
	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &doc, nil
}
