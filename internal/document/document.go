// Package document defines the document record that moves through the
// processing pipeline, its status state machine, and the stage result type
// exchanged between the transition function and the persistence layer.
package document

import "time"

// SourceType is the origin of a document's content.
type SourceType string

const (
	// SourceBlob is an uploaded file stored in the object store.
	SourceBlob SourceType = "blob"

	// SourceSite is a web page to be scraped. Scraping is not implemented;
	// Site documents park in their entry state.
	SourceSite SourceType = "site"
)

// Citation is an attachment descriptor forwarded to the training stage.
// The pipeline never mutates citations.
type Citation struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Document is the unit of work moving through the pipeline.
//
// The stage payload fields (OCRTaskID through ErrorText) are each written by
// exactly one stage transition and cleared together when the document is
// requeued for retraining.
type Document struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Language    string     `json:"language,omitempty"`
	Source      SourceType `json:"source"`
	Status      Status     `json:"status"`

	// URL is the current accessible location of the raw content, rewritten
	// whenever the document moves storage tiers or the presigned URL is
	// refreshed. ObjectKey addresses the object inside whichever bucket the
	// current status maps to.
	URL       string `json:"url,omitempty"`
	ObjectKey string `json:"object_key,omitempty"`

	OCRTaskID       string     `json:"ocr_task_id,omitempty"`
	OCRText         string     `json:"ocr_text,omitempty"`
	DecoratorTaskID string     `json:"decorator_task_id,omitempty"`
	DecoratorText   string     `json:"decorator_text,omitempty"`
	TrainingTaskID  string     `json:"training_task_id,omitempty"`
	ErrorText       string     `json:"error_text,omitempty"`
	DateTrained     *time.Time `json:"date_trained,omitempty"`

	Citations []Citation `json:"citations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Advanceable reports whether the sweep should pick this document up.
// Terminal statuses are excluded, with one exception: PublicBucket is the
// entry point for Blob-sourced documents.
func (d *Document) Advanceable() bool {
	if d.Status == StatusPublicBucket {
		return d.Source == SourceBlob
	}
	return !d.Status.Terminal()
}

// ClearStagePayload blanks every stage payload field. Used when a document is
// requeued for retraining so a fresh pass starts from a clean slate.
// If placeholder is non-empty it is written instead of the empty string,
// which keeps the wipe visible in UIs that hide empty fields.
func (d *Document) ClearStagePayload(placeholder string) {
	d.OCRTaskID = placeholder
	d.OCRText = placeholder
	d.DecoratorTaskID = placeholder
	d.DecoratorText = placeholder
	d.TrainingTaskID = placeholder
	d.ErrorText = placeholder
	d.DateTrained = nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := *d
	if d.Tags != nil {
		out.Tags = append([]string(nil), d.Tags...)
	}
	if d.Citations != nil {
		out.Citations = append([]Citation(nil), d.Citations...)
	}
	if d.DateTrained != nil {
		t := *d.DateTrained
		out.DateTrained = &t
	}
	return &out
}
