package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/corpus/internal/api"
	"github.com/jackzampolin/corpus/internal/document"
	"github.com/jackzampolin/corpus/internal/store"
	"github.com/jackzampolin/corpus/internal/svcctx"
)

// AdvanceResponse pairs the document after one transition attempt with the
// stage outcome that produced it.
type AdvanceResponse struct {
	Document *document.Document   `json:"document"`
	Result   document.StageResult `json:"result"`
}

// AdvanceEndpoint handles POST /api/documents/{id}/advance. It drives one
// pipeline transition for a single document, outside the sweep.
type AdvanceEndpoint struct{}

var _ api.Endpoint = (*AdvanceEndpoint)(nil)

func (e *AdvanceEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/{id}/advance", e.handler
}

func (e *AdvanceEndpoint) RequiresReady() bool { return true }

func (e *AdvanceEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	orch := svcctx.OrchestratorFrom(r.Context())
	repo := svcctx.StoreFrom(r.Context())
	if orch == nil || repo == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	doc, res, err := orch.Advance(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Advance stages the write; the sweep normally commits. There is no
	// sweep here, so commit directly.
	if err := repo.Commit(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to commit transition: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, AdvanceResponse{Document: doc, Result: res})
}

func (e *AdvanceEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <id>",
		Short: "Run one pipeline transition for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp AdvanceResponse
			if err := client.Post(cmd.Context(), "/api/documents/"+args[0]+"/advance", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ResetRequest is the body for POST /api/documents/{id}/reset.
type ResetRequest struct {
	Status string `json:"status"`
}

// ResetEndpoint handles POST /api/documents/{id}/reset. It force-moves a
// document to a caller-chosen status, wiping stage payloads.
type ResetEndpoint struct{}

var _ api.Endpoint = (*ResetEndpoint)(nil)

func (e *ResetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/{id}/reset", e.handler
}

func (e *ResetEndpoint) RequiresReady() bool { return true }

func (e *ResetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	target := document.Status(req.Status)
	if !target.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid target status %q", req.Status))
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	doc, err := orch.Reset(r.Context(), id, target)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (e *ResetEndpoint) Command(getServerURL func() string) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "reset <id>",
		Short: "Force a document to a specific status, wiping stage payloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var doc document.Document
			err := client.Post(cmd.Context(), "/api/documents/"+args[0]+"/reset", ResetRequest{Status: status}, &doc)
			if err != nil {
				return err
			}
			return api.Output(doc)
		},
	}

	cmd.Flags().StringVar(&status, "status", string(document.StatusPrivateBucket), "target status")
	return cmd
}

// DeleteTrainedEndpoint handles DELETE /api/documents/{id}/trained. Trained
// artifacts are removed from the training backend and the document requeues
// for retraining.
type DeleteTrainedEndpoint struct{}

var _ api.Endpoint = (*DeleteTrainedEndpoint)(nil)

func (e *DeleteTrainedEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/documents/{id}/trained", e.handler
}

func (e *DeleteTrainedEndpoint) RequiresReady() bool { return true }

func (e *DeleteTrainedEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	doc, err := orch.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (e *DeleteTrainedEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove trained artifacts and requeue the document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var doc document.Document
			if err := client.Delete(cmd.Context(), "/api/documents/"+args[0]+"/trained", &doc); err != nil {
				return err
			}
			return api.Output(doc)
		},
	}
}

// DestroyEndpoint handles DELETE /api/documents/{id}/object. The stored
// object is removed; the record and trained artifacts stay.
type DestroyEndpoint struct{}

var _ api.Endpoint = (*DestroyEndpoint)(nil)

func (e *DestroyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/documents/{id}/object", e.handler
}

func (e *DestroyEndpoint) RequiresReady() bool { return true }

func (e *DestroyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	doc, err := orch.Destroy(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (e *DestroyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <id>",
		Short: "Remove a document's stored object, keeping the record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var doc document.Document
			if err := client.Delete(cmd.Context(), "/api/documents/"+args[0]+"/object", &doc); err != nil {
				return err
			}
			return api.Output(doc)
		},
	}
}
