package endpoints

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/corpus/internal/api"
	"github.com/jackzampolin/corpus/internal/document"
	"github.com/jackzampolin/corpus/internal/pipeline"
	"github.com/jackzampolin/corpus/internal/svcctx"
)

// UploadEndpoint handles POST /api/documents with a multipart file upload.
type UploadEndpoint struct{}

var _ api.Endpoint = (*UploadEndpoint)(nil)

func (e *UploadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents", e.handler
}

func (e *UploadEndpoint) RequiresReady() bool { return true }

func (e *UploadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 100 << 20 // 100MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a file part named \"file\" is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	var citations []document.Citation
	if raw := r.FormValue("citations"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &citations); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid citations field: %v", err))
			return
		}
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	doc, err := orch.Upload(r.Context(), pipeline.UploadRequest{
		Name:        name,
		DisplayName: r.FormValue("display_name"),
		Description: r.FormValue("description"),
		Tags:        tags,
		Language:    r.FormValue("language"),
		Citations:   citations,
		Content:     content,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Info("document uploaded", "document", doc.ID, "name", doc.Name, "status", doc.Status)
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (e *UploadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		name        string
		displayName string
		description string
		tags        string
		language    string
		citations   []string
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document into the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if name == "" {
				name = filepath.Base(args[0])
			}

			citationsField, err := encodeCitationFlags(citations)
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var doc map[string]any
			err = client.PostFile(cmd.Context(), "/api/documents", "file", filepath.Base(args[0]), content, map[string]string{
				"name":         name,
				"display_name": displayName,
				"description":  description,
				"tags":         tags,
				"language":     language,
				"citations":    citationsField,
			}, &doc)
			if err != nil {
				return err
			}
			return api.Output(doc)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "document name (defaults to the file name)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "human-friendly display name")
	cmd.Flags().StringVar(&description, "description", "", "document description")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	cmd.Flags().StringVar(&language, "language", "", "document language code")
	cmd.Flags().StringArrayVar(&citations, "citations", nil, "citation attachment as name=url (repeatable)")
	return cmd
}

// encodeCitationFlags turns repeated name=url flag values into the JSON
// citations form field the upload endpoint expects.
func encodeCitationFlags(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	citations := make([]document.Citation, 0, len(values))
	for _, v := range values {
		name, url, ok := strings.Cut(v, "=")
		if !ok || name == "" || url == "" {
			return "", fmt.Errorf("invalid citation %q: expected name=url", v)
		}
		citations = append(citations, document.Citation{Name: name, URL: url})
	}
	encoded, err := json.Marshal(citations)
	if err != nil {
		return "", fmt.Errorf("failed to encode citations: %w", err)
	}
	return string(encoded), nil
}
