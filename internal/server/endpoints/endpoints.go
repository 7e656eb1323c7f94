// Package endpoints defines the HTTP surface of the corpus server. Each
// endpoint pairs a route with the CLI command that calls it.
package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/jackzampolin/corpus/internal/api"
)

// All returns every endpoint the server exposes.
func All() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&UploadEndpoint{},
		&ListDocumentsEndpoint{},
		&GetDocumentEndpoint{},
		&AdvanceEndpoint{},
		&ResetEndpoint{},
		&DeleteTrainedEndpoint{},
		&DestroyEndpoint{},
		&DrainEndpoint{},
	}
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
