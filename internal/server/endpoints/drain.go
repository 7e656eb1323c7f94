package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/corpus/internal/api"
	"github.com/jackzampolin/corpus/internal/svcctx"
)

// DrainResponse is the response for a manual sweep.
type DrainResponse struct {
	Status string `json:"status"`
}

// DrainEndpoint handles POST /api/pipeline/drain. It runs one full sweep of
// the pending set, same as the background ticker.
type DrainEndpoint struct{}

var _ api.Endpoint = (*DrainEndpoint)(nil)

func (e *DrainEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pipeline/drain", e.handler
}

func (e *DrainEndpoint) RequiresReady() bool { return true }

func (e *DrainEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	if err := orch.Drain(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, DrainResponse{Status: "drained"})
}

func (e *DrainEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Run one pipeline sweep over all pending documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DrainResponse
			if err := client.Post(cmd.Context(), "/api/pipeline/drain", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}
