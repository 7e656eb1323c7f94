// Package vectorlink talks to the VectorLink archive, the vector store that
// backs the local training path. Importing a document makes it searchable
// under the configured namespace.
package vectorlink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jackzampolin/corpus/internal/config"
)

// ErrArchiveUnavailable is returned when the archive health check fails.
var ErrArchiveUnavailable = errors.New("vectorlink archive unavailable")

// Archive is the surface the pipeline uses. Implemented by Client.
type Archive interface {
	Import(ctx context.Context, req ImportRequest) error
	RemoveDocument(ctx context.Context, docID string) error
	RemoveNamespace(ctx context.Context) error
}

// Client is the VectorLink HTTP client.
type Client struct {
	url        string
	apiKey     string
	namespace  string
	httpClient *http.Client
}

var _ Archive = (*Client)(nil)

// NewClient creates a client from vectorlink configuration. The API key
// should already have ${ENV_VAR} references resolved.
func NewClient(cfg config.VectorLinkCfg) *Client {
	return &Client{
		url:       strings.TrimSuffix(cfg.URL, "/"),
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout(),
		},
	}
}

// Citation is an attachment descriptor imported alongside the content.
type Citation struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ImportRequest carries one document into the archive.
type ImportRequest struct {
	DocumentID string            `json:"document_id"`
	Name       string            `json:"name"`
	Content    string            `json:"content"`
	Citations  []Citation        `json:"citations,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Language   string            `json:"language,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// HealthCheck checks that the archive is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url+"/health", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrArchiveUnavailable, resp.StatusCode)
	}
	return nil
}

// Import adds a document to the archive namespace. Importing the same
// document id again replaces the previous content.
func (c *Client) Import(ctx context.Context, ir ImportRequest) error {
	body, err := json.Marshal(ir)
	if err != nil {
		return fmt.Errorf("failed to marshal import request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/namespaces/%s/documents", c.url, url.PathEscape(c.namespace))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("import request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("import error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// RemoveDocument deletes one document from the namespace. Removing a
// document the archive does not know is not an error.
func (c *Client) RemoveDocument(ctx context.Context, docID string) error {
	endpoint := fmt.Sprintf("%s/v1/namespaces/%s/documents/%s",
		c.url, url.PathEscape(c.namespace), url.PathEscape(docID))
	return c.delete(ctx, endpoint)
}

// RemoveNamespace deletes the whole namespace and everything in it.
func (c *Client) RemoveNamespace(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1/namespaces/%s", c.url, url.PathEscape(c.namespace))
	return c.delete(ctx, endpoint)
}

func (c *Client) delete(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
