package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/corpus/internal/config"
)

// Task states reported by the remote job services.
const (
	taskPending   = "pending"
	taskRunning   = "running"
	taskCompleted = "completed"
	taskFailed    = "failed"
)

// task is the wire representation of a remote stage job.
type task struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Done reports whether the task reached a final state.
func (t task) Done() bool {
	return t.Status == taskCompleted || t.Status == taskFailed
}

// jobClient talks to one remote stage service. All three stage services
// (ocr, decorator, training) share the same task API shape.
type jobClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func newJobClient(cfg config.StageCfg) *jobClient {
	return &jobClient{
		url:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout(),
		},
	}
}

// startTask submits a new job and returns its id. Not retried: a timed-out
// submission may still have started a task, and a duplicate start would
// orphan it.
func (c *jobClient) startTask(ctx context.Context, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("task submission failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("task submission error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var t task
	if err := json.Unmarshal(respBody, &t); err != nil {
		return "", fmt.Errorf("failed to unmarshal task: %w (body: %s)", err, string(respBody))
	}
	if t.ID == "" {
		return "", fmt.Errorf("task submission returned no id (body: %s)", string(respBody))
	}
	return t.ID, nil
}

// getTask fetches the current state of a job. Idempotent, so transient
// transport failures are retried.
func (c *jobClient) getTask(ctx context.Context, id string) (task, error) {
	var t task
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, "GET",
				c.url+"/v1/tasks/"+url.PathEscape(id), nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			c.setHeaders(req)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("task poll failed: %w", err)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode >= 500 {
				return fmt.Errorf("task poll error (status %d): %s", resp.StatusCode, string(respBody))
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(
					fmt.Errorf("task poll error (status %d): %s", resp.StatusCode, string(respBody)))
			}
			if err := json.Unmarshal(respBody, &t); err != nil {
				return retry.Unrecoverable(
					fmt.Errorf("failed to unmarshal task: %w (body: %s)", err, string(respBody)))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
	return t, err
}

// deleteTask removes a job and its artifacts. Deleting a missing task
// succeeds.
func (c *jobClient) deleteTask(ctx context.Context, id string) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, "DELETE",
				c.url+"/v1/tasks/"+url.PathEscape(id), nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			c.setHeaders(req)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("task delete failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return nil
			}
			if resp.StatusCode >= 500 {
				respBody, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("task delete error (status %d): %s", resp.StatusCode, string(respBody))
			}
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
				respBody, _ := io.ReadAll(resp.Body)
				return retry.Unrecoverable(
					fmt.Errorf("task delete error (status %d): %s", resp.StatusCode, string(respBody)))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
}

func (c *jobClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
