// Package coordinator reports execution outcomes to the upstream coordinator.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/judgebox/config"
	"github.com/isdmx/judgebox/model"
)

// Reporter delivers outcomes. Each call is a single attempt.
type Reporter interface {
	ReportExecution(ctx context.Context, execution model.Execution) error
	ReportError(ctx context.Context, failure model.ErrorSubmission) error
}

// Endpoint prefixes, resolved against the coordinator base URL and suffixed
// with the submission ID.
const (
	executionEndpoint = "judge/"
	errorEndpoint     = "error/"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// Client posts JSON to the coordinator over HTTP.
type Client struct {
	logger *zap.Logger
	base   *url.URL
	http   *http.Client
}

// NewClient creates a client for the coordinator at baseURL. Endpoints are
// resolved relative to it, so a base with a path should end in a slash.
func NewClient(logger *zap.Logger, baseURL string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid coordinator url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("coordinator url must be absolute: %s", baseURL)
	}
	return &Client{
		logger: logger,
		base:   base,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

// NewClientFromConfig creates a client from application configuration.
func NewClientFromConfig(logger *zap.Logger, cfg *config.Config) (*Client, error) {
	return NewClient(logger.Named("coordinator"), cfg.Coordinator.URL, cfg.CoordinatorTimeout())
}

// ReportExecution posts a successful execution to judge/{id}.
func (c *Client) ReportExecution(ctx context.Context, execution model.Execution) error {
	return c.post(ctx, executionEndpoint, execution.ID, execution)
}

// ReportError posts a pipeline failure to error/{id}.
func (c *Client) ReportError(ctx context.Context, failure model.ErrorSubmission) error {
	return c.post(ctx, errorEndpoint, failure.ID, failure)
}

func (c *Client) post(ctx context.Context, endpoint string, id int64, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	target := c.base.ResolveReference(&url.URL{Path: endpoint + strconv.FormatInt(id, 10)})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("coordinator returned %s for %s: %s", resp.Status, target, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("report delivered", zap.String("url", target.String()), zap.Int64("id", id))
	return nil
}
