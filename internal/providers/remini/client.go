package remini

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
	"time"

	"enhancebot/internal/domain"
	"enhancebot/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("remini: api key is required")

const (
	defaultBaseURL       = "https://developer.remini.ai/api"
	defaultUploadTimeout = 60 * time.Second
	maxErrorBody         = 512

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Options configures the Remini task API client. The resulting client is
// immutable and safe for concurrent use by many jobs.
type Options struct {
	APIKey        string
	BaseURL       string
	HTTPClient    *http.Client
	UploadTimeout time.Duration
	Logger        *infra.Logger
}

// Client performs the task API calls: create, upload, process and status.
type Client struct {
	apiKey        string
	baseURL       string
	uploadTimeout time.Duration
	httpClient    *http.Client
	logger        *infra.Logger
}

// Tool is the wire form of one requested enhancement.
type Tool struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
}

// CreateTaskRequest is the POST /tasks body.
type CreateTaskRequest struct {
	Tools            []Tool `json:"tools"`
	ImageMD5         string `json:"image_md5"`
	ImageContentType string `json:"image_content_type"`
}

// UploadTarget is the one-time pre-signed destination issued on creation.
type UploadTarget struct {
	URL     string
	Headers map[string]string
}

// Task is the result of a successful creation.
type Task struct {
	ID     string
	Upload UploadTarget
}

type createTaskResponse struct {
	TaskID        string            `json:"task_id"`
	UploadURL     string            `json:"upload_url"`
	UploadHeaders map[string]string `json:"upload_headers"`
}

// TaskStatus mirrors GET /tasks/{id}. Result is only set once completed.
type TaskStatus struct {
	Status string      `json:"status"`
	Result *TaskResult `json:"result,omitempty"`
}

type TaskResult struct {
	OutputURL string `json:"output_url"`
}

// Completed reports whether the remote task finished successfully.
func (s *TaskStatus) Completed() bool {
	return s != nil && s.Status == StatusCompleted
}

// OutputURL returns the enhanced artifact location, if any.
func (s *TaskStatus) OutputURL() string {
	if s == nil || s.Result == nil {
		return ""
	}
	return strings.TrimSpace(s.Result.OutputURL)
}

// NewClient constructs a client with defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("remini: invalid base url: %w", err)
	}
	uploadTimeout := opts.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseURL:       baseURL,
		uploadTimeout: uploadTimeout,
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateTask registers a new task and returns its id and upload target.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	const op = "create"
	if !c.HasCredentials() {
		return nil, &domain.RemoteServiceError{Op: op, Err: ErrMissingAPIKey}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("remini: encode request: %w", err)
	}
	raw, err := c.call(ctx, op, http.MethodPost, "/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var decoded createTaskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.RemoteServiceError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if strings.TrimSpace(decoded.TaskID) == "" || strings.TrimSpace(decoded.UploadURL) == "" {
		return nil, &domain.RemoteServiceError{Op: op, Err: errors.New("response missing task_id or upload_url")}
	}
	c.logger.Debug().Str("task_id", decoded.TaskID).Msg("remini: task created")
	return &Task{
		ID: decoded.TaskID,
		Upload: UploadTarget{
			URL:     decoded.UploadURL,
			Headers: decoded.UploadHeaders,
		},
	}, nil
}

// Upload PUTs the raw bytes to the pre-signed target under the upload timeout.
// The target's headers are sent verbatim; the bearer credential is not.
func (c *Client) Upload(ctx context.Context, target UploadTarget, data []byte) error {
	const op = "upload"
	if len(data) == 0 {
		return &domain.RemoteServiceError{Op: op, Err: domain.ErrEmptyPayload}
	}
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, bytes.NewReader(data))
	if err != nil {
		return &domain.RemoteServiceError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	req.ContentLength = int64(len(data))
	if _, err := c.do(op, req); err != nil {
		return err
	}
	c.logger.Debug().Int("bytes", len(data)).Msg("remini: payload uploaded")
	return nil
}

// Process starts server-side processing of an uploaded task.
func (c *Client) Process(ctx context.Context, taskID string) error {
	const op = "process"
	if !c.HasCredentials() {
		return &domain.RemoteServiceError{Op: op, Err: ErrMissingAPIKey}
	}
	_, err := c.call(ctx, op, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/process", nil)
	return err
}

// Status fetches the current task state once.
func (c *Client) Status(ctx context.Context, taskID string) (*TaskStatus, error) {
	const op = "poll"
	if !c.HasCredentials() {
		return nil, &domain.RemoteServiceError{Op: op, Err: ErrMissingAPIKey}
	}
	raw, err := c.call(ctx, op, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}
	var status TaskStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, &domain.RemoteServiceError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &status, nil
}

// call issues an authenticated request against the API base URL.
func (c *Client) call(ctx context.Context, op, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &domain.RemoteServiceError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(op, req)
}

func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.RemoteServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("remini: unexpected status")
		return nil, &domain.RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(raw)), maxErrorBody)}
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
