package remini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"enhancebot/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type capturedRequest struct {
	method string
	url    string
	header http.Header
	body   []byte
}

type captureTransport struct {
	requests  []capturedRequest
	responses map[string]responseStub
}

type responseStub struct {
	status int
	body   string
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{responses: map[string]responseStub{}}
}

func (c *captureTransport) on(method, url string, status int, body string) {
	c.responses[method+" "+url] = responseStub{status: status, body: body}
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
	}
	c.requests = append(c.requests, capturedRequest{
		method: req.Method,
		url:    req.URL.String(),
		header: req.Header.Clone(),
		body:   body,
	})
	stub, ok := c.responses[req.Method+" "+req.URL.String()]
	if !ok {
		stub = responseStub{status: http.StatusNotFound, body: "not found"}
	}
	return &http.Response{
		StatusCode: stub.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(stub.body)),
	}, nil
}

func newTestClient(t *testing.T, transport http.RoundTripper) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "test-key",
		BaseURL:    "https://remini.test/api/",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreateTaskPayload(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodPost, "https://remini.test/api/tasks", http.StatusOK,
		`{"task_id":"T1","upload_url":"https://upload.test/bucket/T1","upload_headers":{"Content-Type":"image/jpeg","x-amz-acl":"private"}}`)
	client := newTestClient(t, transport)

	task, err := client.CreateTask(context.Background(), CreateTaskRequest{
		Tools: []Tool{
			{Type: "face_enhance", Mode: "beautify"},
			{Type: "background_enhance", Mode: "base"},
		},
		ImageMD5:         "1B2M2Y8AsgTpgAmY7PhCfg==",
		ImageContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID != "T1" {
		t.Fatalf("task id = %q, want T1", task.ID)
	}
	if task.Upload.URL != "https://upload.test/bucket/T1" {
		t.Fatalf("upload url = %q", task.Upload.URL)
	}
	if task.Upload.Headers["x-amz-acl"] != "private" {
		t.Fatalf("upload headers = %#v", task.Upload.Headers)
	}

	if len(transport.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(transport.requests))
	}
	sent := transport.requests[0]
	if got := sent.header.Get("Authorization"); got != "Bearer test-key" {
		t.Fatalf("authorization = %q", got)
	}
	var payload map[string]any
	if err := json.Unmarshal(sent.body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["image_md5"] != "1B2M2Y8AsgTpgAmY7PhCfg==" {
		t.Fatalf("image_md5 = %v", payload["image_md5"])
	}
	if payload["image_content_type"] != "image/jpeg" {
		t.Fatalf("image_content_type = %v", payload["image_content_type"])
	}
	tools := payload["tools"].([]any)
	if len(tools) != 2 {
		t.Fatalf("tools len = %d, want 2", len(tools))
	}
	first := tools[0].(map[string]any)
	if first["type"] != "face_enhance" || first["mode"] != "beautify" {
		t.Fatalf("first tool = %v", first)
	}
}

func TestCreateTaskNonSuccessStatus(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodPost, "https://remini.test/api/tasks", http.StatusPaymentRequired, `{"detail":"no credits"}`)
	client := newTestClient(t, transport)

	_, err := client.CreateTask(context.Background(), CreateTaskRequest{ImageMD5: "x", ImageContentType: "image/jpeg"})
	var remote *domain.RemoteServiceError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteServiceError, got %v", err)
	}
	if remote.Op != "create" || remote.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("remote error = %+v", remote)
	}
	if !strings.Contains(remote.Error(), "no credits") {
		t.Fatalf("error should carry body, got %q", remote.Error())
	}
}

func TestCreateTaskRejectsIncompleteResponse(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodPost, "https://remini.test/api/tasks", http.StatusOK, `{"task_id":"T1"}`)
	client := newTestClient(t, transport)

	_, err := client.CreateTask(context.Background(), CreateTaskRequest{})
	var remote *domain.RemoteServiceError
	if !errors.As(err, &remote) || remote.Op != "create" {
		t.Fatalf("expected create RemoteServiceError, got %v", err)
	}
}

func TestCreateTaskTransportError(t *testing.T) {
	cause := errors.New("connection reset")
	client := newTestClient(t, roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, cause
	}))

	_, err := client.CreateTask(context.Background(), CreateTaskRequest{})
	var remote *domain.RemoteServiceError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteServiceError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain, got %v", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	client, err := NewClient(Options{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected without credentials")
		return nil, nil
	})}})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.HasCredentials() {
		t.Fatalf("client should report missing credentials")
	}
	if _, err := client.CreateTask(context.Background(), CreateTaskRequest{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("CreateTask err = %v, want ErrMissingAPIKey", err)
	}
	if err := client.Process(context.Background(), "T1"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Process err = %v, want ErrMissingAPIKey", err)
	}
	if _, err := client.Status(context.Background(), "T1"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Status err = %v, want ErrMissingAPIKey", err)
	}
}

func TestUploadUsesTargetHeaders(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodPut, "https://upload.test/bucket/T1?sig=abc", http.StatusOK, "")
	client := newTestClient(t, transport)

	data := []byte{0xff, 0xd8, 0xff, 0xe0}
	err := client.Upload(context.Background(), UploadTarget{
		URL:     "https://upload.test/bucket/T1?sig=abc",
		Headers: map[string]string{"Content-Type": "image/jpeg", "Content-MD5": "digest"},
	}, data)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	sent := transport.requests[0]
	if sent.method != http.MethodPut {
		t.Fatalf("method = %s, want PUT", sent.method)
	}
	if !bytes.Equal(sent.body, data) {
		t.Fatalf("body = %v, want %v", sent.body, data)
	}
	if sent.header.Get("Content-MD5") != "digest" || sent.header.Get("Content-Type") != "image/jpeg" {
		t.Fatalf("headers = %v", sent.header)
	}
	if sent.header.Get("Authorization") != "" {
		t.Fatalf("pre-signed upload must not carry the bearer credential")
	}
}

func TestUploadFailureStatus(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodPut, "https://upload.test/T1", http.StatusInternalServerError, "internal")
	client := newTestClient(t, transport)

	err := client.Upload(context.Background(), UploadTarget{URL: "https://upload.test/T1"}, []byte("jpeg"))
	var remote *domain.RemoteServiceError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteServiceError, got %v", err)
	}
	if remote.Op != "upload" || remote.StatusCode != http.StatusInternalServerError {
		t.Fatalf("remote error = %+v", remote)
	}
}

func TestUploadRejectsEmptyPayload(t *testing.T) {
	client := newTestClient(t, newCaptureTransport())
	err := client.Upload(context.Background(), UploadTarget{URL: "https://upload.test/T1"}, nil)
	if !errors.Is(err, domain.ErrEmptyPayload) {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestUploadTimeout(t *testing.T) {
	client, err := NewClient(Options{
		APIKey:        "test-key",
		UploadTimeout: 20 * time.Millisecond,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			<-r.Context().Done()
			return nil, r.Context().Err()
		})},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = client.Upload(context.Background(), UploadTarget{URL: "https://upload.test/T1"}, []byte("jpeg"))
	var remote *domain.RemoteServiceError
	if !errors.As(err, &remote) || remote.Op != "upload" {
		t.Fatalf("expected upload RemoteServiceError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestProcessPostsWithoutBody(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodPost, "https://remini.test/api/tasks/T1/process", http.StatusAccepted, "")
	client := newTestClient(t, transport)

	if err := client.Process(context.Background(), "T1"); err != nil {
		t.Fatalf("process: %v", err)
	}
	sent := transport.requests[0]
	if len(sent.body) != 0 {
		t.Fatalf("process body = %q, want empty", sent.body)
	}
	if sent.header.Get("Authorization") != "Bearer test-key" {
		t.Fatalf("authorization missing")
	}
}

func TestStatusDecodesResult(t *testing.T) {
	transport := newCaptureTransport()
	transport.on(http.MethodGet, "https://remini.test/api/tasks/T1", http.StatusOK,
		`{"status":"completed","result":{"output_url":"https://x/y.jpg"}}`)
	transport.on(http.MethodGet, "https://remini.test/api/tasks/T2", http.StatusOK, `{"status":"processing"}`)
	client := newTestClient(t, transport)

	done, err := client.Status(context.Background(), "T1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !done.Completed() || done.OutputURL() != "https://x/y.jpg" {
		t.Fatalf("status = %+v", done)
	}

	pending, err := client.Status(context.Background(), "T2")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if pending.Completed() || pending.OutputURL() != "" {
		t.Fatalf("pending status = %+v", pending)
	}
}

func TestStatusNotFound(t *testing.T) {
	client := newTestClient(t, newCaptureTransport())
	_, err := client.Status(context.Background(), "missing")
	var remote *domain.RemoteServiceError
	if !errors.As(err, &remote) || remote.Op != "poll" || remote.StatusCode != http.StatusNotFound {
		t.Fatalf("expected poll 404 RemoteServiceError, got %v", err)
	}
}
