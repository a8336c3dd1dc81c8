package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Client is the authenticated request gateway. It wraps an *http.Client,
// injects the bearer token when one is set, serializes JSON bodies, and
// normalizes failures into structured errors.
type Client struct {
	base   string
	http   *http.Client
	logger Logger

	mu    sync.RWMutex
	token string
}

// ClientOption customizes Client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying transport. Timeouts are the
// transport's responsibility.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientLogger overrides the client logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a Client issuing requests against baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// SetAuthToken sets the bearer token injected on subsequent requests. An
// empty token clears it.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) authToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Get issues a GET request, decoding a JSON response into out when non-nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

// Post issues a POST request with a JSON-encoded body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, "", out)
}

// Put issues a PUT request with a JSON-encoded body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, "", out)
}

// Patch issues a PATCH request with a JSON-encoded body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, "", out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", out)
}

// Upload posts a multipart form with one file part plus optional text
// fields. The multipart writer owns the content type so the boundary is
// never clobbered by a caller override.
func (c *Client) Upload(ctx context.Context, path, fileField, fileName string, file io.Reader, fields map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to encode form field")
		}
	}

	fw, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to create form file")
	}

	if _, err := io.Copy(fw, file); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read upload body")
	}

	if err := w.Close(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to finalize multipart body")
	}

	return c.do(ctx, http.MethodPost, path, &buf, w.FormDataContentType(), out)
}

// BatchRequest describes one request in a Batch call.
type BatchRequest struct {
	Method string
	Path   string
	Body   any
}

// BatchResult is the settled outcome of one batched request.
type BatchResult struct {
	Data json.RawMessage
	Err  error
}

// Batch issues all requests concurrently and returns per-request settled
// outcomes. One request failing never aborts the others.
func (c *Client) Batch(ctx context.Context, reqs []BatchRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req BatchRequest) {
			defer wg.Done()
			var raw json.RawMessage
			err := c.do(ctx, req.Method, req.Path, req.Body, "", &raw)
			results[i] = BatchResult{Data: raw, Err: err}
		}(i, req)
	}
	wg.Wait()

	return results
}

func (c *Client) do(ctx context.Context, method, path string, body any, contentType string, out any) error {
	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case io.Reader:
		// pre-built bodies (multipart) pass through untouched
		reader = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+normalizePath(path), reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to build request")
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if token := c.authToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, ErrTransportFailure.Category, ErrTransportFailure.Message).
			WithTextCode(TextCodeTransportFailure)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return goerrors.Wrap(err, ErrTransportFailure.Category, "failed to read response body").
			WithTextCode(TextCodeTransportFailure)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return newHTTPError(res.StatusCode, extractErrorMessage(data))
	}

	if res.StatusCode == http.StatusNoContent || len(data) == 0 || out == nil {
		return nil
	}

	return decodeResponse(res.Header.Get("Content-Type"), data, out)
}

func decodeResponse(contentType string, data []byte, out any) error {
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}

	if strings.Contains(contentType, "json") {
		if err := json.Unmarshal(data, out); err != nil {
			return goerrors.Wrap(err, ErrMalformedResponse.Category, ErrMalformedResponse.Message).
				WithTextCode(TextCodeMalformedResponse)
		}
		return nil
	}

	switch target := out.(type) {
	case *string:
		*target = string(data)
	case *[]byte:
		*target = append((*target)[:0], data...)
	default:
		return goerrors.New("unexpected response content type: "+contentType, goerrors.CategoryOperation).
			WithTextCode(TextCodeMalformedResponse)
	}

	return nil
}

// extractErrorMessage pulls a human message out of a structured error body.
func extractErrorMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	body := struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}{}

	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}

	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
