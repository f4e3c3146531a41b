package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Envelope is the list response shape of the resource API.
type Envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPages"`
	TotalItems int `json:"totalItems"`
}

// serverError is the error body shape the resource API uses for failures.
type serverError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Marshaller matches cache.Marshaller; redeclared here to keep the package
// free of a cache dependency.
type Marshaller interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonMarshaller struct{}

func (jsonMarshaller) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonMarshaller) Unmarshal(d []byte, v any) error { return json.Unmarshal(d, v) }

// Logger matches cache.Logger; redeclared for the same reason.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ClientConfig configures a fetch client.
type ClientConfig struct {
	// BaseURL is the resource API root, e.g. "https://admin.example.com/api".
	BaseURL string

	// Timeout bounds each round trip. Expiry surfaces as NetworkUnreachable.
	Timeout time.Duration

	// HTTPClient overrides the underlying client. If nil a default with the
	// configured timeout is used.
	HTTPClient *http.Client

	// Marshaller overrides JSON handling. If nil, encoding/json.
	Marshaller Marshaller

	// Logger is the debug logger. If nil, no-op.
	Logger Logger

	// DebugMode enables debug logging.
	DebugMode bool
}

// Client performs single round trips against the resource API. It does no
// retries and has no side effects beyond the one request it issues; retry
// policy is layered on by callers via RetryPolicy.
type Client struct {
	baseURL    string
	http       *http.Client
	marshaller Marshaller
	logger     Logger
	debug      bool
}

// NewClient creates a new fetch client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("fetch: BaseURL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	marshaller := cfg.Marshaller
	if marshaller == nil {
		marshaller = jsonMarshaller{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       httpClient,
		marshaller: marshaller,
		logger:     logger,
		debug:      cfg.DebugMode,
	}, nil
}

// Execute performs one round trip and returns the raw JSON body. Transport
// failures are translated into *Error; callers never see naked net errors.
func (c *Client) Execute(ctx context.Context, req Request) (json.RawMessage, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.debug {
		c.logger.Debug("Execute: issuing request", "method", req.Method, "url", httpReq.URL.String())
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if c.debug {
			c.logger.Warn("Execute: transport failure", "method", req.Method, "error", err)
		}
		return nil, unreachable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unreachable(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp.StatusCode, body)
	}

	// 204 No Content is a legitimate empty success (DELETE).
	if len(body) == 0 {
		return nil, nil
	}

	if !json.Valid(body) {
		return nil, malformed("response body is not valid JSON", nil)
	}

	if c.debug {
		c.logger.Debug("Execute: success", "method", req.Method, "status", resp.StatusCode)
	}

	return json.RawMessage(body), nil
}

// ExecuteList performs a list round trip and validates the response envelope
// at the boundary, so malformed payloads never reach the cache.
func (c *Client) ExecuteList(ctx context.Context, req Request) (*Envelope, error) {
	body, err := c.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseEnvelope(body)
}

// ParseEnvelope validates a list response body against the envelope shape.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, malformed("list response does not match envelope", err)
	}
	if len(envelope.Data) == 0 {
		return nil, malformed("list response is missing the data field", nil)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if trimmed[0] != '[' {
		return nil, malformed("list response data is not an array", nil)
	}

	return &envelope, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	var path string
	switch {
	case req.Bulk:
		path = fmt.Sprintf("%s/%s/bulk", c.baseURL, req.Collection)
	case req.ID != "":
		path = fmt.Sprintf("%s/%s/%s", c.baseURL, req.Collection, req.ID)
	default:
		path = fmt.Sprintf("%s/%s", c.baseURL, req.Collection)
	}
	if len(req.Query) > 0 {
		path += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := c.marshaller.Marshal(req.Body)
		if err != nil {
			return nil, malformed("request body is not marshallable", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, path, body)
	if err != nil {
		return nil, unreachable(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// statusError extracts the server's own error message when the failure body
// carries one, so rollbacks can show the concrete reason instead of a
// generic failure string.
func (c *Client) statusError(status int, body []byte) *Error {
	msg := http.StatusText(status)
	var se serverError
	if err := json.Unmarshal(body, &se); err == nil {
		if se.Message != "" {
			msg = se.Message
		} else if se.Error != "" {
			msg = se.Error
		}
	}
	return &Error{Kind: NonSuccessStatus, StatusCode: status, Message: msg}
}
