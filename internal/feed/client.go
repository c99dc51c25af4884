// Package feed provides a client for the custom glucose API and maps its
// responses to readings
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds every request
const DefaultTimeout = 10 * time.Second

// TransportError describes a failed fetch: network, timeout, status or body
type TransportError struct {
	Op         string // "current", "graph" or "status"
	StatusCode int    // 0 when no response was received
	RequestID  string
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client fetches measurements from the current and graph endpoints
type Client struct {
	currentURL string
	graphURL   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a new client for the two endpoints
func NewClient(currentURL, graphURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		currentURL: strings.TrimSpace(currentURL),
		graphURL:   strings.TrimSpace(graphURL),
		timeout:    timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// buildRequest creates a GET request tagged with a fresh request id
func (c *Client) buildRequest(ctx context.Context, rawURL string) (*http.Request, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	return req, requestID, nil
}

// doRequest executes a GET and returns the body of a 200 response
func (c *Client) doRequest(ctx context.Context, op, rawURL string) ([]byte, error) {
	req, requestID, err := c.buildRequest(ctx, rawURL)
	if err != nil {
		return nil, &TransportError{Op: op, Message: fmt.Sprintf("building request: %v", err), Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{
			Op:        op,
			RequestID: requestID,
			Message:   c.describeFailure(err),
			Err:       err,
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Message:    fmt.Sprintf("reading response: %v", err),
			Err:        err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Message:    fmt.Sprintf("Request status: %d - %s", resp.StatusCode, statusText(resp, body)),
		}
	}

	return body, nil
}

// describeFailure turns a failed round trip into a user-facing message
func (c *Client) describeFailure(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("Request timeout reached: %d ms.", c.timeout.Milliseconds())
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "The server address could not be resolved. Check your network connection and site address."
	}
	return "The server is not responding. Check your site address."
}

// statusText builds the detail of a non-200 response
func statusText(resp *http.Response, body []byte) string {
	if resp.StatusCode == http.StatusNotFound {
		return "The requested resource was not found on the server"
	}

	text := http.StatusText(resp.StatusCode)
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		if text == "" {
			return apiErr.Message
		}
		return text + ": " + apiErr.Message
	}
	return text
}

// FetchCurrent retrieves the most recent measurement
func (c *Client) FetchCurrent(ctx context.Context) (Payload, error) {
	body, err := c.doRequest(ctx, KindCurrent.String(), c.currentURL)
	if err != nil {
		return Payload{}, err
	}

	var m Measurement
	if err := json.Unmarshal(body, &m); err != nil {
		return Payload{}, &TransportError{
			Op:      KindCurrent.String(),
			Message: fmt.Sprintf("parsing current measurement: %v", err),
			Err:     err,
		}
	}
	return CurrentPayload(m), nil
}

// FetchGraph retrieves the recent measurement window
func (c *Client) FetchGraph(ctx context.Context) (Payload, error) {
	body, err := c.doRequest(ctx, KindGraph.String(), c.graphURL)
	if err != nil {
		return Payload{}, err
	}

	var ms []Measurement
	if err := json.Unmarshal(body, &ms); err != nil {
		return Payload{}, &TransportError{
			Op:      KindGraph.String(),
			Message: fmt.Sprintf("parsing graph measurements: %v", err),
			Err:     err,
		}
	}
	return GraphPayload(ms), nil
}

// Ping checks that the current endpoint answers
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, "status", c.currentURL)
	return err
}
