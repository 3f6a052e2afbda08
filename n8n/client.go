// Package n8n is the client for the external n8n workflow engine that
// produces assistant replies. The engine is opaque: the relay posts a chat
// turn to a configured webhook and takes whatever JSON comes back.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSessionID is substituted when a chat turn arrives without a session
// identifier, so the workflow always receives one.
const DefaultSessionID = "default-session"

// FileAttachment is a file forwarded with a chat turn. The relay never
// interprets its content; name, content, size and type pass through to the
// workflow untouched.
type FileAttachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Size    int64  `json:"size"`
	Type    string `json:"type"`
}

// ChatPayload is the body posted to the workflow webhook.
type ChatPayload struct {
	ChatInput string           `json:"chatInput"`
	Files     []FileAttachment `json:"files"`
	SessionID string           `json:"sessionId"`
}

// Reply carries the raw workflow response for the extraction heuristics.
// The workflow's output is not schema-constrained, so nothing is decoded
// here beyond capturing the bytes.
type Reply struct {
	StatusCode int
	Body       []byte
}

// ErrorKind classifies what went wrong with a workflow invocation so the
// relay can produce a precise user-facing message.
type ErrorKind int

const (
	// KindHTTP means the engine answered with a non-2xx status.
	KindHTTP ErrorKind = iota
	// KindUnreachable means the request went out but no response came back
	// (connection refused, timeout, DNS failure).
	KindUnreachable
	// KindSetup means the request could not even be constructed.
	KindSetup
)

// Error is returned by Invoke for every failure mode.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Status     string
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("n8n returned %d: %s", e.StatusCode, e.Status)
	case KindUnreachable:
		return fmt.Sprintf("no response from n8n: %v", e.Err)
	default:
		return fmt.Sprintf("request setup failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Client invokes the n8n workflow engine over HTTP.
type Client struct {
	client       *http.Client
	healthClient *http.Client
	webhookURL   string
	healthURL    string
}

// Options configures a Client.
type Options struct {
	WebhookURL    string
	HealthURL     string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

// NewClient creates a workflow client. A chat turn gets a single attempt
// with a long timeout: workflow runs are slow and may carry side effects,
// so retrying is neither useful nor safe.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.HealthTimeout == 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	return &Client{
		client:       &http.Client{Timeout: opts.Timeout},
		healthClient: &http.Client{Timeout: opts.HealthTimeout},
		webhookURL:   opts.WebhookURL,
		healthURL:    opts.HealthURL,
	}
}

// Normalize fills in the defaults the workflow expects for a sparse turn.
func (p ChatPayload) Normalize() ChatPayload {
	if p.Files == nil {
		p.Files = []FileAttachment{}
	}
	if p.SessionID == "" {
		p.SessionID = DefaultSessionID
	}
	return p
}

// Invoke posts one chat turn to the workflow webhook and returns the raw
// reply. Failures come back as *Error with the kind set.
func (c *Client) Invoke(ctx context.Context, payload ChatPayload) (Reply, error) {
	body, err := json.Marshal(payload.Normalize())
	if err != nil {
		return Reply{}, &Error{Kind: KindSetup, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return Reply{}, &Error{Kind: KindSetup, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Reply{}, &Error{Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, &Error{Kind: KindUnreachable, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Reply{}, &Error{
			Kind:       KindHTTP,
			StatusCode: resp.StatusCode,
			Status:     statusText(resp.Status, resp.StatusCode),
			Body:       raw,
		}
	}

	return Reply{StatusCode: resp.StatusCode, Body: raw}, nil
}

// Health probes the engine's liveness endpoint with a short timeout and
// returns the status code it answered with.
func (c *Client) Health(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// statusText strips the numeric prefix from an HTTP status line, falling
// back to the stdlib phrase for servers that send a bare code.
func statusText(status string, code int) string {
	text := strings.TrimSpace(strings.TrimPrefix(status, fmt.Sprintf("%d", code)))
	if text == "" {
		text = http.StatusText(code)
	}
	return text
}
