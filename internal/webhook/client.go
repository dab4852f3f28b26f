// Package webhook delivers documents to the external processing workflow.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/docadmin/internal/telemetry"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second

	// maxResponseBytes caps how much of a webhook response is read
	maxResponseBytes = 4 << 20
	userAgent        = "docadmin-forwarder"
)

// Config controls where and how payloads are delivered.
type Config struct {
	URL        string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Payload is one document handed to the webhook.
type Payload struct {
	DocumentID  string
	FileName    string
	File        []byte
	Title       string
	Description string
	Code        string
	Version     string
	Flow        string
	CreatedAt   string
	CreatedBy   string
}

// Result describes a successful delivery.
type Result struct {
	StatusCode int
	Attempts   int
	Response   map[string]any
}

// DeliveryError is returned when no attempt got a 2xx response.
// StatusCode is zero when the last attempt failed at the transport level.
type DeliveryError struct {
	StatusCode int
	Attempts   int
	Message    string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: a transport error or a 404.
func (e *DeliveryError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusNotFound
}

// ResponseError is returned when delivery succeeded but the body could not be parsed.
type ResponseError struct {
	StatusCode int
	Attempts   int
	Err        error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("failed to process webhook response: %v", e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	cfg        Config
	httpClient HTTPDoer
}

func NewClient(cfg Config) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout})
}

func NewClientWithHTTP(cfg Config, httpClient HTTPDoer) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// MaxAttempts is the initial attempt plus the configured retries.
func (c *Client) MaxAttempts() int {
	return c.cfg.MaxRetries + 1
}

// Send posts the payload, retrying transient failures up to the configured budget.
func (c *Client) Send(ctx context.Context, p Payload) (*Result, error) {
	body, contentType, err := buildMultipart(p)
	if err != nil {
		return nil, &DeliveryError{Message: "failed to build webhook payload", Err: err}
	}

	maxAttempts := c.MaxAttempts()
	var lastErr *DeliveryError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
				lastErr.Err = errors.Join(lastErr.Err, err)
				return nil, lastErr
			}
		}

		resp, derr := c.post(ctx, body, contentType)
		if derr != nil {
			derr.Attempts = attempt
			lastErr = derr
			telemetry.AddBreadcrumb(ctx, "webhook", fmt.Sprintf("attempt %d/%d failed: %v", attempt, maxAttempts, derr))
			if !derr.Retryable() {
				return nil, derr
			}
			if attempt < maxAttempts {
				log.Printf("webhook: document %s attempt %d/%d failed: %v; retrying in %s",
					p.DocumentID, attempt, maxAttempts, derr, c.cfg.RetryDelay)
			}
			continue
		}

		result, err := readResult(resp)
		if err != nil {
			return nil, &ResponseError{StatusCode: resp.StatusCode, Attempts: attempt, Err: err}
		}
		result.Attempts = attempt
		return result, nil
	}

	return nil, lastErr
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) (*response, *DeliveryError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &DeliveryError{Message: "failed to create webhook request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DeliveryError{Message: "webhook request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &DeliveryError{Message: "failed to read webhook response", Err: err}
	}

	out := &response{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DeliveryError{StatusCode: resp.StatusCode, Message: out.errorMessage()}
	}
	return out, nil
}

type response struct {
	StatusCode  int
	Status      string
	ContentType string
	Body        []byte
}

func (r *response) isJSON() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "application/json")
}

// errorMessage prefers a message or error field from a JSON body.
func (r *response) errorMessage() string {
	if r.isJSON() {
		var body struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(r.Body, &body); err == nil {
			if body.Message != "" {
				return body.Message
			}
			if body.Error != "" {
				return body.Error
			}
		}
	}
	status := strings.TrimSpace(strings.TrimPrefix(r.Status, fmt.Sprintf("%d", r.StatusCode)))
	if status == "" {
		status = http.StatusText(r.StatusCode)
	}
	return fmt.Sprintf("webhook responded %d %s", r.StatusCode, status)
}

func readResult(r *response) (*Result, error) {
	result := &Result{StatusCode: r.StatusCode}

	if !r.isJSON() {
		result.Response = map[string]any{"message": string(r.Body)}
		return result, nil
	}

	var decoded any
	if err := json.Unmarshal(r.Body, &decoded); err != nil {
		return nil, err
	}
	if obj, ok := decoded.(map[string]any); ok {
		result.Response = obj
	} else {
		result.Response = map[string]any{"data": decoded}
	}
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
