// Package client provides a Go client for the stepwise HTTP API.
//
// Usage:
//
//	c := client.New("https://stepwise.internal", client.WithOwner("usr_42"))
//
//	wf, err := c.CreateWorkflow(ctx, api.CreateWorkflowRequest{SkillType: "quality_gate"})
//	wf, err = c.StartWorkflow(ctx, wf.ID)
//	steps, err := c.Steps(ctx, wf.ID)
//
//	res, err := c.CompleteStep(ctx, wf.ID, steps[0].ID, payload)
//	var pe *client.Error
//	if errors.As(err, &pe) && pe.StatusCode == http.StatusUnprocessableEntity {
//	    for _, issue := range pe.Problem.Errors { ... }
//	}
//
// Reads are retried on transport errors and 503 responses when retries are
// enabled with [WithRetry]. Writes are never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/api"
	"github.com/xraph/stepwise/backoff"
)

// Client talks to one stepwise server.
type Client struct {
	baseURL string
	owner   string
	http    *http.Client
	logger  *slog.Logger

	maxRetries int
	backoff    backoff.Strategy
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  slog.Default(),
		backoff: backoff.DefaultStrategy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error is a non-2xx response decoded from its problem document.
type Error struct {
	StatusCode int
	Problem    api.Problem
}

func (e *Error) Error() string {
	if e.Problem.Detail != "" {
		return fmt.Sprintf("stepwise: %d %s: %s", e.StatusCode, e.Problem.Title, e.Problem.Detail)
	}
	return fmt.Sprintf("stepwise: %d %s", e.StatusCode, e.Problem.Title)
}

// Is maps statuses that identify exactly one failure class to the root
// sentinels.
func (e *Error) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusUnprocessableEntity:
		return target == stepwise.ErrStepValidation
	case http.StatusServiceUnavailable:
		return target == stepwise.ErrEngineUnavailable
	}
	return false
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

// do sends one request and decodes a JSON response into out when out is
// not nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = raw
	}

	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	for attempt := 0; ; attempt++ {
		err := c.roundTrip(ctx, method, path, payload, out)
		if err == nil || attempt >= retries || !retryable(err) {
			return err
		}
		c.logger.Debug("stepwise client: retrying",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
		if waitErr := backoff.Wait(ctx, c.backoff, attempt+1); waitErr != nil {
			return err
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.owner != "" {
		req.Header.Set(api.OwnerHeader, c.owner)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr.Problem); decodeErr != nil {
			apiErr.Problem.Title = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type transportError struct{ err error }

func (e *transportError) Error() string { return "stepwise: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return !errors.Is(te.err, context.Canceled) && !errors.Is(te.err, context.DeadlineExceeded)
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable
}
