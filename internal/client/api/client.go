// Package api is the device's HTTP client for the attendance backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/site-visit-go/internal/domain/punch"
	"github.com/cmlabs-hris/site-visit-go/internal/domain/sitevisit"
	"golang.org/x/oauth2"
)

const (
	DefaultTimeout = 10 * time.Second

	sessionEventPath = "/api/site/session/event/"
	sessionPath      = "/api/site/session/%s/"

	maxBodyBytes = 1 << 20
)

type Options struct {
	BaseURL string
	// Timeout bounds every call. Zero means DefaultTimeout.
	Timeout time.Duration
	// Token is sent as a bearer token when set.
	Token string
	// HTTPClient replaces the default transport; its Timeout is overwritten.
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: opts.Token,
			TokenType:   "Bearer",
		}))
	} else {
		copied := *httpClient
		httpClient = &copied
	}
	httpClient.Timeout = timeout

	return &Client{baseURL: base.String(), http: httpClient}, nil
}

// RemoteError is returned for every failed call. Kind is sitevisit.ErrTransport
// when the backend could not be reached and sitevisit.ErrValidation when it
// answered with a rejection.
type RemoteError struct {
	Kind       error
	StatusCode int
	Message    string
	cause      error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

func transportError(err error) *RemoteError {
	return &RemoteError{
		Kind:    sitevisit.ErrTransport,
		Message: "network error: " + err.Error(),
		cause:   err,
	}
}

func rejected(status int, message string) *RemoteError {
	return &RemoteError{Kind: sitevisit.ErrValidation, StatusCode: status, Message: message}
}

// PostSessionEvent submits one site visit event.
func (c *Client) PostSessionEvent(ctx context.Context, req sitevisit.EventRequest) (sitevisit.EventResponse, error) {
	var resp sitevisit.EventResponse
	if err := c.do(ctx, http.MethodPost, sessionEventPath, req, &resp); err != nil {
		return sitevisit.EventResponse{}, err
	}
	if !resp.Success {
		return sitevisit.EventResponse{}, rejected(http.StatusOK, "site event was not accepted")
	}
	return resp, nil
}

// GetSession fetches the server's record of a site session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (sitevisit.SessionEnvelope, error) {
	var resp sitevisit.SessionEnvelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(sessionPath, url.PathEscape(sessionID)), nil, &resp); err != nil {
		return sitevisit.SessionEnvelope{}, err
	}
	if !resp.Success {
		return sitevisit.SessionEnvelope{}, rejected(http.StatusOK, "site session could not be loaded")
	}
	return resp, nil
}

type punchEnvelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    punch.Response `json:"data"`
}

// PostPunch submits a punch or break event to endpoint (see punch.Endpoint).
func (c *Client) PostPunch(ctx context.Context, endpoint string, req punch.Request) (punch.Response, error) {
	var resp punchEnvelope
	if err := c.do(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return punch.Response{}, err
	}
	if !resp.Success {
		return punch.Response{}, rejected(http.StatusOK, "punch was not accepted")
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return transportError(err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		message := ExtractErrorMessage(data)
		if message == "" {
			message = fmt.Sprintf("request failed with status %d", res.StatusCode)
		}
		remote := rejected(res.StatusCode, message)
		if res.StatusCode == http.StatusConflict {
			if id := conflictingSessionID(data); id != "" {
				remote.cause = &sitevisit.ActiveSessionError{SessionID: id}
			}
		}
		return remote
	}

	if err := json.Unmarshal(data, out); err != nil {
		return rejected(res.StatusCode, "unexpected response from server")
	}
	return nil
}

// ExtractErrorMessage returns the message of an error body, trying in order: a
// bare JSON string, an "error" string, an "error" object with message and
// details, a "detail" field, and finally the body itself.
func ExtractErrorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(trimmed, &s) == nil {
		return s
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(trimmed, &obj) != nil {
		return string(trimmed)
	}

	if raw, ok := obj["error"]; ok {
		var msg string
		if json.Unmarshal(raw, &msg) == nil && msg != "" {
			return msg
		}
		var detail struct {
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		}
		if json.Unmarshal(raw, &detail) == nil && detail.Message != "" {
			return withDetails(detail.Message, detail.Details)
		}
	}

	if raw, ok := obj["detail"]; ok {
		var msg string
		if json.Unmarshal(raw, &msg) == nil {
			return msg
		}
		return string(raw)
	}

	return string(trimmed)
}

// conflictingSessionID reads error.details.session_id from a conflict body.
func conflictingSessionID(body []byte) string {
	var payload struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Error.Details["session_id"]
}

func withDetails(message string, details map[string]string) string {
	if len(details) == 0 {
		return message
	}
	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, details[field])
	}
	return message + ": " + strings.Join(parts, "; ")
}

// IsTimeout reports whether err is a transport failure caused by the call timeout.
func IsTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}
