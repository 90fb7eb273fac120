package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnauthorized is returned when the upstream API rejects the bearer token.
// Callers treat it as a global session teardown, not a per-call failure.
var ErrUnauthorized = errors.New("api: unauthorized")

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// Client is a typed wrapper over the upstream fleet REST API. It attaches the
// session's bearer token to every request and reports a 401 from any endpoint
// through the OnUnauthorized hook before returning ErrUnauthorized.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session

	// OnUnauthorized is invoked once per request that came back 401. The
	// default wiring clears the session so the next page load redirects to
	// sign-in.
	OnUnauthorized func()
}

func NewClient(baseURL string, session *Session) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    session,
	}
	c.OnUnauthorized = session.Clear
	return c
}

// Session returns the session state this client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do issues a request with the session token attached, decoding a JSON
// response body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.OnUnauthorized != nil {
			c.OnUnauthorized()
		}
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil {
			if eb.Error != "" {
				msg = eb.Error
			} else if eb.Message != "" {
				msg = eb.Message
			}
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
