package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Session holds the upstream bearer token and the signed-in principal. It is
// the single place session state lives; components receive it explicitly
// rather than reading ambient globals, so tests can substitute a fresh one.
type Session struct {
	mu     sync.RWMutex
	token  string
	userID string
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) Set(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userID = userID
}

// Clear tears the session down. Invoked on explicit logout and on any 401
// from the upstream API.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userID = ""
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login exchanges credentials for a bearer token and stores it in the
// session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return err
	}
	c.session.Set(resp.Token, resp.UserID)
	return nil
}

type feedTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FeedToken asks the session endpoint for a short-lived token used to
// authenticate the status feed connection.
func (c *Client) FeedToken(ctx context.Context) (string, time.Time, error) {
	var resp feedTokenResponse
	if err := c.do(ctx, http.MethodGet, "/auth/session/feed-token", nil, &resp); err != nil {
		return "", time.Time{}, err
	}
	return resp.Token, resp.ExpiresAt, nil
}

type feedTokenSource struct {
	client *Client
}

func (ts *feedTokenSource) Token() (*oauth2.Token, error) {
	token, expiry, err := ts.client.FeedToken(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, Expiry: expiry}, nil
}

// FeedTokenSource returns a caching token source for the status feed. The
// underlying token is short-lived; ReuseTokenSource refetches it only once
// it has expired.
func (c *Client) FeedTokenSource() oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &feedTokenSource{client: c})
}
