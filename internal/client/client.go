// Package client is a Go client for the habit tracker HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// User is the account as returned by the server.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Snapshot is one month of habit data. Payload is nil for a month that was
// never saved.
type Snapshot struct {
	ID      int64           `json:"id,omitempty"`
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Payload json.RawMessage `json:"payload"`
}

// AuthResponse is returned by every sign-in call.
type AuthResponse struct {
	User        User     `json:"user"`
	AccessToken string   `json:"access_token"`
	Storage     Snapshot `json:"storage"`
}

// Profile is the caller as the server sees them.
type Profile struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to one server. Sign-in calls remember the returned token for
// later requests. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a Client. A nil httpClient gets a 15 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken sets the bearer token, for example one saved from an earlier run.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	body := map[string]any{"email": email, "password": password}
	if name != "" {
		body["name"] = name
	}
	return c.authenticate(ctx, "/auth/register", body)
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

// GoogleLogin signs in with a Google ID token.
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/google", map[string]string{"idToken": idToken})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.AccessToken)
	return &res, nil
}

// Profile returns the signed-in caller.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Month reads one month without creating it.
func (c *Client) Month(ctx context.Context, year, month int) (*Snapshot, error) {
	var s Snapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/storage/%d/%d", year, month), nil, &s); err != nil {
		return nil, err
	}
	if string(s.Payload) == "null" {
		s.Payload = nil
	}
	return &s, nil
}

// Save replaces one month's payload.
func (c *Client) Save(ctx context.Context, year, month int, payload json.RawMessage) (*Snapshot, error) {
	body := Snapshot{Year: year, Month: month, Payload: payload}
	var s Snapshot
	if err := c.do(ctx, http.MethodPut, "/storage", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// InitMonth asks the server to fill an empty month with the default habits.
func (c *Client) InitMonth(ctx context.Context, year, month int) (*Snapshot, error) {
	var s Snapshot
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/storage/%d/%d/init", year, month), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SavedMonths lists the months of year that hold data.
func (c *Client) SavedMonths(ctx context.Context, year int) ([]int, error) {
	var res struct {
		Months []int `json:"months"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/storage/%d", year), nil, &res); err != nil {
		return nil, err
	}
	return res.Months, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
