// Package auth provides the HTTP login client. The backend issues a
// session token over plain HTTP; the token is then presented on the
// websocket channel during the authenticate handshake.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client talks to the backend's auth endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates an auth client. If baseURL is empty, uses
// INKSTONE_AUTH_URL env var or defaults to localhost:8080.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("INKSTONE_AUTH_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// User is the backend's account record.
type User struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success      bool   `json:"success"`
	SessionToken string `json:"session_token"`
	User         *User  `json:"user,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, *User, error) {
	reqBody, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/login", bytes.NewReader(reqBody))
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read response: %w", err)
	}

	var loginResp loginResponse
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return "", nil, fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}
	if !loginResp.Success || loginResp.SessionToken == "" {
		reason := loginResp.Error
		if reason == "" {
			reason = resp.Status
		}
		return "", nil, fmt.Errorf("login rejected: %s", reason)
	}
	return loginResp.SessionToken, loginResp.User, nil
}

// Verify checks a stored token against the profile endpoint. A false
// return with nil error means the token is no longer valid.
func (c *Client) Verify(ctx context.Context, token string) (bool, *User, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/profile", nil)
	if err != nil {
		return false, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, nil, fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return false, nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return true, &user, nil
}
