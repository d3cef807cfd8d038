package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webmonitor/internal/config"

	"github.com/rs/zerolog/log"
)

// APIError is a failed API call. Message is the backend's error text when
// the response carried one.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// SiteInput is the body of a site create request.
type SiteInput struct {
	Name                 string `json:"name"`
	URL                  string `json:"url"`
	AutoMonitor          bool   `json:"auto_monitor"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// SitePatch is a partial site update. Nil fields are not sent.
type SitePatch struct {
	Name                 *string `json:"name,omitempty"`
	URL                  *string `json:"url,omitempty"`
	NotificationsEnabled *bool   `json:"notifications_enabled,omitempty"`
	AutoMonitor          *bool   `json:"auto_monitor,omitempty"`
}

// NotifyRequest is an out-of-band alert request.
type NotifyRequest struct {
	SiteID  int64  `json:"site_id"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client talks to the webmonitor REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API at cfg.APIBase.
func NewClient(cfg config.DashboardConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBase, "/"),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListSites fetches all sites.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var sites []Site
	if err := c.do(ctx, http.MethodGet, "/websites", nil, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// CheckSite triggers an immediate check and returns the updated site.
func (c *Client) CheckSite(ctx context.Context, id int64) (*Site, error) {
	var site Site
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/check/%d", id), nil, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// CreateSite adds a site.
func (c *Client) CreateSite(ctx context.Context, in SiteInput) (*Site, error) {
	var site Site
	if err := c.do(ctx, http.MethodPost, "/websites", in, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// UpdateSite applies a partial update.
func (c *Client) UpdateSite(ctx context.Context, id int64, patch SitePatch) (*Site, error) {
	var site Site
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/websites/%d", id), patch, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// DeleteSite removes a site and returns the remaining ones.
func (c *Client) DeleteSite(ctx context.Context, id int64) ([]Site, error) {
	var resp struct {
		Message string `json:"message"`
		Sites   []Site `json:"sites"`
	}
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/websites/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sites, nil
}

// Notify asks the backend to send an alert for a site.
func (c *Client) Notify(ctx context.Context, req NotifyRequest) error {
	return c.do(ctx, http.MethodPost, "/notify", req, nil)
}

// Login verifies credentials. A false result with a nil error means the
// credentials were rejected.
func (c *Client) Login(ctx context.Context, username, password string) (bool, error) {
	var resp struct {
		Success bool `json:"success"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// Stream reads the notification stream and calls fn with every message
// until ctx is done or the connection drops.
func (c *Client) Stream(ctx context.Context, fn func(message string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notifications/stream", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is long-lived; only ctx bounds it
	streamClient := &http.Client{Transport: c.http.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	var data []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				fn(strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("API call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}
