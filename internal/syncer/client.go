package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/greentrack/greentrack-go/internal/models"
)

// TripPayload is the upload representation of one completed trip. The client
// UUID doubles as the idempotence key on the backend.
type TripPayload struct {
	ClientID       string              `json:"clientId"`
	Type           string              `json:"type"`
	IsManual       bool                `json:"isManual"`
	StartTimestamp int64               `json:"startTimestamp"`
	EndTimestamp   int64               `json:"endTimestamp"`
	Route          []models.RoutePoint `json:"route"`
	ElevationGain  *float64            `json:"elevationGain,omitempty"`
	Notes          string              `json:"notes,omitempty"`
}

// uploadResponse is the backend's acknowledgement of a stored trip.
type uploadResponse struct {
	ID int64 `json:"id"`
}

// BatchResult is the per-trip outcome of a batch upload.
type BatchResult struct {
	ClientID  string
	BackendID int64
	Err       error
}

// Backend is the upload surface the sync service talks to. Split out so
// tests can substitute a fake without a listening server.
type Backend interface {
	Ping(ctx context.Context) error
	UploadTrip(ctx context.Context, payload TripPayload) (int64, error)
	UploadBatch(ctx context.Context, payloads []TripPayload) ([]BatchResult, error)
}

// Client talks to the trip backend over HTTP with bearer-token auth.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
}

// NewClient creates a backend client.
func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{HTTPClient: httpClient, BaseURL: baseURL, Token: token}
}

// Ping probes backend reachability. A non-nil return wraps ErrNetwork.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}
	return nil
}

// UploadTrip posts a single trip and returns the backend-assigned id.
func (c *Client) UploadTrip(ctx context.Context, payload TripPayload) (int64, error) {
	var out uploadResponse
	if err := c.post(ctx, "/api/v1/trips", payload, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// UploadBatch posts up to a page of trips in one request. The backend
// acknowledges each trip independently so one rejected trip does not sink
// the batch.
func (c *Client) UploadBatch(ctx context.Context, payloads []TripPayload) ([]BatchResult, error) {
	var out struct {
		Results []struct {
			ClientID string `json:"clientId"`
			ID       int64  `json:"id"`
			Error    string `json:"error,omitempty"`
		} `json:"results"`
	}
	if err := c.post(ctx, "/api/v1/trips/batch", map[string]interface{}{"trips": payloads}, &out); err != nil {
		return nil, err
	}

	results := make([]BatchResult, 0, len(out.Results))
	for _, r := range out.Results {
		res := BatchResult{ClientID: r.ClientID, BackendID: r.ID}
		if r.Error != "" {
			res.Err = fmt.Errorf("backend rejected trip: %s", r.Error)
		}
		results = append(results, res)
	}
	return results, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: status %d", ErrDuplicate, resp.StatusCode)
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrNetwork, resp.StatusCode, string(body))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
}
