package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
)

const (
	defaultTimeout = 5 * time.Second
	maxBannerSize  = 5 << 20
	userAgent      = "ticketgate-client/1"
)

// Client talks to a ticketgate server on behalf of a scanner device, and fetches
// banner images for the issuer.
type Client struct {
	client  *http.Client
	cache   *cache.Cache
	baseURL string
	token   string
}

func New(baseURL, token string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:  &httpClient,
		cache:   cache.New(10*time.Minute, 15*time.Minute),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" && c.baseURL != "" && strings.HasPrefix(req.URL.String(), c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) HttpRequest(ctx context.Context, method, path string, body, response any) error {
	if c.baseURL == "" {
		return fmt.Errorf("server url is not configured")
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type SyncRequest struct {
	Records []domain.ScanRecord `json:"records"`
}

type SyncResponse struct {
	Results []domain.SyncResult `json:"results"`
}

// SyncScans delivers queued records in order and returns the per record results.
func (c *Client) SyncScans(ctx context.Context, records []domain.ScanRecord) ([]domain.SyncResult, error) {
	var res SyncResponse
	err := c.HttpRequest(ctx, http.MethodPost, "/api/v1/sync", SyncRequest{Records: records}, &res)
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

type VerifyRequest struct {
	EventID string             `json:"eventId"`
	Raw     string             `json:"raw"`
	Anchor  *ticketgate.Anchor `json:"anchor,omitempty"`
}

// Verify asks the server to classify a scan against the shared registry. The
// returned record is already in the ledger.
func (c *Client) Verify(ctx context.Context, eventID, raw string, anchor *ticketgate.Anchor) (domain.ScanRecord, error) {
	var record domain.ScanRecord
	err := c.HttpRequest(ctx, http.MethodPost, "/api/v1/verify", VerifyRequest{EventID: eventID, Raw: raw, Anchor: anchor}, &record)
	if err != nil {
		return domain.ScanRecord{}, err
	}
	return record, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.HttpRequest(ctx, http.MethodGet, "/health", nil, nil)
}

// FetchBanner downloads an event banner. Successful downloads are cached.
func (c *Client) FetchBanner(ctx context.Context, url string) ([]byte, error) {
	cacheKey := "banner:" + url
	if x, found := c.cache.Get(cacheKey); found {
		return x.([]byte), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch banner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBannerSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read banner: %w", err)
	}
	if len(data) > maxBannerSize {
		return nil, fmt.Errorf("banner larger than %d bytes", maxBannerSize)
	}

	c.cache.Set(cacheKey, data, cache.DefaultExpiration)
	return data, nil
}
