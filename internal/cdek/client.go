package cdek

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenSkew is subtracted from the token lifetime so a token is refreshed
// before the remote side considers it expired.
const tokenSkew = 30 * time.Second

// Client talks to the CDEK REST API using client-credentials OAuth. The
// bearer token is cached and refreshed lazily; the mutex makes a concurrent
// refresh single-flight. A redundant refresh is harmless.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient builds a CDEK API client.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Office is a delivery point as reported by the API.
type Office struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Location struct {
		Address   string  `json:"address"`
		City      string  `json:"city"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

// OfficesQuery filters the delivery-point listing.
type OfficesQuery struct {
	City        string
	Type        string
	CountryCode string
}

// Offices lists delivery points matching the query.
func (c *Client) Offices(ctx context.Context, q OfficesQuery) ([]Office, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	qs := url.Values{}
	if q.City != "" {
		qs.Set("city", q.City)
	}
	if q.Type != "" {
		qs.Set("type", q.Type)
	}
	if q.CountryCode != "" {
		qs.Set("country_code", q.CountryCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/deliverypoints?"+qs.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cdek deliverypoints: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("deliverypoints", resp)
	}

	var offices []Office
	if err := json.NewDecoder(resp.Body).Decode(&offices); err != nil {
		return nil, fmt.Errorf("cdek deliverypoints decode: %w", err)
	}
	return offices, nil
}

// TrackingResult is the raw tracking payload.
type TrackingResult struct {
	Items []struct {
		Status string `json:"status"`
		Events []struct {
			Date        time.Time `json:"date"`
			Status      string    `json:"status"`
			Description string    `json:"description"`
		} `json:"events"`
	} `json:"items"`
}

// TrackShipment returns the raw tracking payload for a shipment number.
func (c *Client) TrackShipment(ctx context.Context, trackingNumber string) (TrackingResult, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return TrackingResult{}, err
	}

	u := c.baseURL + "/tracking?cdek_number=" + url.QueryEscape(trackingNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return TrackingResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TrackingResult{}, fmt.Errorf("cdek tracking: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TrackingResult{}, apiError("tracking", resp)
	}

	var tr TrackingResult
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return TrackingResult{}, fmt.Errorf("cdek tracking decode: %w", err)
	}
	return tr, nil
}

// getToken returns the cached token, refreshing it when less than tokenSkew
// of its lifetime remains.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSkew)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cdek token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("token", resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("cdek token decode: %w", err)
	}

	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.token, nil
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("cdek %s: status %d %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}
