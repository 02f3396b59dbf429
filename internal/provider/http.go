package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dreamware/shipquote/internal/quote"
)

// CarrierQuoteRequest is the body POSTed to a remote carrier's /quote.
type CarrierQuoteRequest struct {
	Destination string  `json:"destination"`
	WeightKg    float64 `json:"weightKg"`
}

// CarrierQuoteResponse is the body a remote carrier answers /quote with.
type CarrierQuoteResponse struct {
	Currency      string  `json:"currency"`
	TransportMode string  `json:"transportMode"`
	Price         float64 `json:"price"`
	MinDays       int     `json:"minDays"`
	MaxDays       int     `json:"maxDays"`
}

// HTTPCarrier is a Provider backed by a remote carrier service.
type HTTPCarrier struct {
	client  *http.Client
	baseURL string
}

// NewHTTPCarrier creates a carrier client for baseURL. A nil client gets a
// default one with a 10 second timeout; callers still bound each call with
// their own deadline.
func NewHTTPCarrier(baseURL string, client *http.Client) *HTTPCarrier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPCarrier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Quote implements Provider.
func (c *HTTPCarrier) Quote(ctx context.Context, weightKg float64, destination string) (quote.Quote, error) {
	var resp CarrierQuoteResponse
	err := c.postJSON(ctx, c.baseURL+"/quote", CarrierQuoteRequest{WeightKg: weightKg, Destination: destination}, &resp)
	if err != nil {
		return quote.Quote{}, err
	}
	return quote.NewQuote("", "", resp.Price, resp.Currency, resp.MinDays, resp.MaxDays, resp.TransportMode)
}

// Probe implements Prober with a GET on the carrier's /health endpoint.
func (c *HTTPCarrier) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *HTTPCarrier) postJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http %s: %d", ErrUnavailable, url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
