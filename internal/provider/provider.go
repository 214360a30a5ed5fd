package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

var ErrTemporary = errors.New("temporary provider error")

// Provider is the upstream flight search aggregator.
type Provider interface {
	Name() string
	Search(ctx context.Context, params domain.SearchParams) ([]domain.FlightOffer, error)
}

// HTTPProvider calls an aggregator that accepts the search params as JSON and
// answers {"data": [offer, ...]}.
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPProvider(name, baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *HTTPProvider) Name() string {
	return p.name
}

type searchResponse struct {
	Data []json.RawMessage `json:"data"`
}

func (p *HTTPProvider) Search(ctx context.Context, params domain.SearchParams) ([]domain.FlightOffer, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/flights/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemporary, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status=%d", ErrTemporary, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider %s: status=%d", p.name, resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	offers := make([]domain.FlightOffer, 0, len(out.Data))
	for _, raw := range out.Data {
		var offer domain.FlightOffer
		if err := json.Unmarshal(raw, &offer); err != nil {
			return nil, fmt.Errorf("decode offer: %w", err)
		}
		offer.Raw = raw
		offers = append(offers, offer)
	}
	return offers, nil
}

var _ Provider = (*HTTPProvider)(nil)
