// Package geo resolves US zip codes to a city and state. The engine uses it
// to fill the City/State slots the moment a zip arrives, instead of making
// the customer spell them out.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotFound means the zip code is well-formed but matches no known place.
var ErrNotFound = errors.New("no match for postal code")

// ErrInvalidZip means the input is not a 5-digit zip code at all.
var ErrInvalidZip = errors.New("invalid postal code")

// Location is a resolved place.
type Location struct {
	City  string
	State string // 2-letter code
}

// Geocoder resolves a zip code. Implementations must signal failure through
// the error return and never panic on malformed input.
type Geocoder interface {
	Lookup(ctx context.Context, zip string) (*Location, error)
}

// HTTPGeocoder queries a zippopotam-style endpoint: GET {endpoint}/us/{zip}.
type HTTPGeocoder struct {
	Endpoint string
	client   *http.Client
}

// NewHTTPGeocoder builds a geocoder. An empty endpoint uses the public
// zippopotam service.
func NewHTTPGeocoder(endpoint string) *HTTPGeocoder {
	if endpoint == "" {
		endpoint = "https://api.zippopotam.us"
	}
	return &HTTPGeocoder{
		Endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type zipResponse struct {
	Places []struct {
		PlaceName string `json:"place name"`
		StateAbbr string `json:"state abbreviation"`
	} `json:"places"`
}

// Lookup implements Geocoder.
func (g *HTTPGeocoder) Lookup(ctx context.Context, zip string) (*Location, error) {
	if !validZip(zip) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZip, zip)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Endpoint+"/us/"+zip, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zip lookup: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, zip)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("zip lookup: unexpected status %s", resp.Status)
	}
	var decoded zipResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("zip lookup: %w", err)
	}
	if len(decoded.Places) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, zip)
	}
	return &Location{
		City:  decoded.Places[0].PlaceName,
		State: decoded.Places[0].StateAbbr,
	}, nil
}

func validZip(zip string) bool {
	if len(zip) != 5 {
		return false
	}
	for _, r := range zip {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
