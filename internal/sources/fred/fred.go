// Package fred fetches economic time series from the St. Louis Fed
// (FRED) API. The macro and volatility baskets consume it.
package fred

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

// ErrNoKey is returned when no API key is configured; callers fall back
// to secondary sources or historical-average defaults.
var ErrNoKey = errors.New("fred: api key not configured")

// Series IDs used by the baskets.
const (
	SeriesGDPGrowth    = "A191RL1Q225SBEA"
	SeriesFedFunds     = "FEDFUNDS"
	SeriesCPI          = "CPIAUCSL"
	SeriesUnemployment = "UNRATE"
	SeriesVIX          = "VIXCLS"
	SeriesVXN          = "VXNCLS"
)

const defaultBaseURL = "https://api.stlouisfed.org/fred"

// Client is a FRED API client.
type Client struct {
	fetcher *fetch.Client
	apiKey  string
	baseURL string
}

// NewClient builds a FRED client; an empty key makes every call return
// ErrNoKey immediately.
func NewClient(fetcher *fetch.Client, apiKey string) *Client {
	return &Client{fetcher: fetcher, apiKey: apiKey, baseURL: defaultBaseURL}
}

// SetBaseURL overrides the endpoint base. Tests point it at a local server.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// Observation is one dated value. FRED encodes missing values as ".".
type Observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// Float parses the observation value; false for FRED's "." placeholder.
func (o Observation) Float() (float64, bool) {
	if o.Value == "" || o.Value == "." {
		return 0, false
	}

	v, err := strconv.ParseFloat(o.Value, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// Series is the observations for one series, newest first.
type Series struct {
	ID           string
	Observations []Observation
}

// Latest returns the newest valid observation.
func (s *Series) Latest() (float64, string, bool) {
	for _, obs := range s.Observations {
		if v, ok := obs.Float(); ok {
			return v, obs.Date, true
		}
	}

	return 0, "", false
}

// Previous returns the first valid observation after the latest one.
func (s *Series) Previous() (float64, bool) {
	seen := false

	for _, obs := range s.Observations {
		v, ok := obs.Float()
		if !ok {
			continue
		}

		if !seen {
			seen = true

			continue
		}

		return v, true
	}

	return 0, false
}

// At returns the value at the given offset among valid observations;
// offset 0 is the latest. Used for CPI year-over-year (offset 11).
func (s *Series) At(offset int) (float64, bool) {
	idx := 0

	for _, obs := range s.Observations {
		v, ok := obs.Float()
		if !ok {
			continue
		}

		if idx == offset {
			return v, true
		}

		idx++
	}

	return 0, false
}

type observationsEnvelope struct {
	Observations []Observation `json:"observations"`
}

// Observations fetches up to limit observations for seriesID, newest
// first.
func (c *Client) Observations(ctx context.Context, seriesID string, limit int) (*Series, error) {
	if c.apiKey == "" {
		return nil, ErrNoKey
	}

	query := url.Values{
		"series_id":  {seriesID},
		"api_key":    {c.apiKey},
		"file_type":  {"json"},
		"sort_order": {"desc"},
		"limit":      {strconv.Itoa(limit)},
	}
	endpoint := fmt.Sprintf("%s/series/observations?%s", c.baseURL, query.Encode())

	var envelope observationsEnvelope
	if err := c.fetcher.DecodeJSON(ctx, ratelimit.ProviderFRED, endpoint, nil, &envelope); err != nil {
		return nil, err
	}

	if len(envelope.Observations) == 0 {
		return nil, fmt.Errorf("fred: no observations for %s", seriesID)
	}

	return &Series{ID: seriesID, Observations: envelope.Observations}, nil
}
