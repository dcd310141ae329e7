package ticker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/equityscope/equityscope/internal/cache"
	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

// ErrCIKNotFound is returned when SEC EDGAR has no CIK for the ticker.
var ErrCIKNotFound = errors.New("ticker: CIK not found")

const companyTickersURL = "https://www.sec.gov/files/company_tickers.json"

// CIKResolver maps ticker symbols to 10-digit SEC CIK numbers using the
// EDGAR company directory, caching hits under the shared identifier TTL.
type CIKResolver struct {
	client    *fetch.Client
	cache     *cache.TTLCache[string]
	userAgent string
	url       string
}

// NewCIKResolver builds a resolver on top of the shared fetch client.
// The user agent is mandatory for EDGAR; the store may be nil in tests.
func NewCIKResolver(client *fetch.Client, store *cache.Store, userAgent string) *CIKResolver {
	identifiers := (*cache.TTLCache[string])(nil)
	if store != nil {
		identifiers = store.Identifiers
	}

	if identifiers == nil {
		identifiers = cache.NewTTL[string](cache.IdentifierTTL)
	}

	return &CIKResolver{
		client:    client,
		cache:     identifiers,
		userAgent: userAgent,
		url:       companyTickersURL,
	}
}

type companyEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Resolve returns the zero-padded CIK for symbol, fetching the EDGAR
// directory on a cache miss. The directory is a single document keyed by
// row index, so one fetch warms the cache for every listed company.
func (r *CIKResolver) Resolve(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", ErrCIKNotFound
	}

	if cik, ok := r.cache.Get(cikKey(symbol)); ok {
		return cik, nil
	}

	var directory map[string]companyEntry

	headers := map[string]string{"User-Agent": r.userAgent}
	if err := r.client.DecodeJSON(ctx, ratelimit.ProviderSECEdgar, r.url, headers, &directory); err != nil {
		return "", fmt.Errorf("fetch company directory: %w", err)
	}

	for _, entry := range directory {
		r.cache.Set(cikKey(strings.ToUpper(entry.Ticker)), FormatCIK(entry.CIK))
	}

	if cik, ok := r.cache.Get(cikKey(symbol)); ok {
		return cik, nil
	}

	return "", fmt.Errorf("%w: %s", ErrCIKNotFound, symbol)
}

// SetDirectoryURL overrides the EDGAR directory endpoint. Tests point it
// at a local server.
func (r *CIKResolver) SetDirectoryURL(url string) { r.url = url }

func cikKey(symbol string) string { return "cik:" + symbol }

// FormatCIK zero-pads a CIK to the 10 digits EDGAR endpoints expect.
func FormatCIK(cik int64) string {
	return fmt.Sprintf("%010d", cik)
}
