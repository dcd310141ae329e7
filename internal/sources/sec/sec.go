// Package sec is the EDGAR client: XBRL company facts, submission
// histories, and filing bodies. It is the primary fundamentals source.
package sec

import (
	"context"
	"fmt"
	"strings"

	"github.com/equityscope/equityscope/internal/cache"
	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

const (
	defaultBaseURL = "https://data.sec.gov"
	archivesURL    = "https://www.sec.gov/Archives"
)

// Client fetches EDGAR documents, caching facts and submissions under
// the filing-body TTL so a full basket run hits the wire once per CIK.
type Client struct {
	fetcher   *fetch.Client
	userAgent string
	baseURL   string
	archives  string

	facts       *cache.TTLCache[*CompanyFacts]
	submissions *cache.TTLCache[*Submissions]
	documents   *cache.TTLCache[string]
}

// NewClient builds an EDGAR client. EDGAR requires a descriptive
// User-Agent with a contact address.
func NewClient(fetcher *fetch.Client, userAgent string) *Client {
	return &Client{
		fetcher:     fetcher,
		userAgent:   userAgent,
		baseURL:     defaultBaseURL,
		archives:    archivesURL,
		facts:       cache.NewTTL[*CompanyFacts](cache.FilingBodyTTL),
		submissions: cache.NewTTL[*Submissions](cache.FilingBodyTTL),
		documents:   cache.NewTTL[string](cache.FilingBodyTTL),
	}
}

// SetBaseURLs overrides both endpoint bases. Tests point them at a
// local server.
func (c *Client) SetBaseURLs(data, archives string) {
	c.baseURL = data
	c.archives = archives
}

func (c *Client) headers() map[string]string {
	return map[string]string{"User-Agent": c.userAgent}
}

// Fact is one reported XBRL value.
type Fact struct {
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Filed string  `json:"filed"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"`
	Form  string  `json:"form"`
}

// Concept is a tagged concept with its unit-keyed fact lists.
type Concept struct {
	Units map[string][]Fact `json:"units"`
}

// CompanyFacts is the companyfacts document for one CIK.
type CompanyFacts struct {
	CIK        int64                         `json:"cik"`
	EntityName string                        `json:"entityName"`
	Facts      map[string]map[string]Concept `json:"facts"`
}

// USGAAP returns the us-gaap taxonomy facts.
func (cf *CompanyFacts) USGAAP() map[string]Concept {
	return cf.Facts["us-gaap"]
}

// CompanyFacts fetches the XBRL facts for a zero-padded CIK.
func (c *Client) CompanyFacts(ctx context.Context, cik string) (*CompanyFacts, error) {
	return c.facts.GetOrCompute("facts:"+cik, func() (*CompanyFacts, error) {
		endpoint := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.baseURL, cik)

		var facts CompanyFacts
		if err := c.fetcher.DecodeJSON(ctx, ratelimit.ProviderSECEdgar, endpoint, c.headers(), &facts); err != nil {
			return nil, err
		}

		return &facts, nil
	})
}

// RecentFilings is EDGAR's column-oriented recent-filings table.
type RecentFilings struct {
	Form            []string `json:"form"`
	FilingDate      []string `json:"filingDate"`
	AccessionNumber []string `json:"accessionNumber"`
	PrimaryDocument []string `json:"primaryDocument"`
	Items           []string `json:"items"`
}

// Submissions is the submission history for one CIK.
type Submissions struct {
	CIK                  string   `json:"cik"`
	Name                 string   `json:"name"`
	SIC                  string   `json:"sic"`
	SICDescription       string   `json:"sicDescription"`
	StateOfIncorporation string   `json:"stateOfIncorporation"`
	FiscalYearEnd        string   `json:"fiscalYearEnd"`
	Tickers              []string `json:"tickers"`
	Exchanges            []string `json:"exchanges"`
	Filings struct {
		Recent RecentFilings `json:"recent"`
	} `json:"filings"`
}

// Filing is one row of the recent-filings table.
type Filing struct {
	Form            string
	FilingDate      string
	AccessionNumber string
	PrimaryDocument string
	Items           []string
}

// Recent flattens the column-oriented table into rows.
func (s *Submissions) Recent() []Filing {
	recent := s.Filings.Recent
	filings := make([]Filing, 0, len(recent.Form))

	for i, form := range recent.Form {
		filing := Filing{Form: form}

		if i < len(recent.FilingDate) {
			filing.FilingDate = recent.FilingDate[i]
		}

		if i < len(recent.AccessionNumber) {
			filing.AccessionNumber = recent.AccessionNumber[i]
		}

		if i < len(recent.PrimaryDocument) {
			filing.PrimaryDocument = recent.PrimaryDocument[i]
		}

		if i < len(recent.Items) && recent.Items[i] != "" {
			for _, item := range strings.Split(recent.Items[i], ",") {
				if trimmed := strings.TrimSpace(item); trimmed != "" {
					filing.Items = append(filing.Items, trimmed)
				}
			}
		}

		filings = append(filings, filing)
	}

	return filings
}

// ByForm returns up to limit filings matching any of the given forms,
// newest first (EDGAR orders the table that way already).
func (s *Submissions) ByForm(limit int, forms ...string) []Filing {
	var matched []Filing

	for _, filing := range s.Recent() {
		for _, form := range forms {
			if filing.Form == form {
				matched = append(matched, filing)

				break
			}
		}

		if limit > 0 && len(matched) >= limit {
			break
		}
	}

	return matched
}

// Submissions fetches the filing history for a zero-padded CIK.
func (c *Client) Submissions(ctx context.Context, cik string) (*Submissions, error) {
	return c.submissions.GetOrCompute("subs:"+cik, func() (*Submissions, error) {
		endpoint := fmt.Sprintf("%s/submissions/CIK%s.json", c.baseURL, cik)

		var subs Submissions
		if err := c.fetcher.DecodeJSON(ctx, ratelimit.ProviderSECEdgar, endpoint, c.headers(), &subs); err != nil {
			return nil, err
		}

		return &subs, nil
	})
}

// DocumentURL builds the archive URL for a filing's primary document.
func (c *Client) DocumentURL(cik string, filing Filing) string {
	accession := strings.ReplaceAll(filing.AccessionNumber, "-", "")

	return fmt.Sprintf("%s/edgar/data/%s/%s/%s",
		c.archives, strings.TrimLeft(cik, "0"), accession, filing.PrimaryDocument)
}

// Document fetches a filing body as text. Bodies are large; the cache
// keeps the last few under the filing TTL.
func (c *Client) Document(ctx context.Context, url string) (string, error) {
	return c.documents.GetOrCompute("doc:"+url, func() (string, error) {
		body, err := c.fetcher.Get(ctx, ratelimit.ProviderSECEdgar, url, c.headers())
		if err != nil {
			return "", err
		}

		return string(body), nil
	})
}
