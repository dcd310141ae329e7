// Package ticker resolves free-form user text into a stock ticker symbol
// and a cleaned display name, and maps tickers to SEC CIK numbers.
package ticker

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoMatch is returned when the input cannot be resolved to a ticker.
var ErrNoMatch = errors.New("ticker: no match for input")

// knownTickers maps lowercased company names to their primary listing.
// This is a convenience table for conversational input, not an exchange
// directory; anything not listed falls through to the ticker heuristic.
var knownTickers = map[string]string{
	// Tech
	"apple":       "AAPL",
	"microsoft":   "MSFT",
	"google":      "GOOGL",
	"alphabet":    "GOOGL",
	"amazon":      "AMZN",
	"meta":        "META",
	"facebook":    "META",
	"nvidia":      "NVDA",
	"tesla":       "TSLA",
	"netflix":     "NFLX",
	"adobe":       "ADBE",
	"salesforce":  "CRM",
	"oracle":      "ORCL",
	"intel":       "INTC",
	"amd":         "AMD",
	"ibm":         "IBM",
	"cisco":       "CSCO",
	"qualcomm":    "QCOM",
	"broadcom":    "AVGO",
	"paypal":      "PYPL",
	"shopify":     "SHOP",
	"uber":        "UBER",
	"airbnb":      "ABNB",
	"palantir":    "PLTR",
	"snowflake":   "SNOW",
	"crowdstrike": "CRWD",
	"datadog":     "DDOG",

	// Finance
	"jpmorgan":           "JPM",
	"jp morgan":          "JPM",
	"bank of america":    "BAC",
	"wells fargo":        "WFC",
	"goldman sachs":      "GS",
	"morgan stanley":     "MS",
	"citigroup":          "C",
	"visa":               "V",
	"mastercard":         "MA",
	"american express":   "AXP",
	"berkshire hathaway": "BRK.B",
	"blackrock":          "BLK",
	"charles schwab":     "SCHW",

	// Healthcare
	"johnson & johnson":    "JNJ",
	"johnson and johnson":  "JNJ",
	"pfizer":               "PFE",
	"unitedhealth":         "UNH",
	"eli lilly":            "LLY",
	"merck":                "MRK",
	"abbvie":               "ABBV",
	"bristol-myers squibb": "BMY",
	"amgen":                "AMGN",
	"gilead":               "GILD",
	"moderna":              "MRNA",
	"regeneron":            "REGN",
	"biogen":               "BIIB",
	"cvs health":           "CVS",

	// Consumer
	"walmart":            "WMT",
	"costco":             "COST",
	"home depot":         "HD",
	"target":             "TGT",
	"lowes":              "LOW",
	"nike":               "NKE",
	"starbucks":          "SBUX",
	"mcdonalds":          "MCD",
	"coca-cola":          "KO",
	"coca cola":          "KO",
	"pepsi":              "PEP",
	"pepsico":            "PEP",
	"procter & gamble":   "PG",
	"procter and gamble": "PG",
	"disney":             "DIS",

	// Industrial
	"boeing":           "BA",
	"caterpillar":      "CAT",
	"general electric": "GE",
	"3m":               "MMM",
	"honeywell":        "HON",
	"lockheed martin":  "LMT",
	"raytheon":         "RTX",
	"union pacific":    "UNP",
	"ups":              "UPS",
	"fedex":            "FDX",

	// Energy
	"exxon":          "XOM",
	"exxonmobil":     "XOM",
	"chevron":        "CVX",
	"conocophillips": "COP",
	"schlumberger":   "SLB",

	// Telecom
	"att":      "T",
	"at&t":     "T",
	"verizon":  "VZ",
	"t-mobile": "TMUS",

	// Automotive
	"ford":           "F",
	"general motors": "GM",
	"rivian":         "RIVN",
	"lucid":          "LCID",
}

var (
	bareTickerRe = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)
	nonAlphaRe   = regexp.MustCompile(`[^A-Za-z]`)
)

// Identity is a resolved company identity.
type Identity struct {
	Ticker      string
	CompanyName string
}

// lookupSuffixes are lowercased forms stripped before table lookup; the
// display-name cleaner in clean.go handles the cased forms.
var lookupSuffixes = []string{
	" incorporated", " inc.", " inc",
	" corporation", " corp.", " corp",
	" limited", " ltd.", " ltd",
	" llc", " plc",
	" companies", " company", " co.", " co",
	" holdings", " group",
}

// Resolve maps free-form text ("Tesla", "Apple Inc.", "AAPL") to a
// ticker symbol and a cleaned display name. Returns ErrNoMatch when the
// input resolves to nothing plausible.
func Resolve(text string) (Identity, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Identity{}, ErrNoMatch
	}

	// Already a ticker: 1-5 uppercase letters, optional class suffix.
	if bareTickerRe.MatchString(trimmed) {
		return Identity{Ticker: trimmed, CompanyName: trimmed}, nil
	}

	name := strings.ToLower(trimmed)
	for _, suffix := range lookupSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
		}
	}

	display := CleanCompanyName(normalizeDisplay(trimmed))

	if symbol, ok := knownTickers[name]; ok {
		return Identity{Ticker: symbol, CompanyName: display}, nil
	}

	// Partial match either direction covers "tesla motors" and "pepsi co".
	for key, symbol := range knownTickers {
		if strings.Contains(name, key) || strings.Contains(key, name) {
			return Identity{Ticker: symbol, CompanyName: display}, nil
		}
	}

	// Short unknown input is assumed to be a ticker typed in lowercase.
	clean := strings.ToUpper(nonAlphaRe.ReplaceAllString(trimmed, ""))
	if len(clean) > 0 && len(clean) <= 5 {
		return Identity{Ticker: clean, CompanyName: display}, nil
	}

	return Identity{}, ErrNoMatch
}

// acronymFixes repairs title-casing of well-known all-caps names.
var acronymFixes = map[string]string{
	"Ibm":       "IBM",
	"Amd":       "AMD",
	"Att":       "AT&T",
	"Ups":       "UPS",
	"Cvs":       "CVS",
	"Jp Morgan": "JPMorgan",
	"Jpmorgan":  "JPMorgan",
}

func normalizeDisplay(name string) string {
	display := strings.TrimSpace(name)
	if display == strings.ToLower(display) {
		display = titleCase(display)
	}

	for old, fixed := range acronymFixes {
		display = strings.ReplaceAll(display, old, fixed)
	}

	return display
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}

	return strings.Join(words, " ")
}
