package ticker

import "strings"

// Corporate suffixes stripped from display names, longest first so that
// compound forms ("Class A Common Stock") win over their tails.
var companySuffixes = []string{
	" - Common Stock",
	" - Class A Common Stock",
	" - Class B Common Stock",
	" - Class C Common Stock",
	" - Ordinary Shares",
	" - American Depositary Shares",
	" Corporation",
	" Incorporated",
	" Technologies",
	" Technology",
	" International",
	" Platforms",
	" Holdings",
	" Company",
	" Limited",
	" Group",
	" Inc.",
	" Inc",
	" Ltd.",
	" Ltd",
	" LLC",
	" L.P.",
	" Co.",
	" Corp.",
	" Corp",
	" PLC",
	" N.V.",
	" S.A.",
	" AG",
}

var companyPrefixes = []string{
	"The ",
}

// CleanCompanyName strips corporate prefixes and suffixes from a display
// name so search queries match editorial usage: "NVIDIA Corporation"
// becomes "NVIDIA", "Meta Platforms, Inc." becomes "Meta". Suffixes are
// stripped iteratively because names often stack them.
func CleanCompanyName(name string) string {
	result := name

	for _, prefix := range companyPrefixes {
		result = strings.TrimPrefix(result, prefix)
	}

	// Commas interfere with suffix matching ("Meta Platforms, Inc.").
	result = strings.TrimSpace(strings.ReplaceAll(result, ",", ""))

	for changed := true; changed; {
		changed = false

		for _, suffix := range companySuffixes {
			if strings.HasSuffix(result, suffix) {
				result = strings.TrimSpace(strings.TrimSuffix(result, suffix))
				changed = true

				break
			}
		}
	}

	return result
}
