package messaging

import "strings"

// DefaultCountryCode is the dialing prefix applied when none is configured.
const DefaultCountryCode = "92"

// FormatPhoneNumber normalizes raw to a country-code-prefixed digit string.
// It returns "" when raw contains no digits.
func FormatPhoneNumber(raw, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(digits, countryCode):
		return digits
	case strings.HasPrefix(digits, "00"+countryCode):
		return digits[2:]
	case strings.HasPrefix(digits, "0"+countryCode):
		return digits[1:]
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	default:
		return countryCode + digits
	}
}
