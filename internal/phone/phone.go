// Package phone normalizes Brazilian contact strings into WhatsApp-addressable
// numbers. Brazilian mobile numbers gained an extra leading "9" in the local
// part years ago, and upstream checkout forms still deliver either form, so an
// ambiguous raw contact expands to both candidates.
package phone

import "strings"

// CountryCode is the Brazilian international prefix.
const CountryCode = "55"

// Variants derives every plausible recipient number from a raw contact string.
// The result is deterministic, ordered, and never empty: the first entry is
// the number as given (digits only, country-prefixed), followed by the
// alternate ninth-digit form when the local number is ambiguous.
//
// Local numbers are DDD (2 digits) + subscriber (8 or 9 digits). An 11-digit
// local whose subscriber part starts with 9 also yields the 10-digit form;
// a 10-digit local also yields the form with 9 inserted after the DDD.
func Variants(raw string) []string {
	digits := stripNonDigits(raw)

	local := digits
	if strings.HasPrefix(local, CountryCode) && len(local) > len(CountryCode) {
		local = local[len(CountryCode):]
	}

	if local == "" {
		// Degenerate input still produces one deliverable-looking address.
		return []string{CountryCode + digits}
	}

	switch {
	case len(local) == 11 && local[2] == '9':
		// DDD + 9XXXXXXXX: the same subscriber may be registered without
		// the ninth digit on older accounts.
		without := local[:2] + local[3:]
		return []string{CountryCode + local, CountryCode + without}
	case len(local) == 10:
		// DDD + XXXXXXXX: the mobile form with the ninth digit is equally likely.
		with := local[:2] + "9" + local[2:]
		return []string{CountryCode + local, CountryCode + with}
	default:
		return []string{CountryCode + local}
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
