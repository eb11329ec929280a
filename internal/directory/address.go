package directory

import (
	"regexp"
	"strings"
)

// Swiss postal codes are four digits followed by the locality name.
var postalCityRe = regexp.MustCompile(`^(\d{4})\s+(.*)$`)

// ParseAddress splits a free-text address line into street, postal code
// and city. Missing separators degrade to partial results, never an
// error: without a comma the whole line is the street, and a remainder
// that does not start with a postal code becomes the city.
func ParseAddress(address string) (street, postalCode, city string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", "", ""
	}
	street, rest, found := strings.Cut(address, ", ")
	street = strings.TrimSpace(street)
	if !found {
		return street, "", ""
	}
	rest = strings.TrimSpace(rest)
	if m := postalCityRe.FindStringSubmatch(rest); m != nil {
		return street, m[1], strings.TrimSpace(m[2])
	}
	return street, "", rest
}
