package geocode

import (
	"regexp"
	"strings"
)

// Trailing postal code forms: Canadian (H1A 1A1, H1A1A1) and US ZIP
// (12345, 12345-6789). Only the tail of a string or segment is stripped so
// five-digit street numbers survive.
var (
	caPostalTailRe = regexp.MustCompile(`(?i)[,\s]+[A-Z][0-9][A-Z]\s?[0-9][A-Z][0-9]\s*$`)
	usZipTailRe    = regexp.MustCompile(`[,\s]+[0-9]{5}(?:-[0-9]{4})?\s*$`)
)

// QueryVariants builds the ladder of progressively simplified queries for
// one address: the full string, the string without a trailing postal code,
// the string truncated after its region marker, and the street segment plus
// the region. Empty and duplicate rungs are dropped, so callers see between
// one and four queries, most specific first.
func QueryVariants(address string) []string {
	full := collapseSpaces(address)
	if full == "" {
		return nil
	}

	variants := []string{full, stripPostalTail(full)}
	if upToRegion, region, ok := truncateAtRegion(full); ok {
		variants = append(variants, upToRegion, streetPlusRegion(full, region))
	}

	out := make([]string, 0, len(variants))
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// stripPostalTail removes a trailing postal code along with the separator
// before it.
func stripPostalTail(s string) string {
	out := caPostalTailRe.ReplaceAllString(s, "")
	out = usZipTailRe.ReplaceAllString(out, "")
	return strings.TrimRight(strings.TrimSpace(out), ",")
}

// truncateAtRegion cuts the address after the rightmost comma segment
// containing a region marker, returning the truncated address and the
// region token as written.
func truncateAtRegion(s string) (string, string, bool) {
	segments := strings.Split(s, ",")
	for i := len(segments) - 1; i >= 0; i-- {
		region, ok := regionToken(segments[i])
		if !ok {
			continue
		}
		kept := make([]string, 0, i+1)
		for _, seg := range segments[:i] {
			kept = append(kept, strings.TrimSpace(seg))
		}
		kept = append(kept, stripPostalTail(strings.TrimSpace(segments[i])))
		return strings.Join(kept, ", "), region, true
	}
	return "", "", false
}

// regionToken finds a region marker inside one comma segment. The whole
// segment is tried first so multi-word names like "British Columbia" match,
// then individual fields.
func regionToken(segment string) (string, bool) {
	seg := collapseSpaces(stripPostalTail(segment))
	if seg == "" {
		return "", false
	}
	if regionTokens[strings.ToLower(seg)] {
		return seg, true
	}
	for _, f := range strings.Fields(seg) {
		if regionTokens[strings.ToLower(f)] {
			return f, true
		}
	}
	return "", false
}

// streetPlusRegion pairs the street segment with the region marker,
// dropping everything between them. A region sitting inside the street
// segment is cut out first so the rung does not repeat it.
func streetPlusRegion(s, region string) string {
	street := stripPostalTail(strings.TrimSpace(strings.Split(s, ",")[0]))
	if strings.EqualFold(street, region) {
		return ""
	}
	var kept []string
	for _, f := range strings.Fields(street) {
		if strings.EqualFold(f, region) {
			continue
		}
		kept = append(kept, f)
	}
	street = strings.Join(kept, " ")
	if street == "" {
		return ""
	}
	return street + ", " + region
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// regionAbbrToName covers US states (plus DC) and Canadian provinces and
// territories.
var regionAbbrToName = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
	"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",

	"AB": "Alberta", "BC": "British Columbia", "MB": "Manitoba",
	"NB": "New Brunswick", "NL": "Newfoundland and Labrador", "NS": "Nova Scotia",
	"NT": "Northwest Territories", "NU": "Nunavut", "ON": "Ontario",
	"PE": "Prince Edward Island", "QC": "Quebec", "SK": "Saskatchewan",
	"YT": "Yukon",
}

// regionTokens indexes lowercase abbreviations and full names for segment
// scanning.
var regionTokens = func() map[string]bool {
	m := make(map[string]bool, len(regionAbbrToName)*2)
	for abbr, name := range regionAbbrToName {
		m[strings.ToLower(abbr)] = true
		m[strings.ToLower(name)] = true
	}
	return m
}()
