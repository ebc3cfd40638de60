package pipeline

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

var alphaWordRe = regexp.MustCompile(`[A-Za-z]{2,}`)

// parseCoordinatePair parses and validates a latitude/longitude pair.
// Both values must be present, finite, and within WGS84 range.
func parseCoordinatePair(rawLat, rawLng string) (float64, float64, error) {
	if rawLat == "" || rawLng == "" {
		return 0, 0, eris.New("half-supplied coordinate pair")
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return 0, 0, eris.Errorf("latitude %q is not a number", rawLat)
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil {
		return 0, 0, eris.Errorf("longitude %q is not a number", rawLng)
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return 0, 0, eris.New("coordinates must be finite")
	}
	if lat < -90 || lat > 90 {
		return 0, 0, eris.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return 0, 0, eris.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	return lat, lng, nil
}

// looksLikeAddress reports whether a value that failed coordinate parsing
// resembles a street address pasted into the wrong column. The heuristic
// requires at least two alphabetic words plus either a digit or common
// address punctuation.
func looksLikeAddress(s string) bool {
	words := alphaWordRe.FindAllString(s, -1)
	if len(words) < 2 {
		return false
	}
	if strings.ContainsAny(s, ",#.") {
		return true
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
