// Package geo pulls coordinate pairs out of Google Maps links.
package geo

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	// Directions URLs carry origin and destination in the path. Most .mx
	// links use this shape.
	dirPattern = regexp.MustCompile(`maps/dir/(-?\d+\.\d+),(-?\d+\.\d+)/(-?\d+\.\d+),(-?\d+\.\d+)`)

	// Older links pass the endpoints as saddr/daddr query parameters.
	saddrPattern = regexp.MustCompile(`saddr=(-?\d+\.\d+),(-?\d+\.\d+)&daddr=(-?\d+\.\d+),(-?\d+\.\d+)`)

	generalPattern = regexp.MustCompile(`(-?\d+\.\d+),(-?\d+\.\d+)`)
)

// ExtractCoordinates returns the "lat,lng" pairs found in text. Directions
// formats win outright when they match; otherwise every plausible pair in the
// text is collected, deduplicated, in order of appearance.
func ExtractCoordinates(text string) []string {
	if match := dirPattern.FindStringSubmatch(text); match != nil {
		if pairs := validatedPairs(match); len(pairs) > 0 {
			return pairs
		}
	}

	if match := saddrPattern.FindStringSubmatch(text); match != nil {
		if pairs := validatedPairs(match); len(pairs) > 0 {
			return pairs
		}
	}

	var results []string
	seen := make(map[string]struct{})
	for _, match := range generalPattern.FindAllStringSubmatch(text, -1) {
		coordinate, ok := validCoordinate(match[1], match[2])
		if !ok {
			continue
		}
		if _, dup := seen[coordinate]; dup {
			continue
		}
		seen[coordinate] = struct{}{}
		results = append(results, coordinate)
	}
	return results
}

// validatedPairs keeps whichever of the origin/destination pair survives the
// bounds check.
func validatedPairs(match []string) []string {
	var pairs []string
	if coordinate, ok := validCoordinate(match[1], match[2]); ok {
		pairs = append(pairs, coordinate)
	}
	if coordinate, ok := validCoordinate(match[3], match[4]); ok {
		pairs = append(pairs, coordinate)
	}
	return pairs
}

func validCoordinate(lat, lng string) (string, bool) {
	latValue, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return "", false
	}
	lngValue, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return "", false
	}
	if latValue < -90 || latValue > 90 || lngValue < -180 || lngValue > 180 {
		return "", false
	}
	return fmt.Sprintf("%s,%s", lat, lng), true
}
