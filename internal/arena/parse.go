package arena

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/mutker/dronedash/internal/geofence"
)

const (
	headerArena     = "Arena:"
	headerSpots     = "SafeSpots:"
	headerSpotsLong = "Detected Safe Spots"
)

var coordLine = regexp.MustCompile(`^(Corner\d+|Spot\d+):\s*\[([0-9.-]+),\s*([0-9.-]+)\]`)

type section int

const (
	sectionNone section = iota
	sectionArena
	sectionSpots
)

// Parse reads the safe-zone text format written by the vision system:
//
//	Arena:
//	Corner1: [12.0345, 77.1234]
//	...
//	SafeSpots:
//	Spot1: [12.0331, 77.1245]
//
// Coordinate lines belong to the section they appear in; lines before the
// first header and lines that do not parse are ignored.
func Parse(r io.Reader) (boundary []geofence.GPSPoint, targets []geofence.Target, err error) {
	scanner := bufio.NewScanner(r)
	current := sectionNone

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case headerArena:
			current = sectionArena
			continue
		case headerSpots, headerSpotsLong:
			current = sectionSpots
			continue
		}

		m := coordLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		lat, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}

		switch current {
		case sectionArena:
			boundary = append(boundary, geofence.GPSPoint{Lat: lat, Lng: lng})
		case sectionSpots:
			targets = append(targets, geofence.Target{ID: m[1], Lat: lat, Lng: lng})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return boundary, targets, nil
}
