// Package era maps snapshot dates to the EPSS model generation that produced
// them and validates the date inputs of a comparison.
package era

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the only accepted date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Label names an EPSS model generation.
type Label string

// Known model generations.
const (
	V1 Label = "v1"
	V2 Label = "v2"
	V3 Label = "v3"
	V4 Label = "v4"
)

// boundary is the first day a generation was published.
type boundary struct {
	since time.Time
	label Label
}

// boundaries are ordered newest first; the first match wins.
var boundaries = []boundary{
	{since: day(2025, time.March, 17), label: V4},
	{since: day(2023, time.March, 7), label: V3},
	{since: day(2022, time.February, 4), label: V2},
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Classify returns the model generation active on date.
// Boundary dates belong to the newer generation.
func Classify(date time.Time) Label {
	d := truncate(date)
	for _, b := range boundaries {
		if !d.Before(b.since) {
			return b.label
		}
	}
	return V1
}

// ValidateOrder reports whether start strictly precedes end.
func ValidateOrder(start, end time.Time) bool {
	return truncate(start).Before(truncate(end))
}

// Mismatch reports whether two labels describe different generations.
func Mismatch(a, b Label) bool {
	return a != b
}

// ParseDate parses a YYYY-MM-DD string in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: expected YYYY-MM-DD", ErrDateFormat, s)
	}
	return t, nil
}

// Format renders date as YYYY-MM-DD.
func Format(date time.Time) string {
	return date.Format(DateLayout)
}

// modelReleases holds the model_version tag date of each generation. Tags
// predate the day scores built with them started being published.
var modelReleases = []boundary{
	{since: day(2025, time.March, 1), label: V4},
	{since: day(2023, time.March, 1), label: V3},
	{since: day(2022, time.January, 1), label: V2},
}

// FromModelVersion maps a published model_version tag (e.g. "v2023.03.01")
// to its generation. ok is false when the tag is not recognised.
func FromModelVersion(version string) (Label, bool) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	t, err := time.Parse("2006.01.02", v)
	if err != nil {
		return "", false
	}
	for _, b := range modelReleases {
		if !t.Before(b.since) {
			return b.label, true
		}
	}
	return V1, true
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
