package filter

import (
	"fmt"
	"strings"
	"time"
)

// localLayouts are tried in order and interpreted in the caller's location.
var localLayouts = []string{
	"2006-01-02",
	"2006-01-02 15",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
}

// ParsedTime is one endpoint of a time range filter.
type ParsedTime struct {
	Instant      time.Time
	Present      bool // false when the raw string could not be parsed
	HasTimeOfDay bool // raw string contained a space, so hour precision was given
}

// ParseTime interprets raw in loc. It never fails: an unparseable string
// yields a ParsedTime with Present == false. Strings carrying their own
// offset (RFC 3339) keep it.
func ParseTime(raw string, loc *time.Location) ParsedTime {
	s := strings.TrimSpace(raw)
	p := ParsedTime{HasTimeOfDay: strings.Contains(s, " ")}
	if s == "" || loc == nil {
		return p
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		p.Instant, p.Present = t, true
		return p
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			p.Instant, p.Present = t, true
			return p
		}
	}
	return p
}

// Where renders the comparison of p against the timestamp column and the
// year/month/day[/hour] partition columns. Partition columns are compared in
// UTC because the archive lays partitions out by UTC wall clock. The hour
// column is only constrained when the raw value carried a time of day.
func (p ParsedTime) Where(operator string) string {
	utc := p.Instant.UTC()
	parts := []string{
		fmt.Sprintf("timestamp %s %d", operator, p.Instant.Unix()),
		fmt.Sprintf("year %s '%04d'", operator, utc.Year()),
		fmt.Sprintf("month %s '%02d'", operator, int(utc.Month())),
		fmt.Sprintf("day %s '%02d'", operator, utc.Day()),
	}
	if p.HasTimeOfDay {
		parts = append(parts, fmt.Sprintf("hour %s '%02d'", operator, utc.Hour()))
	}
	return strings.Join(parts, " AND ")
}

// RenderRange combines the start (>=) and end (<=) endpoints. It reports
// false when neither endpoint is present.
func RenderRange(start, end ParsedTime) (string, bool) {
	switch {
	case start.Present && end.Present:
		return fmt.Sprintf("(%s) AND (%s)", start.Where(">="), end.Where("<=")), true
	case start.Present:
		return start.Where(">="), true
	case end.Present:
		return end.Where("<="), true
	default:
		return "", false
	}
}
