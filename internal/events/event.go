package events

import (
	"strings"
	"time"
)

// Event is one broadcast video as seen by the search and videos endpoints.
// Timing fields hold the raw API strings; empty means absent.
type Event struct {
	VideoID            string `json:"videoId"`
	Title              string `json:"title"`
	URL                string `json:"url"`
	ActualStartTime    string `json:"actualStartTime,omitempty"`
	ScheduledStartTime string `json:"scheduledStartTime,omitempty"`
	ActualEndTime      string `json:"actualEndTime,omitempty"`
}

func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Ended reports whether the broadcast has concluded.
func (e Event) Ended() bool {
	return e.ActualEndTime != ""
}

// Timing is the set of fields refreshed in place by the videos endpoint.
type Timing struct {
	ActualStartTime    string
	ScheduledStartTime string
	ActualEndTime      string
}

func (e *Event) ApplyTiming(t Timing) {
	e.ActualStartTime = t.ActualStartTime
	e.ScheduledStartTime = t.ScheduledStartTime
	e.ActualEndTime = t.ActualEndTime
}

// ParseStatus is the outcome of parsing a timestamp field.
type ParseStatus int

const (
	Absent ParseStatus = iota
	Parsed
	Malformed
)

// ParseResult keeps malformed input visible to callers instead of folding it
// into a zero time.
type ParseResult struct {
	Status ParseStatus
	Time   time.Time
	Raw    string
}

func (r ParseResult) OK() bool { return r.Status == Parsed }

// Zone-less layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp as returned by the YouTube API.
func ParseTimestamp(raw string) ParseResult {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParseResult{Status: Absent, Raw: raw}
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return ParseResult{Status: Parsed, Time: t.UTC(), Raw: raw}
		}
	}
	return ParseResult{Status: Malformed, Raw: raw}
}

func utcDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
