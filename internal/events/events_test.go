package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func ids(evs []Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.VideoID)
	}
	return out
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		status ParseStatus
		want   time.Time
	}{
		{name: "empty", raw: "", status: Absent},
		{name: "blank", raw: "   ", status: Absent},
		{name: "zulu", raw: "2025-03-14T15:00:00Z", status: Parsed, want: now},
		{name: "fractional", raw: "2025-03-14T15:00:00.000Z", status: Parsed, want: now},
		{name: "offset", raw: "2025-03-14T12:00:00-03:00", status: Parsed, want: now},
		{name: "naive is utc", raw: "2025-03-14T15:00:00", status: Parsed, want: now},
		{name: "date only", raw: "2025-03-14", status: Parsed, want: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
		{name: "garbage", raw: "tomorrow-ish", status: Malformed},
		{name: "bad month", raw: "2025-13-01T00:00:00Z", status: Malformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTimestamp(tt.raw)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.raw, got.Raw)
			if tt.status == Parsed {
				assert.True(t, tt.want.Equal(got.Time), "got %s want %s", got.Time, tt.want)
			}
		})
	}
}

func TestFilterDropsEnded(t *testing.T) {
	evs := []Event{
		{VideoID: "a", ActualEndTime: ts(now.Add(-time.Hour))},
		{VideoID: "b", ActualEndTime: "not a time", ScheduledStartTime: ts(now.Add(time.Hour))},
		{VideoID: "c", ActualEndTime: "x", ActualStartTime: ts(now.Add(-time.Minute))},
		{VideoID: "d", ActualStartTime: ts(now.Add(-time.Minute))},
	}
	assert.Equal(t, []string{"d"}, ids(Filter(evs, now)))
}

func TestFilterScheduleDate(t *testing.T) {
	yesterdayLate := time.Date(2025, 3, 13, 23, 59, 0, 0, time.UTC)
	todayEarly := time.Date(2025, 3, 14, 0, 1, 0, 0, time.UTC)
	evs := []Event{
		{VideoID: "yesterday", ScheduledStartTime: ts(yesterdayLate)},
		{VideoID: "today-past", ScheduledStartTime: ts(todayEarly)},
		{VideoID: "tomorrow", ScheduledStartTime: ts(now.Add(24 * time.Hour))},
		{VideoID: "malformed", ScheduledStartTime: "14/03/2025 10h"},
		{VideoID: "no-schedule"},
	}
	assert.Equal(t, []string{"today-past", "tomorrow", "malformed", "no-schedule"}, ids(Filter(evs, now)))
}

func TestFilterUsesUTCDate(t *testing.T) {
	// 23:30 at -03:00 on the 13th is already the 14th in UTC.
	evs := []Event{{VideoID: "a", ScheduledStartTime: "2025-03-13T23:30:00-03:00"}}
	assert.Len(t, Filter(evs, now), 1)
}

func TestSelectPrefersLive(t *testing.T) {
	evs := []Event{
		{VideoID: "soon", ScheduledStartTime: ts(now.Add(time.Minute))},
		{VideoID: "live", ActualStartTime: ts(now.Add(-3 * time.Hour)), ScheduledStartTime: ts(now.Add(-3 * time.Hour))},
	}
	got, ok := Select(evs, now)
	require.True(t, ok)
	assert.Equal(t, "live", got.VideoID)
}

func TestSelectNearestLive(t *testing.T) {
	evs := []Event{
		{VideoID: "old", ActualStartTime: ts(now.Add(-2 * time.Hour))},
		{VideoID: "recent", ActualStartTime: ts(now.Add(-10 * time.Minute))},
		{VideoID: "sched-past", ScheduledStartTime: ts(now.Add(-30 * time.Minute))},
	}
	got, ok := Select(evs, now)
	require.True(t, ok)
	assert.Equal(t, "recent", got.VideoID)
}

func TestSelectScheduledPastCountsAsLive(t *testing.T) {
	evs := []Event{
		{VideoID: "upcoming", ScheduledStartTime: ts(now.Add(5 * time.Minute))},
		{VideoID: "late", ScheduledStartTime: ts(now.Add(-20 * time.Minute))},
	}
	got, ok := Select(evs, now)
	require.True(t, ok)
	assert.Equal(t, "late", got.VideoID)
}

func TestSelectTieKeepsFirst(t *testing.T) {
	start := ts(now.Add(-15 * time.Minute))
	evs := []Event{
		{VideoID: "first", ActualStartTime: start},
		{VideoID: "second", ActualStartTime: start},
	}
	got, ok := Select(evs, now)
	require.True(t, ok)
	assert.Equal(t, "first", got.VideoID)

	// Equal distance on either side of now is also a tie.
	evs = []Event{
		{VideoID: "past", ScheduledStartTime: ts(now.Add(-time.Hour))},
		{VideoID: "future-actual", ActualStartTime: ts(now.Add(time.Hour))},
	}
	got, ok = Select(evs, now)
	require.True(t, ok)
	assert.Equal(t, "past", got.VideoID)
}

func TestSelectMalformedActualStartIsNow(t *testing.T) {
	evs := []Event{
		{VideoID: "recent", ActualStartTime: ts(now.Add(-time.Second))},
		{VideoID: "broken", ActualStartTime: "yesterday at noon"},
	}
	got, ok := Select(evs, now)
	require.True(t, ok)
	assert.Equal(t, "broken", got.VideoID)
}

func TestSelectFallbackSoonest(t *testing.T) {
	evs := []Event{
		{VideoID: "A", ScheduledStartTime: ts(now.Add(2 * time.Hour))},
		{VideoID: "B", ScheduledStartTime: ts(now.Add(30 * time.Minute))},
	}
	got, ok := Select(evs, now)
	require.True(t, ok)
	assert.Equal(t, "B", got.VideoID)
}

func TestSelectFallbackTieKeepsFirst(t *testing.T) {
	at := ts(now.Add(time.Hour))
	evs := []Event{
		{VideoID: "x", ScheduledStartTime: at},
		{VideoID: "y", ScheduledStartTime: at},
	}
	got, ok := Select(evs, now)
	require.True(t, ok)
	assert.Equal(t, "x", got.VideoID)
}

func TestSelectUnparseableSchedulesYieldNothing(t *testing.T) {
	evs := []Event{
		{VideoID: "a", ScheduledStartTime: "soon"},
		{VideoID: "b", ScheduledStartTime: "2025-99-99"},
	}
	_, ok := Select(evs, now)
	assert.False(t, ok)
}

func TestSelectZonelessTimestampsAreUTC(t *testing.T) {
	// YouTube always sends a zone; anything without one is read as UTC
	// rather than dropped.
	upcoming := []Event{
		{VideoID: "later", ScheduledStartTime: "2025-03-14T18:00:00"},
		{VideoID: "sooner", ScheduledStartTime: "2025-03-14T16:00:00"},
	}
	got, ok := Select(upcoming, now)
	require.True(t, ok)
	assert.Equal(t, "sooner", got.VideoID)

	live := []Event{
		{VideoID: "sched", ScheduledStartTime: ts(now.Add(time.Hour))},
		{VideoID: "naive-live", ActualStartTime: "2025-03-14T14:59:00"},
	}
	got, ok = Select(live, now)
	require.True(t, ok)
	assert.Equal(t, "naive-live", got.VideoID)

	start, isLive := LiveStart(live[1], now)
	require.True(t, isLive)
	assert.True(t, start.Equal(now.Add(-time.Minute)))
}

func TestSelectNothing(t *testing.T) {
	_, ok := Select(nil, now)
	assert.False(t, ok)

	_, ok = Select([]Event{{VideoID: "done", ActualStartTime: ts(now.Add(-time.Hour)), ActualEndTime: ts(now)}}, now)
	assert.False(t, ok)
}

func TestSelectLiveAndEnded(t *testing.T) {
	evs := []Event{
		{VideoID: "ended", ActualStartTime: ts(now.Add(-time.Hour)), ActualEndTime: ts(now.Add(-time.Minute))},
		{VideoID: "live", ActualStartTime: ts(now.Add(-5 * time.Second))},
	}
	got, ok := Select(evs, now)
	require.True(t, ok)
	assert.Equal(t, "live", got.VideoID)
}

func TestSelectDeterministic(t *testing.T) {
	evs := []Event{
		{VideoID: "a", ScheduledStartTime: ts(now.Add(40 * time.Minute))},
		{VideoID: "b", ActualStartTime: ts(now.Add(-40 * time.Minute))},
		{VideoID: "c", ScheduledStartTime: ts(now.Add(-40 * time.Minute))},
		{VideoID: "d", ActualStartTime: "??"},
	}
	first, ok := Select(evs, now)
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		got, _ := Select(evs, now)
		assert.Equal(t, first, got)
	}
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	evs := []Event{
		{VideoID: "ended", ActualEndTime: ts(now)},
		{VideoID: "live", ActualStartTime: ts(now)},
	}
	_, _ = Select(evs, now)
	assert.Equal(t, []string{"ended", "live"}, ids(evs))
}

func TestApplyTiming(t *testing.T) {
	ev := Event{VideoID: "v", ActualStartTime: "old", ScheduledStartTime: "old"}
	ev.ApplyTiming(Timing{ScheduledStartTime: "new"})
	assert.Equal(t, Event{VideoID: "v", ScheduledStartTime: "new"}, ev)
}
