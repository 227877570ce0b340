package events

import "time"

// Select picks the event to surface for a channel. Live events win, nearest
// start first; otherwise the soonest upcoming one. Ties keep input order.
func Select(evs []Event, now time.Time) (Event, bool) {
	evs = Filter(evs, now)
	if ev, ok := nearestLive(evs, now); ok {
		return ev, true
	}
	return soonestUpcoming(evs, now)
}

// LiveStart reports whether ev is airing at now and the instant it counts
// as having started from. A malformed actual start counts as now.
func LiveStart(ev Event, now time.Time) (time.Time, bool) {
	if ev.Ended() {
		return time.Time{}, false
	}
	if ev.ActualStartTime != "" {
		if actual := ParseTimestamp(ev.ActualStartTime); actual.OK() {
			return actual.Time, true
		}
		return now, true
	}
	if sched := ParseTimestamp(ev.ScheduledStartTime); sched.OK() && !sched.Time.After(now) {
		return sched.Time, true
	}
	return time.Time{}, false
}

func nearestLive(evs []Event, now time.Time) (Event, bool) {
	var (
		best      Event
		found     bool
		bestDelta time.Duration
	)
	for _, ev := range evs {
		start, live := LiveStart(ev, now)
		if !live {
			continue
		}
		delta := now.Sub(start)
		if delta < 0 {
			delta = -delta
		}
		if !found || delta < bestDelta {
			best, bestDelta, found = ev, delta, true
		}
	}
	return best, found
}

func soonestUpcoming(evs []Event, now time.Time) (Event, bool) {
	var (
		best      Event
		found     bool
		bestDelta time.Duration
	)
	for _, ev := range evs {
		sched := ParseTimestamp(ev.ScheduledStartTime)
		if !sched.OK() || !sched.Time.After(now) {
			continue
		}
		delta := sched.Time.Sub(now)
		if !found || delta < bestDelta {
			best, bestDelta, found = ev, delta, true
		}
	}
	return best, found
}
