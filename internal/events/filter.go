package events

import "time"

// Filter drops events that are over: anything with an actual end time, and
// anything scheduled for a UTC calendar day before today. Unparseable
// schedule timestamps keep the event.
func Filter(evs []Event, now time.Time) []Event {
	today := utcDate(now)
	out := make([]Event, 0, len(evs))
	for _, ev := range evs {
		if ev.Ended() {
			continue
		}
		if sched := ParseTimestamp(ev.ScheduledStartTime); sched.OK() && utcDate(sched.Time).Before(today) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
