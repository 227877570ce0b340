package livestreams

import (
	"time"

	"nasfaqv2/brokerbot/ytmonitor/internal/events"
	"nasfaqv2/brokerbot/ytmonitor/internal/monitor"
)

type StreamStatus string

const (
	StatusLive     StreamStatus = "live"
	StatusUpcoming StreamStatus = "upcoming"
)

// Stream is the mirrored pick of one channel.
type Stream struct {
	VideoID  string       `json:"video_id"`
	VideoURL string       `json:"video_url"`
	Status   StreamStatus `json:"status"`
	Title    string       `json:"title"`

	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`

	ScheduledStartTime *time.Time `json:"scheduled_start_time,omitempty"`
	ActualStartTime    *time.Time `json:"actual_start_time,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// FromState converts a channel's state. ok is false when nothing is selected.
func FromState(st monitor.ChannelState, now time.Time) (Stream, bool) {
	ev := st.SelectedStream
	if ev == nil {
		return Stream{}, false
	}
	status := StatusUpcoming
	if _, live := events.LiveStart(*ev, now); live {
		status = StatusLive
	}
	return Stream{
		VideoID:            ev.VideoID,
		VideoURL:           ev.URL,
		Status:             status,
		Title:              ev.Title,
		ChannelID:          st.ChannelID,
		ChannelName:        st.Name,
		ScheduledStartTime: timePtr(ev.ScheduledStartTime),
		ActualStartTime:    timePtr(ev.ActualStartTime),
		UpdatedAt:          now.UTC(),
	}, true
}

func timePtr(raw string) *time.Time {
	r := events.ParseTimestamp(raw)
	if !r.OK() {
		return nil
	}
	t := r.Time
	return &t
}
