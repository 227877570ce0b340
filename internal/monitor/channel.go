package monitor

import (
	"time"

	"nasfaqv2/brokerbot/ytmonitor/internal/events"
)

// Source identifies what a Channel monitors. It is either Registered (a
// YouTube channel id) or Virtual (a named target populated by other means).
type Source interface {
	Key() string
	DisplayName() string
	isSource()
}

type Registered struct {
	ID   string
	Name string
}

func (r Registered) Key() string         { return r.ID }
func (r Registered) DisplayName() string { return r.Name }
func (Registered) isSource()             {}

type Virtual struct {
	Name string
}

func (v Virtual) Key() string         { return v.Name }
func (v Virtual) DisplayName() string { return v.Name }
func (Virtual) isSource()             {}

// SourceFor builds the Source for a configured {channel_id, name} pair.
func SourceFor(channelID, name string) Source {
	if channelID == "" {
		return Virtual{Name: name}
	}
	return Registered{ID: channelID, Name: name}
}

// Channel is one monitored target and its current pick. Fields are owned by
// the Monitor and only touched under its lock.
type Channel struct {
	Source Source

	selected      *events.Event
	lastFullFetch time.Time
}

func NewChannel(src Source) *Channel {
	return &Channel{Source: src}
}

// ChannelState is the per-channel payload handed to the transport layer.
type ChannelState struct {
	ChannelID      string        `json:"channel_id"`
	Name           string        `json:"name"`
	SelectedStream *events.Event `json:"selected_stream"`
}
