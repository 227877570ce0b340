package livestreams

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nasfaqv2/brokerbot/ytmonitor/internal/events"
	"nasfaqv2/brokerbot/ytmonitor/internal/monitor"
)

var now = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewRedisStore(rdb)
	s.Now = func() time.Time { return now }
	return s, mr, rdb
}

func TestPublishMirrorsPicks(t *testing.T) {
	s, mr, rdb := newTestStore(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, UpdatesChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	streams := map[string]monitor.ChannelState{
		"UC1": {ChannelID: "UC1", Name: "Um", SelectedStream: &events.Event{
			VideoID: "live", Title: "Ao vivo", URL: events.WatchURL("live"),
			ActualStartTime: "2025-03-14T14:00:00Z",
		}},
		"UC2": {ChannelID: "UC2", Name: "Dois", SelectedStream: &events.Event{
			VideoID: "soon", Title: "Em breve", URL: events.WatchURL("soon"),
			ScheduledStartTime: "2025-03-14T18:00:00Z",
		}},
		"Especial": {ChannelID: "Especial", Name: "Especial"},
	}
	require.NoError(t, s.Publish(ctx, streams))

	got, err := s.Selected(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StatusLive, got["UC1"].Status)
	assert.Equal(t, "Um", got["UC1"].ChannelName)
	require.NotNil(t, got["UC1"].ActualStartTime)
	assert.True(t, got["UC1"].ActualStartTime.Equal(time.Date(2025, 3, 14, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, StatusUpcoming, got["UC2"].Status)
	assert.Nil(t, got["UC2"].ActualStartTime)
	assert.True(t, mr.TTL(SelectedKey) > 0)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var update map[string]Stream
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &update))
	assert.Len(t, update, 2)
	assert.Equal(t, "soon", update["UC2"].VideoID)
}

func TestPublishRemovesChannelsWithoutPick(t *testing.T) {
	s, mr, _ := newTestStore(t)
	ctx := context.Background()

	pick := &events.Event{VideoID: "a", ScheduledStartTime: "2025-03-15T10:00:00Z"}
	require.NoError(t, s.Publish(ctx, map[string]monitor.ChannelState{
		"UC1": {ChannelID: "UC1", SelectedStream: pick},
		"UC2": {ChannelID: "UC2", SelectedStream: pick},
	}))
	require.NoError(t, s.Publish(ctx, map[string]monitor.ChannelState{
		"UC1": {ChannelID: "UC1"},
		"UC2": {ChannelID: "UC2", SelectedStream: pick},
	}))

	fields, err := mr.HKeys(SelectedKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"UC2"}, fields)
}

func TestPublishNilClient(t *testing.T) {
	var s *RedisStore
	assert.Error(t, s.Publish(context.Background(), nil))
}

func TestFromState(t *testing.T) {
	_, ok := FromState(monitor.ChannelState{ChannelID: "UC1"}, now)
	assert.False(t, ok)

	st, ok := FromState(monitor.ChannelState{ChannelID: "UC1", Name: "Um", SelectedStream: &events.Event{
		VideoID: "v", ScheduledStartTime: "2025-03-14T14:30:00Z", ActualStartTime: "garbled",
	}}, now)
	require.True(t, ok)
	assert.Equal(t, StatusLive, st.Status)
	assert.Nil(t, st.ActualStartTime)
	require.NotNil(t, st.ScheduledStartTime)
	assert.Equal(t, now, st.UpdatedAt)
}
