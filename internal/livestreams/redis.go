package livestreams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nasfaqv2/brokerbot/ytmonitor/internal/monitor"
)

const (
	SelectedKey    = "ytmonitor_selected"
	UpdatesChannel = "ytmonitor_updates"
)

// RedisStore mirrors every cycle's picks into a Redis hash (one field per
// channel) and announces the cycle on a pub/sub channel.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
	Now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client, TTL: 7 * 24 * time.Hour, Now: time.Now}
}

func (s *RedisStore) Publish(ctx context.Context, streams map[string]monitor.ChannelState) error {
	if s == nil || s.Client == nil {
		return fmt.Errorf("nil redis client")
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	// Fields for channels without a pick are removed, so the hash stays a
	// clean "current view".
	existing, err := s.Client.HKeys(ctx, SelectedKey).Result()
	if err != nil {
		return fmt.Errorf("redis HKEYS %s: %w", SelectedKey, err)
	}

	pipe := s.Client.Pipeline()
	keep := make(map[string]struct{}, len(streams))
	current := make(map[string]Stream, len(streams))
	for key, st := range streams {
		stream, ok := FromState(st, now)
		if !ok {
			continue
		}
		keep[key] = struct{}{}
		current[key] = stream
		b, err := json.Marshal(stream)
		if err != nil {
			return fmt.Errorf("marshal stream %s: %w", key, err)
		}
		pipe.HSet(ctx, SelectedKey, key, string(b))
	}

	var toDelete []string
	for _, field := range existing {
		if _, ok := keep[field]; !ok {
			toDelete = append(toDelete, field)
		}
	}
	if len(toDelete) > 0 {
		pipe.HDel(ctx, SelectedKey, toDelete...)
	}
	if s.TTL > 0 {
		pipe.Expire(ctx, SelectedKey, s.TTL)
	}

	payload, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	pipe.Publish(ctx, UpdatesChannel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline exec %s: %w", SelectedKey, err)
	}
	return nil
}

// Selected reads back the mirrored picks.
func (s *RedisStore) Selected(ctx context.Context) (map[string]Stream, error) {
	raw, err := s.Client.HGetAll(ctx, SelectedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", SelectedKey, err)
	}
	out := make(map[string]Stream, len(raw))
	for field, v := range raw {
		var st Stream
		if err := json.Unmarshal([]byte(v), &st); err != nil {
			return nil, fmt.Errorf("decode %s[%s]: %w", SelectedKey, field, err)
		}
		out[field] = st
	}
	return out, nil
}
