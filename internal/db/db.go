package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nasfaqv2/brokerbot/ytmonitor/internal/events"
	"nasfaqv2/brokerbot/ytmonitor/internal/monitor"
)

// Channel is a row of yt.monitored_channels. A nil YouTubeChannelID marks a
// virtual channel identified by its name.
type Channel struct {
	YouTubeChannelID *string
	Name             string
}

// Source converts the row into the monitor's channel variant.
func (c Channel) Source() monitor.Source {
	if c.YouTubeChannelID == nil {
		return monitor.SourceFor("", c.Name)
	}
	return monitor.SourceFor(*c.YouTubeChannelID, c.Name)
}

func (c Channel) key() string {
	if c.YouTubeChannelID != nil && *c.YouTubeChannelID != "" {
		return *c.YouTubeChannelID
	}
	return c.Name
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	normalizedURL, schema := normalizeDatabaseURL(databaseURL)
	cfg, err := pgxpool.ParseConfig(normalizedURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		if cfg.ConnConfig.RuntimeParams == nil {
			cfg.ConnConfig.RuntimeParams = map[string]string{}
		}
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}
	// SimpleProtocol lets ApplySchema run multi-statement SQL.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return p, nil
}

func normalizeDatabaseURL(databaseURL string) (string, string) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return databaseURL, ""
	}
	q := u.Query()
	schema := q.Get("schema")
	if schema == "" {
		return databaseURL, ""
	}
	q.Del("schema")
	u.RawQuery = q.Encode()
	return u.String(), schema
}

func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("nil pool")
	}
	if _, err := pool.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func ListActiveChannels(ctx context.Context, pool *pgxpool.Pool) ([]Channel, error) {
	rows, err := pool.Query(ctx, `
		SELECT youtube_channel_id, name
		FROM yt.monitored_channels
		WHERE is_active = true
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query active channels: %w", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.YouTubeChannelID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate channels: %w", rows.Err())
	}
	return out, nil
}

func UpsertChannel(ctx context.Context, pool *pgxpool.Pool, c Channel) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO yt.monitored_channels (
			channel_key,
			youtube_channel_id,
			name,
			is_active,
			updated_at
		) VALUES ($1,$2,$3,TRUE,now())
		ON CONFLICT (channel_key)
		DO UPDATE SET
			youtube_channel_id = EXCLUDED.youtube_channel_id,
			name = EXCLUDED.name,
			is_active = TRUE,
			updated_at = now()
	`, c.key(), c.YouTubeChannelID, c.Name)
	if err != nil {
		return fmt.Errorf("upsert channel (key=%s): %w", c.key(), err)
	}
	return nil
}

func DeactivateChannel(ctx context.Context, pool *pgxpool.Pool, key string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE yt.monitored_channels
		SET is_active = FALSE, updated_at = now()
		WHERE channel_key = $1
	`, key)
	if err != nil {
		return fmt.Errorf("deactivate channel (key=%s): %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deactivate channel (key=%s): not found", key)
	}
	return nil
}

// Selection is a row of yt.channel_selections: the current pick of a channel.
type Selection struct {
	ChannelKey         string
	Name               string
	VideoID            *string
	Title              *string
	URL                *string
	ScheduledStartTime *time.Time
	ActualStartTime    *time.Time
	UpdatedAt          time.Time
}

func selectionFromState(st monitor.ChannelState, now time.Time) Selection {
	s := Selection{ChannelKey: st.ChannelID, Name: st.Name, UpdatedAt: now.UTC()}
	ev := st.SelectedStream
	if ev == nil {
		return s
	}
	s.VideoID = &ev.VideoID
	s.Title = &ev.Title
	s.URL = &ev.URL
	if r := events.ParseTimestamp(ev.ScheduledStartTime); r.OK() {
		t := r.Time
		s.ScheduledStartTime = &t
	}
	if r := events.ParseTimestamp(ev.ActualStartTime); r.OK() {
		t := r.Time
		s.ActualStartTime = &t
	}
	return s
}

const upsertSelectionSQL = `
	INSERT INTO yt.channel_selections (
		channel_key,
		name,
		video_id,
		title,
		url,
		scheduled_start_time,
		actual_start_time,
		updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (channel_key)
	DO UPDATE SET
		name = EXCLUDED.name,
		video_id = EXCLUDED.video_id,
		title = EXCLUDED.title,
		url = EXCLUDED.url,
		scheduled_start_time = EXCLUDED.scheduled_start_time,
		actual_start_time = EXCLUDED.actual_start_time,
		updated_at = EXCLUDED.updated_at
`

// SelectionStore records every cycle's picks in yt.channel_selections.
type SelectionStore struct {
	Pool *pgxpool.Pool
	Now  func() time.Time
}

func (s *SelectionStore) Publish(ctx context.Context, streams map[string]monitor.ChannelState) error {
	if s == nil || s.Pool == nil {
		return fmt.Errorf("nil pool")
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	batch := &pgx.Batch{}
	for _, st := range streams {
		sel := selectionFromState(st, now)
		batch.Queue(upsertSelectionSQL, sel.ChannelKey, sel.Name, sel.VideoID, sel.Title, sel.URL,
			sel.ScheduledStartTime, sel.ActualStartTime, sel.UpdatedAt)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert selections: %w", err)
	}
	return nil
}
