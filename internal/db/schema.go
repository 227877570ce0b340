package db

const SchemaSQL = `
CREATE SCHEMA IF NOT EXISTS yt;

CREATE TABLE IF NOT EXISTS yt.monitored_channels (
	channel_key        TEXT PRIMARY KEY,
	youtube_channel_id TEXT,
	name               TEXT NOT NULL,
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS yt.channel_selections (
	channel_key          TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	video_id             TEXT,
	title                TEXT,
	url                  TEXT,
	scheduled_start_time TIMESTAMPTZ,
	actual_start_time    TIMESTAMPTZ,
	updated_at           TIMESTAMPTZ NOT NULL
);
`
