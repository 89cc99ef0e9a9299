package store

// Schema v1 - listening history and run audit
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS artists (
  artist_id TEXT PRIMARY KEY,
  artist_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS albums (
  album_id TEXT PRIMARY KEY,
  album_name TEXT NOT NULL,
  album_type TEXT NOT NULL,
  release_date TEXT,
  release_date_precision TEXT,
  artist_id TEXT NOT NULL REFERENCES artists(artist_id)
);

CREATE TABLE IF NOT EXISTS tracks (
  track_id TEXT PRIMARY KEY,
  track_name TEXT NOT NULL,
  album_id TEXT NOT NULL REFERENCES albums(album_id),
  duration_ms INTEGER NOT NULL CHECK (duration_ms > 0),
  popularity INTEGER NOT NULL CHECK (popularity BETWEEN 0 AND 100)
);

-- played_at is fixed-width UTC text (YYYY-MM-DDTHH:MM:SS.ffffffZ)
CREATE TABLE IF NOT EXISTS plays (
  played_at TEXT NOT NULL,
  track_id TEXT NOT NULL REFERENCES tracks(track_id),
  PRIMARY KEY (played_at, track_id)
);

-- Append-only run audit trail
CREATE TABLE IF NOT EXISTS etl_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT,
  table_name TEXT NOT NULL,
  status TEXT NOT NULL,
  row_count INTEGER NOT NULL DEFAULT 0,
  message TEXT,
  elapsed_ms INTEGER,
  created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS oauth_tokens (
  account TEXT PRIMARY KEY,
  refresh_token TEXT NOT NULL,
  access_token TEXT,
  token_type TEXT,
  expires_at TEXT,
  updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`

// Schema v2 - report indexes and the denormalized analytics table
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_plays_track_id ON plays(track_id);
CREATE INDEX IF NOT EXISTS idx_tracks_album_id ON tracks(album_id);
CREATE INDEX IF NOT EXISTS idx_albums_artist_id ON albums(artist_id);
CREATE INDEX IF NOT EXISTS idx_etl_logs_run_id ON etl_logs(run_id);

CREATE TABLE IF NOT EXISTS fact_played_track_details (
  played_at TEXT NOT NULL,
  track_id TEXT NOT NULL,
  track_name TEXT NOT NULL,
  duration_ms INTEGER NOT NULL,
  popularity INTEGER NOT NULL,
  album_id TEXT NOT NULL,
  album_name TEXT NOT NULL,
  album_type TEXT NOT NULL,
  release_date TEXT,
  artist_id TEXT NOT NULL,
  artist_name TEXT NOT NULL,
  PRIMARY KEY (played_at, track_id)
);
`

// PostgresSchema is the DDL an operator applies before pointing playlog at
// Postgres. playlog never runs it itself; Open only reflects the tables.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS artists (
  artist_id TEXT PRIMARY KEY,
  artist_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS albums (
  album_id TEXT PRIMARY KEY,
  album_name TEXT NOT NULL,
  album_type TEXT NOT NULL,
  release_date DATE,
  release_date_precision TEXT,
  artist_id TEXT NOT NULL REFERENCES artists(artist_id)
);

CREATE TABLE IF NOT EXISTS tracks (
  track_id TEXT PRIMARY KEY,
  track_name TEXT NOT NULL,
  album_id TEXT NOT NULL REFERENCES albums(album_id),
  duration_ms INTEGER NOT NULL CHECK (duration_ms > 0),
  popularity INTEGER NOT NULL CHECK (popularity BETWEEN 0 AND 100)
);

CREATE TABLE IF NOT EXISTS plays (
  played_at TIMESTAMPTZ NOT NULL,
  track_id TEXT NOT NULL REFERENCES tracks(track_id),
  PRIMARY KEY (played_at, track_id)
);

CREATE TABLE IF NOT EXISTS etl_logs (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT,
  table_name TEXT NOT NULL,
  status TEXT NOT NULL,
  row_count INTEGER NOT NULL DEFAULT 0,
  message TEXT,
  elapsed_ms BIGINT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS oauth_tokens (
  account TEXT PRIMARY KEY,
  refresh_token TEXT NOT NULL,
  access_token TEXT,
  token_type TEXT,
  expires_at TIMESTAMPTZ,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fact_played_track_details (
  played_at TIMESTAMPTZ NOT NULL,
  track_id TEXT NOT NULL,
  track_name TEXT NOT NULL,
  duration_ms INTEGER NOT NULL,
  popularity INTEGER NOT NULL,
  album_id TEXT NOT NULL,
  album_name TEXT NOT NULL,
  album_type TEXT NOT NULL,
  release_date DATE,
  artist_id TEXT NOT NULL,
  artist_name TEXT NOT NULL,
  PRIMARY KEY (played_at, track_id)
);

CREATE INDEX IF NOT EXISTS idx_plays_track_id ON plays(track_id);
CREATE INDEX IF NOT EXISTS idx_tracks_album_id ON tracks(album_id);
CREATE INDEX IF NOT EXISTS idx_albums_artist_id ON albums(artist_id);
CREATE INDEX IF NOT EXISTS idx_etl_logs_run_id ON etl_logs(run_id);
`

// requiredColumns lists what the pipeline reads and writes, per table
var requiredColumns = map[string][]string{
	"artists":  {"artist_id", "artist_name"},
	"albums":   {"album_id", "album_name", "album_type", "release_date", "release_date_precision", "artist_id"},
	"tracks":   {"track_id", "track_name", "album_id", "duration_ms", "popularity"},
	"plays":    {"played_at", "track_id"},
	"etl_logs": {"run_id", "table_name", "status", "row_count", "message", "elapsed_ms", "created_at"},
}

// optionalColumns are needed only by individual commands
var optionalColumns = map[string][]string{
	"oauth_tokens":              {"account", "refresh_token", "access_token", "token_type", "expires_at", "updated_at"},
	"fact_played_track_details": {"played_at", "track_id", "track_name", "duration_ms", "popularity", "album_id", "album_name", "album_type", "release_date", "artist_id", "artist_name"},
}
