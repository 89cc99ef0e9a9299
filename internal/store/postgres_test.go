//go:build integration

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/franz/playlog/internal/util"
)

var (
	pgDSN       string
	pgContainer *postgres.PostgresContainer
)

// TestMain starts a Postgres container unless TEST_PG_DSN points at one
func TestMain(m *testing.M) {
	ctx := context.Background()

	pgDSN = os.Getenv("TEST_PG_DSN")
	if pgDSN == "" {
		var err error
		pgContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("playlog_test"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		pgDSN, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			_ = pgContainer.Terminate(ctx)
			os.Exit(1)
		}
	}

	code := m.Run()

	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}
	os.Exit(code)
}

// resetPostgres recreates the schema the way an operator would
func resetPostgres(t *testing.T) {
	t.Helper()
	db, err := sql.Open("pgx", pgDSN)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`DROP TABLE IF EXISTS fact_played_track_details, plays, tracks, albums, artists, etl_logs, oauth_tokens CASCADE`)
	require.NoError(t, err)
	_, err = db.Exec(PostgresSchema)
	require.NoError(t, err)
}

func TestPostgresRejectsMissingSchema(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("pgx", pgDSN)
	require.NoError(t, err)
	_, err = db.Exec(`DROP TABLE IF EXISTS fact_played_track_details, plays, tracks, albums, artists, etl_logs, oauth_tokens CASCADE`)
	require.NoError(t, err)
	db.Close()

	_, err = OpenPostgres(ctx, pgDSN)
	require.ErrorIs(t, err, util.ErrSchemaMismatch)
}

func TestPostgresMergeSemantics(t *testing.T) {
	resetPostgres(t)
	ctx := context.Background()

	store, err := OpenDriver(ctx, DriverPostgres, pgDSN)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "postgres", store.Dialect().Name())

	n, err := store.InsertIgnore(ctx, ArtistsTable, [][]any{{"ar1", "Original"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.InsertIgnore(ctx, ArtistsTable, [][]any{{"ar1", "Renamed"}})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = store.InsertIgnore(ctx, AlbumsTable, [][]any{{"al1", "Album", "album", "2020-01-01", "day", "ar1"}})
	require.NoError(t, err)

	update := []string{"track_name", "popularity"}
	n, err = store.InsertOrUpdate(ctx, TracksTable, [][]any{{"t1", "Song", "al1", 1000, 10}}, update)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.InsertOrUpdate(ctx, TracksTable, [][]any{{"t1", "Song", "al1", 1000, 10}}, update)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "identical row must not count as updated")

	n, err = store.InsertOrUpdate(ctx, TracksTable, [][]any{{"t1", "Song", "al1", 1000, 42}}, update)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	track, err := store.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 42, track.Popularity)

	at := time.Date(2024, 2, 3, 4, 5, 6, 789000000, time.UTC)
	n, err = store.InsertIgnore(ctx, PlaysTable, [][]any{{at, "t1"}, {at, "t1"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	latest, ok, err := store.MaxPlayedAt(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(at))

	_, err = store.InsertOrUpdate(ctx, TracksTable, [][]any{{"t2", "Orphan", "nope", 1000, 1}}, update)
	assert.Error(t, err)

	require.NoError(t, store.InsertRunLog(ctx, &RunLogEntry{RunID: "r", Table: "pipeline", Status: "SUCCESS", RowCount: 3}))
	logs, err := store.ListRunLogs(ctx, "r", 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].CreatedAt.IsZero())

	days, err := store.PlaysPerDay(ctx, at.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []DayCount{{Day: "2024-02-03", Plays: 1}}, days)

	hours, err := store.PlaysByHour(ctx, at.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, hours[4])

	rebuilt, err := store.RebuildPlayedTrackDetails(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rebuilt)
}
