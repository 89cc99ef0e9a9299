package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/franz/playlog/internal/util"
)

// maxRowsPerStatement caps multi-row VALUES lists
const maxRowsPerStatement = 500

// Table describes a destination keyed by its natural key columns
type Table struct {
	Name    string
	Columns []string
	Keys    []string
}

// Destination tables of the pipeline, in load order
var (
	ArtistsTable = Table{
		Name:    "artists",
		Columns: []string{"artist_id", "artist_name"},
		Keys:    []string{"artist_id"},
	}
	AlbumsTable = Table{
		Name:    "albums",
		Columns: []string{"album_id", "album_name", "album_type", "release_date", "release_date_precision", "artist_id"},
		Keys:    []string{"album_id"},
	}
	TracksTable = Table{
		Name:    "tracks",
		Columns: []string{"track_id", "track_name", "album_id", "duration_ms", "popularity"},
		Keys:    []string{"track_id"},
	}
	PlaysTable = Table{
		Name:    "plays",
		Columns: []string{"played_at", "track_id"},
		Keys:    []string{"played_at", "track_id"},
	}
)

// InsertIgnore inserts rows in one transaction. Rows whose key already
// exists are skipped and not counted. Returns the number of inserted rows.
func (s *Store) InsertIgnore(ctx context.Context, t Table, rows [][]any) (int64, error) {
	return s.merge(ctx, t, rows, nil)
}

// InsertOrUpdate inserts rows in one transaction. Rows whose key already
// exists get the update columns overwritten; a row only counts as affected
// when one of those columns actually changed.
func (s *Store) InsertOrUpdate(ctx context.Context, t Table, rows [][]any, update []string) (int64, error) {
	if len(update) == 0 {
		return 0, fmt.Errorf("insert-or-update into %s: no update columns", t.Name)
	}
	return s.merge(ctx, t, rows, update)
}

func (s *Store) merge(ctx context.Context, t Table, rows [][]any, update []string) (int64, error) {
	if err := checkShape(t, rows, update); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if update != nil {
		// Postgres rejects a statement that updates the same row twice
		rows = lastByKey(t, rows)
	}

	perStmt := s.dialect.MaxArgs() / len(t.Columns)
	if perStmt > maxRowsPerStatement {
		perStmt = maxRowsPerStatement
	}

	var affected int64
	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(rows); start += perStmt {
			end := min(start+perStmt, len(rows))
			chunk := rows[start:end]

			stmt, args := s.buildMerge(t, chunk, update)
			res, err := tx.ExecContext(ctx, stmt, args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("merge into %s: %w: %v", t.Name, util.ErrOutOfOrder, err)
		}
		return 0, fmt.Errorf("merge into %s: %w", t.Name, err)
	}
	return affected, nil
}

// isForeignKeyViolation reports whether err is a referential integrity failure
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func (s *Store) buildMerge(t Table, rows [][]any, update []string) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(rows)*len(t.Columns))

	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", t.Name, strings.Join(t.Columns, ", "))
	n := 0
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			n++
			b.WriteString(s.dialect.Placeholder(n))
			args = append(args, s.bindValue(v))
		}
		b.WriteByte(')')
	}

	fmt.Fprintf(&b, " ON CONFLICT (%s) ", strings.Join(t.Keys, ", "))
	if len(update) == 0 {
		b.WriteString("DO NOTHING")
		return b.String(), args
	}

	sets := make([]string, len(update))
	changed := make([]string, len(update))
	for i, c := range update {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		changed[i] = s.dialect.DistinctFrom(t.Name+"."+c, "excluded."+c)
	}
	fmt.Fprintf(&b, "DO UPDATE SET %s WHERE %s", strings.Join(sets, ", "), strings.Join(changed, " OR "))
	return b.String(), args
}

// bindValue converts instants to the dialect's storage form
func (s *Store) bindValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return s.dialect.Timestamp(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return s.dialect.Timestamp(*t)
	default:
		return v
	}
}

func checkShape(t Table, rows [][]any, update []string) error {
	if len(t.Columns) == 0 || len(t.Keys) == 0 {
		return fmt.Errorf("table %s: columns and keys are required", t.Name)
	}
	for _, k := range t.Keys {
		if !slices.Contains(t.Columns, k) {
			return fmt.Errorf("table %s: key %s is not a column", t.Name, k)
		}
	}
	for _, c := range update {
		if !slices.Contains(t.Columns, c) || slices.Contains(t.Keys, c) {
			return fmt.Errorf("table %s: cannot update column %s", t.Name, c)
		}
	}
	for i, row := range rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("table %s: row %d has %d values, want %d", t.Name, i, len(row), len(t.Columns))
		}
	}
	return nil
}

// lastByKey keeps one row per key: the last value at the first position
func lastByKey(t Table, rows [][]any) [][]any {
	idx := make([]int, len(t.Keys))
	for i, k := range t.Keys {
		idx[i] = slices.Index(t.Columns, k)
	}

	pos := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		parts := make([]string, len(idx))
		for i, j := range idx {
			parts[i] = fmt.Sprint(row[j])
		}
		key := strings.Join(parts, "\x00")
		if p, ok := pos[key]; ok {
			out[p] = row
			continue
		}
		pos[key] = len(out)
		out = append(out, row)
	}
	return out
}
