package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/franz/playlog/internal/util"
)

// TableColumns returns the column names of table, or nil when it does not exist
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	q := `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ?
		ORDER BY ordinal_position
	`
	if s.dialect.Name() == DriverSQLite {
		q = "SELECT name FROM pragma_table_info(?)"
	}

	rows, err := s.query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("failed to reflect %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, strings.ToLower(name))
	}
	return cols, rows.Err()
}

// Reflect verifies that every table the pipeline touches exists with the
// expected columns. Nothing is created or altered.
func (s *Store) Reflect(ctx context.Context) error {
	return s.reflectTables(ctx, requiredColumns)
}

// ReflectTable verifies a single table, including command-specific ones
func (s *Store) ReflectTable(ctx context.Context, table string) error {
	cols, ok := requiredColumns[table]
	if !ok {
		cols, ok = optionalColumns[table]
	}
	if !ok {
		return fmt.Errorf("%w: unknown table %s", util.ErrSchemaMismatch, table)
	}
	return s.reflectTables(ctx, map[string][]string{table: cols})
}

func (s *Store) reflectTables(ctx context.Context, want map[string][]string) error {
	tables := make([]string, 0, len(want))
	for t := range want {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var problems []string
	for _, table := range tables {
		have, err := s.TableColumns(ctx, table)
		if err != nil {
			return err
		}
		if len(have) == 0 {
			problems = append(problems, fmt.Sprintf("table %s is missing", table))
			continue
		}
		present := make(map[string]bool, len(have))
		for _, c := range have {
			present[c] = true
		}
		for _, c := range want[table] {
			if !present[c] {
				problems = append(problems, fmt.Sprintf("column %s.%s is missing", table, c))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", util.ErrSchemaMismatch, strings.Join(problems, "; "))
	}
	return nil
}
