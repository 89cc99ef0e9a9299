package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sqliteTimeLayout is fixed width so lexical order matches chronological order
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// dateLayout is used for release dates in both dialects
const dateLayout = "2006-01-02"

// Dialect hides the SQL differences between the supported drivers
type Dialect interface {
	// Name is the driver name ("sqlite" or "postgres")
	Name() string
	// Placeholder returns the bind marker for the n-th (1-based) argument
	Placeholder(n int) string
	// Timestamp converts an instant into a bindable value
	Timestamp(t time.Time) any
	// DistinctFrom is a null-safe inequality between two expressions
	DistinctFrom(a, b string) string
	// Day renders a timestamp column as a UTC YYYY-MM-DD string expression
	Day(col string) string
	// Hour renders a timestamp column as the UTC hour of day (0-23)
	Hour(col string) string
	// MaxArgs bounds the number of bind arguments in one statement
	MaxArgs() int
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string           { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) Timestamp(t time.Time) any {
	return t.UTC().Format(sqliteTimeLayout)
}
func (sqliteDialect) DistinctFrom(a, b string) string { return a + " IS NOT " + b }
func (sqliteDialect) Day(col string) string           { return "substr(" + col + ", 1, 10)" }
func (sqliteDialect) Hour(col string) string {
	return "CAST(substr(" + col + ", 12, 2) AS INTEGER)"
}
func (sqliteDialect) MaxArgs() int { return 32766 }

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) Timestamp(t time.Time) any {
	return t.UTC()
}
func (postgresDialect) DistinctFrom(a, b string) string { return a + " IS DISTINCT FROM " + b }
func (postgresDialect) Day(col string) string {
	return "to_char(" + col + " AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
}
func (postgresDialect) Hour(col string) string {
	return "CAST(EXTRACT(HOUR FROM " + col + " AT TIME ZONE 'UTC') AS INTEGER)"
}
func (postgresDialect) MaxArgs() int { return 65535 }

// rebind rewrites '?' markers into the dialect's placeholders.
// Queries in this package never contain a literal '?' inside strings.
func rebind(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseTime converts a scanned column value into a UTC instant.
// SQLite hands back TEXT, Postgres hands back time.Time.
func parseTime(v any) (time.Time, bool, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return t.UTC(), true, nil
	case []byte:
		return parseTimeString(string(t))
	case string:
		return parseTimeString(t)
	default:
		return time.Time{}, false, fmt.Errorf("unsupported time value %T", v)
	}
}

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	dateLayout,
}

func parseTimeString(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognised time format %q", s)
}

// DateString renders a release date for storage, or nil when unknown
func DateString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}
