package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const dateFormat = time.DateOnly

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Querier is the subset of *sql.DB and *sql.Tx the store needs. Passing a *sql.Tx makes every read and
// write of the store part of that transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads and writes workout records through a [Querier].
type Store struct {
	q Querier
}

// NewStore creates a store on top of q.
func NewStore(q Querier) Store {
	return Store{q: q}
}

// queryAll runs query and scans every row with scan.
func queryAll[T any](
	ctx context.Context, q Querier, scan func(*sql.Rows) (T, error), query string, args ...any,
) (_ []T, err error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var out []T
	for rows.Next() {
		var v T
		if v, err = scan(rows); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func scanInt(rows *sql.Rows) (int, error) {
	var n int
	err := rows.Scan(&n)
	return n, err //nolint:wrapcheck // wrapped by queryAll
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateFormat)
}

func lastInsertID(res sql.Result) (int, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return int(id), nil
}
