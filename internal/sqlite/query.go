package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

const (
	queryTimeout   = 5 * time.Second
	defaultMaxRows = 1000
)

// ErrRestrictedQuery is returned for statements that could escape the read-only connection.
var ErrRestrictedQuery = errors.New("query contains restricted operations")

//nolint:gochecknoglobals // compiled once
var restrictedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bATTACH\s+DATABASE\b`),
	regexp.MustCompile(`(?i)\bPRAGMA\b`),
}

// QueryResult is the tabular result of [Database.Inspect].
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Inspect runs an ad-hoc query on the read-only pool for debugging impact and feedback data.
//
// At most maxRows rows are returned, or 1000 when maxRows is not positive. Text columns stored as blobs
// are returned as strings.
func (db *Database) Inspect(ctx context.Context, query string, maxRows int) (QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryResult{}, errors.New("empty query")
	}
	for _, pattern := range restrictedPatterns {
		if pattern.MatchString(query) {
			return QueryResult{}, ErrRestrictedQuery
		}
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.ReadOnly.QueryContext(ctx, query)
	if err != nil {
		return QueryResult{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close rows", slog.Any("error", closeErr))
		}
	}()

	return collectRows(rows, maxRows)
}

func collectRows(rows *sql.Rows, maxRows int) (QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("get columns: %w", err)
	}

	result := QueryResult{Columns: columns, Rows: [][]any{}, RowCount: 0, Truncated: false}
	for rows.Next() {
		if result.RowCount >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err = rows.Scan(valuePtrs...); err != nil {
			return QueryResult{}, fmt.Errorf("scan row: %w", err)
		}
		for i, val := range values {
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
		result.RowCount++
	}
	if err = rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}
