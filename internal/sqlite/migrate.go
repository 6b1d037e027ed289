package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// migrateTo brings the live schema in line with schemaDefinition declaratively.
//
// The target schema is created in a scratch in-memory database that is attached as schemaTarget, and
// sqlite_schema of both is diffed. Tables that changed go through the 12-step procedure of
// https://www.sqlite.org/lang_altertable.html#otheralter, keeping the columns both versions share.
// Indexes and triggers are dropped and recreated when their SQL differs.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachSchemaTarget(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach schema target: %w", err)
	}
	defer detach()

	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, fmt.Errorf("re-enable foreign keys: %w", fkErr))
		}
	}()

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.migrateTables(ctx, tx); err != nil {
			return fmt.Errorf("migrate tables: %w", err)
		}
		for _, typ := range []string{"index", "trigger"} {
			if err := db.migrateObjects(ctx, tx, typ); err != nil {
				return fmt.Errorf("migrate %ss: %w", typ, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
			return fmt.Errorf("foreign key check: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

func (db *Database) attachSchemaTarget(ctx context.Context, schemaDefinition string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open schema target: %w", err)
	}
	// The shared in-memory database lives as long as the attachment keeps a reference to it.
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target", slog.Any("error", closeErr))
		}
	}()
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("create target schema: %w", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", dsn); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach schema target", slog.Any("error", detachErr))
		}
	}, nil
}

type schemaObject struct {
	name    string
	liveSQL string
	newSQL  string
}

// diffSchema lists objects of typ that are only live (removed), only in the target (added), or in both
// with differing SQL (changed). Quotes are ignored because RENAME adds them to the stored SQL.
func diffSchema(ctx context.Context, tx *sql.Tx, typ string) (removed, added, changed []schemaObject, err error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT COALESCE(live.name, target.name), COALESCE(live.sql, ''), COALESCE(target.sql, '')
		FROM (SELECT name, sql FROM main.sqlite_schema WHERE type = :typ) AS live
		FULL OUTER JOIN (SELECT name, sql FROM schemaTarget.sqlite_schema WHERE type = :typ) AS target
			ON live.name = target.name
		WHERE COALESCE(live.name, target.name) NOT LIKE 'sqlite_%'
		ORDER BY 1`, sql.Named("typ", typ))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("query schema diff: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	for rows.Next() {
		var obj schemaObject
		if err = rows.Scan(&obj.name, &obj.liveSQL, &obj.newSQL); err != nil {
			return nil, nil, nil, fmt.Errorf("scan schema object: %w", err)
		}
		switch {
		case obj.newSQL == "":
			removed = append(removed, obj)
		case obj.liveSQL == "":
			added = append(added, obj)
		case strings.ReplaceAll(obj.liveSQL, `"`, "") != strings.ReplaceAll(obj.newSQL, `"`, ""):
			changed = append(changed, obj)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("rows error: %w", err)
	}
	return removed, added, changed, nil
}

func (db *Database) exec(ctx context.Context, tx *sql.Tx, query string) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migration step", slog.String("query", query))
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("exec %q: %w", query, err)
	}
	return nil
}

func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	removed, added, changed, err := diffSchema(ctx, tx, "table")
	if err != nil {
		return err
	}
	for _, t := range removed {
		if err = db.exec(ctx, tx, "DROP TABLE "+t.name); err != nil {
			return err
		}
	}
	for _, t := range added {
		if err = db.exec(ctx, tx, t.newSQL); err != nil {
			return err
		}
	}
	for _, t := range changed {
		tempName := t.name + "_migration_temp"
		if err = db.exec(ctx, tx, strings.Replace(t.newSQL, t.name, tempName, 1)); err != nil {
			return err
		}
		var columns []string
		if columns, err = commonColumns(ctx, tx, t.name); err != nil {
			return err
		}
		cols := strings.Join(columns, ", ")
		steps := []string{
			fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tempName, cols, cols, t.name),
			"DROP TABLE " + t.name,
			fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tempName, t.name),
		}
		for _, step := range steps {
			if err = db.exec(ctx, tx, step); err != nil {
				return err
			}
		}
	}
	return nil
}

func (db *Database) migrateObjects(ctx context.Context, tx *sql.Tx, typ string) error {
	removed, added, changed, err := diffSchema(ctx, tx, typ)
	if err != nil {
		return err
	}
	drop := "DROP " + strings.ToUpper(typ) + " IF EXISTS "
	for _, o := range removed {
		// Indexes of a dropped table are already gone.
		if err = db.exec(ctx, tx, drop+o.name); err != nil {
			return err
		}
	}
	for _, o := range changed {
		if err = db.exec(ctx, tx, drop+o.name); err != nil {
			return err
		}
		if err = db.exec(ctx, tx, o.newSQL); err != nil {
			return err
		}
	}
	for _, o := range added {
		if err = db.exec(ctx, tx, o.newSQL); err != nil {
			return err
		}
	}
	return nil
}

// commonColumns returns the quoted column names that table has in both schemas.
func commonColumns(ctx context.Context, tx *sql.Tx, table string) (_ []string, err error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT '"' || target.name || '"'
		FROM PRAGMA_TABLE_INFO(:table) AS live
		JOIN PRAGMA_TABLE_INFO(:table, 'schemaTarget') AS target ON target.name = live.name`,
		sql.Named("table", table))
	if err != nil {
		return nil, fmt.Errorf("query common columns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()
	var columns []string
	for rows.Next() {
		var c string
		if err = rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return columns, nil
}
