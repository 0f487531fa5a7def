package codec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/appnet-org/tabbench/pkg/table"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const (
	sqliteDataTable   = "data"
	sqliteSchemaTable = "schema_columns"
)

// SQLite stores the table in a single-file SQLite database through
// modernc.org/sqlite. A side table records the column kinds so that
// booleans and timestamps survive the round trip.
type SQLite struct{}

func sqliteType(k table.Kind) string {
	switch k {
	case table.Float:
		return "REAL"
	case table.Int, table.Bool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (SQLite) Write(ctx context.Context, t *table.Table, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove previous database: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = OFF", "PRAGMA synchronous = OFF"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	cols := make([]string, t.Width())
	marks := make([]string, t.Width())
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c.Name) + " " + sqliteType(c.Kind)
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	schema := fmt.Sprintf("CREATE TABLE %s (position INTEGER PRIMARY KEY, name TEXT NOT NULL, kind TEXT NOT NULL)", sqliteSchemaTable)
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema table: %w", err)
	}
	for i, c := range t.Columns {
		if _, err := tx.ExecContext(ctx, "INSERT INTO "+sqliteSchemaTable+" VALUES (?, ?, ?)", i, c.Name, c.Kind.String()); err != nil {
			return err
		}
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", sqliteDataTable, strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create data table: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", sqliteDataTable, strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, t.Width())
	for i := 0; i < t.Rows(); i++ {
		for j, c := range t.Columns {
			v := c.Values[i]
			switch x := v.(type) {
			case bool:
				if x {
					v = int64(1)
				} else {
					v = int64(0)
				}
			case nil:
			default:
				if c.Kind == table.Time {
					v = table.FormatValue(x)
				}
			}
			args[j] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (SQLite) Read(ctx context.Context, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	t := table.New(stem(path))
	schema, err := db.QueryContext(ctx, "SELECT name, kind FROM "+sqliteSchemaTable+" ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	for schema.Next() {
		var name, kind string
		if err := schema.Scan(&name, &kind); err != nil {
			schema.Close()
			return nil, err
		}
		k, err := table.ParseKind(kind)
		if err != nil {
			schema.Close()
			return nil, err
		}
		t.Columns = append(t.Columns, table.Column{Name: name, Kind: k})
	}
	schema.Close()
	if err := schema.Err(); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+sqliteDataTable)
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	defer rows.Close()

	vals := make([]any, t.Width())
	ptrs := make([]any, t.Width())
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for j := range t.Columns {
			v, err := coerce(t.Columns[j].Kind, vals[j])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", t.Columns[j].Name, err)
			}
			t.Columns[j].Values = append(t.Columns[j].Values, v)
		}
	}
	return t, rows.Err()
}
