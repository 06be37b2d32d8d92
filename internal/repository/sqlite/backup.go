package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/snipshare/internal/apperror"
)

// ColumnKind says how a column travels through a text dump.
type ColumnKind int

const (
	KindText ColumnKind = iota
	// KindNullableText dumps NULL as "" and restores "" as NULL.
	KindNullableText
	KindInt
	KindNullableInt
	// KindTime is dumped as RFC 3339 with nanoseconds, always UTC.
	KindTime
)

// Column is one dumped column.
type Column struct {
	Name string
	Kind ColumnKind
}

// Table describes a table in dump order.
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the header row for the table.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

var backupTables = []Table{
	{Name: "users", Columns: []Column{
		{"id", KindText},
		{"github_id", KindNullableInt},
		{"login", KindText},
		{"email", KindText},
		{"avatar_url", KindText},
		{"bio", KindText},
		{"is_admin", KindInt},
		{"password_hash", KindNullableText},
		{"created_at", KindTime},
		{"updated_at", KindTime},
	}},
	{Name: "snippets", Columns: []Column{
		{"id", KindText},
		{"title", KindText},
		{"code", KindText},
		{"description", KindText},
		{"language", KindText},
		{"image_url", KindText},
		{"author_id", KindText},
		{"created_at", KindTime},
		{"updated_at", KindTime},
	}},
	{Name: "snippet_categories", Columns: []Column{
		{"snippet_id", KindText},
		{"name", KindText},
	}},
	{Name: "votes", Columns: []Column{
		{"id", KindText},
		{"snippet_id", KindText},
		{"user_id", KindNullableText},
		{"voter_ip", KindText},
		{"voter_key", KindText},
		{"created_at", KindTime},
	}},
	{Name: "comments", Columns: []Column{
		{"id", KindText},
		{"snippet_id", KindText},
		{"author_id", KindNullableText},
		{"author_name", KindText},
		{"body", KindText},
		{"created_at", KindTime},
	}},
}

// Tables returns every backed-up table, parents before children.
func Tables() []Table {
	out := make([]Table, len(backupTables))
	copy(out, backupTables)
	return out
}

func lookupTable(name string) (Table, bool) {
	for _, t := range backupTables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// TableDumper streams one table at a time. *DB implements it outside any
// transaction; DumpTables hands fn one bound to a single read snapshot.
type TableDumper interface {
	DumpTable(ctx context.Context, table string, fn func(record []string) error) error
}

// DumpTable streams every row of table to fn as text fields in column order.
// fn must not touch the database: the rows stay open while it runs.
func (db *DB) DumpTable(ctx context.Context, table string, fn func(record []string) error) error {
	return dumpTable(ctx, db.conn, table, fn)
}

// DumpTables runs fn inside one read-only transaction, so every table it
// dumps reflects the same point in time. Writes committed while fn runs are
// not seen.
func (db *DB) DumpTables(ctx context.Context, fn func(d TableDumper) error) error {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("sqlite: beginning snapshot: %w", err)
	}
	defer tx.Rollback()

	if err := fn(snapshot{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: ending snapshot: %w", err)
	}
	return nil
}

type snapshot struct {
	tx *sql.Tx
}

func (s snapshot) DumpTable(ctx context.Context, table string, fn func(record []string) error) error {
	return dumpTable(ctx, s.tx, table, fn)
}

func dumpTable(ctx context.Context, q querier, table string, fn func(record []string) error) error {
	t, ok := lookupTable(table)
	if !ok {
		return fmt.Errorf("sqlite: unknown table %q", table)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+strings.Join(t.ColumnNames(), ", ")+` FROM `+t.Name+` ORDER BY rowid`,
	)
	if err != nil {
		return fmt.Errorf("sqlite: dumping %s: %w", t.Name, err)
	}
	defer rows.Close()

	values := make([]any, len(t.Columns))
	ptrs := make([]any, len(t.Columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("sqlite: scanning %s row: %w", t.Name, err)
		}
		record := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			s, err := encodeValue(col, values[i])
			if err != nil {
				return fmt.Errorf("sqlite: encoding %s.%s: %w", t.Name, col.Name, err)
			}
			record[i] = s
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating %s: %w", t.Name, err)
	}
	return nil
}

func encodeValue(col Column, v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case []byte:
		return string(val), nil
	case string:
		if col.Kind == KindTime {
			t, err := parseStoredTime(val)
			if err != nil {
				return "", err
			}
			return t.Format(time.RFC3339Nano), nil
		}
		return val, nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// storedTimeLayouts are the text forms a DATETIME column can hold: what the
// driver writes with _time_format=sqlite and what CURRENT_TIMESTAMP produces.
var storedTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func decodeValue(col Column, s string) (any, error) {
	switch col.Kind {
	case KindNullableText:
		if s == "" {
			return nil, nil
		}
		return s, nil
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", s)
		}
		return n, nil
	case KindNullableInt:
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", s)
		}
		return n, nil
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("not an RFC 3339 time: %q", s)
		}
		return t.UTC(), nil
	default:
		return s, nil
	}
}

// RestoreTables replaces the contents of every backed-up table with data,
// keyed by table name. Every table must be present (an empty slice clears
// it). All rows are decoded before anything is written, and the whole
// replacement commits or rolls back as one transaction. It returns the
// number of rows restored per table.
func (db *DB) RestoreTables(ctx context.Context, data map[string][][]string) (map[string]int, error) {
	decoded := make(map[string][][]any, len(backupTables))
	for _, t := range backupTables {
		records, ok := data[t.Name]
		if !ok {
			return nil, apperror.ValidationFailed("archive", fmt.Sprintf("table %s is missing", t.Name))
		}
		rows := make([][]any, 0, len(records))
		for n, rec := range records {
			if len(rec) != len(t.Columns) {
				return nil, apperror.ValidationFailed("archive",
					fmt.Sprintf("%s row %d has %d fields, want %d", t.Name, n+1, len(rec), len(t.Columns)))
			}
			row := make([]any, len(rec))
			for i, col := range t.Columns {
				v, err := decodeValue(col, rec[i])
				if err != nil {
					return nil, apperror.ValidationFailed("archive",
						fmt.Sprintf("%s row %d column %s: %v", t.Name, n+1, col.Name, err))
				}
				row[i] = v
			}
			rows = append(rows, row)
		}
		decoded[t.Name] = rows
	}
	for name := range data {
		if _, ok := lookupTable(name); !ok {
			return nil, apperror.ValidationFailed("archive", fmt.Sprintf("unknown table %s", name))
		}
	}

	counts := make(map[string]int, len(backupTables))
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		for i := len(backupTables) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+backupTables[i].Name); err != nil {
				return fmt.Errorf("sqlite: clearing %s: %w", backupTables[i].Name, err)
			}
		}

		for _, t := range backupTables {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
			stmt, err := tx.PrepareContext(ctx,
				`INSERT INTO `+t.Name+` (`+strings.Join(t.ColumnNames(), ", ")+`) VALUES (`+placeholders+`)`,
			)
			if err != nil {
				return fmt.Errorf("sqlite: preparing insert into %s: %w", t.Name, err)
			}
			for n, row := range decoded[t.Name] {
				if _, err := stmt.ExecContext(ctx, row...); err != nil {
					stmt.Close()
					if isConstraintViolation(err) {
						return apperror.ValidationFailed("archive",
							fmt.Sprintf("%s row %d conflicts with the rest of the archive: %s", t.Name, n+1, constraintDetail(err)))
					}
					return fmt.Errorf("sqlite: restoring %s row %d: %w", t.Name, n+1, err)
				}
			}
			if err := stmt.Close(); err != nil {
				return fmt.Errorf("sqlite: closing insert into %s: %w", t.Name, err)
			}
			counts[t.Name] = len(decoded[t.Name])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
