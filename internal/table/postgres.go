package table

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Querier is the part of *pgxpool.Pool (or pgx.Tx) the Postgres client needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres implements Client with one parameter-bound statement per call.
// All writes use RETURNING * so callers get the stored row back.
type Postgres struct {
	db Querier
}

// NewPostgres wraps a pgx pool or transaction.
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	sql, args, err := buildSelect(table, q)
	if err != nil {
		return nil, err
	}
	return p.query(ctx, sql, args)
}

func (p *Postgres) Insert(ctx context.Context, table string, row Row) ([]Row, error) {
	sql, args, err := buildInsert(table, row)
	if err != nil {
		return nil, err
	}
	return p.query(ctx, sql, args)
}

func (p *Postgres) Update(ctx context.Context, table string, values Row, q Query) ([]Row, error) {
	sql, args, err := buildUpdate(table, values, q)
	if err != nil {
		return nil, err
	}
	return p.query(ctx, sql, args)
}

func (p *Postgres) Delete(ctx context.Context, table string, q Query) ([]Row, error) {
	sql, args, err := buildDelete(table, q)
	if err != nil {
		return nil, err
	}
	return p.query(ctx, sql, args)
}

func (p *Postgres) query(ctx context.Context, sql string, args []any) ([]Row, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "table: query")
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, errors.Wrap(err, "table: collect rows")
	}

	out := make([]Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, Row(m))
	}
	return out, nil
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// sortedColumns keeps generated SQL deterministic.
func sortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// encodeValue turns JSON-shaped Go values into JSON text. Postgres casts the
// text to json/jsonb both under the extended protocol and the simple protocol
// that hosted connection poolers require. A nil map or slice is SQL NULL,
// not JSON null.
func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if x == nil {
			return nil, nil
		}
	case []any:
		if x == nil {
			return nil, nil
		}
	case []string:
		if x == nil {
			return nil, nil
		}
	case []map[string]any:
		if x == nil {
			return nil, nil
		}
	default:
		return v, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "table: encode json value")
	}
	return string(b), nil
}

type argList struct {
	args []any
}

func (a *argList) add(v any) (string, error) {
	enc, err := encodeValue(v)
	if err != nil {
		return "", err
	}
	a.args = append(a.args, enc)
	return fmt.Sprintf("$%d", len(a.args)), nil
}

func (a *argList) where(filters []Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if err := validateOp(f.Op); err != nil {
			return "", err
		}
		ph, err := a.add(f.Value)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", quote(f.Column), f.Op, ph))
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func buildSelect(table string, q Query) (string, []any, error) {
	var a argList
	where, err := a.where(q.Filters)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(quote(table))
	sb.WriteString(where)
	if q.Order != nil {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(quote(q.Order.Column))
		if q.Order.Descending {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String(), a.args, nil
}

func buildInsert(table string, row Row) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, fmt.Errorf("table: insert into %s with no columns", table)
	}

	var a argList
	cols := sortedColumns(row)
	quoted := make([]string, 0, len(cols))
	placeholders := make([]string, 0, len(cols))
	for _, col := range cols {
		ph, err := a.add(row[col])
		if err != nil {
			return "", nil, err
		}
		quoted = append(quoted, quote(col))
		placeholders = append(placeholders, ph)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quote(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return sql, a.args, nil
}

func buildUpdate(table string, values Row, q Query) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("table: update of %s with no columns", table)
	}
	if len(q.Filters) == 0 {
		return "", nil, ErrUnfiltered
	}

	var a argList
	cols := sortedColumns(values)
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		ph, err := a.add(values[col])
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", quote(col), ph))
	}

	where, err := a.where(q.Filters)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("UPDATE %s SET %s%s RETURNING *", quote(table), strings.Join(sets, ", "), where)
	return sql, a.args, nil
}

func buildDelete(table string, q Query) (string, []any, error) {
	if len(q.Filters) == 0 {
		return "", nil, ErrUnfiltered
	}

	var a argList
	where, err := a.where(q.Filters)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s%s RETURNING *", quote(table), where), a.args, nil
}
