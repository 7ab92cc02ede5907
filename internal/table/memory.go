package table

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Memory is an in-process Client with the same semantics as Postgres:
// auto-increment "id", RETURNING-style results, JSON values stored decoded.
// Every call runs under one mutex, so a filtered update is atomic.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memTable

	// FailWith, when set, is returned by every call.
	FailWith error
}

type memTable struct {
	nextID int64
	rows   []Row
	unique []string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

func (m *Memory) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{}
		m.tables[name] = t
	}
	return t
}

// Unique rejects inserts that repeat a value of column, the way a unique
// constraint named <table>_<column>_key would.
func (m *Memory) Unique(table, column string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	t.unique = append(t.unique, column)
	return m
}

func (t *memTable) checkUnique(table string, row Row) error {
	for _, col := range t.unique {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		for _, existing := range t.rows {
			if reflect.DeepEqual(existing[col], v) {
				return &pgconn.PgError{
					Severity:       "ERROR",
					Code:           "23505",
					Message:        fmt.Sprintf("duplicate key value violates unique constraint \"%s_%s_key\"", table, col),
					TableName:      table,
					ColumnName:     col,
					ConstraintName: table + "_" + col + "_key",
				}
			}
		}
	}
	return nil
}

func (m *Memory) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	matched, err := m.table(table).match(q.Filters)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(matched))
	for _, i := range matched {
		rows = append(rows, m.tables[table].rows[i])
	}

	if q.Order != nil {
		col, desc := q.Order.Column, q.Order.Descending
		var sortErr error
		sort.SliceStable(rows, func(i, j int) bool {
			c, err := compare(rows[i][col], rows[j][col])
			if err != nil {
				sortErr = err
				return false
			}
			if desc {
				return c > 0
			}
			return c < 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return copyRows(rows), nil
}

func (m *Memory) Insert(ctx context.Context, table string, row Row) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	t := m.table(table)
	stored, err := normalizeRow(row)
	if err != nil {
		return nil, err
	}
	if err := t.checkUnique(table, stored); err != nil {
		return nil, err
	}
	t.nextID++
	stored["id"] = t.nextID
	t.rows = append(t.rows, stored)
	return copyRows([]Row{stored}), nil
}

func (m *Memory) Update(ctx context.Context, table string, values Row, q Query) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if len(q.Filters) == 0 {
		return nil, ErrUnfiltered
	}

	t := m.table(table)
	matched, err := t.match(q.Filters)
	if err != nil {
		return nil, err
	}
	set, err := normalizeRow(values)
	if err != nil {
		return nil, err
	}

	updated := make([]Row, 0, len(matched))
	for _, i := range matched {
		for col, v := range set {
			t.rows[i][col] = v
		}
		updated = append(updated, t.rows[i])
	}
	return copyRows(updated), nil
}

func (m *Memory) Delete(ctx context.Context, table string, q Query) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if len(q.Filters) == 0 {
		return nil, ErrUnfiltered
	}

	t := m.table(table)
	matched, err := t.match(q.Filters)
	if err != nil {
		return nil, err
	}

	deleted := make([]Row, 0, len(matched))
	remove := make(map[int]bool, len(matched))
	for _, i := range matched {
		deleted = append(deleted, t.rows[i])
		remove[i] = true
	}

	kept := t.rows[:0]
	for i, r := range t.rows {
		if !remove[i] {
			kept = append(kept, r)
		}
	}
	t.rows = kept
	return copyRows(deleted), nil
}

func (t *memTable) match(filters []Filter) ([]int, error) {
	var out []int
	for i, row := range t.rows {
		ok, err := matches(row, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

func matches(row Row, filters []Filter) (bool, error) {
	for _, f := range filters {
		if err := validateOp(f.Op); err != nil {
			return false, err
		}
		want, err := normalizeValue(f.Value)
		if err != nil {
			return false, err
		}
		got, present := row[f.Column]
		// SQL comparisons with NULL are never true.
		if !present || got == nil || want == nil {
			return false, nil
		}
		c, err := compare(got, want)
		if err != nil {
			return false, err
		}
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false, nil
			}
		case OpLt:
			if c >= 0 {
				return false, nil
			}
		}
	}
	return true, nil
}

// compare orders two stored values. NULLs sort last, as in Postgres.
func compare(a, b any) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return 1, nil
	case b == nil:
		return -1, nil
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("table: cannot compare %T with %T", a, b)
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case int64:
		y, ok := b.(int64)
		if !ok {
			return 0, fmt.Errorf("table: cannot compare %T with %T", a, b)
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("table: cannot compare %T with %T", a, b)
		}
		return x.Compare(y), nil
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("table: cannot compare %T with %T", a, b)
		}
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("table: unsupported comparison type %T", a)
}

// normalizeValue coerces a value to the shape the Postgres client reads back:
// integers as int64, timestamps in UTC, JSON values decoded into any.
func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64, string, bool:
		return x, nil
	case time.Time:
		return x.UTC(), nil
	case map[string]any:
		if x == nil {
			return nil, nil
		}
		return roundTrip(x)
	case []any:
		if x == nil {
			return nil, nil
		}
		return roundTrip(x)
	case []string:
		if x == nil {
			return nil, nil
		}
		return roundTrip(x)
	case []map[string]any:
		if x == nil {
			return nil, nil
		}
		return roundTrip(x)
	}

	// Named string types such as model.Status.
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return nil, fmt.Errorf("table: unsupported value type %T", v)
}

func roundTrip(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeRow(row Row) (Row, error) {
	out := make(Row, len(row))
	for col, v := range row {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("table: column %s: %w", col, err)
		}
		out[col] = nv
	}
	return out, nil
}

// copyRows hands out deep copies so callers cannot mutate stored rows.
func copyRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		c := make(Row, len(r))
		for k, v := range r {
			switch v.(type) {
			case map[string]any, []any:
				// Stored JSON always round-trips.
				cp, _ := roundTrip(v)
				c[k] = cp
			default:
				c[k] = v
			}
		}
		out = append(out, c)
	}
	return out
}
