// Package table is the thin table-oriented client the repositories talk to.
//
// It exposes the handful of capabilities a hosted table store offers:
// select, insert, update and delete with filters, ordering and a limit.
// Every call is a single round trip. Writes return the affected rows.
package table

import (
	"context"
	"fmt"
)

// Row is a single table row keyed by column name.
//
// JSON columns come back decoded (map[string]any, []any), timestamps as
// time.Time and integers as int64.
type Row map[string]any

// Op is a comparison operator usable in a Filter.
type Op string

const (
	OpEq Op = "="
	OpLt Op = "<"
)

// Filter restricts a query to rows where Column Op Value holds.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Lt builds a strictly-less-than filter.
func Lt(column string, value any) Filter {
	return Filter{Column: column, Op: OpLt, Value: value}
}

// Order sorts a select by one column.
type Order struct {
	Column     string
	Descending bool
}

// Query describes which rows an operation applies to.
// Order and Limit are only honoured by Select.
type Query struct {
	Filters []Filter
	Order   *Order
	Limit   int
}

// Where starts a Query from a set of filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// OrderBy returns a copy of q sorted by column.
func (q Query) OrderBy(column string, descending bool) Query {
	q.Order = &Order{Column: column, Descending: descending}
	return q
}

// WithLimit returns a copy of q limited to n rows. n <= 0 means no limit.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Client is the capability set of a table store.
type Client interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) ([]Row, error)
	Update(ctx context.Context, table string, values Row, q Query) ([]Row, error)
	Delete(ctx context.Context, table string, q Query) ([]Row, error)
}

// ErrUnfiltered is returned when an update or delete carries no filter.
var ErrUnfiltered = fmt.Errorf("table: refusing to modify rows without a filter")

func validateOp(op Op) error {
	switch op {
	case OpEq, OpLt:
		return nil
	}
	return fmt.Errorf("table: unsupported operator %q", op)
}
