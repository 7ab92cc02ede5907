package sqlerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bynd/onepager/internal/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapCode(t *testing.T) {
	tests := []struct {
		state string
		want  Code
	}{
		{"23505", UniqueViolation},
		{"23502", NotNullViolation},
		{"23503", ForeignKeyViolation},
		{"23514", CheckViolation},
		{"22P02", InvalidText},
		{"42P01", UndefinedTable},
		{"08006", ConnectionFailure},
		{"57014", QueryCanceled},
		{"XX000", Other},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			if got := MapCode(tt.state); got != tt.want {
				t.Errorf("MapCode(%q) = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

func TestMapSeverity(t *testing.T) {
	if got := MapSeverity("fatal"); got != SeverityFatal {
		t.Errorf("MapSeverity(fatal) = %q", got)
	}
	if got := MapSeverity("bogus"); got != SeverityError {
		t.Errorf("MapSeverity(bogus) = %q", got)
	}
}

func TestWrapAndErrCode(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Severity: "ERROR", Message: "duplicate key", TableName: "one_pager_reports"}
	wrapped := Wrap(fmt.Errorf("insert: %w", pgErr))

	if got := ErrCode(wrapped); got != UniqueViolation {
		t.Errorf("ErrCode() = %q, want %q", got, UniqueViolation)
	}
	if !errors.Is(wrapped, pgErr) {
		t.Error("wrapped error should unwrap to the driver error")
	}

	plain := errors.New("network down")
	if Wrap(plain) != plain {
		t.Error("non-database errors should pass through Wrap")
	}
	if ErrCode(plain) != Other {
		t.Error("ErrCode of a plain error should be Other")
	}
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name: "duplicate request id",
			err: Wrap(&pgconn.PgError{
				Code:           "23505",
				TableName:      "one_pager_reports",
				ConstraintName: "one_pager_reports_request_id_key",
			}),
			wantStatus: http.StatusConflict,
			wantCode:   "ONE_PAGER_REPORT_ALREADY_EXISTS",
		},
		{
			name:       "not null",
			err:        &pgconn.PgError{Code: "23502", TableName: "one_pager_reports", ColumnName: "company_name"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "ONE_PAGER_REPORT_REQUIRED",
		},
		{
			name:       "connection",
			err:        &pgconn.PgError{Code: "08006"},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "SERVICE_UNAVAILABLE",
		},
		{
			name:       "no rows",
			err:        pgx.ErrNoRows,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "http error passes through",
			err:        errs.NewForbiddenError("nope", true),
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var httpErr *errs.HTTPError
			if !errors.As(HandleError(tt.err), &httpErr) {
				t.Fatalf("HandleError() did not return *errs.HTTPError")
			}
			if httpErr.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", httpErr.Status, tt.wantStatus)
			}
			if httpErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", httpErr.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleError_UniqueMessageNamesColumn(t *testing.T) {
	err := HandleError(&pgconn.PgError{
		Code:           "23505",
		TableName:      "one_pager_reports",
		ConstraintName: "one_pager_reports_request_id_key",
	})

	want := "A One Pager Report with this request id already exists"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestUniqueColumn(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"column reported", &Error{ColumnName: "request_id"}, "request_id"},
		{"table prefixed key", &Error{TableName: "one_pager_reports", ConstraintName: "one_pager_reports_request_id_key"}, "request_id"},
		{"unknown table", &Error{ConstraintName: "users_email_key"}, "email"},
		{"no constraint", &Error{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := uniqueColumn(tt.err); got != tt.want {
				t.Errorf("uniqueColumn() = %q, want %q", got, tt.want)
			}
		})
	}
}
