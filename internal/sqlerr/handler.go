package sqlerr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bynd/onepager/internal/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// constraintColumnRe is the fallback for constraints on unknown tables.
var constraintColumnRe = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)

// generateErrorCode builds a machine readable code such as
// ONE_PAGER_REPORT_ALREADY_EXISTS.
func generateErrorCode(tableName string, code Code) string {
	if tableName == "" {
		tableName = "RECORD"
	}

	domain := strings.ToUpper(tableName)
	if strings.HasSuffix(domain, "S") && len(domain) > 1 {
		domain = domain[:len(domain)-1]
	}

	action := "ERROR"
	switch code {
	case ForeignKeyViolation:
		action = "NOT_FOUND"
	case UniqueViolation:
		action = "ALREADY_EXISTS"
	case NotNullViolation:
		action = "REQUIRED"
	case CheckViolation, InvalidText:
		action = "INVALID"
	}

	return fmt.Sprintf("%s_%s", domain, action)
}

func formatUserFriendlyMessage(sqlErr *Error) string {
	entity := entityName(sqlErr.TableName)

	switch sqlErr.Code {
	case ForeignKeyViolation:
		if ref := strings.TrimSuffix(strings.ToLower(sqlErr.ColumnName), "_id"); ref != "" {
			entity = humanize(ref)
		}
		return fmt.Sprintf("The referenced %s does not exist", entity)
	case UniqueViolation:
		column := uniqueColumn(sqlErr)
		if column == "" {
			return fmt.Sprintf("A %s with this identifier already exists", entity)
		}
		return fmt.Sprintf("A %s with this %s already exists", entity, strings.ToLower(humanize(column)))
	case NotNullViolation:
		field := humanize(sqlErr.ColumnName)
		if field == "" {
			field = "field"
		}
		return fmt.Sprintf("The %s is required", field)
	case CheckViolation, InvalidText:
		if field := humanize(sqlErr.ColumnName); field != "" {
			return fmt.Sprintf("The %s value does not meet required conditions", field)
		}
		return "One or more values do not meet required conditions"
	default:
		return "An error occurred while processing your request"
	}
}

// entityName singularizes the table name: one_pager_reports becomes
// "One Pager Report".
func entityName(tableName string) string {
	if tableName == "" {
		return "record"
	}
	return humanize(strings.TrimSuffix(tableName, "s"))
}

func humanize(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

// uniqueColumn names the column behind a unique violation. Postgres names
// single-column constraints <table>_<column>_key, which is the common case.
func uniqueColumn(sqlErr *Error) string {
	if sqlErr.ColumnName != "" {
		return sqlErr.ColumnName
	}

	name := sqlErr.ConstraintName
	if sqlErr.TableName != "" && strings.HasPrefix(name, sqlErr.TableName+"_") {
		rest := strings.TrimPrefix(name, sqlErr.TableName+"_")
		for _, suffix := range []string{"_key", "_ukey", "_idx"} {
			if strings.HasSuffix(rest, suffix) {
				return strings.TrimSuffix(rest, suffix)
			}
		}
	}
	if m := constraintColumnRe.FindStringSubmatch(name); len(m) > 1 {
		return m[1]
	}
	return ""
}

// HandleError converts a database error into an *errs.HTTPError.
// Errors that already are HTTP errors pass through unchanged.
func HandleError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	var sqlErr *Error
	if !errors.As(err, &sqlErr) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			sqlErr = ConvertPgError(pgErr)
		}
	}

	if sqlErr != nil {
		errorCode := generateErrorCode(sqlErr.TableName, sqlErr.Code)
		userMessage := formatUserFriendlyMessage(sqlErr)

		switch sqlErr.Code {
		case ForeignKeyViolation:
			return errs.NewBadRequestError(userMessage, false, &errorCode, nil, nil)
		case UniqueViolation:
			return errs.NewConflictError(userMessage, true, &errorCode)
		case NotNullViolation:
			fieldErrors := []errs.FieldError{{
				Field: strings.ToLower(sqlErr.ColumnName),
				Error: "is required",
			}}
			return errs.NewBadRequestError(userMessage, true, &errorCode, fieldErrors, nil)
		case CheckViolation, InvalidText:
			return errs.NewBadRequestError(userMessage, true, &errorCode, nil, nil)
		case ConnectionFailure, QueryCanceled:
			return errs.NewServiceUnavailableError()
		default:
			return errs.NewInternalServerError()
		}
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, sql.ErrNoRows):
		return errs.NewNotFoundError("Resource not found", false, nil)
	case errors.Is(err, context.DeadlineExceeded):
		return errs.NewServiceUnavailableError()
	}

	return errs.NewInternalServerError()
}
