package repository

import (
	"context"
	"time"

	"github.com/bynd/onepager/internal/model"
	"github.com/bynd/onepager/internal/sqlerr"
	"github.com/bynd/onepager/internal/table"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ReportsTable is the table backing ReportRepository.
const ReportsTable = "one_pager_reports"

// DefaultRecentLimit is used by ListRecent when no positive limit is given.
const DefaultRecentLimit = 100

// ReportRepository stores one-pager generation records.
//
// No method returns an error. Failures are logged and reported as nil,
// an empty slice or false, so callers treat an empty result as
// "could not complete" and look at the logs for the cause.
type ReportRepository struct {
	client   table.Client
	logger   *zerolog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewReportRepository(client table.Client, logger *zerolog.Logger) *ReportRepository {
	return &ReportRepository{
		client:   client,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *ReportRepository) logFailure(op string, err error) *zerolog.Event {
	err = sqlerr.Wrap(err)
	return r.logger.Error().
		Str("operation", op).
		Str("sql_code", string(sqlerr.ErrCode(err))).
		Err(err)
}

func (r *ReportRepository) decodeOne(op string, rows []table.Row) *model.OnePagerRecord {
	if len(rows) == 0 {
		return nil
	}
	rec, err := rowToRecord(rows[0])
	if err != nil {
		r.logFailure(op, err).Msg("failed to decode one-pager record")
		return nil
	}
	return rec
}

func (r *ReportRepository) decodeAll(op string, rows []table.Row) []model.OnePagerRecord {
	out := make([]model.OnePagerRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := rowToRecord(row)
		if err != nil {
			r.logFailure(op, err).Msg("failed to decode one-pager record")
			return []model.OnePagerRecord{}
		}
		out = append(out, *rec)
	}
	return out
}

// Create inserts rec and returns the stored record with its id.
// created_at and updated_at are both set to the current time.
func (r *ReportRepository) Create(ctx context.Context, rec *model.OnePagerRecord) *model.OnePagerRecord {
	const op = "create"

	if rec == nil {
		r.logger.Error().Str("operation", op).Msg("refusing to create a nil one-pager record")
		return nil
	}
	if err := r.validate.Struct(rec); err != nil {
		r.logFailure(op, err).Str("request_id", rec.RequestID).Msg("invalid one-pager record")
		return nil
	}

	rows, err := r.client.Insert(ctx, ReportsTable, recordToRow(rec, r.now()))
	if err != nil {
		r.logFailure(op, err).Str("request_id", rec.RequestID).Msg("error creating one-pager record")
		return nil
	}
	if len(rows) == 0 {
		r.logger.Error().Str("operation", op).Str("request_id", rec.RequestID).
			Msg("failed to create one-pager record: no row returned")
		return nil
	}

	created := r.decodeOne(op, rows)
	if created != nil {
		r.logger.Info().Int64("id", created.ID).Str("request_id", created.RequestID).
			Msg("created one-pager record")
	}
	return created
}

// Update applies patch to the record with the given id and returns the
// updated record, or nil when no row matched.
func (r *ReportRepository) Update(ctx context.Context, id int64, patch *model.Patch) *model.OnePagerRecord {
	return r.update(ctx, "update", id, patch, nil)
}

// UpdateAtomic is Update with an optional guard: when expectedStatus is
// non-nil the row is only changed if its status still equals it, checked
// in the same statement as the write. A nil result means the id does not
// exist or the guard did not hold; the two are not distinguished.
func (r *ReportRepository) UpdateAtomic(ctx context.Context, id int64, patch *model.Patch, expectedStatus *model.Status) *model.OnePagerRecord {
	return r.update(ctx, "update_atomic", id, patch, expectedStatus)
}

func (r *ReportRepository) update(ctx context.Context, op string, id int64, patch *model.Patch, expectedStatus *model.Status) *model.OnePagerRecord {
	if patch == nil {
		patch = &model.Patch{}
	}
	if err := r.validate.Struct(patch); err != nil {
		r.logFailure(op, err).Int64("id", id).Msg("invalid one-pager patch")
		return nil
	}

	q := table.Where(table.Eq(colID, id))
	if expectedStatus != nil {
		q.Filters = append(q.Filters, table.Eq(colStatus, string(*expectedStatus)))
	}

	rows, err := r.client.Update(ctx, ReportsTable, patchToRow(patch, r.now()), q)
	if err != nil {
		r.logFailure(op, err).Int64("id", id).Msg("error updating one-pager record")
		return nil
	}
	if len(rows) == 0 {
		ev := r.logger.Warn().Str("operation", op).Int64("id", id)
		if expectedStatus != nil {
			ev.Str("expected_status", string(*expectedStatus)).
				Msg("one-pager record not updated: status mismatch or record not found")
		} else {
			ev.Msg("one-pager record not updated: record not found")
		}
		return nil
	}

	updated := r.decodeOne(op, rows)
	if updated != nil {
		r.logger.Info().Str("operation", op).Int64("id", id).Str("status", string(updated.Status)).
			Msg("updated one-pager record")
	}
	return updated
}

// Get returns the record with the given id, or nil.
func (r *ReportRepository) Get(ctx context.Context, id int64) *model.OnePagerRecord {
	const op = "get"

	rows, err := r.client.Select(ctx, ReportsTable, table.Where(table.Eq(colID, id)))
	if err != nil {
		r.logFailure(op, err).Int64("id", id).Msg("error getting one-pager record")
		return nil
	}
	if len(rows) == 0 {
		r.logger.Warn().Int64("id", id).Msg("one-pager record not found")
		return nil
	}
	return r.decodeOne(op, rows)
}

// GetByRequestID returns the record created for requestID, or nil.
func (r *ReportRepository) GetByRequestID(ctx context.Context, requestID string) *model.OnePagerRecord {
	const op = "get_by_request_id"

	rows, err := r.client.Select(ctx, ReportsTable, table.Where(table.Eq(colRequestID, requestID)))
	if err != nil {
		r.logFailure(op, err).Str("request_id", requestID).Msg("error getting one-pager record by request id")
		return nil
	}
	if len(rows) == 0 {
		r.logger.Warn().Str("request_id", requestID).Msg("one-pager record not found")
		return nil
	}
	return r.decodeOne(op, rows)
}

func (r *ReportRepository) list(ctx context.Context, op string, q table.Query) []model.OnePagerRecord {
	rows, err := r.client.Select(ctx, ReportsTable, q)
	if err != nil {
		r.logFailure(op, err).Msg("error listing one-pager records")
		return []model.OnePagerRecord{}
	}
	return r.decodeAll(op, rows)
}

// ListByCompany returns every record for company, newest first.
func (r *ReportRepository) ListByCompany(ctx context.Context, company string) []model.OnePagerRecord {
	q := table.Where(table.Eq(colCompanyName, company)).OrderBy(colCreatedAt, true)
	records := r.list(ctx, "list_by_company", q)
	r.logger.Debug().Str("company_name", company).Int("count", len(records)).Msg("listed one-pager records")
	return records
}

// ListInProgressByCompany returns the in-progress records for company,
// newest first.
func (r *ReportRepository) ListInProgressByCompany(ctx context.Context, company string) []model.OnePagerRecord {
	q := table.Where(
		table.Eq(colCompanyName, company),
		table.Eq(colStatus, string(model.StatusInProgress)),
	).OrderBy(colCreatedAt, true)
	records := r.list(ctx, "list_in_progress_by_company", q)
	r.logger.Debug().Str("company_name", company).Int("count", len(records)).Msg("listed in-progress one-pager records")
	return records
}

// GetMostRecentByCompany returns the newest record for company, or nil.
func (r *ReportRepository) GetMostRecentByCompany(ctx context.Context, company string) *model.OnePagerRecord {
	const op = "get_most_recent_by_company"

	q := table.Where(table.Eq(colCompanyName, company)).OrderBy(colCreatedAt, true).WithLimit(1)
	rows, err := r.client.Select(ctx, ReportsTable, q)
	if err != nil {
		r.logFailure(op, err).Str("company_name", company).Msg("error getting most recent one-pager record")
		return nil
	}
	if len(rows) == 0 {
		r.logger.Info().Str("company_name", company).Msg("no one-pager record found for company")
		return nil
	}
	return r.decodeOne(op, rows)
}

// ListRecent returns the newest limit records across all companies.
// A limit of zero or less means DefaultRecentLimit.
func (r *ReportRepository) ListRecent(ctx context.Context, limit int) []model.OnePagerRecord {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	q := table.Query{}.OrderBy(colCreatedAt, true).WithLimit(limit)
	records := r.list(ctx, "list_recent", q)
	r.logger.Debug().Int("limit", limit).Int("count", len(records)).Msg("listed recent one-pager records")
	return records
}

// ListStaleInProgress returns in-progress records last updated before
// the cutoff, oldest first.
func (r *ReportRepository) ListStaleInProgress(ctx context.Context, before time.Time) []model.OnePagerRecord {
	q := table.Where(
		table.Eq(colStatus, string(model.StatusInProgress)),
		table.Lt(colUpdatedAt, before.UTC()),
	).OrderBy(colUpdatedAt, false)
	return r.list(ctx, "list_stale_in_progress", q)
}

// FailStale moves an in-progress record to error, but only while its
// updated_at still equals lastUpdated. Any write since the record was
// read makes this a no-op. excel_blob_info is not touched.
func (r *ReportRepository) FailStale(ctx context.Context, id int64, lastUpdated time.Time, errorType, errorMessage string) *model.OnePagerRecord {
	const op = "fail_stale"

	q := table.Where(
		table.Eq(colID, id),
		table.Eq(colStatus, string(model.StatusInProgress)),
		table.Eq(colUpdatedAt, lastUpdated.UTC()),
	)
	values := table.Row{
		colStatus:       string(model.StatusError),
		"error_type":    errorType,
		"error_message": errorMessage,
		colUpdatedAt:    r.now(),
	}

	rows, err := r.client.Update(ctx, ReportsTable, values, q)
	if err != nil {
		r.logFailure(op, err).Int64("id", id).Msg("error failing stale one-pager record")
		return nil
	}
	if len(rows) == 0 {
		r.logger.Debug().Int64("id", id).Msg("stale one-pager record changed since it was read")
		return nil
	}
	return r.decodeOne(op, rows)
}

// Delete removes the record with the given id and reports whether a row
// was removed.
func (r *ReportRepository) Delete(ctx context.Context, id int64) bool {
	const op = "delete"

	rows, err := r.client.Delete(ctx, ReportsTable, table.Where(table.Eq(colID, id)))
	if err != nil {
		r.logFailure(op, err).Int64("id", id).Msg("error deleting one-pager record")
		return false
	}
	if len(rows) == 0 {
		r.logger.Warn().Int64("id", id).Msg("one-pager record not found for deletion")
		return false
	}

	r.logger.Info().Int64("id", id).Msg("deleted one-pager record")
	return true
}
