package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bynd/onepager/internal/errs"
	"github.com/bynd/onepager/internal/model"
	"github.com/bynd/onepager/internal/repository"
	"github.com/bynd/onepager/internal/server"
	"github.com/rs/zerolog"
)

// TimeoutErrorType is written to error_type by ExpireStale.
const TimeoutErrorType = "timeout"

var (
	codeReportNotFound      = "ONE_PAGER_REPORT_NOT_FOUND"
	codeReportStatusChanged = "ONE_PAGER_REPORT_STATUS_CHANGED"
	codeReportNotCreated    = "ONE_PAGER_REPORT_NOT_CREATED"
)

type ReportService struct {
	repo   *repository.ReportRepository
	logger *zerolog.Logger
	now    func() time.Time
}

func NewReportService(s *server.Server, repo *repository.ReportRepository) *ReportService {
	return &ReportService{
		repo:   repo,
		logger: s.Logger,
		now:    time.Now,
	}
}

func notFound(format string, args ...any) error {
	return errs.NewNotFoundError(fmt.Sprintf(format, args...), true, &codeReportNotFound)
}

// Create stores rec. A request id that already exists is a conflict; any
// other failure is reported as a 500 after the repository logged it.
func (s *ReportService) Create(ctx context.Context, rec *model.OnePagerRecord) (*model.OnePagerRecord, error) {
	if rec == nil {
		return nil, errs.NewBadRequestError("One-pager report is required", true, &codeReportNotCreated, nil, nil)
	}
	if created := s.repo.Create(ctx, rec); created != nil {
		return created, nil
	}
	if s.repo.GetByRequestID(ctx, rec.RequestID) != nil {
		return nil, errs.NewConflictError(
			fmt.Sprintf("A one-pager report with request id %q already exists", rec.RequestID),
			true, &codeReportNotCreated)
	}
	return nil, errs.NewInternalServerError()
}

func (s *ReportService) Get(ctx context.Context, id int64) (*model.OnePagerRecord, error) {
	if rec := s.repo.Get(ctx, id); rec != nil {
		return rec, nil
	}
	return nil, notFound("One-pager report %d not found", id)
}

func (s *ReportService) GetByRequestID(ctx context.Context, requestID string) (*model.OnePagerRecord, error) {
	if rec := s.repo.GetByRequestID(ctx, requestID); rec != nil {
		return rec, nil
	}
	return nil, notFound("One-pager report for request %q not found", requestID)
}

// Update applies patch, guarded by expectedStatus when it is non-nil.
// When the write does not happen a follow-up read tells a missing record
// (404) apart from a guard that no longer holds (409).
func (s *ReportService) Update(ctx context.Context, id int64, patch *model.Patch, expectedStatus *model.Status) (*model.OnePagerRecord, error) {
	var updated *model.OnePagerRecord
	if expectedStatus != nil {
		updated = s.repo.UpdateAtomic(ctx, id, patch, expectedStatus)
	} else {
		updated = s.repo.Update(ctx, id, patch)
	}
	if updated != nil {
		return updated, nil
	}

	current := s.repo.Get(ctx, id)
	if current == nil {
		return nil, notFound("One-pager report %d not found", id)
	}
	if expectedStatus != nil && current.Status != *expectedStatus {
		return nil, errs.NewConflictError(
			fmt.Sprintf("One-pager report %d is %s, expected %s", id, current.Status, *expectedStatus),
			true, &codeReportStatusChanged)
	}
	return nil, errs.NewInternalServerError()
}

func (s *ReportService) Delete(ctx context.Context, id int64) error {
	if s.repo.Delete(ctx, id) {
		return nil
	}
	return notFound("One-pager report %d not found", id)
}

func (s *ReportService) ListByCompany(ctx context.Context, company string, inProgressOnly bool) []model.OnePagerRecord {
	if inProgressOnly {
		return s.repo.ListInProgressByCompany(ctx, company)
	}
	return s.repo.ListByCompany(ctx, company)
}

func (s *ReportService) GetMostRecentByCompany(ctx context.Context, company string) (*model.OnePagerRecord, error) {
	if rec := s.repo.GetMostRecentByCompany(ctx, company); rec != nil {
		return rec, nil
	}
	return nil, notFound("No one-pager report found for %q", company)
}

func (s *ReportService) ListRecent(ctx context.Context, limit int) []model.OnePagerRecord {
	return s.repo.ListRecent(ctx, limit)
}

// ExpireStale fails every in-progress record that has not been updated
// within staleAfter. Each transition only applies if the record is
// unchanged since the sweep read it, so a pipeline writing at the same
// moment keeps its status and excel pair.
func (s *ReportService) ExpireStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := s.now().Add(-staleAfter)
	stale := s.repo.ListStaleInProgress(ctx, cutoff)

	msg := fmt.Sprintf("generation did not finish within %s", staleAfter)
	expired := 0
	for _, rec := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if rec.UpdatedAt == nil {
			continue
		}

		if s.repo.FailStale(ctx, rec.ID, *rec.UpdatedAt, TimeoutErrorType, msg) != nil {
			expired++
			s.logger.Info().
				Int64("id", rec.ID).
				Str("request_id", rec.RequestID).
				Str("company_name", rec.CompanyName).
				Msg("expired stale one-pager record")
		}
	}
	return expired, nil
}
