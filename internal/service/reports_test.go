package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bynd/onepager/internal/config"
	"github.com/bynd/onepager/internal/errs"
	"github.com/bynd/onepager/internal/model"
	"github.com/bynd/onepager/internal/repository"
	"github.com/bynd/onepager/internal/server"
	"github.com/bynd/onepager/internal/table"
	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) (*ReportService, *repository.ReportRepository) {
	t.Helper()

	logger := zerolog.Nop()
	srv := &server.Server{Config: config.Defaults(), Logger: &logger}
	repos := repository.NewRepositoriesWithClient(table.NewMemory().Unique(repository.ReportsTable, "request_id"), srv)
	return NewReportService(srv, repos.Reports), repos.Reports
}

func record(requestID, company string) *model.OnePagerRecord {
	return &model.OnePagerRecord{
		RequestID:   requestID,
		CompanyName: company,
		Status:      model.StatusInProgress,
	}
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var httpErr *errs.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error %v is not an *errs.HTTPError", err)
	}
	return httpErr.Status
}

func TestCreate_DuplicateRequestIDIsConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, record("r1", "Acme")); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	_, err := svc.Create(ctx, record("r1", "Globex"))
	if got := httpStatus(t, err); got != http.StatusConflict {
		t.Errorf("status = %d, want 409", got)
	}
}

func TestCreate_InvalidRecordIsInternalError(t *testing.T) {
	svc, _ := newTestService(t)

	rec := record("r1", "Acme")
	rec.Status = "bogus"
	_, err := svc.Create(context.Background(), rec)
	if got := httpStatus(t, err); got != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", got)
	}
}

func TestUpdate_DistinguishesMissingAndConflict(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	rec, _ := svc.Create(ctx, record("r1", "Acme"))
	repo.Update(ctx, rec.ID, &model.Patch{Status: model.Ptr(model.StatusSuccess)})

	expected := model.StatusInProgress
	_, err := svc.Update(ctx, rec.ID, &model.Patch{Status: model.Ptr(model.StatusError)}, &expected)
	if got := httpStatus(t, err); got != http.StatusConflict {
		t.Errorf("guard failure status = %d, want 409", got)
	}

	_, err = svc.Update(ctx, 404, &model.Patch{}, &expected)
	if got := httpStatus(t, err); got != http.StatusNotFound {
		t.Errorf("missing guarded status = %d, want 404", got)
	}

	_, err = svc.Update(ctx, 404, &model.Patch{}, nil)
	if got := httpStatus(t, err); got != http.StatusNotFound {
		t.Errorf("missing unguarded status = %d, want 404", got)
	}

	updated, err := svc.Update(ctx, rec.ID, &model.Patch{DurationMS: model.Ptr(int64(9))}, nil)
	if err != nil || updated.DurationMS != 9 {
		t.Errorf("unguarded Update() = %+v, %v", updated, err)
	}
}

func TestGetAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, _ := svc.Create(ctx, record("r1", "Acme"))

	if got, err := svc.GetByRequestID(ctx, "r1"); err != nil || got.ID != rec.ID {
		t.Errorf("GetByRequestID() = %+v, %v", got, err)
	}
	if err := svc.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, rec.ID); httpStatus(t, err) != http.StatusNotFound {
		t.Error("Get() after Delete() should be 404")
	}
	if err := svc.Delete(ctx, rec.ID); httpStatus(t, err) != http.StatusNotFound {
		t.Error("second Delete() should be 404")
	}
	if _, err := svc.GetMostRecentByCompany(ctx, "Acme"); httpStatus(t, err) != http.StatusNotFound {
		t.Error("GetMostRecentByCompany() with no records should be 404")
	}
}

func TestExpireStale(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	stale := record("r1", "Acme")
	stale.ExcelBlobURL = model.Ptr("u")
	stale.ExcelBlobPath = model.Ptr("p")
	staleRec, _ := svc.Create(ctx, stale)

	finished, _ := svc.Create(ctx, record("r2", "Acme"))
	repo.Update(ctx, finished.ID, &model.Patch{Status: model.Ptr(model.StatusSuccess)})

	other, _ := svc.Create(ctx, record("r3", "Globex"))

	// Everything above was written "now"; move the service clock forward
	// so only records older than the window qualify.
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	n, err := svc.ExpireStale(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("ExpireStale() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("expired %d records, want 2", n)
	}

	got, _ := svc.Get(ctx, staleRec.ID)
	if got.Status != model.StatusError || got.ErrorType == nil || *got.ErrorType != TimeoutErrorType {
		t.Errorf("stale record = %+v", got)
	}
	if got.ExcelBlobURL == nil || *got.ExcelBlobURL != "u" || got.ExcelBlobPath == nil || *got.ExcelBlobPath != "p" {
		t.Errorf("excel pair lost: (%v, %v)", got.ExcelBlobURL, got.ExcelBlobPath)
	}

	if got, _ := svc.Get(ctx, finished.ID); got.Status != model.StatusSuccess {
		t.Errorf("finished record status = %q, want success", got.Status)
	}
	if got, _ := svc.Get(ctx, other.ID); got.Status != model.StatusError {
		t.Errorf("second company record status = %q, want error", got.Status)
	}

	// A second sweep finds nothing left in progress.
	if n, _ := svc.ExpireStale(ctx, 30*time.Minute); n != 0 {
		t.Errorf("second sweep expired %d", n)
	}
}

func TestExpireStale_RecentRecordsKept(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, _ := svc.Create(ctx, record("r1", "Acme"))

	n, err := svc.ExpireStale(ctx, 30*time.Minute)
	if err != nil || n != 0 {
		t.Fatalf("ExpireStale() = %d, %v", n, err)
	}
	if got, _ := svc.Get(ctx, rec.ID); got.Status != model.StatusInProgress {
		t.Errorf("status = %q, want in-progress", got.Status)
	}
}

func TestExpireStale_CanceledContext(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Create(context.Background(), record("r1", "Acme")); err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := svc.ExpireStale(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Errorf("ExpireStale() = %d, %v", n, err)
	}
}

// interleavingClient runs beforeUpdate once, ahead of the next Update,
// to simulate a pipeline write landing between a read and a write.
type interleavingClient struct {
	table.Client
	beforeUpdate func()
}

func (c *interleavingClient) Update(ctx context.Context, name string, values table.Row, q table.Query) ([]table.Row, error) {
	if hook := c.beforeUpdate; hook != nil {
		c.beforeUpdate = nil
		hook()
	}
	return c.Client.Update(ctx, name, values, q)
}

func TestExpireStale_ConcurrentWriteWins(t *testing.T) {
	logger := zerolog.Nop()
	srv := &server.Server{Config: config.Defaults(), Logger: &logger}
	client := &interleavingClient{Client: table.NewMemory()}
	repo := repository.NewRepositoriesWithClient(client, srv).Reports
	svc := NewReportService(srv, repo)
	ctx := context.Background()

	rec := record("r1", "Acme")
	rec.ExcelBlobURL = model.Ptr("old-u")
	rec.ExcelBlobPath = model.Ptr("old-p")
	created, err := svc.Create(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}

	// Make sure the pipeline's write gets a different updated_at.
	time.Sleep(time.Millisecond)
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	client.beforeUpdate = func() {
		repo.Update(ctx, created.ID, &model.Patch{
			ExcelBlobURL:  model.Ptr("new-u"),
			ExcelBlobPath: model.Ptr("new-p"),
		})
	}

	n, err := svc.ExpireStale(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("ExpireStale() error = %v", err)
	}
	if n != 0 {
		t.Errorf("expired %d records, want 0", n)
	}

	got, _ := svc.Get(ctx, created.ID)
	if got.Status != model.StatusInProgress {
		t.Errorf("status = %q, want in-progress", got.Status)
	}
	if got.ExcelBlobURL == nil || *got.ExcelBlobURL != "new-u" || got.ExcelBlobPath == nil || *got.ExcelBlobPath != "new-p" {
		t.Errorf("excel pair = (%v, %v), want (new-u, new-p)", got.ExcelBlobURL, got.ExcelBlobPath)
	}
}

func TestCreate_NilRecord(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), nil)
	if got := httpStatus(t, err); got != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", got)
	}
}
