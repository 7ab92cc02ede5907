package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bynd/onepager/internal/config"
	"github.com/bynd/onepager/internal/errs"
	"github.com/bynd/onepager/internal/handler"
	"github.com/bynd/onepager/internal/model"
	"github.com/bynd/onepager/internal/repository"
	"github.com/bynd/onepager/internal/server"
	"github.com/bynd/onepager/internal/service"
	"github.com/bynd/onepager/internal/table"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()

	logger := zerolog.Nop()
	cfg := config.Defaults()
	cfg.Server.RateLimit = 0
	s := &server.Server{Config: cfg, Logger: &logger}

	repos := repository.NewRepositoriesWithClient(table.NewMemory().Unique(repository.ReportsTable, "request_id"), s)
	services, err := service.NewService(s, repos)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewRouter(s, handler.NewHandlers(s, services))
}

func do(t *testing.T, r *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createReport(t *testing.T, r *echo.Echo, requestID, company string) model.OnePagerRecord {
	t.Helper()
	body := fmt.Sprintf(`{"request_id":%q,"company_name":%q,"status":"in-progress","excel_blob_url":"https://blob/x.xlsx","excel_blob_path":"x.xlsx"}`,
		requestID, company)
	rec := do(t, r, http.MethodPost, "/api/v1/reports", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[model.OnePagerRecord](t, rec)
}

func TestReportLifecycle(t *testing.T) {
	r := newTestRouter(t)

	created := createReport(t, r, "req-1", "Acme")
	if created.ID == 0 || created.ExcelBlobPath == nil || *created.ExcelBlobPath != "x.xlsx" {
		t.Fatalf("created = %+v", created)
	}

	rec := do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/reports/%d", created.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/api/v1/reports/by-request/req-1", "")
	if got := decode[model.OnePagerRecord](t, rec); got.ID != created.ID {
		t.Errorf("by-request id = %d, want %d", got.ID, created.ID)
	}

	patch := `{"status":"success","duration_ms":1200,"expected_status":"in-progress","excel_blob_url":"https://blob/x.xlsx","excel_blob_path":"x.xlsx"}`
	rec = do(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/reports/%d", created.ID), patch)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decode[model.OnePagerRecord](t, rec)
	if updated.Status != model.StatusSuccess || updated.DurationMS != 1200 {
		t.Errorf("updated = %+v", updated)
	}

	// The guard no longer holds.
	rec = do(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/reports/%d", created.ID), `{"status":"error","expected_status":"in-progress"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("guarded patch status = %d, want 409", rec.Code)
	}

	rec = do(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/reports/%d", created.ID), "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	rec = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/reports/%d", created.ID), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestPatchWithoutExcelClearsPair(t *testing.T) {
	r := newTestRouter(t)
	created := createReport(t, r, "req-1", "Acme")

	rec := do(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/reports/%d", created.ID), `{"duration_ms":5}`)
	got := decode[model.OnePagerRecord](t, rec)
	if got.ExcelBlobURL != nil || got.ExcelBlobPath != nil {
		t.Errorf("excel pair = (%v, %v), want cleared", got.ExcelBlobURL, got.ExcelBlobPath)
	}
}

func TestCompanyRoutes(t *testing.T) {
	r := newTestRouter(t)

	createReport(t, r, "req-1", "Acme")
	second := createReport(t, r, "req-2", "Acme")
	createReport(t, r, "req-3", "Globex")
	do(t, r, http.MethodPatch, fmt.Sprintf("/api/v1/reports/%d", second.ID), `{"status":"success"}`)

	list := decode[handler.ReportListResponse](t, do(t, r, http.MethodGet, "/api/v1/companies/Acme/reports", ""))
	if list.Count != 2 || list.Reports[0].ID != second.ID {
		t.Errorf("company list = %+v", list)
	}

	inProgress := decode[handler.ReportListResponse](t, do(t, r, http.MethodGet, "/api/v1/companies/Acme/reports?status=in-progress", ""))
	if inProgress.Count != 1 || inProgress.Reports[0].RequestID != "req-1" {
		t.Errorf("in-progress list = %+v", inProgress)
	}

	latest := decode[model.OnePagerRecord](t, do(t, r, http.MethodGet, "/api/v1/companies/Acme/reports/latest", ""))
	if latest.ID != second.ID {
		t.Errorf("latest id = %d, want %d", latest.ID, second.ID)
	}

	if rec := do(t, r, http.MethodGet, "/api/v1/companies/Initech/reports/latest", ""); rec.Code != http.StatusNotFound {
		t.Errorf("latest for unknown company = %d, want 404", rec.Code)
	}

	empty := decode[handler.ReportListResponse](t, do(t, r, http.MethodGet, "/api/v1/companies/Initech/reports", ""))
	if empty.Count != 0 || empty.Reports == nil {
		t.Errorf("unknown company list = %+v, want empty array", empty)
	}

	recent := decode[handler.ReportListResponse](t, do(t, r, http.MethodGet, "/api/v1/reports?limit=2", ""))
	if recent.Count != 2 {
		t.Errorf("recent count = %d, want 2", recent.Count)
	}
}

func TestValidationErrors(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"missing request id", http.MethodPost, "/api/v1/reports", `{"company_name":"Acme","status":"in-progress"}`, http.StatusBadRequest},
		{"unknown status", http.MethodPost, "/api/v1/reports", `{"request_id":"r","company_name":"Acme","status":"done"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/v1/reports/abc", "", http.StatusBadRequest},
		{"limit too large", http.MethodGet, "/api/v1/reports?limit=5000", "", http.StatusBadRequest},
		{"unsupported status filter", http.MethodGet, "/api/v1/companies/Acme/reports?status=error", "", http.StatusBadRequest},
		{"missing record", http.MethodPatch, "/api/v1/reports/999", `{"status":"error"}`, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, tt.method, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if body := decode[errs.HTTPError](t, rec); body.Status != tt.want {
				t.Errorf("body status = %d", body.Status)
			}
		})
	}
}

func TestDuplicateRequestIDIsConflict(t *testing.T) {
	r := newTestRouter(t)
	createReport(t, r, "req-1", "Acme")

	rec := do(t, r, http.MethodPost, "/api/v1/reports", `{"request_id":"req-1","company_name":"Acme","status":"in-progress"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if body := decode[errs.HTTPError](t, rec); body.Code != "ONE_PAGER_REPORT_NOT_CREATED" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestStatusRoute(t *testing.T) {
	r := newTestRouter(t)
	rec := do(t, r, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}
