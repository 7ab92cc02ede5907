package handler

import (
	"net/http"

	"github.com/bynd/onepager/internal/model"
	"github.com/bynd/onepager/internal/service"
	"github.com/bynd/onepager/internal/validation"
	"github.com/labstack/echo/v4"
)

// CreateReportRequest is a full record without the store-owned fields.
type CreateReportRequest struct {
	model.OnePagerRecord
}

func (r *CreateReportRequest) Validate() error {
	return validation.Struct(r)
}

type ReportIDRequest struct {
	ID int64 `param:"id" json:"-" validate:"gt=0"`
}

func (r *ReportIDRequest) Validate() error {
	return validation.Struct(r)
}

type ReportByRequestIDRequest struct {
	RequestID string `param:"request_id" json:"-" validate:"required"`
}

func (r *ReportByRequestIDRequest) Validate() error {
	return validation.Struct(r)
}

// UpdateReportRequest is a patch plus an optional guard. When
// ExpectedStatus is set the update only applies if the record still has
// that status.
type UpdateReportRequest struct {
	ID int64 `param:"id" json:"-" validate:"gt=0"`
	model.Patch
	ExpectedStatus *model.Status `json:"expected_status,omitempty" validate:"omitempty,oneof=in-progress success partial-success error"`
}

func (r *UpdateReportRequest) Validate() error {
	return validation.Struct(r)
}

type ListRecentRequest struct {
	Limit int `query:"limit" validate:"min=0,max=1000"`
}

func (r *ListRecentRequest) Validate() error {
	return validation.Struct(r)
}

type CompanyReportsRequest struct {
	Company string `param:"company" json:"-" validate:"required"`
	Status  string `query:"status" json:"-" validate:"omitempty,eq=in-progress"`
}

func (r *CompanyReportsRequest) Validate() error {
	return validation.Struct(r)
}

type ReportListResponse struct {
	Reports []model.OnePagerRecord `json:"reports"`
	Count   int                    `json:"count"`
}

func listResponse(records []model.OnePagerRecord) *ReportListResponse {
	return &ReportListResponse{Reports: records, Count: len(records)}
}

type ReportHandler struct {
	Handler
	reports *service.ReportService
}

func NewReportHandler(h Handler, reports *service.ReportService) *ReportHandler {
	return &ReportHandler{Handler: h, reports: reports}
}

func (h *ReportHandler) create(c echo.Context, req *CreateReportRequest) (*model.OnePagerRecord, error) {
	return h.reports.Create(c.Request().Context(), &req.OnePagerRecord)
}

func (h *ReportHandler) get(c echo.Context, req *ReportIDRequest) (*model.OnePagerRecord, error) {
	return h.reports.Get(c.Request().Context(), req.ID)
}

func (h *ReportHandler) getByRequestID(c echo.Context, req *ReportByRequestIDRequest) (*model.OnePagerRecord, error) {
	return h.reports.GetByRequestID(c.Request().Context(), req.RequestID)
}

func (h *ReportHandler) update(c echo.Context, req *UpdateReportRequest) (*model.OnePagerRecord, error) {
	return h.reports.Update(c.Request().Context(), req.ID, &req.Patch, req.ExpectedStatus)
}

func (h *ReportHandler) delete(c echo.Context, req *ReportIDRequest) error {
	return h.reports.Delete(c.Request().Context(), req.ID)
}

func (h *ReportHandler) listRecent(c echo.Context, req *ListRecentRequest) (*ReportListResponse, error) {
	return listResponse(h.reports.ListRecent(c.Request().Context(), req.Limit)), nil
}

func (h *ReportHandler) listByCompany(c echo.Context, req *CompanyReportsRequest) (*ReportListResponse, error) {
	inProgress := req.Status == string(model.StatusInProgress)
	return listResponse(h.reports.ListByCompany(c.Request().Context(), req.Company, inProgress)), nil
}

func (h *ReportHandler) latestByCompany(c echo.Context, req *CompanyReportsRequest) (*model.OnePagerRecord, error) {
	return h.reports.GetMostRecentByCompany(c.Request().Context(), req.Company)
}

func (h *ReportHandler) CreateReport() echo.HandlerFunc {
	return Handle(h.Handler, h.create, http.StatusCreated, newReq[CreateReportRequest])
}

func (h *ReportHandler) GetReport() echo.HandlerFunc {
	return Handle(h.Handler, h.get, http.StatusOK, newReq[ReportIDRequest])
}

func (h *ReportHandler) GetReportByRequestID() echo.HandlerFunc {
	return Handle(h.Handler, h.getByRequestID, http.StatusOK, newReq[ReportByRequestIDRequest])
}

func (h *ReportHandler) UpdateReport() echo.HandlerFunc {
	return Handle(h.Handler, h.update, http.StatusOK, newReq[UpdateReportRequest])
}

func (h *ReportHandler) DeleteReport() echo.HandlerFunc {
	return HandleNoContent(h.Handler, h.delete, http.StatusNoContent, newReq[ReportIDRequest])
}

func (h *ReportHandler) ListRecentReports() echo.HandlerFunc {
	return Handle(h.Handler, h.listRecent, http.StatusOK, newReq[ListRecentRequest])
}

func (h *ReportHandler) ListCompanyReports() echo.HandlerFunc {
	return Handle(h.Handler, h.listByCompany, http.StatusOK, newReq[CompanyReportsRequest])
}

func (h *ReportHandler) GetLatestCompanyReport() echo.HandlerFunc {
	return Handle(h.Handler, h.latestByCompany, http.StatusOK, newReq[CompanyReportsRequest])
}
