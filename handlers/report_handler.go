package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/services/dashboard"
	"github.com/mrpayong/terual-accounting/services/reports"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

// ReportService defines the reporting operations the API exposes
type ReportService interface {
	CreateCashflow(ctx context.Context, in reports.CashflowInput) (*models.Cashflow, error)
	DeleteCashflow(ctx context.Context, id uuid.UUID) (*models.Cashflow, error)
	ListCashflows(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Cashflow, error)
	GetCashflow(ctx context.Context, id uuid.UUID) (*models.Cashflow, error)
	ReceiptBook(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.ReceiptBookEntry, error)
}

// DashboardService computes the dashboard overview
type DashboardService interface {
	Overview(ctx context.Context, accountID *uuid.UUID) (*dashboard.Overview, error)
}

// ReportHandler handles dashboard and report HTTP requests
type ReportHandler struct {
	reports   ReportService
	dashboard DashboardService
	clock     func() time.Time
	logger    *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports ReportService, dashboard DashboardService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reports:   reports,
		dashboard: dashboard,
		clock:     time.Now,
		logger:    logger,
	}
}

// HandleDashboard handles GET /api/v1/dashboard?account_id=
func (h *ReportHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryUUID(r, "account_id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	overview, err := h.dashboard.Overview(r.Context(), accountID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, overview)
}

// HandleListCashflows handles GET /api/v1/reports/cashflow
func (h *ReportHandler) HandleListCashflows(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryUUID(r, "account_id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	limit, err := utils.QueryInt(r, "limit", 20)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	offset, err := utils.QueryInt(r, "offset", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	list, err := h.reports.ListCashflows(r.Context(), accountID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteList(w, list, len(list), limit, offset)
}

// HandleGetCashflow handles GET /api/v1/reports/cashflow/{id}
func (h *ReportHandler) HandleGetCashflow(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	cf, err := h.reports.GetCashflow(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, cf)
}

// HandleCreateCashflow handles POST /api/v1/reports/cashflow
func (h *ReportHandler) HandleCreateCashflow(w http.ResponseWriter, r *http.Request) {
	var in reports.CashflowInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	cf, err := h.reports.CreateCashflow(r.Context(), in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, cf)
}

// HandleDeleteCashflow handles DELETE /api/v1/reports/cashflow/{id}
func (h *ReportHandler) HandleDeleteCashflow(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if _, err := h.reports.DeleteCashflow(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleReceiptBook handles GET /api/v1/reports/receipt-book?account_id=&from=&to=.
// The range defaults to the current month.
func (h *ReportHandler) HandleReceiptBook(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryUUID(r, "account_id")
	if err != nil || accountID == nil {
		_ = utils.WriteBadRequest(w, "account_id is required", nil)
		return
	}

	from, to, err := h.dateRange(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	entries, err := h.reports.ReceiptBook(r.Context(), *accountID, from, to)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteList(w, entries, len(entries), 0, 0)
}

// dateRange reads from/to, defaulting to the current month, widened to whole days
func (h *ReportHandler) dateRange(r *http.Request) (time.Time, time.Time, error) {
	monthStart, monthEnd := dashboard.MonthRange(h.clock())
	from, to := monthStart, monthEnd

	f, err := queryDate(r, "from")
	if err != nil {
		return from, to, err
	}
	if f != nil {
		from = *f
	}
	t, err := queryDate(r, "to")
	if err != nil {
		return from, to, err
	}
	if t != nil {
		to = *t
	}

	from, to = reports.DayRange(from, to)
	return from, to, nil
}
