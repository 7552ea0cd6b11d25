package web

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/handlers"
	"github.com/mrpayong/terual-accounting/middleware"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/audit"
	"github.com/mrpayong/terual-accounting/services/dashboard"
	"github.com/mrpayong/terual-accounting/services/invalidation"
	"github.com/mrpayong/terual-accounting/services/ledger"
	"github.com/mrpayong/terual-accounting/services/reports"
	"go.uber.org/zap"
)

const (
	dateLayout   = "2006-01-02"
	pageSize     = 50
	maxFormBytes = 64 << 10
)

// LedgerService is the subset of the ledger used by the pages
type LedgerService interface {
	CreateTransaction(ctx context.Context, in ledger.TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter repositories.TransactionFilter) ([]*models.Transaction, error)
}

// AccountLister lists ledger accounts
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]*models.Account, error)
}

// DashboardService computes the dashboard overview
type DashboardService interface {
	Overview(ctx context.Context, accountID *uuid.UUID) (*dashboard.Overview, error)
}

// ReportService produces the report pages
type ReportService interface {
	ListCashflows(ctx context.Context, accountID *uuid.UUID, limit, offset int) ([]*models.Cashflow, error)
	ReceiptBook(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]*models.ReceiptBookEntry, error)
}

// UserService resolves the viewer and manages users
type UserService interface {
	Me(ctx context.Context) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateUserRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error)
	AuditTrail(ctx context.Context, filter repositories.AuditFilter) ([]*audit.Record, error)
}

// Services groups the application services the pages read and mutate
type Services struct {
	Ledger    LedgerService
	Accounts  AccountLister
	Dashboard DashboardService
	Reports   ReportService
	Users     UserService
}

// Config holds the session settings the pages need
type Config struct {
	SessionCookie string
	SignOutURL    string
}

// Handler serves the server-rendered pages
type Handler struct {
	svc           Services
	views         *invalidation.ViewCache
	pages         map[string]*template.Template
	sessionCookie string
	signOutURL    string
	clock         func() time.Time
	logger        *zap.Logger
}

// NewHandler parses the embedded templates and creates a Handler
func NewHandler(svc Services, views *invalidation.ViewCache, cfg Config, logger *zap.Logger) (*Handler, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = middleware.DefaultSessionCookie
	}
	if cfg.SignOutURL == "" {
		cfg.SignOutURL = "/"
	}
	return &Handler{
		svc:           svc,
		views:         views,
		pages:         pages,
		sessionCookie: cfg.SessionCookie,
		signOutURL:    cfg.SignOutURL,
		clock:         time.Now,
		logger:        logger.Named("web"),
	}, nil
}

// Routes mounts the pages that need a session
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	r.Get("/dashboard", h.HandleDashboard)
	r.Get("/transactions", h.HandleTransactions)
	r.Post("/transactions", h.HandleCreateTransaction)
	r.Post("/transactions/{id}/delete", h.HandleDeleteTransaction)
	r.Get("/reports/cashflow", h.HandleCashflow)
	r.Get("/reports/receipt-book", h.HandleReceiptBook)
	r.Get("/admin/users", h.HandleUsers)
	r.Post("/admin/users/{id}/role", h.HandleUpdateRole)
	r.Get("/admin/audit", h.HandleAudit)
}

// HandleSignOut clears the session cookie and hands off to the identity provider
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.signOutURL, http.StatusSeeOther)
}

// viewer loads the signed-in user. It writes the error page and returns false
// when the session has no provisioned user.
func (h *Handler) viewer(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := h.svc.Users.Me(r.Context())
	if err != nil {
		if services.IsNotFoundError(err) {
			h.writePage(w, http.StatusForbidden, pageError, pageData{
				Title: "Account pending",
				Error: "Your account has not been set up yet. Try again in a moment.",
			})
			return nil, false
		}
		h.fail(w, r, nil, err)
		return nil, false
	}
	return user, true
}

// cached serves a page through the view cache. The variant keeps one viewer's
// render (their name, their role, their controls) from being served to another,
// and month-relative defaults from outliving their month. Only the query
// parameters the page reads take part in it.
func (h *Handler) cached(w http.ResponseWriter, r *http.Request, viewer *models.User, path, page string, params []string, build func(ctx context.Context) (pageData, error)) {
	variant := strings.Join([]string{
		viewer.ID.String(),
		string(viewer.Role),
		h.clock().Format("2006-01"),
		pickQuery(r.URL.Query(), params...).Encode(),
	}, "|")
	body, err := h.views.Render(r.Context(), path, variant, func(ctx context.Context) ([]byte, error) {
		data, err := build(ctx)
		if err != nil {
			return nil, err
		}
		data.Viewer = viewer
		body, err := h.execute(page, data)
		if err != nil {
			return nil, services.WrapInternal("render page", err)
		}
		return body, nil
	})
	if err != nil {
		h.fail(w, r, viewer, err)
		return
	}
	writeHTML(w, http.StatusOK, body)
}

// fail renders the error page for err
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, viewer *models.User, err error) {
	status, message := handlers.ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("page failed",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	h.writePage(w, status, pageError, pageData{Title: http.StatusText(status), Viewer: viewer, Error: message})
}

func (h *Handler) writePage(w http.ResponseWriter, status int, page string, data pageData) {
	body, err := h.execute(page, data)
	if err != nil {
		h.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, handlers.FailedMessage, http.StatusInternalServerError)
		return
	}
	writeHTML(w, status, body)
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// HandleDashboard handles GET /dashboard
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	accountID, err := optionalUUID(r.URL.Query().Get("account_id"))
	if err != nil {
		h.fail(w, r, viewer, services.ErrInvalidInput.WithDetail("account_id", err.Error()))
		return
	}

	h.cached(w, r, viewer, invalidation.PathDashboard, pageDashboard, []string{"account_id"}, func(ctx context.Context) (pageData, error) {
		overview, err := h.svc.Dashboard.Overview(ctx, accountID)
		if err != nil {
			return pageData{}, err
		}
		return pageData{Title: "Dashboard", Active: "dashboard", Data: overview}, nil
	})
}

type transactionsView struct {
	Accounts     []*models.Account
	AccountNames map[uuid.UUID]string
	Transactions []*models.Transaction
	AccountID    string
	Search       string
	PrevQuery    string
	NextQuery    string
	Today        string
	Types        []models.TransactionType
	Activities   []models.ActivityType
	Intervals    []models.RecurringInterval
}

// HandleTransactions handles GET /transactions
func (h *Handler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	if _, err := h.transactionsFilter(r); err != nil {
		h.fail(w, r, viewer, err)
		return
	}

	h.cached(w, r, viewer, invalidation.PathTransactions, pageTransactions, transactionsParams, func(ctx context.Context) (pageData, error) {
		return h.transactionsPage(ctx, r)
	})
}

// HandleCreateTransaction handles the new-transaction form
func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, viewer, services.ErrInvalidInput.WithDetail("form", "could not read the form"))
		return
	}

	in, err := transactionFromForm(r.PostForm)
	if err == nil {
		_, err = h.svc.Ledger.CreateTransaction(r.Context(), in)
	}
	if err != nil {
		h.formError(w, r, viewer, err)
		return
	}
	http.Redirect(w, r, "/transactions", http.StatusSeeOther)
}

// formError re-renders the transactions page uncached with the failure on top
func (h *Handler) formError(w http.ResponseWriter, r *http.Request, viewer *models.User, cause error) {
	status, message := handlers.ErrorStatus(cause)
	if status >= http.StatusInternalServerError {
		h.fail(w, r, viewer, cause)
		return
	}
	if details := services.GetErrorDetails(cause); len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprint(details[k]))
		}
		message += ": " + strings.Join(parts, "; ")
	}

	data, err := h.transactionsPage(r.Context(), r)
	if err != nil {
		h.fail(w, r, viewer, err)
		return
	}
	data.Viewer = viewer
	data.Error = message
	h.writePage(w, status, pageTransactions, data)
}

// HandleDeleteTransaction handles the per-row delete button
func (h *Handler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, viewer, services.ErrInvalidInput.WithDetail("id", "invalid transaction id"))
		return
	}
	if _, err := h.svc.Ledger.DeleteTransaction(r.Context(), id); err != nil {
		h.fail(w, r, viewer, err)
		return
	}
	http.Redirect(w, r, "/transactions", http.StatusSeeOther)
}

func (h *Handler) transactionsFilter(r *http.Request) (repositories.TransactionFilter, error) {
	q := r.URL.Query()
	filter := repositories.TransactionFilter{Search: q.Get("q"), Limit: pageSize}

	accountID, err := optionalUUID(q.Get("account_id"))
	if err != nil {
		return filter, services.ErrInvalidInput.WithDetail("account_id", err.Error())
	}
	filter.AccountID = accountID

	if p := q.Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 0 {
			return filter, services.ErrInvalidInput.WithDetail("page", "must be a non-negative integer")
		}
		filter.Offset = page * pageSize
	}
	return filter, nil
}

func (h *Handler) transactionsPage(ctx context.Context, r *http.Request) (pageData, error) {
	filter, err := h.transactionsFilter(r)
	if err != nil {
		return pageData{}, err
	}
	accounts, err := h.svc.Accounts.ListAccounts(ctx)
	if err != nil {
		return pageData{}, err
	}
	txs, err := h.svc.Ledger.ListTransactions(ctx, filter)
	if err != nil {
		return pageData{}, err
	}

	view := &transactionsView{
		Accounts:     accounts,
		AccountNames: make(map[uuid.UUID]string, len(accounts)),
		Transactions: txs,
		Search:       filter.Search,
		Today:        h.clock().Format(dateLayout),
		Types:        models.AllTransactionTypes(),
		Activities:   models.AllActivityTypes(),
		Intervals:    models.AllRecurringIntervals(),
	}
	for _, a := range accounts {
		view.AccountNames[a.ID] = a.Name
	}
	if filter.AccountID != nil {
		view.AccountID = filter.AccountID.String()
	}

	page := filter.Offset / pageSize
	if page > 0 {
		view.PrevQuery = pageQuery(r.URL.Query(), page-1)
	}
	if len(txs) == pageSize {
		view.NextQuery = pageQuery(r.URL.Query(), page+1)
	}
	return pageData{Title: "Transactions", Active: "transactions", Data: view}, nil
}

var transactionsParams = []string{"account_id", "q", "page"}

func pageQuery(q url.Values, page int) string {
	next := pickQuery(q, "account_id", "q")
	next.Set("page", strconv.Itoa(page))
	return next.Encode()
}

// pickQuery keeps the first non-empty value of each named parameter
func pickQuery(q url.Values, names ...string) url.Values {
	out := url.Values{}
	for _, name := range names {
		if v := q.Get(name); v != "" {
			out.Set(name, v)
		}
	}
	return out
}

type cashflowView struct {
	Statements   []*models.Cashflow
	AccountNames map[uuid.UUID]string
}

// HandleCashflow handles GET /reports/cashflow
func (h *Handler) HandleCashflow(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	accountID, err := optionalUUID(r.URL.Query().Get("account_id"))
	if err != nil {
		h.fail(w, r, viewer, services.ErrInvalidInput.WithDetail("account_id", err.Error()))
		return
	}

	h.cached(w, r, viewer, invalidation.PathCashflow, pageCashflow, []string{"account_id"}, func(ctx context.Context) (pageData, error) {
		accounts, err := h.svc.Accounts.ListAccounts(ctx)
		if err != nil {
			return pageData{}, err
		}
		statements, err := h.svc.Reports.ListCashflows(ctx, accountID, pageSize, 0)
		if err != nil {
			return pageData{}, err
		}
		view := &cashflowView{Statements: statements, AccountNames: make(map[uuid.UUID]string, len(accounts))}
		for _, a := range accounts {
			view.AccountNames[a.ID] = a.Name
		}
		return pageData{Title: "Cashflow statements", Active: "cashflow", Data: view}, nil
	})
}

type receiptBookView struct {
	Accounts  []*models.Account
	AccountID string
	From      string
	To        string
	Entries   []*models.ReceiptBookEntry
	Count     int
	Total     float64
}

// HandleReceiptBook handles GET /reports/receipt-book. Without a selection it
// shows the default account for the current month.
func (h *Handler) HandleReceiptBook(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	accountID, err := optionalUUID(q.Get("account_id"))
	if err != nil {
		h.fail(w, r, viewer, services.ErrInvalidInput.WithDetail("account_id", err.Error()))
		return
	}
	from, to := dashboard.MonthRange(h.clock())
	if from, err = optionalDate(q.Get("from"), from); err == nil {
		to, err = optionalDate(q.Get("to"), to)
	}
	if err != nil {
		h.fail(w, r, viewer, services.ErrInvalidInput.WithDetail("date", "dates must be YYYY-MM-DD"))
		return
	}
	from, to = reports.DayRange(from, to)

	h.cached(w, r, viewer, invalidation.PathReceiptBook, pageReceiptBook, []string{"account_id", "from", "to"}, func(ctx context.Context) (pageData, error) {
		accounts, err := h.svc.Accounts.ListAccounts(ctx)
		if err != nil {
			return pageData{}, err
		}
		view := &receiptBookView{Accounts: accounts, From: from.Format(dateLayout), To: to.Format(dateLayout)}

		selected := accountID
		if selected == nil {
			selected = defaultAccount(accounts)
		}
		if selected != nil {
			view.AccountID = selected.String()
			view.Entries, err = h.svc.Reports.ReceiptBook(ctx, *selected, from, to)
			if err != nil {
				return pageData{}, err
			}
		}
		for _, e := range view.Entries {
			view.Count += e.Count
			view.Total += e.Total
		}
		return pageData{Title: "Receipt book", Active: "receipt-book", Data: view}, nil
	})
}

func defaultAccount(accounts []*models.Account) *uuid.UUID {
	for _, a := range accounts {
		if a.IsDefault {
			id := a.ID
			return &id
		}
	}
	if len(accounts) > 0 {
		id := accounts[0].ID
		return &id
	}
	return nil
}

type usersView struct {
	Users []*models.User
	Roles []models.Role
}

// HandleUsers handles GET /admin/users
func (h *Handler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}

	h.cached(w, r, viewer, invalidation.PathAdminUsers, pageUsers, nil, func(ctx context.Context) (pageData, error) {
		users, err := h.svc.Users.ListUsers(ctx, 200, 0)
		if err != nil {
			return pageData{}, err
		}
		return pageData{Title: "Users", Active: "users", Data: &usersView{Users: users, Roles: models.AllRoles()}}, nil
	})
}

// HandleUpdateRole handles the role selector on the users page
func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, viewer, services.ErrInvalidInput.WithDetail("id", "invalid user id"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	role, valid := models.ParseRole(r.PostFormValue("role"))
	if !valid {
		h.fail(w, r, viewer, services.ErrInvalidInput.WithDetail("role", "unknown role"))
		return
	}

	if _, err := h.svc.Users.UpdateUserRole(r.Context(), id, role); err != nil {
		h.fail(w, r, viewer, err)
		return
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

type auditView struct {
	Records []*audit.Record
	Actions []models.AuditAction
	Action  string
}

// HandleAudit handles GET /admin/audit. The audit page always reads fresh rows.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}

	filter := repositories.AuditFilter{Limit: 100}
	view := &auditView{Actions: models.AllAuditActions()}
	if a := r.URL.Query().Get("action"); a != "" {
		action := models.AuditAction(a)
		if !action.Valid() {
			h.fail(w, r, viewer, services.ErrInvalidInput.WithDetail("action", "unknown action"))
			return
		}
		filter.Action = &action
		view.Action = a
	}

	records, err := h.svc.Users.AuditTrail(r.Context(), filter)
	if err != nil {
		h.fail(w, r, viewer, err)
		return
	}
	view.Records = records
	h.writePage(w, http.StatusOK, pageAudit, pageData{Title: "Audit log", Active: "audit", Viewer: viewer, Data: view})
}

func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q", s)
	}
	return &id, nil
}

func optionalDate(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse(dateLayout, s)
}
