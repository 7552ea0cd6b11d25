package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/mrpayong/terual-accounting/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates
var templatesFS embed.FS

// page template names, one file each under templates/
const (
	pageDashboard    = "dashboard"
	pageTransactions = "transactions"
	pageReceiptBook  = "receipt_book"
	pageCashflow     = "cashflow"
	pageUsers        = "users"
	pageAudit        = "audit"
	pageError        = "error"
)

var allPages = []string{pageDashboard, pageTransactions, pageReceiptBook, pageCashflow, pageUsers, pageAudit, pageError}

// pageData is the root value of every template
type pageData struct {
	Title  string
	Active string
	Viewer *models.User
	Error  string
	Data   interface{}
}

func (p pageData) role() models.Role {
	if p.Viewer == nil {
		return ""
	}
	return p.Viewer.Role
}

// CanRecord reports whether the viewer may record transactions
func (p pageData) CanRecord() bool {
	return p.role() == models.RoleStaff || p.role() == models.RoleAdmin
}

// CanManage reports whether the viewer may delete or restructure ledger data
func (p pageData) CanManage() bool { return p.role() == models.RoleAdmin }

// CanAdminister reports whether the viewer sees the admin pages
func (p pageData) CanAdminister() bool {
	return p.role() == models.RoleAdmin || p.role() == models.RoleSysAdmin
}

// IsSysAdmin reports whether the viewer may change roles
func (p pageData) IsSysAdmin() bool { return p.role() == models.RoleSysAdmin }

var moneyPrinter = message.NewPrinter(language.English)

func formatMoney(v float64) string {
	return moneyPrinter.Sprintf("₱%.2f", v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": formatMoney,
		"date":  formatDate,
		"label": func(v interface{ Label() string }) string { return v.Label() },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
}

// parsePages builds one template set per page, each sharing the layout
func parsePages() (map[string]*template.Template, error) {
	layout, err := templatesFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}

	pages := make(map[string]*template.Template, len(allPages))
	for _, name := range allPages {
		content, err := templatesFS.ReadFile("templates/" + name + ".html")
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		t, err := template.New(name).Funcs(templateFuncs()).Parse(string(layout))
		if err != nil {
			return nil, fmt.Errorf("parse layout for %s: %w", name, err)
		}
		if _, err := t.Parse(string(content)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// execute renders a page into memory so a failed render never writes a partial response
func (h *Handler) execute(name string, data pageData) ([]byte, error) {
	t, ok := h.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
