package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCreateTransaction      AuditAction = "createTransaction"
	AuditActionUpdateTransaction      AuditAction = "updateTransaction"
	AuditActionDeleteTransaction      AuditAction = "deleteTransaction"
	AuditActionBulkDeleteTransactions AuditAction = "bulkDeleteTransactions"
	AuditActionCreateAccount          AuditAction = "createAccount"
	AuditActionUpdateAccount          AuditAction = "updateAccount"
	AuditActionDeleteAccount          AuditAction = "deleteAccount"
	AuditActionSetDefaultAccount      AuditAction = "setDefaultAccount"
	AuditActionCreateCashflow         AuditAction = "createCashflow"
	AuditActionDeleteCashflow         AuditAction = "deleteCashflow"
	AuditActionUpdateUserRole         AuditAction = "updateUserRole"
	AuditActionSyncUser               AuditAction = "syncUser"
	AuditActionDeleteUser             AuditAction = "deleteUser"
	AuditActionProcessRecurring       AuditAction = "processRecurringTransaction"
	AuditActionLogFailure             AuditAction = "auditLogFailure"
)

var auditActionLabels = map[AuditAction]string{
	AuditActionCreateTransaction:      "Created transaction",
	AuditActionUpdateTransaction:      "Updated transaction",
	AuditActionDeleteTransaction:      "Deleted transaction",
	AuditActionBulkDeleteTransactions: "Deleted transactions",
	AuditActionCreateAccount:          "Created account",
	AuditActionUpdateAccount:          "Updated account",
	AuditActionDeleteAccount:          "Deleted account",
	AuditActionSetDefaultAccount:      "Set default account",
	AuditActionCreateCashflow:         "Created cashflow statement",
	AuditActionDeleteCashflow:         "Deleted cashflow statement",
	AuditActionUpdateUserRole:         "Changed user role",
	AuditActionSyncUser:               "Synchronised user",
	AuditActionDeleteUser:             "Removed user",
	AuditActionProcessRecurring:       "Processed recurring transaction",
	AuditActionLogFailure:             "Audit log failure",
}

// AllAuditActions returns every known audit action
func AllAuditActions() []AuditAction {
	return []AuditAction{
		AuditActionCreateTransaction,
		AuditActionUpdateTransaction,
		AuditActionDeleteTransaction,
		AuditActionBulkDeleteTransactions,
		AuditActionCreateAccount,
		AuditActionUpdateAccount,
		AuditActionDeleteAccount,
		AuditActionSetDefaultAccount,
		AuditActionCreateCashflow,
		AuditActionDeleteCashflow,
		AuditActionUpdateUserRole,
		AuditActionSyncUser,
		AuditActionDeleteUser,
		AuditActionProcessRecurring,
		AuditActionLogFailure,
	}
}

// Label returns the display label for the action
func (a AuditAction) Label() string {
	if label, ok := auditActionLabels[a]; ok {
		return label
	}
	return unknownLabel
}

// Valid reports whether a is a known action
func (a AuditAction) Valid() bool {
	_, ok := auditActionLabels[a]
	return ok
}

// AuditLog represents an audit trail entry. Rows are append-only.
type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty" db:"user_id"` // nil for the system actor
	Action    AuditAction     `json:"action" db:"action"`
	Meta      json.RawMessage `json:"meta" db:"meta"` // JSONB for flexible metadata
	LoggedAt  string          `json:"logged_at" db:"logged_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, loggedAt string) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Meta:      json.RawMessage(`{}`),
		LoggedAt:  loggedAt,
		CreatedAt: time.Now(),
	}
}

// WithUser sets the user ID; the nil UUID leaves the entry attributed to the system
func (a *AuditLog) WithUser(userID uuid.UUID) *AuditLog {
	if userID == uuid.Nil {
		a.UserID = nil
		return a
	}
	a.UserID = &userID
	return a
}

// WithMeta sets the metadata payload
func (a *AuditLog) WithMeta(meta interface{}) *AuditLog {
	if data, err := json.Marshal(meta); err == nil {
		a.Meta = data
	}
	return a
}
