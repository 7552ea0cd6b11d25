package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const unknownLabel = "Unknown"

// TransactionType is the direction of money movement
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "INCOME"
	TransactionTypeExpense TransactionType = "EXPENSE"
)

var transactionTypeLabels = map[TransactionType]string{
	TransactionTypeIncome:  "Income",
	TransactionTypeExpense: "Expense",
}

// AllTransactionTypes returns every known transaction type
func AllTransactionTypes() []TransactionType {
	return []TransactionType{TransactionTypeIncome, TransactionTypeExpense}
}

// Label returns the display label for the transaction type
func (t TransactionType) Label() string {
	if label, ok := transactionTypeLabels[t]; ok {
		return label
	}
	return unknownLabel
}

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	_, ok := transactionTypeLabels[t]
	return ok
}

// Sign returns +1 for income and -1 for expense
func (t TransactionType) Sign() float64 {
	if t == TransactionTypeExpense {
		return -1
	}
	return 1
}

// TransactionStatus is the processing state of a transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

var transactionStatusLabels = map[TransactionStatus]string{
	TransactionStatusPending:   "Pending",
	TransactionStatusCompleted: "Completed",
	TransactionStatusFailed:    "Failed",
}

// AllTransactionStatuses returns every known status
func AllTransactionStatuses() []TransactionStatus {
	return []TransactionStatus{TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed}
}

// Label returns the display label for the status
func (s TransactionStatus) Label() string {
	if label, ok := transactionStatusLabels[s]; ok {
		return label
	}
	return unknownLabel
}

// ActivityType is the cash flow statement classification of a transaction
type ActivityType string

const (
	ActivityOperating ActivityType = "OPERATING"
	ActivityInvesting ActivityType = "INVESTING"
	ActivityFinancing ActivityType = "FINANCING"
)

var activityLabels = map[ActivityType]string{
	ActivityOperating: "Operating Activities",
	ActivityInvesting: "Investing Activities",
	ActivityFinancing: "Financing Activities",
}

// AllActivityTypes returns every known activity classification
func AllActivityTypes() []ActivityType {
	return []ActivityType{ActivityOperating, ActivityInvesting, ActivityFinancing}
}

// Label returns the display label for the activity
func (a ActivityType) Label() string {
	if label, ok := activityLabels[a]; ok {
		return label
	}
	return unknownLabel
}

// Valid reports whether a is a known activity
func (a ActivityType) Valid() bool {
	_, ok := activityLabels[a]
	return ok
}

// Transaction represents a ledger entry against an account
type Transaction struct {
	ID                uuid.UUID          `json:"id" db:"id"`
	AccountID         uuid.UUID          `json:"account_id" db:"account_id"`
	Type              TransactionType    `json:"type" db:"type"`
	Amount            float64            `json:"amount" db:"amount"`
	Description       string             `json:"description" db:"description"`
	Date              time.Time          `json:"date" db:"date"`
	Category          string             `json:"category" db:"category"`
	Particular        string             `json:"particular" db:"particular"`
	Merchant          string             `json:"merchant" db:"merchant"`
	RefNumber         *string            `json:"ref_number,omitempty" db:"ref_number"`
	PrintNumber       string             `json:"print_number" db:"print_number"` // authority-to-print number
	Activity          ActivityType       `json:"activity" db:"activity"`
	IsRecurring       bool               `json:"is_recurring" db:"is_recurring"`
	RecurringInterval *RecurringInterval `json:"recurring_interval,omitempty" db:"recurring_interval"`
	NextRecurringDate *time.Time         `json:"next_recurring_date,omitempty" db:"next_recurring_date"`
	LastProcessed     *time.Time         `json:"last_processed,omitempty" db:"last_processed"`
	Status            TransactionStatus  `json:"status" db:"status"`
	CreatedBy         *uuid.UUID         `json:"created_by,omitempty" db:"created_by"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// NewTransaction creates a new completed Transaction instance
func NewTransaction(accountID uuid.UUID, txType TransactionType, amount float64, date time.Time) *Transaction {
	now := time.Now()
	return &Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      txType,
		Amount:    RoundAmount(amount),
		Date:      date,
		Activity:  ActivityOperating,
		Status:    TransactionStatusCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithRecurrence marks the transaction recurring and computes its next date
func (t *Transaction) WithRecurrence(interval RecurringInterval) *Transaction {
	next := NextRecurringDate(t.Date, interval)
	t.IsRecurring = true
	t.RecurringInterval = &interval
	t.NextRecurringDate = &next
	return t
}

// Reference returns the reference number or an empty string
func (t *Transaction) Reference() string {
	if t.RefNumber == nil {
		return ""
	}
	return *t.RefNumber
}

// SignedAmount returns the amount with the sign of its effect on the balance
func (t *Transaction) SignedAmount() float64 {
	return t.Type.Sign() * t.Amount
}

// RoundAmount rounds a currency amount to centavos
func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}
