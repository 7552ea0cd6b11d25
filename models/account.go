package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountType classifies a ledger account
type AccountType string

const (
	AccountTypeCurrent AccountType = "CURRENT"
	AccountTypeSavings AccountType = "SAVINGS"
	AccountTypeCash    AccountType = "CASH"
)

var accountTypeLabels = map[AccountType]string{
	AccountTypeCurrent: "Current Account",
	AccountTypeSavings: "Savings Account",
	AccountTypeCash:    "Cash on Hand",
}

// AllAccountTypes returns every known account type
func AllAccountTypes() []AccountType {
	return []AccountType{AccountTypeCurrent, AccountTypeSavings, AccountTypeCash}
}

// Label returns the display label for the account type
func (t AccountType) Label() string {
	if label, ok := accountTypeLabels[t]; ok {
		return label
	}
	return unknownLabel
}

// Valid reports whether t is a known account type
func (t AccountType) Valid() bool {
	_, ok := accountTypeLabels[t]
	return ok
}

// Account represents a ledger account kept by the firm
type Account struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Type      AccountType `json:"type" db:"type"`
	Balance   float64     `json:"balance" db:"balance"`
	IsDefault bool        `json:"is_default" db:"is_default"`
	CreatedBy *uuid.UUID  `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Account model
func (Account) TableName() string {
	return "accounts"
}

// NewAccount creates a new Account instance
func NewAccount(name string, accountType AccountType, openingBalance float64) *Account {
	now := time.Now()
	return &Account{
		ID:        uuid.New(),
		Name:      name,
		Type:      accountType,
		Balance:   RoundAmount(openingBalance),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply adjusts the balance by the signed effect of a transaction
func (a *Account) Apply(txType TransactionType, amount float64) {
	a.Balance = RoundAmount(a.Balance + txType.Sign()*amount)
}

// Revert removes the signed effect of a transaction from the balance
func (a *Account) Revert(txType TransactionType, amount float64) {
	a.Balance = RoundAmount(a.Balance - txType.Sign()*amount)
}
