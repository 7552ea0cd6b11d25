package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityTotals holds inflow and outflow for one activity classification
type ActivityTotals struct {
	Inflow  float64 `json:"inflow"`
	Outflow float64 `json:"outflow"`
}

// Net returns inflow minus outflow
func (a ActivityTotals) Net() float64 {
	return RoundAmount(a.Inflow - a.Outflow)
}

// Cashflow is a stored cash flow statement for one account and period
type Cashflow struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	AccountID      uuid.UUID      `json:"account_id" db:"account_id"`
	Description    string         `json:"description" db:"description"`
	StartDate      time.Time      `json:"start_date" db:"start_date"`
	EndDate        time.Time      `json:"end_date" db:"end_date"`
	Operating      ActivityTotals `json:"operating"`
	Investing      ActivityTotals `json:"investing"`
	Financing      ActivityTotals `json:"financing"`
	GrossReceipts  float64        `json:"gross_receipts" db:"gross_receipts"`
	GrossPayments  float64        `json:"gross_payments" db:"gross_payments"`
	NetChange      float64        `json:"net_change" db:"net_change"`
	StartBalance   float64        `json:"start_balance" db:"start_balance"`
	EndBalance     float64        `json:"end_balance" db:"end_balance"`
	TransactionIDs []uuid.UUID    `json:"transaction_ids,omitempty"`
	CreatedBy      *uuid.UUID     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Cashflow model
func (Cashflow) TableName() string {
	return "cashflows"
}

// BuildCashflow aggregates transactions into a statement.
// endBalance is the account balance at the end of the period; the start
// balance is derived by removing the period's net change.
func BuildCashflow(accountID uuid.UUID, start, end time.Time, endBalance float64, txs []*Transaction) *Cashflow {
	cf := &Cashflow{
		ID:        uuid.New(),
		AccountID: accountID,
		StartDate: start,
		EndDate:   end,
		CreatedAt: time.Now(),
	}

	for _, tx := range txs {
		totals := cf.totalsFor(tx.Activity)
		if totals == nil {
			continue
		}
		if tx.Type == TransactionTypeIncome {
			totals.Inflow = RoundAmount(totals.Inflow + tx.Amount)
			cf.GrossReceipts = RoundAmount(cf.GrossReceipts + tx.Amount)
		} else {
			totals.Outflow = RoundAmount(totals.Outflow + tx.Amount)
			cf.GrossPayments = RoundAmount(cf.GrossPayments + tx.Amount)
		}
		cf.TransactionIDs = append(cf.TransactionIDs, tx.ID)
	}

	cf.NetChange = RoundAmount(cf.GrossReceipts - cf.GrossPayments)
	cf.EndBalance = RoundAmount(endBalance)
	cf.StartBalance = RoundAmount(endBalance - cf.NetChange)
	return cf
}

func (c *Cashflow) totalsFor(a ActivityType) *ActivityTotals {
	switch a {
	case ActivityOperating:
		return &c.Operating
	case ActivityInvesting:
		return &c.Investing
	case ActivityFinancing:
		return &c.Financing
	}
	return nil
}

// ReceiptBookEntry groups transactions sharing one authority-to-print number
type ReceiptBookEntry struct {
	PrintNumber string    `json:"print_number"`
	Count       int       `json:"count"`
	Total       float64   `json:"total"`
	FirstRef    string    `json:"first_ref"`
	LastRef     string    `json:"last_ref"`
	FirstDate   time.Time `json:"first_date"`
	LastDate    time.Time `json:"last_date"`
}
