package models

import "time"

// ScannedReceipt holds the fields extracted from a receipt image.
// Nothing is persisted from a scan; the caller prefills a transaction form with it.
type ScannedReceipt struct {
	Amount      float64         `json:"amount"`
	RefNumber   string          `json:"ref_number"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant"`
	Category    string          `json:"category"`
	Particular  string          `json:"particular"`
	Type        TransactionType `json:"type"`
	Activity    ActivityType    `json:"activity"`
	PrintNumber string          `json:"print_number"`
}
