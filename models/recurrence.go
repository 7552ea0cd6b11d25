package models

import "time"

// RecurringInterval is how often a recurring transaction repeats
type RecurringInterval string

const (
	IntervalDaily   RecurringInterval = "DAILY"
	IntervalWeekly  RecurringInterval = "WEEKLY"
	IntervalMonthly RecurringInterval = "MONTHLY"
	IntervalYearly  RecurringInterval = "YEARLY"
)

var intervalLabels = map[RecurringInterval]string{
	IntervalDaily:   "Daily",
	IntervalWeekly:  "Weekly",
	IntervalMonthly: "Monthly",
	IntervalYearly:  "Yearly",
}

// AllRecurringIntervals returns every known interval
func AllRecurringIntervals() []RecurringInterval {
	return []RecurringInterval{IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly}
}

// Label returns the display label for the interval
func (i RecurringInterval) Label() string {
	if label, ok := intervalLabels[i]; ok {
		return label
	}
	return unknownLabel
}

// Valid reports whether i is a known interval
func (i RecurringInterval) Valid() bool {
	_, ok := intervalLabels[i]
	return ok
}

// NextRecurringDate returns base advanced by one interval.
//
// Calendar arithmetic follows time.AddDate, which normalises overflowing days:
// 2024-01-31 + MONTHLY is 2024-03-02 and 2024-02-29 + YEARLY is 2025-03-01.
// An unknown interval returns base unchanged; callers validate the interval first.
func NextRecurringDate(base time.Time, interval RecurringInterval) time.Time {
	switch interval {
	case IntervalDaily:
		return base.AddDate(0, 0, 1)
	case IntervalWeekly:
		return base.AddDate(0, 0, 7)
	case IntervalMonthly:
		return base.AddDate(0, 1, 0)
	case IntervalYearly:
		return base.AddDate(1, 0, 0)
	default:
		return base
	}
}

// IsDue reports whether a recurring transaction should be materialised at now
func (t *Transaction) IsDue(now time.Time) bool {
	if !t.IsRecurring || t.NextRecurringDate == nil || t.Status != TransactionStatusCompleted {
		return false
	}
	return !t.NextRecurringDate.After(now)
}

// Occurrence builds the non-recurring transaction a template materialises on
// due. A reference number gets the suffix -R<yyyymmdd> so each occurrence stays unique.
func (t *Transaction) Occurrence(due time.Time) *Transaction {
	occ := NewTransaction(t.AccountID, t.Type, t.Amount, due)
	occ.Description = t.Description
	occ.Category = t.Category
	occ.Particular = t.Particular
	occ.Merchant = t.Merchant
	occ.PrintNumber = t.PrintNumber
	occ.Activity = t.Activity
	occ.CreatedBy = t.CreatedBy
	if ref := t.Reference(); ref != "" {
		suffixed := ref + "-R" + due.Format("20060102")
		occ.RefNumber = &suffixed
	}
	return occ
}
