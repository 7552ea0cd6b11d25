package web

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/ledger"
)

// transactionFromForm reads the new-transaction form. Field rules beyond
// parsing are left to the ledger's validation.
func transactionFromForm(form url.Values) (ledger.TransactionInput, error) {
	var in ledger.TransactionInput

	accountID, err := uuid.Parse(form.Get("account_id"))
	if err != nil {
		return in, services.ErrInvalidInput.WithDetail("account_id", "choose an account")
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(form.Get("amount")), ",", ""), 64)
	if err != nil {
		return in, services.ErrInvalidInput.WithDetail("amount", "amount must be a number")
	}
	date, err := time.Parse(dateLayout, form.Get("date"))
	if err != nil {
		return in, services.ErrInvalidInput.WithDetail("date", "date must be YYYY-MM-DD")
	}

	in = ledger.TransactionInput{
		AccountID:         accountID,
		Type:              models.TransactionType(strings.ToUpper(form.Get("type"))),
		Amount:            amount,
		Description:       form.Get("description"),
		Date:              date,
		Category:          form.Get("category"),
		Particular:        form.Get("particular"),
		Merchant:          form.Get("merchant"),
		RefNumber:         form.Get("ref_number"),
		PrintNumber:       form.Get("print_number"),
		Activity:          models.ActivityType(strings.ToUpper(form.Get("activity"))),
		IsRecurring:       form.Get("is_recurring") == "true",
		RecurringInterval: models.RecurringInterval(strings.ToUpper(form.Get("recurring_interval"))),
	}
	return in, nil
}
