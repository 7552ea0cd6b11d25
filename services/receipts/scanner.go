// Package receipts extracts ledger fields from receipt images through a generative provider.
package receipts

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/mrpayong/terual-accounting/internal/observability"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/services/providers"
	"github.com/mrpayong/terual-accounting/services/workflow"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultMaxBytes bounds an uploaded receipt image
const DefaultMaxBytes = 5 << 20

const dateLayout = "2006-01-02"

const extractionPrompt = `Analyze this receipt image and extract the following information in JSON format:
- Total amount (just the number)
- Reference number (OR number, invoice number or transaction number)
- Date (in YYYY-MM-DD format)
- Description or items purchased (brief summary)
- Merchant/store name
- Suggested category (one of: housing, transportation, groceries, utilities, entertainment, food, shopping, healthcare, education, personal, travel, insurance, gifts, bills, other-expense)
- Particular (what the payment was for, in a few words)
- Transaction type (INCOME or EXPENSE)
- Activity (OPERATING, INVESTING or FINANCING)
- Authority to print number (ATP / printer's accreditation number)

Only respond with valid JSON in this exact format:
{
  "amount": number,
  "refNumber": "string",
  "date": "YYYY-MM-DD",
  "description": "string",
  "merchantName": "string",
  "category": "string",
  "particular": "string",
  "type": "INCOME or EXPENSE",
  "activity": "OPERATING, INVESTING or FINANCING",
  "printNumber": "string"
}

If it's not a receipt, return an empty object {}.`

var supportedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// Scanner turns receipt images into ScannedReceipt values. Nothing is persisted.
type Scanner struct {
	registry *providers.Registry
	runner   *workflow.Runner
	maxBytes int
	clock    func() time.Time
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewScanner creates a new Scanner using the registry's primary provider
func NewScanner(registry *providers.Registry, runner *workflow.Runner, maxBytes int, metrics *observability.Metrics, logger *zap.Logger) *Scanner {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Scanner{
		registry: registry,
		runner:   runner,
		maxBytes: maxBytes,
		clock:    time.Now,
		metrics:  metrics,
		logger:   logger.Named("receipts"),
	}
}

// Scan validates the image and extracts its fields for a STAFF or ADMIN actor
func (s *Scanner) Scan(ctx context.Context, image []byte, mimeType string) (*models.ScannedReceipt, error) {
	return workflow.Query(ctx, s.runner, "scanReceipt", workflow.StaffOrAdmin,
		func(ctx context.Context, _ *models.Actor) (*models.ScannedReceipt, error) {
			return s.extract(ctx, image, mimeType)
		})
}

func (s *Scanner) extract(ctx context.Context, image []byte, mimeType string) (*models.ScannedReceipt, error) {
	mimeType = normalizeMIMEType(mimeType)
	if len(image) == 0 {
		return nil, services.ErrUnsupportedImage.WithDetail("reason", "empty file")
	}
	if len(image) > s.maxBytes {
		return nil, services.ErrUnsupportedImage.WithDetail("max_bytes", s.maxBytes)
	}
	if !supportedMIMETypes[mimeType] {
		return nil, services.ErrUnsupportedImage.WithDetail("mime_type", mimeType)
	}

	provider, err := s.registry.Primary()
	if err != nil {
		return nil, services.ErrInferenceFailed.Wrap(err)
	}

	start := time.Now()
	resp, err := provider.GenerateContent(ctx, &providers.GenerateRequest{
		Parts: []providers.Part{
			providers.DataPart(mimeType, image),
			providers.TextPart(extractionPrompt),
		},
		ResponseMIMEType: "application/json",
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		s.metrics.RecordInference(provider.Name(), "error", elapsed)
		s.logger.Error("receipt inference failed",
			zap.String("provider", provider.Name()),
			zap.Bool("retryable", providers.IsRetryable(err)),
			zap.Error(err))
		return nil, services.ErrInferenceFailed.Wrap(err)
	}
	s.metrics.RecordInference(provider.Name(), "ok", elapsed)

	receipt, err := ParseReceipt(resp.Text, s.clock())
	if err != nil {
		s.logger.Info("receipt rejected",
			zap.String("provider", provider.Name()),
			zap.String("reason", err.Error()))
		return nil, err
	}
	return receipt, nil
}

// ParseReceipt decodes the model's JSON answer. An empty object means the image
// was not a receipt; a receipt without an authority-to-print number is rejected.
// Missing dates fall back to today.
func ParseReceipt(text string, today time.Time) (*models.ScannedReceipt, error) {
	payload := StripCodeFence(text)
	if !gjson.Valid(payload) {
		return nil, services.ErrInferenceFailed.WithDetail("reason", "response is not JSON")
	}

	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return nil, services.ErrInferenceFailed.WithDetail("reason", "response is not an object")
	}
	if len(doc.Map()) == 0 {
		return nil, services.ErrNotAReceipt
	}

	printNumber := strings.TrimSpace(doc.Get("printNumber").String())
	if printNumber == "" {
		return nil, services.ErrMissingAuthorityNumber
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(doc.Get("date").String()))
	if err != nil {
		date = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	}

	txType := models.TransactionType(strings.ToUpper(strings.TrimSpace(doc.Get("type").String())))
	if !txType.Valid() {
		txType = models.TransactionTypeExpense
	}
	activity := models.ActivityType(strings.ToUpper(strings.TrimSpace(doc.Get("activity").String())))
	if !activity.Valid() {
		activity = models.ActivityOperating
	}

	return &models.ScannedReceipt{
		Amount:      models.RoundAmount(doc.Get("amount").Float()),
		RefNumber:   strings.TrimSpace(doc.Get("refNumber").String()),
		Date:        date,
		Description: strings.TrimSpace(doc.Get("description").String()),
		Merchant:    strings.TrimSpace(doc.Get("merchantName").String()),
		Category:    strings.TrimSpace(doc.Get("category").String()),
		Particular:  strings.TrimSpace(doc.Get("particular").String()),
		Type:        txType,
		Activity:    activity,
		PrintNumber: printNumber,
	}, nil
}

// StripCodeFence removes a surrounding Markdown code fence, if any
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

func normalizeMIMEType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}
