package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mrpayong/terual-accounting/middleware"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

// ReceiptScanner extracts transaction fields from a receipt image
type ReceiptScanner interface {
	Scan(ctx context.Context, image []byte, mimeType string) (*models.ScannedReceipt, error)
}

// ReceiptHandler handles receipt scanning requests
type ReceiptHandler struct {
	scanner  ReceiptScanner
	maxBytes int64
	logger   *zap.Logger
}

// NewReceiptHandler creates a new ReceiptHandler. maxBytes bounds the uploaded image.
func NewReceiptHandler(scanner ReceiptScanner, maxBytes int64, logger *zap.Logger) *ReceiptHandler {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &ReceiptHandler{scanner: scanner, maxBytes: maxBytes, logger: logger}
}

// HandleScan handles POST /api/v1/receipts/scan with a multipart "file" field.
// Nothing is persisted; the extracted fields prefill a transaction form.
func (h *ReceiptHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	// multipart framing needs some room beyond the image itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			_ = utils.WriteBadRequest(w, "Image is too large", map[string]interface{}{"max_bytes": h.maxBytes})
			return
		}
		_ = utils.WriteBadRequest(w, "A receipt image is required in the \"file\" field", nil)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Could not read the uploaded image", nil)
		return
	}
	if int64(len(image)) > h.maxBytes {
		_ = utils.WriteBadRequest(w, "Image is too large", map[string]interface{}{"max_bytes": h.maxBytes})
		return
	}

	mimeType := detectMIME(header.Header.Get("Content-Type"), image)

	h.logger.Debug("scanning receipt",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("mime_type", mimeType),
		zap.Int("bytes", len(image)))

	receipt, err := h.scanner.Scan(r.Context(), image, mimeType)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, receipt)
}

// detectMIME trusts a declared image type and sniffs the content otherwise
func detectMIME(declared string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
		return mediaType
	}
	return mimetype.Detect(data).String()
}
