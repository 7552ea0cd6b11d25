package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Webhook signature headers sent by the identity provider's relay
const (
	HeaderWebhookID        = "svix-id"
	HeaderWebhookTimestamp = "svix-timestamp"
	HeaderWebhookSignature = "svix-signature"
)

var (
	// ErrMissingWebhookHeaders is returned when a signature header is absent
	ErrMissingWebhookHeaders = errors.New("missing webhook signature headers")

	// ErrWebhookTimestamp is returned when the timestamp is malformed or outside tolerance
	ErrWebhookTimestamp = errors.New("webhook timestamp outside tolerance")

	// ErrWebhookSignature is returned when no signature matches
	ErrWebhookSignature = errors.New("invalid webhook signature")

	// ErrInvalidWebhookPayload is returned when the event body cannot be read
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")
)

// WebhookVerifier checks HMAC-SHA256 signatures over "id.timestamp.body"
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	clock     func() time.Time
}

// NewWebhookVerifier decodes the base64 signing secret, with or without its "whsec_" prefix
func NewWebhookVerifier(secret string, tolerance time.Duration) (*WebhookVerifier, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("webhook secret is empty")
	}
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &WebhookVerifier{secret: key, tolerance: tolerance, clock: time.Now}, nil
}

// Verify checks the signature headers against body
func (v *WebhookVerifier) Verify(header http.Header, body []byte) error {
	id := header.Get(HeaderWebhookID)
	ts := header.Get(HeaderWebhookTimestamp)
	sigs := header.Get(HeaderWebhookSignature)
	if id == "" || ts == "" || sigs == "" {
		return ErrMissingWebhookHeaders
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookTimestamp, err)
	}
	sent := time.Unix(sec, 0)
	now := v.clock()
	if sent.Before(now.Add(-v.tolerance)) || sent.After(now.Add(v.tolerance)) {
		return ErrWebhookTimestamp
	}

	expected := v.Sign(id, sent, body)
	for _, candidate := range strings.Fields(sigs) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrWebhookSignature
}

// Sign returns the base64 v1 signature for a message
func (v *WebhookVerifier) Sign(id string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(id + "." + strconv.FormatInt(ts.Unix(), 10) + "."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Webhook event types handled by the user sync
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// UserEvent is a user lifecycle event from the identity provider
type UserEvent struct {
	Type       string
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	ImageURL   string
}

// ParseUserEvent extracts a user event from a verified webhook body. The
// primary email is the entry whose id matches primary_email_address_id,
// falling back to the first address.
func ParseUserEvent(body []byte) (*UserEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidWebhookPayload
	}
	doc := gjson.ParseBytes(body)

	evt := &UserEvent{
		Type:       doc.Get("type").String(),
		ExternalID: doc.Get("data.id").String(),
		FirstName:  doc.Get("data.first_name").String(),
		LastName:   doc.Get("data.last_name").String(),
		ImageURL:   doc.Get("data.image_url").String(),
	}
	if evt.Type == "" || evt.ExternalID == "" {
		return nil, fmt.Errorf("%w: missing type or data.id", ErrInvalidWebhookPayload)
	}

	primary := doc.Get("data.primary_email_address_id").String()
	emails := doc.Get("data.email_addresses").Array()
	for _, e := range emails {
		if e.Get("id").String() == primary {
			evt.Email = e.Get("email_address").String()
			break
		}
	}
	if evt.Email == "" && len(emails) > 0 {
		evt.Email = emails[0].Get("email_address").String()
	}

	return evt, nil
}
