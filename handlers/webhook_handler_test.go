package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSignedWebhook(t *testing.T, v *identity.WebhookVerifier, body string) *http.Request {
	t.Helper()
	now := time.Now()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity", strings.NewReader(body))
	req.Header.Set(identity.HeaderWebhookID, "msg_"+uuid.NewString())
	req.Header.Set(identity.HeaderWebhookTimestamp, strconv.FormatInt(now.Unix(), 10))
	req.Header.Set(identity.HeaderWebhookSignature, "v1,"+v.Sign(req.Header.Get(identity.HeaderWebhookID), now, []byte(body)))
	return req
}

func newWebhookVerifier(t *testing.T) *identity.WebhookVerifier {
	t.Helper()
	v, err := identity.NewWebhookVerifier("whsec_"+base64.StdEncoding.EncodeToString([]byte("relay-signing-key")), time.Minute)
	require.NoError(t, err)
	return v
}

func TestWebhookHandler_Identity(t *testing.T) {
	v := newWebhookVerifier(t)
	user := &models.User{ID: uuid.New(), ExternalID: "user_2abc", Email: "ana@firm.ph", Role: models.RoleStaff}

	created := `{"type":"user.created","data":{"id":"user_2abc","first_name":"Ana",` +
		`"primary_email_address_id":"idn_1","email_addresses":[{"id":"idn_1","email_address":"ana@firm.ph"}]}}`

	t.Run("created syncs the user", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("SyncUser", mock.Anything, mock.MatchedBy(func(e *identity.UserEvent) bool {
			return e.Type == identity.EventUserCreated && e.ExternalID == "user_2abc" && e.Email == "ana@firm.ph"
		})).Return(user, nil)
		h := NewWebhookHandler(v, svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleIdentity(w, newSignedWebhook(t, v, created))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "processed")
		svc.AssertExpectations(t)
	})

	t.Run("deleted removes the user", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("DeleteUser", mock.Anything, "user_2abc").Return(user, nil)
		h := NewWebhookHandler(v, svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleIdentity(w, newSignedWebhook(t, v, `{"type":"user.deleted","data":{"id":"user_2abc"}}`))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("deleting an unknown user is acknowledged", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("DeleteUser", mock.Anything, "user_gone").Return(nil, services.ErrUserNotFound)
		h := NewWebhookHandler(v, svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleIdentity(w, newSignedWebhook(t, v, `{"type":"user.deleted","data":{"id":"user_gone"}}`))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewWebhookHandler(v, svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleIdentity(w, newSignedWebhook(t, v, `{"type":"session.created","data":{"id":"sess_1"}}`))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ignored")
		svc.AssertNotCalled(t, "SyncUser", mock.Anything, mock.Anything)
	})

	t.Run("sync failure", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("SyncUser", mock.Anything, mock.Anything).
			Return(nil, services.FromStorage(errors.New("deadlock detected"), nil))
		h := NewWebhookHandler(v, svc, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleIdentity(w, newSignedWebhook(t, v, created))

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		svc := new(MockUserService)
		h := NewWebhookHandler(v, svc, zap.NewNop())

		req := newSignedWebhook(t, v, created)
		req.Header.Set(identity.HeaderWebhookSignature, "v1,Zm9yZ2Vk")
		w := httptest.NewRecorder()
		h.HandleIdentity(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "SyncUser", mock.Anything, mock.Anything)
	})

	t.Run("unsigned", func(t *testing.T) {
		h := NewWebhookHandler(v, new(MockUserService), zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleIdentity(w, httptest.NewRequest(http.MethodPost, "/webhooks/identity", strings.NewReader(created)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("secret not configured", func(t *testing.T) {
		h := NewWebhookHandler(nil, new(MockUserService), zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleIdentity(w, newSignedWebhook(t, v, created))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("signed but malformed payload", func(t *testing.T) {
		h := NewWebhookHandler(v, new(MockUserService), zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleIdentity(w, newSignedWebhook(t, v, `{"type":"user.created","data":{}}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
