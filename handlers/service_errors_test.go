package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
		expectedMsg    string
	}{
		{"unauthenticated", services.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized", "not authenticated"},
		{"unknown user", services.ErrUserNotFound, http.StatusNotFound, "not_found", "user not found"},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, "forbidden", "access forbidden"},
		{"not found", services.ErrTransactionNotFound, http.StatusNotFound, "not_found", "transaction not found"},
		{"duplicate reference", services.ErrDuplicateReference, http.StatusConflict, "conflict", "reference number already exists"},
		{"validation", services.ErrMissingAuthorityNumber, http.StatusBadRequest, "bad_request", "receipt has no authority-to-print number"},
		{"upstream", services.ErrInferenceFailed.Wrap(errors.New("dial tcp 10.0.0.5:443: i/o timeout")), http.StatusBadGateway, "upstream_error", FailedMessage},
		{"internal", services.WrapInternal("nil runner", errors.New("boom")), http.StatusInternalServerError, "internal_error", FailedMessage},
		{"plain error", errors.New("pq: relation does not exist"), http.StatusInternalServerError, "internal_error", FailedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			HandleServiceError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.expectedStatus, w.Code)
			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
			assert.Equal(t, tt.expectedMsg, response.Message)
		})
	}
}

func TestHandleServiceError_HidesUpstreamDetail(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	w := httptest.NewRecorder()

	HandleServiceError(w, services.FromStorage(errors.New("pq: password authentication failed"), nil), zap.New(core))

	assert.NotContains(t, w.Body.String(), "password")
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].ContextMap()["error"], "password authentication failed")
}

func TestHandleServiceError_Details(t *testing.T) {
	w := httptest.NewRecorder()
	err := services.ErrInvalidInput.WithDetail("fields", map[string]string{"Amount": "Amount must be greater than 0"})

	HandleServiceError(w, err, zap.NewNop())

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	fields := response.Details["fields"].(map[string]interface{})
	assert.Equal(t, "Amount must be greater than 0", fields["Amount"])
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	type request struct {
		Role string `validate:"required"`
	}

	t.Run("struct validation", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, utils.ValidateStruct(request{}), zap.NewNop())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Validation failed", response.Message)
		assert.Contains(t, response.Details["fields"], "Role")
	})

	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("bad input"), zap.NewNop())

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "bad input", response.Message)
	})
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{services.ErrForbidden, http.StatusForbidden, "access forbidden"},
		{services.ErrDuplicateReference, http.StatusConflict, "reference number already exists"},
		{services.ErrInferenceFailed, http.StatusBadGateway, FailedMessage},
		{errors.New("boom"), http.StatusInternalServerError, FailedMessage},
	}

	for _, tt := range tests {
		status, msg := ErrorStatus(tt.err)
		assert.Equal(t, tt.wantStatus, status)
		assert.Equal(t, tt.wantMsg, msg)
	}
}
