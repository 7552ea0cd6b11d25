package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(nil, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "healthy", response.Status)
	assert.NotEmpty(t, response.Timestamp)
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("healthy when database answers", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		handler := NewHealthHandler(map[string]Pinger{"database": DatabasePinger(db)}, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "healthy", response.Checks["database"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		handler := NewHealthHandler(map[string]Pinger{"database": DatabasePinger(db)}, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "unhealthy", response.Checks["database"])
	})

	t.Run("one failing dependency fails readiness", func(t *testing.T) {
		handler := NewHealthHandler(map[string]Pinger{
			"database": PingFunc(func(context.Context) error { return nil }),
			"redis":    PingFunc(func(context.Context) error { return errors.New("i/o timeout") }),
			"skipped":  nil,
		}, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, map[string]string{"database": "healthy", "redis": "unhealthy"}, response.Checks)
	})

	t.Run("no dependencies is ready", func(t *testing.T) {
		handler := NewHealthHandler(map[string]Pinger{"database": DatabasePinger(nil)}, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
