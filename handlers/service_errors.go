package handlers

import (
	"net/http"

	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

// FailedMessage is returned for failures whose detail must stay server-side
const FailedMessage = "Action failed, nothing changed"

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	message := messageOf(err)

	var writeErr error
	switch {
	case services.IsUnauthenticatedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, message)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsDuplicateKeyError(err):
		writeErr = utils.WriteConflict(w, message, details)

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsUpstreamError(err):
		logger.Error("upstream failure", zap.Error(err))
		writeErr = utils.WriteError(w, http.StatusBadGateway, FailedMessage, nil)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, FailedMessage)

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, FailedMessage)
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		details := map[string]interface{}{"fields": utils.GetValidationFields(err)}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// messageOf returns the domain message without the wrapped cause
func messageOf(err error) string {
	if domainErr, ok := services.AsDomainError(err); ok {
		return domainErr.Message
	}
	return err.Error()
}

// ErrorStatus returns the HTTP status and user-facing message for err.
// Upstream and internal failures get FailedMessage.
func ErrorStatus(err error) (int, string) {
	switch {
	case services.IsUnauthenticatedError(err):
		return http.StatusUnauthorized, messageOf(err)
	case services.IsForbiddenError(err):
		return http.StatusForbidden, messageOf(err)
	case services.IsNotFoundError(err):
		return http.StatusNotFound, messageOf(err)
	case services.IsDuplicateKeyError(err):
		return http.StatusConflict, messageOf(err)
	case services.IsValidationError(err):
		return http.StatusBadRequest, messageOf(err)
	case services.IsUpstreamError(err):
		return http.StatusBadGateway, FailedMessage
	default:
		return http.StatusInternalServerError, FailedMessage
	}
}
