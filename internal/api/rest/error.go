package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest         ErrorCode = "bad_request"
	errCodeNotFound           ErrorCode = "not_found"
	errCodeValidationFailed   ErrorCode = "validation_failed"
	errCodeClaimExpired       ErrorCode = "claim_expired"
	errCodeDuplicate          ErrorCode = "duplicate"
	errCodeVerificationFailed ErrorCode = "verification_failed"

	// Server errors (5xx)
	errCodeInternalError ErrorCode = "internal_error"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, details...)
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusNotFound, errCodeNotFound, message, details...)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, "Validation failed", details)
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.Error(err, fields...)
	respondWithError(c, http.StatusInternalServerError, errCodeInternalError, message)
}

// respondDomainError maps a domain error to its HTTP shape. Unrecognized
// errors fall through to a logged 500.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAgentID),
		errors.Is(err, domain.ErrInvalidWalletAddress),
		errors.Is(err, domain.ErrInvalidProofType),
		errors.Is(err, domain.ErrMissingURL):
		respondValidationError(c, err.Error())

	case errors.Is(err, domain.ErrClaimNotFound),
		errors.Is(err, domain.ErrAgentNotFound):
		respondNotFound(c, err.Error())

	case errors.Is(err, domain.ErrClaimExpired):
		respondWithError(c, http.StatusGone, errCodeClaimExpired, err.Error())

	case errors.Is(err, domain.ErrDuplicateProofURL):
		respondWithError(c, http.StatusConflict, errCodeDuplicate, err.Error())

	default:
		var verr *domain.VerificationError
		if errors.As(err, &verr) {
			if verr.Upstream != nil {
				logger.Warn("verification upstream failure", zap.Error(verr.Upstream))
			}
			respondWithError(c, http.StatusUnprocessableEntity, errCodeVerificationFailed, verr.Error())
			return
		}
		respondInternalError(c, err, "Internal server error")
	}
}
