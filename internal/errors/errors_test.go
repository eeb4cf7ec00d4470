package errors

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		category   ErrorCategory
		httpStatus int
		message    string
	}{
		{
			name:       "validation",
			err:        NewValidationError("strategy payload is malformed"),
			category:   CategoryValidation,
			httpStatus: http.StatusBadRequest,
			message:    "[VALIDATION_ERROR] strategy payload is malformed",
		},
		{
			name:       "not found",
			err:        NewNotFoundError("outcome record", "rec-42"),
			category:   CategoryNotFound,
			httpStatus: http.StatusNotFound,
			message:    "[NOT_FOUND] outcome record not found",
		},
		{
			name:       "storage",
			err:        NewStorageError("insert snapshot", fmt.Errorf("disk full")),
			category:   CategoryStorage,
			httpStatus: http.StatusServiceUnavailable,
			message:    "[STORAGE_ERROR] Record store unavailable",
		},
		{
			name:       "rate limit",
			err:        NewRateLimitError("30s"),
			category:   CategoryRateLimit,
			httpStatus: http.StatusTooManyRequests,
			message:    "[RATE_LIMIT_EXCEEDED] Rate limit exceeded",
		},
		{
			name:       "authorization",
			err:        NewAuthorizationError("reviewer token required"),
			category:   CategoryAuthorization,
			httpStatus: http.StatusUnauthorized,
			message:    "[UNAUTHORIZED] reviewer token required",
		},
		{
			name:       "configuration",
			err:        NewConfigurationError("weights do not sum to 1.0", nil),
			category:   CategoryConfiguration,
			httpStatus: http.StatusInternalServerError,
			message:    "[CONFIGURATION_ERROR] Configuration error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.message, tt.err.Error())
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestNewValidationViolations(t *testing.T) {
	err := NewValidationViolations("configuration is invalid", []string{
		"component weights sum to 0.90, expected 1.0",
		"thresholds.go must be greater than thresholds.conditionalMin",
	})

	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Len(t, err.ErrBuilder.Details.Errors, 2)
}

func TestToAppError(t *testing.T) {
	t.Run("passes through an AppError", func(t *testing.T) {
		original := NewValidationError("bad input")
		assert.Same(t, original, ToAppError(original))
	})

	t.Run("maps sql.ErrNoRows to not found", func(t *testing.T) {
		appErr := ToAppError(fmt.Errorf("load snapshot: %w", sql.ErrNoRows))
		assert.Equal(t, CategoryNotFound, appErr.Category)
		assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	})

	t.Run("maps context cancellation to timeout", func(t *testing.T) {
		appErr := ToAppError(context.Canceled)
		assert.Equal(t, CategoryTimeout, appErr.Category)
	})

	t.Run("maps deadline exceeded to timeout", func(t *testing.T) {
		appErr := ToAppError(context.DeadlineExceeded)
		assert.Equal(t, CategoryTimeout, appErr.Category)
		assert.Equal(t, http.StatusGatewayTimeout, appErr.HTTPStatus)
	})

	t.Run("defaults to internal", func(t *testing.T) {
		appErr := ToAppError(fmt.Errorf("something odd"))
		assert.Equal(t, CategoryInternal, appErr.Category)
		assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToAppError(nil))
	})
}

func TestErrorHandlerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError("bid", "bid-9"))
	})
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "fine"})
	})

	t.Run("renders the attached error", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not_found")
	})

	t.Run("leaves clean responses alone", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "fine")
	})
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryHandler())
	router.GET("/panic", func(c *gin.Context) {
		panic("scoring exploded")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal")
}

func TestWrapError(t *testing.T) {
	base := fmt.Errorf("no such table")
	wrapped := WrapError(base, "load outcome records for %s", "bid-7")

	require.Error(t, wrapped)
	assert.Contains(t, wrapped.Error(), "load outcome records for bid-7")
	assert.ErrorIs(t, wrapped, base)

	assert.Nil(t, WrapError(nil, "ignored"))
}
