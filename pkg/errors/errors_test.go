package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsMapToHTTPStatus(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		errType   ErrorType
		status    int
		retryable bool
	}{
		{"validation", NewValidationError("bad input"), ErrorTypeValidation, http.StatusBadRequest, false},
		{"not found", NewNotFoundError("node"), ErrorTypeNotFound, http.StatusNotFound, false},
		{"conflict", NewConflictError("version mismatch"), ErrorTypeConflict, http.StatusConflict, true},
		{"unauthorized", NewUnauthorizedError(""), ErrorTypeUnauthorized, http.StatusUnauthorized, false},
		{"forbidden", NewForbiddenError(""), ErrorTypeForbidden, http.StatusForbidden, false},
		{"internal", NewInternalError("boom"), ErrorTypeInternal, http.StatusInternalServerError, false},
		{"timeout", NewTimeoutError("traversal"), ErrorTypeTimeout, http.StatusGatewayTimeout, true},
		{"rate limit", NewRateLimitError(100, "minute"), ErrorTypeRateLimit, http.StatusTooManyRequests, true},
		{"unavailable", NewUnavailableError("snapshot worker"), ErrorTypeUnavailable, http.StatusServiceUnavailable, true},
		{"database", NewDatabaseError("put", fmt.Errorf("io")), ErrorTypeDatabase, http.StatusInternalServerError, true},
		{"external", NewExternalError("reasoning", fmt.Errorf("502")), ErrorTypeExternal, http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.errType, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}
}

func TestAppErrorChaining(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	err := NewDatabaseError("query", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "socket closed")

	err = err.WithCode("DB_QUERY").WithDetail("table", "graph").WithRetryable(false)
	assert.Equal(t, "DB_QUERY", err.Code)
	assert.Equal(t, "graph", err.Details["table"])
	assert.False(t, err.Retryable)
}

func TestWrapPreservesType(t *testing.T) {
	inner := NodeNotFound("n-1")
	wrapped := Wrap(inner, "load start node")

	require.True(t, IsNotFound(wrapped))
	appErr := GetAppError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	assert.Equal(t, CodeNodeNotFound, appErr.Code)
	assert.Contains(t, appErr.Message, "load start node")
	assert.Contains(t, appErr.Message, "not found")
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("disk full"), "capture snapshot")

	appErr := GetAppError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrorTypeInternal, appErr.Type)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)

	assert.Nil(t, Wrap(nil, "nothing happened"))
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, IsValidation(UnknownNodeType("gremlin")))
	assert.True(t, IsConflict(VersionMismatch("node", "n-1", 2)))
	assert.True(t, IsRetryable(VersionMismatch("node", "n-1", 2)))
	assert.True(t, IsUnavailable(NewUnavailableError("provider")))
	assert.False(t, IsAppError(fmt.Errorf("plain")))
	assert.Nil(t, GetAppError(fmt.Errorf("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestGraphErrorCodes(t *testing.T) {
	err := EdgeNotFound("e-9")
	assert.Equal(t, CodeEdgeNotFound, err.Code)
	assert.Equal(t, "e-9", err.Details["edgeId"])

	err = NodeInactive("n-3")
	assert.True(t, IsValidation(err))
	assert.Equal(t, CodeNodeInactive, err.Code)
}
