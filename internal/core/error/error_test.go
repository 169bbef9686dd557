package errx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRedis(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"missing key", redis.Nil, http.StatusNotFound, RedisNotFoundMessage},
		{"timeout", fmt.Errorf("lrange: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, RedisTimeoutMessage},
		{"closed client", redis.ErrClosed, http.StatusServiceUnavailable, RedisErrorMessage},
		{"other", errors.New("connection refused"), http.StatusBadGateway, RedisErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var appErr *AppError
			require.ErrorAs(t, WrapRedis(tt.err), &appErr)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.message, appErr.Message)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}

	assert.NoError(t, WrapRedis(nil))
}

func TestWrappersKeepCause(t *testing.T) {
	cause := sql.ErrNoRows
	tests := []struct {
		name    string
		wrap    func(error) error
		status  int
		message string
	}{
		{"database", WrapDatabase, http.StatusBadGateway, DatabaseErrorMessage},
		{"llm", WrapLLM, http.StatusBadGateway, LLMErrorMessage},
		{"dataset", WrapDataset, http.StatusServiceUnavailable, DatasetErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(cause)
			assert.ErrorIs(t, err, sql.ErrNoRows)
			assert.EqualError(t, err, tt.message+": "+cause.Error())

			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.status, appErr.Status)
			assert.NoError(t, tt.wrap(nil))
		})
	}
}

func TestUserMessageHidesErrorChain(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, ApologyGeneric, UserMessage(WrapDatabase(errors.New("no such table: level9"))))
}

func TestAppErrorWithoutCause(t *testing.T) {
	err := New(nil, http.StatusInternalServerError, SystemErrorMessage)
	assert.EqualError(t, err, SystemErrorMessage)
	assert.Nil(t, errors.Unwrap(err))
}
