package errx

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps a conversation-history store error to AppError. A missing
// key is not found, a timed out call is a gateway timeout and anything else
// is a bad gateway.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, redis.Nil):
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	case errors.Is(err, context.DeadlineExceeded):
		return New(err, http.StatusGatewayTimeout, RedisTimeoutMessage)
	case errors.Is(err, redis.ErrClosed):
		return New(err, http.StatusServiceUnavailable, RedisErrorMessage)
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}
