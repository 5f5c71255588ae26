/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quotahttp

import (
	"context"

	"github.com/acronis/go-quota/log"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyLogger
)

// NewContextWithRequestID creates a new context with request id.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// GetRequestIDFromContext extracts request id from the context.
func GetRequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(ctxKeyRequestID).(string)
	return requestID
}

// NewContextWithLogger creates a new context with logger.
func NewContextWithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// GetLoggerFromContext extracts logger from the context.
func GetLoggerFromContext(ctx context.Context) log.FieldLogger {
	value := ctx.Value(ctxKeyLogger)
	if value == nil {
		return nil
	}
	return value.(log.FieldLogger)
}
