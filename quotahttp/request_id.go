/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quotahttp

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/acronis/go-quota/log"
)

// HeaderRequestID is the name of HTTP header with request id.
const HeaderRequestID = "X-Request-ID"

// RequestIDLogFieldKey is the name of the logged field that contains request id.
const RequestIDLogFieldKey = "request_id"

// RequestIDOpts represents an options for RequestID middleware.
type RequestIDOpts struct {
	// GenerateID is called when the request has no X-Request-ID header. xid is used by default.
	GenerateID func() string

	// Logger, if set, is decorated with the request id and put into the request context,
	// so Middleware logs rejections with it.
	Logger log.FieldLogger
}

type requestIDHandler struct {
	next http.Handler
	opts RequestIDOpts
}

func newID() string {
	return xid.New().String()
}

// RequestID is a middleware that reads value of X-Request-ID request's HTTP header and generates new one if it's empty.
// The id is put into request's context and returned in X-Request-ID response header.
func RequestID(logger log.FieldLogger) func(next http.Handler) http.Handler {
	return RequestIDWithOpts(RequestIDOpts{Logger: logger})
}

// RequestIDWithOpts is a more configurable version of RequestID middleware.
func RequestIDWithOpts(opts RequestIDOpts) func(next http.Handler) http.Handler {
	if opts.GenerateID == nil {
		opts.GenerateID = newID
	}
	return func(next http.Handler) http.Handler {
		return &requestIDHandler{next: next, opts: opts}
	}
}

func (h *requestIDHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = h.opts.GenerateID()
	}
	ctx := NewContextWithRequestID(r.Context(), requestID)
	if h.opts.Logger != nil {
		ctx = NewContextWithLogger(ctx, h.opts.Logger.With(log.String(RequestIDLogFieldKey, requestID)))
	}
	rw.Header().Set(HeaderRequestID, requestID)
	h.next.ServeHTTP(rw, r.WithContext(ctx))
}
