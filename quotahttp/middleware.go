/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quotahttp

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/acronis/go-quota/log"
	"github.com/acronis/go-quota/restapi"
)

// HeaderClientID is the name of HTTP header the default key function takes the caller id from.
const HeaderClientID = "X-Client-ID"

// DefaultBacklogTimeout determines how long the HTTP request may be in the backlog status.
const DefaultBacklogTimeout = 5 * time.Second

// DefaultBacklogMaxKeys is a default value of maximum keys number for the per-key backlog.
const DefaultBacklogMaxKeys = 10000

// KeyLogFieldKey is the name of the logged field that contains the caller id.
const KeyLogFieldKey = "quota_key"

const userAgentLogFieldKey = "user_agent"

// Params contains data that relates to the quota check
// and could be used for rejecting or handling an occurred error.
type Params struct {
	ErrDomain           string
	ResponseStatusCode  int
	GetRetryAfter       GetRetryAfterFunc
	Key                 string
	RequestBacklogged   bool
	EstimatedRetryAfter time.Duration
}

// GetRetryAfterFunc is called to get a value for Retry-After response HTTP header when the quota is exceeded.
type GetRetryAfterFunc func(r *http.Request, estimatedTime time.Duration) time.Duration

// OnRejectFunc is called for rejecting HTTP request when the quota is exceeded.
type OnRejectFunc func(rw http.ResponseWriter, r *http.Request, params Params, next http.Handler, logger log.FieldLogger)

// OnErrorFunc is called when the quota check fails.
type OnErrorFunc func(rw http.ResponseWriter, r *http.Request, params Params, err error, next http.Handler, logger log.FieldLogger)

// GetKeyFunc returns the caller id for the request.
// If bypass is true, the request is served without the quota check.
type GetKeyFunc func(r *http.Request) (key string, bypass bool, err error)

// Opts represents options for the Middleware.
type Opts struct {
	// GetKey defaults to GetKeyByClientIDOrHost.
	GetKey GetKeyFunc

	// ResponseStatusCode defaults to 429.
	ResponseStatusCode int

	// GetRetryAfter defaults to GetRetryAfterEstimatedTime.
	GetRetryAfter GetRetryAfterFunc

	// DryRun makes the middleware only log rejections and serve requests anyway.
	DryRun bool

	// BacklogLimit is the number of denied requests per key that may wait for the quota. 0 disables backlogging.
	BacklogLimit   int
	BacklogTimeout time.Duration
	BacklogMaxKeys int

	OnReject         OnRejectFunc
	OnRejectInDryRun OnRejectFunc
	OnError          OnErrorFunc
}

type quotaHandler struct {
	next           http.Handler
	processor      *requestProcessor
	getKey         GetKeyFunc
	errDomain      string
	respStatusCode int
	getRetryAfter  GetRetryAfterFunc

	onReject OnRejectFunc
	onError  OnErrorFunc
}

// Middleware is a middleware that checks every HTTP request against the limiter.
func Middleware(limiter Limiter, errDomain string) (func(next http.Handler) http.Handler, error) {
	return MiddlewareWithOpts(limiter, errDomain, Opts{})
}

// MustMiddleware is a version of Middleware that panics if an error occurs.
func MustMiddleware(limiter Limiter, errDomain string) func(next http.Handler) http.Handler {
	mw, err := Middleware(limiter, errDomain)
	if err != nil {
		panic(err)
	}
	return mw
}

// MiddlewareWithOpts is a configurable version of Middleware.
func MiddlewareWithOpts(limiter Limiter, errDomain string, opts Opts) (func(next http.Handler) http.Handler, error) {
	if limiter == nil {
		return nil, fmt.Errorf("limiter must be specified")
	}
	if opts.GetKey == nil {
		opts.GetKey = GetKeyByClientIDOrHost
	}
	if opts.GetRetryAfter == nil {
		opts.GetRetryAfter = GetRetryAfterEstimatedTime
	}
	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusTooManyRequests
	}

	params := backlogParams{Limit: opts.BacklogLimit, Timeout: opts.BacklogTimeout, MaxKeys: opts.BacklogMaxKeys}
	if params.MaxKeys == 0 {
		params.MaxKeys = DefaultBacklogMaxKeys
	}
	if opts.DryRun {
		params.Limit = 0 // backlogging would block requests in dry-run mode
	}
	processor, err := newRequestProcessor(limiter, params)
	if err != nil {
		return nil, fmt.Errorf("new quota request processor: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return &quotaHandler{
			next:           next,
			processor:      processor,
			getKey:         opts.GetKey,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			getRetryAfter:  opts.GetRetryAfter,
			onReject:       makeOnRejectFunc(opts),
			onError:        makeOnErrorFunc(opts),
		}
	}, nil
}

// MustMiddlewareWithOpts is a version of MiddlewareWithOpts that panics if an error occurs.
func MustMiddlewareWithOpts(limiter Limiter, errDomain string, opts Opts) func(next http.Handler) http.Handler {
	mw, err := MiddlewareWithOpts(limiter, errDomain, opts)
	if err != nil {
		panic(err)
	}
	return mw
}

func (h *quotaHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.processor.process(&quotaRequestHandler{rw: rw, r: r, parent: h})
}

type quotaRequestHandler struct {
	rw     http.ResponseWriter
	r      *http.Request
	parent *quotaHandler
}

func (h *quotaRequestHandler) Context() context.Context {
	return h.r.Context()
}

func (h *quotaRequestHandler) Key() (key string, bypass bool, err error) {
	return h.parent.getKey(h.r)
}

func (h *quotaRequestHandler) Execute() {
	h.parent.next.ServeHTTP(h.rw, h.r)
}

func (h *quotaRequestHandler) OnReject(params decisionParams) {
	h.parent.onReject(h.rw, h.r, h.convertParams(params), h.parent.next, GetLoggerFromContext(h.r.Context()))
}

func (h *quotaRequestHandler) OnError(params decisionParams, err error) {
	h.parent.onError(h.rw, h.r, h.convertParams(params), err, h.parent.next, GetLoggerFromContext(h.r.Context()))
}

func (h *quotaRequestHandler) convertParams(params decisionParams) Params {
	return Params{
		ErrDomain:           h.parent.errDomain,
		ResponseStatusCode:  h.parent.respStatusCode,
		GetRetryAfter:       h.parent.getRetryAfter,
		Key:                 params.Key,
		RequestBacklogged:   params.RequestBacklogged,
		EstimatedRetryAfter: params.EstimatedRetryAfter,
	}
}

// GetKeyByClientIDOrHost takes the caller id from X-Client-ID header and falls back to the remote host.
func GetKeyByClientIDOrHost(r *http.Request) (key string, bypass bool, err error) {
	if clientID := r.Header.Get(HeaderClientID); clientID != "" {
		return clientID, false, nil
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, false, nil
	}
	return host, false, nil
}

// GetRetryAfterEstimatedTime returns estimated time after that the client may retry the request.
func GetRetryAfterEstimatedTime(_ *http.Request, estimatedTime time.Duration) time.Duration {
	return estimatedTime
}

// DefaultOnReject responds with the configured status code, Retry-After header and JSON error.
func DefaultOnReject(rw http.ResponseWriter, r *http.Request, params Params, _ http.Handler, logger log.FieldLogger) {
	if logger != nil {
		logger = logger.With(log.String(KeyLogFieldKey, params.Key), log.String(userAgentLogFieldKey, r.UserAgent()))
	}
	if params.GetRetryAfter != nil {
		retryAfter := params.GetRetryAfter(r, params.EstimatedRetryAfter)
		rw.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	restapi.RespondError(rw, params.ResponseStatusCode, restapi.NewTooManyRequestsError(params.ErrDomain), logger)
}

// DefaultOnError logs the error and responds with 500 Internal Server Error.
func DefaultOnError(rw http.ResponseWriter, _ *http.Request, params Params, err error, _ http.Handler, logger log.FieldLogger) {
	if logger != nil {
		logger.Error(err.Error(), log.String(KeyLogFieldKey, params.Key))
	}
	restapi.RespondInternalError(rw, params.ErrDomain, logger)
}

// DefaultOnRejectInDryRun logs the rejection and serves the request.
func DefaultOnRejectInDryRun(rw http.ResponseWriter, r *http.Request, params Params, next http.Handler, logger log.FieldLogger) {
	if logger != nil {
		logger.Warn("too many requests, serving will be continued because of dry run mode",
			log.String(KeyLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	next.ServeHTTP(rw, r)
}

func makeOnRejectFunc(opts Opts) OnRejectFunc {
	if opts.DryRun {
		if opts.OnRejectInDryRun != nil {
			return opts.OnRejectInDryRun
		}
		return DefaultOnRejectInDryRun
	}
	if opts.OnReject != nil {
		return opts.OnReject
	}
	return DefaultOnReject
}

func makeOnErrorFunc(opts Opts) OnErrorFunc {
	if opts.OnError != nil {
		return opts.OnError
	}
	return DefaultOnError
}
