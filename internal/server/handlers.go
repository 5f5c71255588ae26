/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-quota/quota"
	"github.com/acronis/go-quota/quotahttp"
	"github.com/acronis/go-quota/restapi"
)

// CallerQuotaResponse describes the current state of a caller's quota.
type CallerQuotaResponse struct {
	CallerID     string     `json:"callerId"`
	Strategy     string     `json:"strategy"`
	Tokens       int        `json:"tokens"`
	WindowEnd    *time.Time `json:"windowEnd,omitempty"`
	LastRefillAt *time.Time `json:"lastRefillAt,omitempty"`
}

// DecisionResponse describes a decision made for a caller.
type DecisionResponse struct {
	CallerID     string `json:"callerId"`
	Allowed      bool   `json:"allowed"`
	Remaining    int    `json:"remaining"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
	BonusGranted bool   `json:"bonusGranted,omitempty"`
}

func (s *Server) getCallerQuota(rw http.ResponseWriter, r *http.Request) {
	callerID := chi.URLParam(r, "callerID")
	rec, found := s.limiter.Peek(callerID)
	if !found {
		s.respondNotFound(rw, r)
		return
	}
	resp := CallerQuotaResponse{CallerID: callerID, Strategy: s.limiter.Strategy().Name(), Tokens: rec.Tokens}
	if !rec.WindowEnd.IsZero() {
		resp.WindowEnd = &rec.WindowEnd
	}
	if !rec.LastRefillAt.IsZero() {
		resp.LastRefillAt = &rec.LastRefillAt
	}
	restapi.RespondJSON(rw, &resp, quotahttp.GetLoggerFromContext(r.Context()))
}

func (s *Server) resetCallerQuota(rw http.ResponseWriter, r *http.Request) {
	if !s.limiter.Reset(chi.URLParam(r, "callerID")) {
		s.respondNotFound(rw, r)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) decide(rw http.ResponseWriter, r *http.Request) {
	logger := quotahttp.GetLoggerFromContext(r.Context())
	callerID := chi.URLParam(r, "callerID")
	d, err := s.limiter.Decide(callerID)
	if err != nil {
		if errors.Is(err, quota.ErrEmptyCallerID) {
			restapi.RespondError(rw, http.StatusBadRequest,
				restapi.NewErrorForStatus(s.cfg.ErrorDomain, http.StatusBadRequest, err.Error()), logger)
			return
		}
		restapi.RespondInternalError(rw, s.cfg.ErrorDomain, logger)
		return
	}
	restapi.RespondJSON(rw, &DecisionResponse{
		CallerID:     callerID,
		Allowed:      d.Allowed,
		Remaining:    d.Remaining,
		RetryAfterMs: d.RetryAfter.Milliseconds(),
		BonusGranted: d.BonusGranted,
	}, logger)
}

func (s *Server) ping(rw http.ResponseWriter, r *http.Request) {
	restapi.RespondJSON(rw, map[string]string{"message": "pong"}, quotahttp.GetLoggerFromContext(r.Context()))
}

func (s *Server) respondNotFound(rw http.ResponseWriter, r *http.Request) {
	restapi.RespondError(rw, http.StatusNotFound,
		restapi.NewError(s.cfg.ErrorDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound),
		quotahttp.GetLoggerFromContext(r.Context()))
}
