/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quotahttp

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-quota/lrucache"
)

// Limiter is the request-handling tier contract. *quota.Limiter implements it.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

type backlogSlotsProvider func(key string) chan struct{}

type decisionParams struct {
	Key                 string
	RequestBacklogged   bool
	EstimatedRetryAfter time.Duration
}

type requestHandler interface {
	Context() context.Context
	Key() (key string, bypass bool, err error)
	Execute()
	OnReject(params decisionParams)
	OnError(params decisionParams, err error)
}

type backlogParams struct {
	MaxKeys int
	Limit   int
	Timeout time.Duration
}

// requestProcessor asks the limiter and, when backlogging is enabled, holds a denied request
// until the limiter admits it, the backlog timeout fires or the request context is done.
type requestProcessor struct {
	limiter         Limiter
	getBacklogSlots backlogSlotsProvider
	backlogTimeout  time.Duration
}

func newRequestProcessor(limiter Limiter, params backlogParams) (*requestProcessor, error) {
	if params.Limit < 0 {
		return nil, fmt.Errorf("backlog limit should not be negative, got %d", params.Limit)
	}
	if params.MaxKeys < 0 {
		return nil, fmt.Errorf("max keys for backlog should not be negative, got %d", params.MaxKeys)
	}
	if params.Timeout < 0 {
		return nil, fmt.Errorf("backlog timeout should not be negative, got %s", params.Timeout)
	}
	var getBacklogSlots backlogSlotsProvider
	if params.Limit > 0 {
		getBacklogSlots = newBacklogSlotsProvider(params.Limit, params.MaxKeys)
	}
	if params.Timeout == 0 {
		params.Timeout = DefaultBacklogTimeout
	}
	return &requestProcessor{limiter: limiter, getBacklogSlots: getBacklogSlots, backlogTimeout: params.Timeout}, nil
}

func (p *requestProcessor) process(rh requestHandler) {
	key, bypass, err := rh.Key()
	if err != nil {
		rh.OnError(decisionParams{Key: key}, fmt.Errorf("get key for quota: %w", err))
		return
	}
	if bypass {
		rh.Execute()
		return
	}

	allow, retryAfter, err := p.limiter.Allow(rh.Context(), key)
	if err != nil {
		rh.OnError(decisionParams{Key: key}, fmt.Errorf("quota: %w", err))
		return
	}
	if allow {
		rh.Execute()
		return
	}
	if p.getBacklogSlots == nil {
		rh.OnReject(decisionParams{Key: key, EstimatedRetryAfter: retryAfter})
		return
	}
	p.processBacklog(rh, key, retryAfter)
}

func (p *requestProcessor) processBacklog(rh requestHandler, key string, retryAfter time.Duration) {
	backlogSlots := p.getBacklogSlots(key)
	select {
	case backlogSlots <- struct{}{}:
	default:
		rh.OnReject(decisionParams{Key: key, EstimatedRetryAfter: retryAfter})
		return
	}
	defer func() { <-backlogSlots }()

	backlogTimeoutTimer := time.NewTimer(p.backlogTimeout)
	defer backlogTimeoutTimer.Stop()

	retryTimer := time.NewTimer(retryAfter)
	defer retryTimer.Stop()

	ctx := rh.Context()
	params := decisionParams{Key: key, RequestBacklogged: true}
	for {
		params.EstimatedRetryAfter = retryAfter
		select {
		case <-retryTimer.C:
		case <-backlogTimeoutTimer.C:
			rh.OnReject(params)
			return
		case <-ctx.Done():
			rh.OnError(params, ctx.Err())
			return
		}

		allow, nextRetryAfter, err := p.limiter.Allow(ctx, key)
		if err != nil {
			rh.OnError(params, fmt.Errorf("quota: %w", err))
			return
		}
		if allow {
			rh.Execute()
			return
		}
		retryAfter = nextRetryAfter
		retryTimer.Reset(retryAfter) // retryTimer has fired and its channel is drained here
	}
}

func newBacklogSlotsProvider(backlogLimit, maxKeys int) backlogSlotsProvider {
	if maxKeys == 0 {
		backlogSlots := make(chan struct{}, backlogLimit)
		return func(string) chan struct{} {
			return backlogSlots
		}
	}
	keysZone, _ := lrucache.New[string, chan struct{}](maxKeys, nil) // error is always nil for positive maxKeys
	return func(key string) chan struct{} {
		var backlogSlots chan struct{}
		keysZone.Compute(key, func(slots chan struct{}, exists bool) (chan struct{}, bool) {
			if !exists {
				slots = make(chan struct{}, backlogLimit)
			}
			backlogSlots = slots
			return slots, true
		})
		return backlogSlots
	}
}
