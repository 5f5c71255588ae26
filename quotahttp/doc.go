/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package quotahttp provides HTTP middlewares that put a quota.Limiter in front of handlers.
//
// A rejected request gets 429 Too Many Requests (configurable), a Retry-After header rounded up
// to whole seconds and a JSON error body. Requests may optionally wait in a per-key backlog
// until the limiter admits them.
package quotahttp
