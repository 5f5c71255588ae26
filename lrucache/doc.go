/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides in-memory cache with LRU eviction policy, TTL expiration, atomic
// per-key read-modify-write and Prometheus metrics.
package lrucache
