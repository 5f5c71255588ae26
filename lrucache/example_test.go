/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func Example() {
	// Make and register Prometheus metrics collector.
	metricsCollector := NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{Namespace: "myservice"})
	reg := prometheus.NewRegistry()
	metricsCollector.MustRegister(reg)

	// Make LRU cache for storing maximum 1000 request counters that expire after an hour of inactivity.
	cache, err := NewWithOpts[string, int](1000, metricsCollector, Options{DefaultTTL: time.Hour})
	if err != nil {
		log.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		cache.Compute("client:1", func(n int, _ bool) (int, bool) {
			return n + 1, true
		})
	}

	if n, found := cache.Get("client:1"); found {
		fmt.Printf("client:1 made %d requests\n", n)
	}

	// Output:
	// client:1 made 3 requests
}
