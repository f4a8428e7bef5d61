package observability

import (
	"fmt"
	"net/http"
	"sync"
)

var (
	mu sync.RWMutex
	// customCollectors contains callbacks that return fully formatted
	// Prometheus metric lines. Packages register lightweight metrics without
	// introducing dependencies here.
	customCollectors []func() []string
)

// RegisterCustomCollector adds a collector function whose returned lines
// will be emitted on /metrics.
func RegisterCustomCollector(f func() []string) {
	if f == nil {
		return
	}
	mu.Lock()
	customCollectors = append(customCollectors, f)
	mu.Unlock()
}

// SetupPrometheus registers a minimal Prometheus-compatible text endpoint at
// /metrics. This avoids pulling external dependencies while remaining
// scrape-friendly.
func SetupPrometheus(mux *http.ServeMux) {
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		mu.RLock()
		collectors := append([]func() []string(nil), customCollectors...)
		mu.RUnlock()
		for _, f := range collectors {
			for _, line := range f() {
				if line == "" {
					continue
				}
				fmt.Fprintln(w, line)
			}
		}
	})
}
