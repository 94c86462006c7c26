package api

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

var appStart = time.Now()
var totalRequests uint64
var total4xx uint64
var total5xx uint64
var totalDurationNs uint64

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(appStart).Seconds()
	tr := atomic.LoadUint64(&totalRequests)
	dn := atomic.LoadUint64(&totalDurationNs)
	avgMs := 0.0
	if tr > 0 {
		avgMs = float64(dn) / float64(tr) / 1e6
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uptimeSec":     uptime,
		"startedAt":     appStart.Format(time.RFC3339),
		"goroutines":    runtime.NumGoroutine(),
		"heapAlloc":     m.HeapAlloc,
		"gcNum":         m.NumGC,
		"totalRequests": tr,
		"total4xx":      atomic.LoadUint64(&total4xx),
		"total5xx":      atomic.LoadUint64(&total5xx),
		"avgDurationMs": avgMs,
	})
}
