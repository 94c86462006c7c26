package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dployr-io/sandbox/internal/config"
	"github.com/dployr-io/sandbox/internal/ledger"
	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/provider"
	"github.com/dployr-io/sandbox/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type statusRecorder struct {
	http.ResponseWriter
	code  int
	bytes int64
}

func (sr *statusRecorder) WriteHeader(statusCode int) {
	sr.code = statusCode
	sr.ResponseWriter.WriteHeader(statusCode)
}
func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

func Router(cfg *config.Config, logger logging.Logger, led ledger.Ledger, reg *provider.Registry) http.Handler {
	s := &apiServer{logger: logger, ledger: led, registry: reg}
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}, AllowedHeaders: []string{"*"}}))
	// simple global request counter (observability)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddUint64(&totalRequests, 1)
			next.ServeHTTP(w, r)
		})
	})
	// tracing middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := newTraceID()
			t := &Trace{ID: id, Method: r.Method, Path: r.URL.Path, Started: time.Now(), Events: []TraceEvent{}}
			t.UserAgent = r.UserAgent()
			if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
				t.RemoteIP = ip
			} else {
				t.RemoteIP = r.RemoteAddr
			}
			if r.ContentLength > 0 {
				t.ReqBytes = r.ContentLength
			}
			w.Header().Set("X-Trace-Id", id)
			w.Header().Set("X-Request-Id", id)
			r = r.WithContext(withTraceCtx(r.Context(), t))
			rec := &statusRecorder{ResponseWriter: w, code: 200}
			next.ServeHTTP(rec, r)
			t.Status = rec.code
			t.Ended = time.Now()
			t.Duration = t.Ended.Sub(t.Started)
			t.RespBytes = rec.bytes
			atomic.AddUint64(&totalDurationNs, uint64(t.Duration))
			if t.Status >= 500 {
				atomic.AddUint64(&total5xx, 1)
			} else if t.Status >= 400 {
				atomic.AddUint64(&total4xx, 1)
			}
			traces.add(t)
			// emit structured request log
			logger.Info("http_request",
				"method", t.Method,
				"path", t.Path,
				"status", t.Status,
				"durationMs", float64(t.Duration)/1e6,
				"traceId", t.ID,
				"bytesIn", t.ReqBytes,
				"bytesOut", t.RespBytes,
			)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"name": "sandbox", "version": version.Version})
		})
		r.Get("/health", s.health)
		r.Post("/request", s.provision)
		r.Post("/instances", s.provision)
		// GET kept alongside DELETE for browser-initiated teardown links
		r.Get("/destroy/{id}", s.destroy)
		r.Delete("/destroy/{id}", s.destroy)
		r.Delete("/instances/{id}", s.destroy)
		r.Route("/v1", func(r chi.Router) {
			r.Get("/obs/metrics", metricsHandler)
			r.Get("/trace/recent", traceRecent)
		})
	})
	return r
}
