package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Lightweight in-memory tracing.
// Each request gets a Trace with Events, stored in a ring buffer.

type TraceEvent struct {
	Time   time.Time      `json:"time"`
	Name   string         `json:"name"`
	Fields map[string]any `json:"fields,omitempty"`
}

type Trace struct {
	ID        string        `json:"id"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Status    int           `json:"status"`
	UserAgent string        `json:"userAgent,omitempty"`
	RemoteIP  string        `json:"remoteIp,omitempty"`
	ReqBytes  int64         `json:"reqBytes,omitempty"`
	RespBytes int64         `json:"respBytes,omitempty"`
	Started   time.Time     `json:"started"`
	Ended     time.Time     `json:"ended"`
	Duration  time.Duration `json:"duration"`
	Events    []TraceEvent  `json:"events"`
}

type traceStore struct {
	mu   sync.RWMutex
	buf  []*Trace
	next int
	size int
}

var traces = &traceStore{buf: make([]*Trace, 1000), size: 1000}

func (s *traceStore) add(t *Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[s.next] = t
	s.next = (s.next + 1) % s.size
}

func (s *traceStore) all(limit int) []*Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > s.size {
		limit = s.size
	}
	out := make([]*Trace, 0, limit)
	// walk ring newest-first
	idx := (s.next - 1 + s.size) % s.size
	for i := 0; i < s.size && len(out) < limit; i++ {
		if s.buf[idx] != nil {
			out = append(out, s.buf[idx])
		}
		idx = (idx - 1 + s.size) % s.size
	}
	return out
}

// Context helpers

type ctxKey int

const traceKey ctxKey = 1

func traceFrom(ctx context.Context) *Trace {
	if v := ctx.Value(traceKey); v != nil {
		if t, ok := v.(*Trace); ok {
			return t
		}
	}
	return nil
}

func withTraceCtx(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey, t)
}

func newTraceID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }

func addEvent(r *http.Request, name string, fields map[string]any) {
	if t := traceFrom(r.Context()); t != nil {
		t.Events = append(t.Events, TraceEvent{Time: time.Now(), Name: name, Fields: fields})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError records an error event into the current trace and writes a JSON
// error body. The message is always a fixed, client-safe string.
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	addEvent(r, "error", map[string]any{"code": code, "message": msg})
	writeJSON(w, code, map[string]any{"error": msg})
}

func traceRecent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, traces.all(200))
}
