package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dployr-io/sandbox/internal/ledger"
	"github.com/dployr-io/sandbox/internal/logging"
	"github.com/dployr-io/sandbox/internal/provider"
	"github.com/dployr-io/sandbox/internal/upstream"
	"github.com/go-chi/chi/v5"
)

type apiServer struct {
	logger   logging.Logger
	ledger   ledger.Ledger
	registry *provider.Registry
}

const maxRequestBytes = 1 << 20 // 1MB payloads; provisioning params are small

func (s *apiServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// provision forwards the client payload to the upstream service and, on
// success, records the returned instance in the ledger keyed by id.
func (s *apiServer) provision(w http.ResponseWriter, r *http.Request) {
	addEvent(r, "instance.provision", nil)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil || len(body) == 0 || !json.Valid(body) {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	p, ok := s.registry.Default()
	if !ok {
		s.logger.Error("no provider registered")
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	rec, err := p.Create(r.Context(), body)
	if err != nil {
		s.respondUpstreamError(w, r, err)
		return
	}
	if err := s.ledger.Put(r.Context(), rec); err != nil {
		// The instance exists upstream but is untracked. Logged as its own
		// event class so it can be monitored; the reconciliation sweep
		// surfaces the orphan on its next pass.
		s.logger.Error("ledger_write_failed", "instanceId", rec.ID, "provider", rec.Provider, "error", err.Error())
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.logger.Info("instance provisioned", "instanceId", rec.ID, "provider", rec.Provider, "address", rec.Address)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Sandbox provision in progress",
		"success":    true,
		"instanceId": rec.ID,
	})
}

// destroy looks up the ledger record to reconstruct provider routing, then
// forwards the deletion upstream. The record is only removed after the
// upstream confirms, so a failed attempt can always be retried.
func (s *apiServer) destroy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missing instance id")
		return
	}
	addEvent(r, "instance.destroy", map[string]any{"instanceId": id})
	rec, err := s.ledger.Get(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		// Also the outcome for the loser of concurrent duplicate deletions:
		// the entry is already gone, treated as not found rather than failure.
		writeError(w, r, http.StatusNotFound, "Instance not found")
		return
	}
	if err != nil {
		s.logger.Error("ledger read failed", "instanceId", id, "error", err.Error())
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	p, ok := s.registry.Resolve(rec.Provider)
	if !ok {
		if p, ok = s.registry.Default(); !ok {
			s.logger.Error("no provider registered", "instanceId", id, "provider", rec.Provider)
			writeError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}
	}
	if err := p.Destroy(r.Context(), id); err != nil {
		// record stays intact so a retry can route the deletion again
		s.respondUpstreamError(w, r, err)
		return
	}
	if err := s.ledger.Delete(r.Context(), id); err != nil {
		// Upstream teardown succeeded but the record lingers; distinct event
		// class, cleaned up by the reconciliation sweep.
		s.logger.Error("ledger_delete_failed", "instanceId", id, "error", err.Error())
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.logger.Info("instance destroyed", "instanceId", id, "provider", rec.Provider)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Sandbox deletion in progress",
		"success": true,
	})
}

func (s *apiServer) respondUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if upstream.IsWarming(err) {
		addEvent(r, "upstream.warming", nil)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   "Service is warming up, please try again in 30-60 seconds",
			"warming": true,
		})
		return
	}
	s.logger.Error("upstream call failed", "error", err.Error())
	writeError(w, r, http.StatusInternalServerError, "Internal server error")
}
