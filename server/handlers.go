package server

import (
	"encoding/json"
	"net/http"
)

// Handlers carries the handler dependencies.
type Handlers struct {
	session SessionInfo
	cache   CacheInfo
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the session has authenticated at least once.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.session.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":       "not_ready",
			"failed_check": "gateway_auth",
			"error":        "never authenticated",
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports the connection state, identity and cache freshness.
func (h *Handlers) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	identity := h.session.Identity()
	body := map[string]any{
		"state":         h.session.CurrentState().String(),
		"bot_id":        identity.ID,
		"bot_name":      identity.Name,
		"subscriptions": len(h.session.Subscriptions()),
		"cache": map[string]any{
			"templates":   h.cache.Size(),
			"age_seconds": int(h.cache.Age().Seconds()),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
