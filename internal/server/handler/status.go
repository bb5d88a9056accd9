package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/trigger"
)

// LastRunner reports the most recent scheduled run.
type LastRunner interface {
	LastRun() trigger.RunStatus
}

// StatusHandler serves the runtime mode and the last scheduler run.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	scheduler LastRunner
}

// NewStatusHandler creates a StatusHandler. scheduler may be nil when the
// process runs without the periodic trigger.
func NewStatusHandler(mode string, startedAt time.Time, scheduler LastRunner) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, scheduler: scheduler}
}

// GetStatus responds with mode, uptime and the last scheduled run.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"mode":          h.mode,
		"startedAt":     h.startedAt.UTC().Format(time.RFC3339),
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.scheduler != nil {
		if last := h.scheduler.LastRun(); last.TotalRuns > 0 {
			body["lastRun"] = last
		}
	}
	writeJSON(w, http.StatusOK, body)
}
