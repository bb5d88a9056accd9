package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/server/middleware"
	"github.com/alanyoungcy/prizedraw/internal/trigger"
)

// maxResolveBody bounds the admin request body.
const maxResolveBody = 4 << 10

// OnDemandRunner is the on-demand trigger the resolve endpoint drives.
type OnDemandRunner interface {
	Run(ctx context.Context, callerID string, req trigger.Request) (trigger.Response, error)
}

// ResolveHandler serves the admin resolution endpoint.
type ResolveHandler struct {
	runner OnDemandRunner
	logger *slog.Logger
}

// NewResolveHandler creates a ResolveHandler.
func NewResolveHandler(runner OnDemandRunner, logger *slog.Logger) *ResolveHandler {
	return &ResolveHandler{runner: runner, logger: logger}
}

type resolveResponse struct {
	trigger.Response
	Code string `json:"code,omitempty"`
}

// Resolve runs every due competition, or one competition, for an admin.
// An empty body means mode "all".
// POST /api/admin/resolve
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req trigger.Request
	body := http.MaxBytesReader(w, r.Body, maxResolveBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("decode body: %w: %v", domain.ErrInvalidArgument, err)
		h.respond(w, trigger.Failure("request body must be JSON"), err)
		return
	}

	resp, err := h.runner.Run(r.Context(), middleware.CallerID(r.Context()), req)
	if err != nil {
		if status, _ := errorStatus(err); status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: resolve failed",
				slog.String("competition_id", req.CompetitionID),
				slog.String("error", err.Error()),
			)
		}
	}
	h.respond(w, resp, err)
}

func (h *ResolveHandler) respond(w http.ResponseWriter, resp trigger.Response, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, resolveResponse{Response: resp})
		return
	}
	status, code := errorStatus(err)
	resp.Success = false
	writeJSON(w, status, resolveResponse{Response: resp, Code: code})
}
