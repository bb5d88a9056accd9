package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/engine"
)

// Authorizer decides whether a caller may trigger draws.
type Authorizer interface {
	IsAuthorizedAdmin(ctx context.Context, callerID string) (bool, error)
}

// Modes accepted by OnDemand.Run.
const (
	ModeAll = "all"
	ModeOne = "one"
)

// Request is an on-demand resolution request.
type Request struct {
	Mode          string `json:"mode"`
	CompetitionID string `json:"competitionId"`
}

// Response is returned to on-demand callers.
type Response struct {
	Success        bool           `json:"success"`
	ProcessedCount *int           `json:"processedCount,omitempty"`
	Message        string         `json:"message,omitempty"`
	Outcome        engine.Outcome `json:"outcome,omitempty"`
	Report         *engine.Report `json:"report,omitempty"`
}

// Failure builds a {success:false, message} response.
func Failure(message string) Response {
	return Response{Success: false, Message: message}
}

// OnDemand runs the engine for an authorised admin.
type OnDemand struct {
	runner Runner
	authz  Authorizer
	logger *slog.Logger
}

// NewOnDemand creates an OnDemand trigger.
func NewOnDemand(runner Runner, authz Authorizer, logger *slog.Logger) *OnDemand {
	return &OnDemand{
		runner: runner,
		authz:  authz,
		logger: logger.With(slog.String("component", "on_demand")),
	}
}

// Run checks the caller, then resolves every due competition (ModeAll) or a
// single one (ModeOne). An empty mode means ModeOne when a competition id is
// given and ModeAll otherwise. Errors wrap the domain sentinels so transports
// can map them to status codes.
func (o *OnDemand) Run(ctx context.Context, callerID string, req Request) (Response, error) {
	if strings.TrimSpace(callerID) == "" {
		return Failure("authentication required"), domain.ErrUnauthenticated
	}
	ok, err := o.authz.IsAuthorizedAdmin(ctx, callerID)
	if err != nil {
		return Failure("could not verify permissions"), fmt.Errorf("trigger: authorize %s: %w", callerID, err)
	}
	if !ok {
		return Failure("admin access required"), domain.ErrPermissionDenied
	}

	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	id := strings.TrimSpace(req.CompetitionID)
	if mode == "" {
		mode = ModeAll
		if id != "" {
			mode = ModeOne
		}
	}

	logger := o.logger.With(slog.String("caller_id", callerID), slog.String("mode", mode))

	switch mode {
	case ModeAll:
		rep, err := o.runner.RunDue(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "on-demand run failed", slog.String("error", err.Error()))
			return Failure("resolution run failed"), err
		}
		n := rep.Processed()
		logger.InfoContext(ctx, "on-demand run complete", slog.Int("processed", n))
		return Response{Success: true, ProcessedCount: &n, Report: &rep}, nil

	case ModeOne:
		if id == "" {
			return Failure("competitionId is required"), fmt.Errorf("trigger: missing competition id: %w", domain.ErrInvalidArgument)
		}
		out, err := o.runner.Resolve(ctx, id)
		if err != nil {
			logger.WarnContext(ctx, "on-demand resolve failed",
				slog.String("competition_id", id),
				slog.String("error", err.Error()),
			)
			return Failure(failureMessage(err)), err
		}
		n := 0
		if out != engine.OutcomeSkipped {
			n = 1
		}
		logger.InfoContext(ctx, "on-demand resolve complete",
			slog.String("competition_id", id),
			slog.String("outcome", string(out)),
		)
		return Response{Success: true, ProcessedCount: &n, Outcome: out}, nil

	default:
		return Failure(fmt.Sprintf("unknown mode %q", req.Mode)), fmt.Errorf("trigger: mode %q: %w", req.Mode, domain.ErrInvalidArgument)
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "competition not found"
	case errors.Is(err, domain.ErrDataIntegrity):
		return "competition data is inconsistent; draw aborted"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid request"
	default:
		return "resolution failed"
	}
}
