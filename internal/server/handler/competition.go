package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/server/middleware"
)

// AdminAuthorizer decides whether a caller may read competition internals.
type AdminAuthorizer interface {
	IsAuthorizedAdmin(ctx context.Context, callerID string) (bool, error)
}

// CompetitionHandler serves competition and draw receipt reads.
type CompetitionHandler struct {
	competitions domain.CompetitionStore
	receipts     domain.ReceiptStore
	authz        AdminAuthorizer
	logger       *slog.Logger
}

// NewCompetitionHandler creates a CompetitionHandler. receipts may be nil.
func NewCompetitionHandler(competitions domain.CompetitionStore, receipts domain.ReceiptStore, authz AdminAuthorizer, logger *slog.Logger) *CompetitionHandler {
	return &CompetitionHandler{
		competitions: competitions,
		receipts:     receipts,
		authz:        authz,
		logger:       logger,
	}
}

type winnerJSON struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type competitionJSON struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Prize            string      `json:"prize"`
	PrizeValue       float64     `json:"prizeValue"`
	ImageURL         string      `json:"imageUrl,omitempty"`
	Status           string      `json:"status"`
	EndsAt           time.Time   `json:"endsAt"`
	MarkedEndingSoon bool        `json:"markedEndingSoon"`
	TicketsSold      int         `json:"ticketsSold"`
	Winner           *winnerJSON `json:"winner,omitempty"`
	WinningTicket    *int        `json:"winningTicket,omitempty"`
	Seed             *string     `json:"seed,omitempty"`
	BlockHash        *string     `json:"blockHash,omitempty"`
	EntropySource    string      `json:"entropySource,omitempty"`
	CompletedAt      *time.Time  `json:"completedAt,omitempty"`
}

func toCompetitionJSON(c domain.Competition) competitionJSON {
	out := competitionJSON{
		ID:               c.ID,
		Title:            c.Title,
		Prize:            c.Prize,
		PrizeValue:       c.PrizeValue,
		ImageURL:         c.ImageURL,
		Status:           string(c.Status),
		EndsAt:           c.EndsAt,
		MarkedEndingSoon: c.MarkedEndingSoon,
		TicketsSold:      c.TicketsSold,
		WinningTicket:    c.WinningTicket,
		Seed:             c.Seed,
		BlockHash:        c.BlockHash,
		EntropySource:    c.EntropySource,
		CompletedAt:      c.CompletedAt,
	}
	// The winner's email stays out of API responses.
	if c.Winner != nil {
		out.Winner = &winnerJSON{UserID: c.Winner.UserID, Username: c.Winner.Username}
	}
	return out
}

// GetCompetition returns one competition to an admin.
// GET /api/competitions/{id}
func (h *CompetitionHandler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerID(ctx)
	if caller == "" {
		writeError(w, domain.ErrUnauthenticated, "authentication required")
		return
	}
	ok, err := h.authz.IsAuthorizedAdmin(ctx, caller)
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: authorize failed", slog.String("error", err.Error()))
		writeError(w, err, "could not verify permissions")
		return
	}
	if !ok {
		writeError(w, domain.ErrPermissionDenied, "admin access required")
		return
	}

	id := r.PathValue("id")
	c, err := h.competitions.GetByID(ctx, id)
	if err != nil {
		if status, _ := errorStatus(err); status >= http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "handler: get competition failed",
				slog.String("competition_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, err, "competition not found")
		return
	}
	writeJSON(w, http.StatusOK, toCompetitionJSON(c))
}

// GetReceipt returns the public draw receipt of a completed competition.
// GET /api/competitions/{id}/receipt
func (h *CompetitionHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	if h.receipts == nil {
		writeError(w, domain.ErrNotFound, "receipts are not stored by this deployment")
		return
	}
	id := r.PathValue("id")
	rc, err := h.receipts.Load(r.Context(), id)
	if err != nil {
		if status, _ := errorStatus(err); status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: load receipt failed",
				slog.String("competition_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, err, "receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, rc)
}
