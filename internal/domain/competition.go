package domain

import (
	"fmt"
	"time"
)

// CompetitionStatus represents the lifecycle state of a competition.
type CompetitionStatus string

const (
	StatusActive    CompetitionStatus = "active"
	StatusEnding    CompetitionStatus = "ending"
	StatusComplete  CompetitionStatus = "complete"
	StatusCancelled CompetitionStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s CompetitionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusEnding, StatusComplete, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s CompetitionStatus) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

// Resolvable reports whether a competition in status s may still be drawn.
func (s CompetitionStatus) Resolvable() bool {
	return s == StatusActive || s == StatusEnding
}

// Winner is the denormalised winner snapshot stored on a completed competition.
type Winner struct {
	UserID   string
	Username string
	Email    string
}

// Competition is a time-bounded prize draw.
type Competition struct {
	ID               string
	Title            string
	Prize            string
	PrizeValue       float64
	ImageURL         string
	Status           CompetitionStatus
	EndsAt           time.Time
	MarkedEndingSoon bool
	TicketsSold      int

	// Populated only once Status is StatusComplete.
	Winner        *Winner
	WinningTicket *int
	Seed          *string
	BlockHash     *string
	EntropySource string
	CompletedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the record invariants that every store backend enforces
// when decoding a competition.
func (c Competition) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: competition without id", ErrDataIntegrity)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: competition %s has unknown status %q", ErrDataIntegrity, c.ID, c.Status)
	}
	if c.TicketsSold < 0 {
		return fmt.Errorf("%w: competition %s has negative tickets_sold %d", ErrDataIntegrity, c.ID, c.TicketsSold)
	}
	drawn := c.Winner != nil && c.WinningTicket != nil && c.Seed != nil && c.BlockHash != nil && c.CompletedAt != nil
	partial := c.Winner != nil || c.WinningTicket != nil || c.Seed != nil || c.BlockHash != nil || c.CompletedAt != nil
	if c.Status == StatusComplete && !drawn {
		return fmt.Errorf("%w: competition %s is complete without a full draw record", ErrDataIntegrity, c.ID)
	}
	if c.Status != StatusComplete && partial {
		return fmt.Errorf("%w: competition %s carries draw fields in status %s", ErrDataIntegrity, c.ID, c.Status)
	}
	return nil
}

// DrawOutcome is everything written when a competition completes.
type DrawOutcome struct {
	WinningTicketID string
	WinningTicket   int
	Winner          Winner
	Seed            string
	BlockHash       string
	EntropySource   string
	CompletedAt     time.Time
}
