package domain

import "time"

// Event types published on the draw event bus.
const (
	EventCompetitionCompleted  = "competition.completed"
	EventCompetitionCancelled  = "competition.cancelled"
	EventCompetitionEndingSoon = "competition.ending_soon"
)

// Bus channel and stream names.
const (
	DrawEventsChannel = "draws:events"
	DrawEventsStream  = "draws:stream"
)

// DrawEvent is a state change broadcast to live subscribers.
type DrawEvent struct {
	Type          string
	CompetitionID string
	Title         string
	WinningTicket int
	WinnerName    string
	Participants  int
	At            time.Time
}
