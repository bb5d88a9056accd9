package domain

import "time"

// Ticket is a purchased, numbered entry in a competition. Ticket numbers are
// dense over [1, TicketsSold] within a competition.
type Ticket struct {
	ID            string
	CompetitionID string
	TicketNumber  int
	UserID        string
	IsWinner      bool
	PurchasedAt   time.Time
}

// User is the subset of the account record this service reads.
type User struct {
	ID       string
	Username string
	Email    string
	Role     string
}

// IsAdmin reports whether the user may trigger draws on demand.
func (u User) IsAdmin() bool {
	return u.Role == "admin"
}

// DistinctUserIDs returns the owners of tickets in first-seen order.
func DistinctUserIDs(tickets []Ticket) []string {
	seen := make(map[string]struct{}, len(tickets))
	out := make([]string, 0, len(tickets))
	for _, t := range tickets {
		if _, ok := seen[t.UserID]; ok {
			continue
		}
		seen[t.UserID] = struct{}{}
		out = append(out, t.UserID)
	}
	return out
}
