package mongo

import (
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

type winnerDoc struct {
	UserID   string `bson:"user_id"`
	Username string `bson:"username"`
	Email    string `bson:"email"`
}

type competitionDoc struct {
	ID               string     `bson:"_id"`
	Title            string     `bson:"title"`
	Prize            string     `bson:"prize"`
	PrizeValue       float64    `bson:"prize_value"`
	ImageURL         string     `bson:"image_url"`
	Status           string     `bson:"status"`
	EndsAt           time.Time  `bson:"ends_at"`
	MarkedEndingSoon bool       `bson:"marked_ending_soon"`
	TicketsSold      int        `bson:"tickets_sold"`
	Winner           *winnerDoc `bson:"winner,omitempty"`
	WinningTicket    *int       `bson:"winning_ticket,omitempty"`
	Seed             *string    `bson:"seed,omitempty"`
	BlockHash        *string    `bson:"block_hash,omitempty"`
	EntropySource    string     `bson:"entropy_source,omitempty"`
	CompletedAt      *time.Time `bson:"completed_at,omitempty"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func (d competitionDoc) toDomain() (domain.Competition, error) {
	c := domain.Competition{
		ID:               d.ID,
		Title:            d.Title,
		Prize:            d.Prize,
		PrizeValue:       d.PrizeValue,
		ImageURL:         d.ImageURL,
		Status:           domain.CompetitionStatus(d.Status),
		EndsAt:           d.EndsAt.UTC(),
		MarkedEndingSoon: d.MarkedEndingSoon,
		TicketsSold:      d.TicketsSold,
		WinningTicket:    d.WinningTicket,
		Seed:             d.Seed,
		BlockHash:        d.BlockHash,
		EntropySource:    d.EntropySource,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
	if d.Winner != nil {
		c.Winner = &domain.Winner{UserID: d.Winner.UserID, Username: d.Winner.Username, Email: d.Winner.Email}
	}
	if d.CompletedAt != nil {
		at := d.CompletedAt.UTC()
		c.CompletedAt = &at
	}
	return c, c.Validate()
}

func competitionFromDomain(c domain.Competition) competitionDoc {
	d := competitionDoc{
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
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.Winner != nil {
		d.Winner = &winnerDoc{UserID: c.Winner.UserID, Username: c.Winner.Username, Email: c.Winner.Email}
	}
	return d
}

type ticketDoc struct {
	ID            string    `bson:"_id"`
	CompetitionID string    `bson:"competition_id"`
	TicketNumber  int       `bson:"ticket_number"`
	UserID        string    `bson:"user_id"`
	IsWinner      bool      `bson:"is_winner"`
	PurchasedAt   time.Time `bson:"purchased_at"`
}

func (d ticketDoc) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:            d.ID,
		CompetitionID: d.CompetitionID,
		TicketNumber:  d.TicketNumber,
		UserID:        d.UserID,
		IsWinner:      d.IsWinner,
		PurchasedAt:   d.PurchasedAt.UTC(),
	}
}

type userDoc struct {
	ID       string `bson:"_id"`
	Username string `bson:"username"`
	Email    string `bson:"email"`
	Role     string `bson:"role"`
}

type notificationDoc struct {
	ID            string         `bson:"_id"`
	UserID        string         `bson:"user_id"`
	Title         string         `bson:"title"`
	Message       string         `bson:"message"`
	Type          string         `bson:"type"`
	CompetitionID string         `bson:"competition_id,omitempty"`
	ImageURL      string         `bson:"image_url,omitempty"`
	Data          map[string]any `bson:"data,omitempty"`
	Read          bool           `bson:"read"`
	CreatedAt     time.Time      `bson:"created_at"`
}

type emailContentDoc struct {
	HTML string `bson:"html"`
	Text string `bson:"text"`
}

type emailLogDoc struct {
	ID        string          `bson:"_id"`
	To        string          `bson:"to"`
	Subject   string          `bson:"subject"`
	Content   emailContentDoc `bson:"content"`
	Sent      bool            `bson:"sent"`
	Timestamp time.Time       `bson:"timestamp"`
	Error     string          `bson:"error,omitempty"`
}

type auditDoc struct {
	ID        int64          `bson:"_id"`
	Event     string         `bson:"event"`
	Detail    map[string]any `bson:"detail,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
}
