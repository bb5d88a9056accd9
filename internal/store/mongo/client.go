// Package mongo implements the domain stores on MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// Collection names.
const (
	collCompetitions  = "competitions"
	collTickets       = "tickets"
	collUsers         = "users"
	collNotifications = "notifications"
	collEmailLogs     = "email_logs"
	collAudit         = "audit_log"
)

// ClientConfig holds connection parameters for the MongoDB client.
type ClientConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Client wraps a mongo.Client bound to one database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects, pings the primary and returns a Client.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout)

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Client{client: client, db: client.Database(cfg.Database)}, nil
}

// Close disconnects from the server.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Ping checks connectivity, used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Stores returns every domain store backed by this client.
func (c *Client) Stores() domain.Stores {
	return domain.Stores{
		Competitions:  &CompetitionStore{client: c.client, db: c.db},
		Tickets:       &TicketStore{coll: c.db.Collection(collTickets)},
		Users:         &UserStore{coll: c.db.Collection(collUsers)},
		Notifications: &NotificationStore{coll: c.db.Collection(collNotifications)},
		EmailLogs:     &EmailLogStore{coll: c.db.Collection(collEmailLogs)},
		Audit:         &AuditStore{coll: c.db.Collection(collAudit)},
	}
}

// EnsureIndexes creates the indexes the stores rely on. It is idempotent.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		collCompetitions: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "ends_at", Value: 1}}},
		},
		collTickets: {
			{
				Keys:    bson.D{{Key: "competition_id", Value: 1}, {Key: "ticket_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				// At most one winning ticket per competition.
				Keys: bson.D{{Key: "competition_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: "is_winner", Value: true}}).
					SetName("one_winner_per_competition"),
			},
		},
		collNotifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		collAudit: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}
	for coll, models := range specs {
		if _, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
