package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// TicketStore implements domain.TicketStore.
type TicketStore struct {
	coll *mongo.Collection
}

// ListByCompetition returns every ticket of a competition ordered by number.
func (s *TicketStore) ListByCompetition(ctx context.Context, competitionID string) ([]domain.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ticket_number", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"competition_id": competitionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list tickets for %s: %w", competitionID, err)
	}
	var docs []ticketDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode tickets for %s: %w", competitionID, err)
	}
	out := make([]domain.Ticket, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// UserStore implements domain.UserStore.
type UserStore struct {
	coll *mongo.Collection
}

// GetByID returns a single user.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	var d userDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("mongo: get user %s: %w", id, err)
	}
	return domain.User{ID: d.ID, Username: d.Username, Email: d.Email, Role: d.Role}, nil
}

// NotificationStore implements domain.NotificationStore.
type NotificationStore struct {
	coll *mongo.Collection
}

// Create inserts a notification.
func (s *NotificationStore) Create(ctx context.Context, n domain.Notification) error {
	doc := notificationDoc{
		ID:            n.ID,
		UserID:        n.UserID,
		Title:         n.Title,
		Message:       n.Message,
		Type:          string(n.Type),
		CompetitionID: n.CompetitionID,
		ImageURL:      n.ImageURL,
		Data:          n.Data,
		Read:          n.Read,
		CreatedAt:     n.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: create notification for %s: %w", n.UserID, err)
	}
	return nil
}

// ListByUser returns a user's notifications newest first.
func (s *NotificationStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Notification, error) {
	filter := bson.M{"user_id": userID}
	if opts.Since != nil {
		filter["created_at"] = bson.M{"$gte": *opts.Since}
	}
	cur, err := s.coll.Find(ctx, filter, findOpts(opts))
	if err != nil {
		return nil, fmt.Errorf("mongo: list notifications for %s: %w", userID, err)
	}
	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode notifications for %s: %w", userID, err)
	}
	out := make([]domain.Notification, len(docs))
	for i, d := range docs {
		out[i] = domain.Notification{
			ID:            d.ID,
			UserID:        d.UserID,
			Title:         d.Title,
			Message:       d.Message,
			Type:          domain.NotificationType(d.Type),
			CompetitionID: d.CompetitionID,
			ImageURL:      d.ImageURL,
			Data:          d.Data,
			Read:          d.Read,
			CreatedAt:     d.CreatedAt.UTC(),
		}
	}
	return out, nil
}

// EmailLogStore implements domain.EmailLogStore.
type EmailLogStore struct {
	coll *mongo.Collection
}

// Create inserts an email log document.
func (s *EmailLogStore) Create(ctx context.Context, e domain.EmailLog) error {
	doc := emailLogDoc{
		ID:        e.ID,
		To:        e.To,
		Subject:   e.Subject,
		Content:   emailContentDoc{HTML: e.Content.HTML, Text: e.Content.Text},
		Sent:      e.Sent,
		Timestamp: e.Timestamp,
		Error:     e.Error,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: create email log %s: %w", e.ID, err)
	}
	return nil
}

// AuditStore implements domain.AuditStore. Entry IDs are insertion
// timestamps in nanoseconds.
type AuditStore struct {
	coll *mongo.Collection
}

// Log appends an audit entry.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	now := time.Now().UTC()
	doc := auditDoc{ID: now.UnixNano(), Event: event, Detail: detail, CreatedAt: now}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: log audit event %s: %w", event, err)
	}
	return nil
}

// List returns audit entries newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	filter := bson.M{}
	if opts.Since != nil {
		filter["created_at"] = bson.M{"$gte": *opts.Since}
	}
	cur, err := s.coll.Find(ctx, filter, findOpts(opts))
	if err != nil {
		return nil, fmt.Errorf("mongo: list audit entries: %w", err)
	}
	var docs []auditDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decode audit entries: %w", err)
	}
	out := make([]domain.AuditEntry, len(docs))
	for i, d := range docs {
		out[i] = domain.AuditEntry{ID: d.ID, Event: d.Event, Detail: d.Detail, CreatedAt: d.CreatedAt.UTC()}
	}
	return out, nil
}

// findOpts sorts newest first and applies pagination.
func findOpts(opts domain.ListOpts) *options.FindOptions {
	fo := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		fo.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		fo.SetSkip(int64(opts.Offset))
	}
	return fo
}

var (
	_ domain.TicketStore       = (*TicketStore)(nil)
	_ domain.UserStore         = (*UserStore)(nil)
	_ domain.NotificationStore = (*NotificationStore)(nil)
	_ domain.EmailLogStore     = (*EmailLogStore)(nil)
	_ domain.AuditStore        = (*AuditStore)(nil)
)
