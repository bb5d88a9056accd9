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

// CompetitionStore implements domain.CompetitionStore. Transitions filter on
// the expected status so concurrent writers cannot both match. Complete runs
// in a multi-document transaction and therefore needs a replica set.
type CompetitionStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func (s *CompetitionStore) coll() *mongo.Collection { return s.db.Collection(collCompetitions) }

// GetByID returns a single competition.
func (s *CompetitionStore) GetByID(ctx context.Context, id string) (domain.Competition, error) {
	var d competitionDoc
	err := s.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Competition{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Competition{}, fmt.Errorf("mongo: get competition %s: %w", id, err)
	}
	return d.toDomain()
}

// ListDue returns active or ending competitions whose deadline has passed.
func (s *CompetitionStore) ListDue(ctx context.Context, now time.Time) ([]domain.Competition, error) {
	filter := bson.M{
		"status":  bson.M{"$in": bson.A{string(domain.StatusActive), string(domain.StatusEnding)}},
		"ends_at": bson.M{"$lte": now},
	}
	return s.find(ctx, "list due competitions", filter)
}

// ListEndingSoon returns active, unmarked competitions ending in (now, until].
func (s *CompetitionStore) ListEndingSoon(ctx context.Context, now, until time.Time) ([]domain.Competition, error) {
	filter := bson.M{
		"status":             string(domain.StatusActive),
		"marked_ending_soon": bson.M{"$ne": true},
		"ends_at":            bson.M{"$gt": now, "$lte": until},
	}
	return s.find(ctx, "list ending-soon competitions", filter)
}

func (s *CompetitionStore) find(ctx context.Context, op string, filter bson.M) ([]domain.Competition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ends_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: %s: %w", op, err)
	}
	var docs []competitionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: %s: decode: %w", op, err)
	}
	out := make([]domain.Competition, 0, len(docs))
	for _, d := range docs {
		c, err := d.toDomain()
		if err != nil {
			return nil, fmt.Errorf("mongo: %s: %w", op, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Complete stores the draw outcome and flags the winning ticket atomically.
func (s *CompetitionStore) Complete(ctx context.Context, id string, expected domain.CompetitionStatus, o domain.DrawOutcome) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo: complete competition %s: start session: %w", id, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		update := bson.M{"$set": bson.M{
			"status":         string(domain.StatusComplete),
			"winner":         winnerDoc{UserID: o.Winner.UserID, Username: o.Winner.Username, Email: o.Winner.Email},
			"winning_ticket": o.WinningTicket,
			"seed":           o.Seed,
			"block_hash":     o.BlockHash,
			"entropy_source": o.EntropySource,
			"completed_at":   o.CompletedAt,
			"updated_at":     o.CompletedAt,
		}}
		res, err := s.coll().UpdateOne(sc, bson.M{"_id": id, "status": string(expected)}, update)
		if err != nil {
			return nil, fmt.Errorf("mongo: complete competition %s: %w", id, err)
		}
		if res.MatchedCount == 0 {
			return nil, s.transitionMiss(sc, id)
		}

		res, err = s.db.Collection(collTickets).UpdateOne(sc,
			bson.M{"_id": o.WinningTicketID, "competition_id": id},
			bson.M{"$set": bson.M{"is_winner": true}})
		if err != nil {
			return nil, fmt.Errorf("mongo: flag winning ticket %s: %w", o.WinningTicketID, err)
		}
		if res.MatchedCount == 0 {
			return nil, fmt.Errorf("mongo: flag winning ticket %s: %w", o.WinningTicketID, domain.ErrNotFound)
		}
		return nil, nil
	})
	return err
}

// Cancel moves the competition to cancelled.
func (s *CompetitionStore) Cancel(ctx context.Context, id string, expected domain.CompetitionStatus, at time.Time) error {
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": id, "status": string(expected)},
		bson.M{"$set": bson.M{"status": string(domain.StatusCancelled), "updated_at": at}})
	if err != nil {
		return fmt.Errorf("mongo: cancel competition %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return s.transitionMiss(ctx, id)
	}
	return nil
}

// MarkEndingSoon moves an active, unmarked competition to ending.
func (s *CompetitionStore) MarkEndingSoon(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.StatusActive), "marked_ending_soon": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{
			"status":             string(domain.StatusEnding),
			"marked_ending_soon": true,
			"updated_at":         at,
		}})
	if err != nil {
		return fmt.Errorf("mongo: mark competition %s ending: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return s.transitionMiss(ctx, id)
	}
	return nil
}

// Insert writes a competition document. Used for seeding and tests.
func (s *CompetitionStore) Insert(ctx context.Context, c domain.Competition) error {
	if _, err := s.coll().InsertOne(ctx, competitionFromDomain(c)); err != nil {
		return fmt.Errorf("mongo: insert competition %s: %w", c.ID, err)
	}
	return nil
}

func (s *CompetitionStore) transitionMiss(ctx context.Context, id string) error {
	n, err := s.coll().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: check competition %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return fmt.Errorf("mongo: competition %s: %w", id, domain.ErrStatusConflict)
}

var _ domain.CompetitionStore = (*CompetitionStore)(nil)
