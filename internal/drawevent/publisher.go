package drawevent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// Publisher writes draw events to the live channel and the history stream.
type Publisher struct {
	bus    domain.EventBus
	logger *slog.Logger
}

// NewPublisher creates a Publisher over bus.
func NewPublisher(bus domain.EventBus, logger *slog.Logger) *Publisher {
	return &Publisher{bus: bus, logger: logger.With(slog.String("component", "draw_events"))}
}

// PublishDraw encodes ev and sends it to both the channel and the stream.
// A failure on one does not skip the other.
func (p *Publisher) PublishDraw(ctx context.Context, ev domain.DrawEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	var errs []error
	if err := p.bus.Publish(ctx, domain.DrawEventsChannel, payload); err != nil {
		errs = append(errs, err)
	}
	if err := p.bus.StreamAppend(ctx, domain.DrawEventsStream, payload); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("drawevent: publish %s for %s: %w", ev.Type, ev.CompetitionID, err)
	}
	p.logger.DebugContext(ctx, "draw event published",
		slog.String("type", ev.Type),
		slog.String("competition_id", ev.CompetitionID),
	)
	return nil
}

// Recent returns up to count events from the history stream, oldest first.
// Entries that fail to decode are skipped.
func (p *Publisher) Recent(ctx context.Context, count int) ([]domain.DrawEvent, error) {
	msgs, err := p.bus.StreamRead(ctx, domain.DrawEventsStream, "0", count)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DrawEvent, 0, len(msgs))
	for _, m := range msgs {
		ev, err := Decode(m.Payload)
		if err != nil {
			p.logger.WarnContext(ctx, "skipping undecodable draw event",
				slog.String("stream_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
