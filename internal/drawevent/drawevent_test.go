package drawevent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sampleEvent() domain.DrawEvent {
	return domain.DrawEvent{
		Type:          domain.EventCompetitionCompleted,
		CompetitionID: "c1",
		Title:         "Tesla Model 3",
		WinningTicket: 17,
		WinnerName:    "ann",
		Participants:  42,
		At:            time.Date(2026, 10, 15, 9, 30, 0, 123000000, time.UTC),
	}
}

func TestEncodeDecode(t *testing.T) {
	ev := sampleEvent()
	b, err := Encode(ev)
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestEncodeRequiresIdentity(t *testing.T) {
	_, err := Encode(domain.DrawEvent{Type: domain.EventCompetitionCancelled})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestJSONUsesCamelCaseFields(t *testing.T) {
	b, err := Encode(sampleEvent())
	require.NoError(t, err)
	js, err := JSON(b)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"competitionId"`)
	assert.Contains(t, string(js), `"2026-10-15T09:30:00.123Z"`)
}

func TestPublisherWritesChannelAndStream(t *testing.T) {
	bus := NewMemoryBus(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := bus.Subscribe(ctx, domain.DrawEventsChannel)
	require.NoError(t, err)

	p := NewPublisher(bus, discard())
	require.NoError(t, p.PublishDraw(ctx, sampleEvent()))

	select {
	case payload := <-sub:
		ev, err := Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, "c1", ev.CompetitionID)
	case <-time.After(time.Second):
		t.Fatal("no live event")
	}

	recent, err := p.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 17, recent[0].WinningTicket)
}

type failingBus struct{ *MemoryBus }

func (failingBus) Publish(context.Context, string, []byte) error { return errors.New("down") }

func TestPublisherStillAppendsWhenPublishFails(t *testing.T) {
	bus := failingBus{NewMemoryBus(10)}
	p := NewPublisher(bus, discard())
	err := p.PublishDraw(context.Background(), sampleEvent())
	require.ErrorContains(t, err, "down")

	msgs, err := bus.StreamRead(context.Background(), domain.DrawEventsStream, "0", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMemoryBusTrimsStream(t *testing.T) {
	bus := NewMemoryBus(2)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.StreamAppend(ctx, "s", []byte{byte(i)}))
	}
	msgs, err := bus.StreamRead(ctx, "s", "0", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte{3}, msgs[0].Payload)
	assert.Equal(t, "5", msgs[1].ID)

	msgs, err = bus.StreamRead(ctx, "s", "4", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
