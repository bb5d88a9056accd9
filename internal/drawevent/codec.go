// Package drawevent encodes draw events for the event bus and fans them out.
//
// Payloads are protobuf-encoded google.protobuf.Struct values so any
// consumer with the well-known types can read them without a schema.
package drawevent

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// Encode returns the wire form of ev.
func Encode(ev domain.DrawEvent) ([]byte, error) {
	s, err := toStruct(ev)
	if err != nil {
		return nil, err
	}
	b, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("drawevent: marshal: %w", err)
	}
	return b, nil
}

// Decode parses a payload produced by Encode.
func Decode(b []byte) (domain.DrawEvent, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return domain.DrawEvent{}, fmt.Errorf("drawevent: unmarshal: %w", err)
	}
	return fromStruct(&s)
}

// JSON renders a wire payload as JSON for websocket clients.
func JSON(b []byte) ([]byte, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("drawevent: unmarshal: %w", err)
	}
	return protojson.Marshal(&s)
}

func toStruct(ev domain.DrawEvent) (*structpb.Struct, error) {
	if ev.Type == "" || ev.CompetitionID == "" {
		return nil, fmt.Errorf("drawevent: %w: type and competition id are required", domain.ErrInvalidArgument)
	}
	at, err := protojson.Marshal(timestamppb.New(ev.At))
	if err != nil {
		return nil, fmt.Errorf("drawevent: timestamp: %w", err)
	}
	fields := map[string]any{
		"type":          ev.Type,
		"competitionId": ev.CompetitionID,
		"title":         ev.Title,
		// protojson renders a Timestamp as a quoted RFC 3339 string.
		"at": string(at[1 : len(at)-1]),
	}
	if ev.WinningTicket > 0 {
		fields["winningTicket"] = ev.WinningTicket
	}
	if ev.WinnerName != "" {
		fields["winnerName"] = ev.WinnerName
	}
	if ev.Participants > 0 {
		fields["participants"] = ev.Participants
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("drawevent: build struct: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct) (domain.DrawEvent, error) {
	f := s.GetFields()
	ev := domain.DrawEvent{
		Type:          f["type"].GetStringValue(),
		CompetitionID: f["competitionId"].GetStringValue(),
		Title:         f["title"].GetStringValue(),
		WinningTicket: int(f["winningTicket"].GetNumberValue()),
		WinnerName:    f["winnerName"].GetStringValue(),
		Participants:  int(f["participants"].GetNumberValue()),
	}
	if ev.Type == "" || ev.CompetitionID == "" {
		return domain.DrawEvent{}, fmt.Errorf("drawevent: %w: payload without type or competition id", domain.ErrInvalidArgument)
	}
	if raw := f["at"].GetStringValue(); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.DrawEvent{}, fmt.Errorf("drawevent: parse at: %w", err)
		}
		ev.At = at.UTC()
	}
	return ev, nil
}
