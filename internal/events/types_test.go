package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRoomEventEnvelopeRoundTrip(t *testing.T) {
	body := EnterQueueEvent{
		RoomEventCommon: RoomEventCommon{
			RoomID:    "room-1",
			GameIndex: "gobang",
			UID:       "u-1",
			Nickname:  "Human",
			OwnerID:   "ai-master",
		},
		QueueIsFull: true,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	env := RoomEvent{
		EventType: EventTypeUserEnterQueue,
		EventBody: raw,
		TraceID:   "trace-1",
		Timestamp: time.Now().UnixMilli(),
	}
	wire, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}

	// Consumer side: dispatch on event_type, then decode the body.
	var decoded RoomEvent
	if err := json.Unmarshal(wire, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.EventType != EventTypeUserEnterQueue {
		t.Fatalf("event_type = %v", decoded.EventType)
	}
	if decoded.TraceID != "trace-1" {
		t.Fatalf("trace_id = %q", decoded.TraceID)
	}
	var got EnterQueueEvent
	if err := json.Unmarshal(decoded.EventBody, &got); err != nil {
		t.Fatal(err)
	}
	if got != body {
		t.Fatalf("body round trip mismatch: %+v != %+v", got, body)
	}
}

func TestRoomEventTypeStrings(t *testing.T) {
	named := []RoomEventType{
		EventTypeUserEnterRoom, EventTypeUserLeaveRoom,
		EventTypeUserEnterQueue, EventTypeUserLeaveQueue,
		EventTypeUserInQueueBeReady, EventTypeUserInQueueNotBeReady,
		EventTypeUserStart3rdPartyGame, EventTypeUserEnd3rdPartyGame,
	}
	seen := map[string]bool{}
	for _, et := range named {
		s := et.String()
		if s == "unknown" {
			t.Errorf("event %d has no name", et)
		}
		if seen[s] {
			t.Errorf("duplicate name %q", s)
		}
		seen[s] = true
	}
	if EventTypeUnknown.String() != "unknown" {
		t.Error("zero value must read unknown")
	}
}
