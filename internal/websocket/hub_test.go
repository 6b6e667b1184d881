package websocket

import (
	"fmt"
	"testing"

	"github.com/reelty/clipper-api/internal/model"
)

func drain(t *testing.T, s *stream, n int) []model.Event {
	t.Helper()
	events := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		select {
		case ev := <-s.events:
			events = append(events, ev)
		default:
			t.Fatalf("expected %d buffered events, got %d", n, i)
		}
	}
	return events
}

func TestSendBuffersInOrder(t *testing.T) {
	h := NewHub()
	h.OpenStream("p1")

	h.SendProgress("p1", 10, "uploading")
	h.SendProgress("p1", 60, "finalizing")
	h.SendResult("p1", &model.GenerateResult{ClipNumber: 2})

	s, ok := h.lookup("p1")
	if !ok {
		t.Fatal("stream missing")
	}
	events := drain(t, s, 3)

	if events[0].Type != model.EventTypeProgress || events[0].Progress != 10 {
		t.Errorf("event 0 = %+v, want progress 10", events[0])
	}
	if events[1].Type != model.EventTypeProgress || events[1].Progress != 60 {
		t.Errorf("event 1 = %+v, want progress 60", events[1])
	}
	if events[2].Type != model.EventTypeResult {
		t.Errorf("event 2 = %+v, want result", events[2])
	}
	if events[2].Result == nil || events[2].Result.ClipNumber != 2 {
		t.Errorf("result payload not carried: %+v", events[2].Result)
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	h := NewHub()
	h.OpenStream("p1")

	h.SendProgress("p1", 60, "later stage")
	h.SendProgress("p1", 30, "stale update")

	s, _ := h.lookup("p1")
	events := drain(t, s, 2)
	if events[1].Progress != 60 {
		t.Errorf("stale progress delivered as %d, want clamp to 60", events[1].Progress)
	}
}

func TestSendToUnknownStream(t *testing.T) {
	h := NewHub()
	if h.SendProgress("missing", 10, "hello") {
		t.Error("send without a stream should report undelivered")
	}
}

func TestBufferOverflowShedsOldest(t *testing.T) {
	h := NewHub()
	h.OpenStream("p1")

	for i := 0; i <= streamBuffer; i++ {
		if !h.SendProgress("p1", 0, fmt.Sprintf("event %d", i)) {
			t.Fatalf("send %d rejected", i)
		}
	}

	s, _ := h.lookup("p1")
	events := drain(t, s, streamBuffer)
	if events[0].Message != "event 1" {
		t.Errorf("oldest surviving event = %q, want %q", events[0].Message, "event 1")
	}
	if events[len(events)-1].Message != fmt.Sprintf("event %d", streamBuffer) {
		t.Errorf("newest event = %q, want last one sent", events[len(events)-1].Message)
	}
}

func TestRetireWithoutConsumerDiscardsStream(t *testing.T) {
	h := NewHub()
	h.OpenStream("p1")
	h.SendProgress("p1", 10, "queued")

	h.Retire("p1")

	if _, ok := h.lookup("p1"); ok {
		t.Error("unattached stream should be removed on retire")
	}
	if h.SendProgress("p1", 90, "late") {
		t.Error("send after retire should report undelivered")
	}
}

func TestRetireIsIdempotent(t *testing.T) {
	h := NewHub()
	h.OpenStream("p1")
	h.Retire("p1")
	// Second retire must not panic on the closed closing channel
	h.Retire("p1")
}

func TestOpenStreamIsIdempotent(t *testing.T) {
	h := NewHub()
	h.OpenStream("p1")
	h.SendProgress("p1", 10, "first")
	h.OpenStream("p1")

	s, _ := h.lookup("p1")
	events := drain(t, s, 1)
	if events[0].Message != "first" {
		t.Error("reopening a stream must not drop buffered events")
	}
}
