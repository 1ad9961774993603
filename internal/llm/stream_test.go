package llm

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestEventStreamDeliversInOrder(t *testing.T) {
	stream := newEventStream(context.Background(), func(ctx context.Context, events chan<- Event) error {
		events <- Event{Type: EventTextDelta, Text: "a"}
		events <- Event{Type: EventTextDelta, Text: "b"}
		events <- Event{Type: EventDone}
		return nil
	})
	defer stream.Close()

	want := []Event{
		{Type: EventTextDelta, Text: "a"},
		{Type: EventTextDelta, Text: "b"},
		{Type: EventDone},
	}
	for i, expected := range want {
		ev, err := stream.Recv()
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if ev.Type != expected.Type || ev.Text != expected.Text {
			t.Errorf("event %d: got %+v, want %+v", i, ev, expected)
		}
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Fatalf("expected EOF after final event, got %v", err)
	}
}

func TestEventStreamRunErrorBecomesEvent(t *testing.T) {
	boom := errors.New("boom")
	stream := newEventStream(context.Background(), func(ctx context.Context, events chan<- Event) error {
		return boom
	})
	defer stream.Close()

	ev, err := stream.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if ev.Type != EventError || !errors.Is(ev.Err, boom) {
		t.Fatalf("expected error event wrapping boom, got %+v", ev)
	}
}

func TestEventStreamCloseCancelsRun(t *testing.T) {
	started := make(chan struct{})
	stopped := make(chan struct{})
	stream := newEventStream(context.Background(), func(ctx context.Context, events chan<- Event) error {
		close(started)
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})

	<-started
	stream.Close()
	<-stopped

	// Either the run func's error event drains first or the ctx error
	// surfaces directly; both mean the turn terminated.
	for i := 0; i < 3; i++ {
		ev, err := stream.Recv()
		if err == io.EOF || errors.Is(err, context.Canceled) {
			return
		}
		if err == nil && ev.Type == EventError && errors.Is(ev.Err, context.Canceled) {
			continue
		}
		if err != nil {
			t.Fatalf("unexpected recv error: %v", err)
		}
	}
	t.Fatal("stream did not terminate after Close")
}
