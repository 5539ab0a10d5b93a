package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/graph"
	"github.com/corvidwing/dispatch/keystore"
)

type fakeSource string

func (f fakeSource) Name() string { return string(f) }

// newInstruments uses the process-global (no-op, until Init installs a real
// provider) tracer/meter, so it's safe to construct in a test without
// reaching an OTLP collector.
func TestNewInstrumentsBuildsAllMeters(t *testing.T) {
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	if inst.Tracer == nil || inst.EventsForwarded == nil || inst.TasksRun == nil ||
		inst.TasksErrored == nil || inst.ForwardDuration == nil {
		t.Fatal("expected every instrument field to be populated")
	}
}

func TestInstrumentsForwardDelegatesToEngine(t *testing.T) {
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}

	eng := engine.New(4)
	var calls int
	eng.On(graph.New()).Apply(graph.NewHandlerNode("h", func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		calls++
		return nil, errors.New("handler failure")
	}))

	ev := &event.Event{Type: event.GroupMessage, Group: 1, Chain: event.MessageChain{event.Plain{Text: "hi"}}}
	results := inst.Forward(context.Background(), eng, ev, fakeSource("test"), nil)

	if calls != 1 {
		t.Fatalf("expected Forward to invoke the subscribed handler once, got %d", calls)
	}
	if len(results) != 1 {
		t.Fatalf("expected Instruments.Forward to pass through Engine.Forward's results, got %d", len(results))
	}
	var hasErr bool
	for _, r := range results {
		if r.Err != nil {
			hasErr = true
		}
	}
	if !hasErr {
		t.Fatal("expected the handler's error to surface in the returned results")
	}
}
