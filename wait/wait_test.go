package wait

import (
	"context"
	"testing"
	"time"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/graph"
	"github.com/corvidwing/dispatch/keystore"
)

type fakeSource string

func (f fakeSource) Name() string { return string(f) }

func planText(ev *event.Event) string {
	for _, el := range ev.Chain {
		if p, ok := el.(event.Plain); ok {
			return p.Text
		}
	}
	return ""
}

func continuePredicate() *graph.PredicateNode {
	return graph.NewPredicateNode(keystore.NewPredicate(nil, func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (bool, error) {
		ev, ok := args.Event.(*event.Event)
		return ok && planText(ev) == "continue", nil
	}))
}

func TestUntilResumesOnMatchingEvent(t *testing.T) {
	eng := engine.New(4)
	InstallCheckWait(eng)

	resultCh := make(chan string, 1)

	starter := graph.NewHandlerNode("starter", func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		woken, err := Until(ctx, graph.New().AndNode(continuePredicate()), time.Second, false, false)
		if err != nil {
			resultCh <- "error: " + err.Error()
			return nil, nil
		}
		ev := woken.Args.Event.(*event.Event)
		resultCh <- planText(ev)
		return nil, nil
	})
	eng.On(graph.New()).Apply(starter)

	start := &event.Event{Type: event.GroupMessage, Group: 1, Chain: event.MessageChain{event.Plain{Text: "start"}}}
	eng.Forward(context.Background(), start, fakeSource("test"), nil)

	cont := &event.Event{Type: event.GroupMessage, Group: 1, Chain: event.MessageChain{event.Plain{Text: "continue"}}}
	eng.Forward(context.Background(), cont, fakeSource("test"), nil)

	select {
	case got := <-resultCh:
		if got != "continue" {
			t.Fatalf("expected resumed handler to observe the waking event's text, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never resumed")
	}
}

func TestUntilTimesOutWithoutMatch(t *testing.T) {
	eng := engine.New(4)
	InstallCheckWait(eng)

	resultCh := make(chan error, 1)

	starter := graph.NewHandlerNode("starter", func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		_, err := Until(ctx, graph.New().AndNode(continuePredicate()), 50*time.Millisecond, false, false)
		resultCh <- err
		return nil, nil
	})
	eng.On(graph.New()).Apply(starter)

	start := &event.Event{Type: event.GroupMessage, Group: 1, Chain: event.MessageChain{event.Plain{Text: "start"}}}
	eng.Forward(context.Background(), start, fakeSource("test"), nil)

	select {
	case err := <-resultCh:
		if err != ErrTimeout {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never timed out")
	}
}

func TestSuspendOtherStopsFurtherWakeups(t *testing.T) {
	eng := engine.New(4)
	InstallCheckWait(eng)

	var firstWoke, secondWoke bool
	done := make(chan struct{}, 2)

	makeWaiter := func(woke *bool) *graph.HandlerNode {
		return graph.NewHandlerNode("waiter", func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
			_, err := Until(ctx, graph.New().AndNode(continuePredicate()), time.Second, true, false)
			if err == nil {
				*woke = true
			}
			done <- struct{}{}
			return nil, nil
		})
	}

	starter1 := makeWaiter(&firstWoke)
	starter2 := makeWaiter(&secondWoke)
	eng.On(graph.New()).Apply(starter1)
	eng.On(graph.New()).Apply(starter2)

	start := &event.Event{Type: event.GroupMessage, Group: 1, Chain: event.MessageChain{event.Plain{Text: "start"}}}
	eng.Forward(context.Background(), start, fakeSource("test"), nil)

	cont := &event.Event{Type: event.GroupMessage, Group: 1, Chain: event.MessageChain{event.Plain{Text: "continue"}}}
	eng.Forward(context.Background(), cont, fakeSource("test"), nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("neither waiter resumed")
	}

	if !firstWoke && !secondWoke {
		t.Fatal("expected exactly one waiter to wake (newest-first), got neither")
	}
	if firstWoke && secondWoke {
		t.Fatal("expected suspend_other to stop the second wakeup, but both fired")
	}
}
