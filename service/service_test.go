package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/graph"
	"github.com/corvidwing/dispatch/keystore"
	"github.com/corvidwing/dispatch/wait"
)

func newTestService(t *testing.T, eng *engine.Engine, plugin, name string) *Service {
	t.Helper()
	t.Cleanup(func() { os.Remove(configPath(plugin, name)) })
	svc, err := New(eng, plugin, name)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func groupMessage(group int64, text string) *event.Event {
	return &event.Event{
		Type:   event.GroupMessage,
		Group:  group,
		Sender: event.Sender{QQ: 1, Permission: event.PermMember},
		Chain:  event.MessageChain{event.Plain{Text: text}},
	}
}

func TestServiceOnMessageHonorsGroupEnable(t *testing.T) {
	eng := engine.New(4)
	svc := newTestService(t, eng, "plugin-a", "svc-a")
	svc.Config().EnableOnDefault = false
	svc.Config().EnableGroup = []int64{1}

	var mu sync.Mutex
	var calls int
	svc.OnMessage(graph.New(), AtLeast(Everybody), func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	})

	eng.Forward(context.Background(), groupMessage(1, "hi"), fakeSource("test"), nil)
	eng.Forward(context.Background(), groupMessage(2, "hi"), fakeSource("test"), nil)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for the enabled group, got %d", calls)
	}
}

func TestServiceOnMessageHonorsPrivilege(t *testing.T) {
	eng := engine.New(4)
	svc := newTestService(t, eng, "plugin-b", "svc-b")

	var mu sync.Mutex
	var calls int
	svc.OnMessage(graph.New(), AtLeast(Admin), func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	})

	member := groupMessage(1, "hi")
	eng.Forward(context.Background(), member, fakeSource("test"), nil)

	admin := groupMessage(1, "hi")
	admin.Sender.Permission = event.PermAdmin
	eng.Forward(context.Background(), admin, fakeSource("test"), nil)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected only the admin message to pass AtLeast(Admin), got %d calls", calls)
	}
}

func TestServiceUnloadStopsFutureDelivery(t *testing.T) {
	eng := engine.New(4)
	svc := newTestService(t, eng, "plugin-c", "svc-c")

	var mu sync.Mutex
	var calls int
	svc.OnMessage(graph.New(), AtLeast(Everybody), func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	})

	eng.Forward(context.Background(), groupMessage(1, "hi"), fakeSource("test"), nil)
	svc.Unload()
	eng.Forward(context.Background(), groupMessage(1, "hi"), fakeSource("test"), nil)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected no delivery after Unload, got %d total calls", calls)
	}
}

func TestBroadcastThrottleSkipsOverLimit(t *testing.T) {
	eng := engine.New(4)
	svc := newTestService(t, eng, "plugin-d", "svc-d")
	svc.WithThrottle(1)

	var sent []int64
	errs := svc.Broadcast(context.Background(), []int64{1, 2, 3}, func(ctx context.Context, group int64) error {
		sent = append(sent, group)
		return nil
	})

	if len(errs) != 0 {
		t.Fatalf("send func never errors, expected no errors, got %v", errs)
	}
	if len(sent) != 1 {
		t.Fatalf("expected exactly 1 group to pass a 1-per-minute throttle starting full, got %d (%v)", len(sent), sent)
	}
}

func TestBroadcastWithoutThrottleSendsAll(t *testing.T) {
	eng := engine.New(4)
	svc := newTestService(t, eng, "plugin-e", "svc-e")

	var sent []int64
	svc.Broadcast(context.Background(), []int64{1, 2, 3}, func(ctx context.Context, group int64) error {
		sent = append(sent, group)
		return nil
	})

	if len(sent) != 3 {
		t.Fatalf("expected all 3 groups sent with no throttle installed, got %d", len(sent))
	}
}

// fakeSource mirrors the engine package's own test helper; service_test.go
// needs its own since it can't import an unexported type from another
// package's tests.
type fakeSource string

func (f fakeSource) Name() string { return string(f) }

// TestUnloadDuringActivePauseEndsInTimeout exercises the "unsubscribe during
// active pause" scenario: a service's handler suspends via wait.Until, the
// owning service is unloaded while it's still paused, and the handler still
// only ever resolves via its own timeout — no further event delivers to it.
func TestUnloadDuringActivePauseEndsInTimeout(t *testing.T) {
	eng := engine.New(4)
	wait.InstallCheckWait(eng)
	svc := newTestService(t, eng, "plugin-f", "svc-f")

	resultCh := make(chan error, 1)
	neverMatches := keystore.NewPredicate(nil, func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (bool, error) {
		return false, nil
	})

	svc.OnMessage(graph.New(), AtLeast(Everybody), func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		_, err := wait.Until(ctx, graph.New().AndNode(graph.NewPredicateNode(neverMatches)), 50*time.Millisecond, false, false)
		resultCh <- err
		return nil, nil
	})

	eng.Forward(context.Background(), groupMessage(1, "start"), fakeSource("test"), nil)

	// Unload while the handler is still paused, waiting on its own terminal.
	svc.Unload()

	select {
	case err := <-resultCh:
		if err != wait.ErrTimeout {
			t.Fatalf("expected the paused handler to end via ErrTimeout after its owner unloaded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("paused handler never resolved after its owning service was unloaded")
	}

	// No further event should reach the (unloaded) original entry terminal.
	eng.Forward(context.Background(), groupMessage(1, "another"), fakeSource("test"), nil)
	select {
	case err := <-resultCh:
		t.Fatalf("unexpected second delivery to an unloaded handler: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
