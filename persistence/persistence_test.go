package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/executor"
	"github.com/corvidwing/dispatch/graph"
	"github.com/corvidwing/dispatch/keystore"
)

type fakeSource string

func (f fakeSource) Name() string { return string(f) }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dispatch.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)
	if countRows(t, s, "dispatch_outcomes") != 0 {
		t.Fatal("expected a fresh database to start with no outcomes")
	}
	if countRows(t, s, "route_exceptions") != 0 {
		t.Fatal("expected a fresh database to start with no route exceptions")
	}
}

func TestRecordOutcomeInsertsRow(t *testing.T) {
	s := openTestStore(t)
	ev := &event.Event{Type: event.GroupMessage, Group: 42}

	if err := s.RecordOutcome(context.Background(), ev, "pinger", executor.Default, executor.Result{Value: "pong"}); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	if err := s.RecordOutcome(context.Background(), ev, "pinger", executor.Default, executor.Result{Err: errors.New("boom")}); err != nil {
		t.Fatalf("RecordOutcome (error case): %v", err)
	}

	if got := countRows(t, s, "dispatch_outcomes"); got != 2 {
		t.Fatalf("expected 2 outcome rows, got %d", got)
	}

	var terminal, errMsg string
	if err := s.db.QueryRow("SELECT terminal, error FROM dispatch_outcomes WHERE error != '' LIMIT 1").Scan(&terminal, &errMsg); err != nil {
		t.Fatalf("querying error row: %v", err)
	}
	if terminal != "pinger" || errMsg != "boom" {
		t.Fatalf("unexpected error row: terminal=%q error=%q", terminal, errMsg)
	}
}

func TestRecordRouteExceptionInsertsRow(t *testing.T) {
	s := openTestStore(t)
	ev := &event.Event{Type: event.GroupMessage}

	if err := s.RecordRouteException(context.Background(), ev, "panic in predicate"); err != nil {
		t.Fatalf("RecordRouteException: %v", err)
	}
	if got := countRows(t, s, "route_exceptions"); got != 1 {
		t.Fatalf("expected 1 route exception row, got %d", got)
	}
}

func TestTapRecordsOutcomesAndReturnsForwardResults(t *testing.T) {
	s := openTestStore(t)
	eng := engine.New(4)
	eng.On(graph.New()).Apply(graph.NewHandlerNode("h", func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		return "ok", nil
	}))

	ev := &event.Event{Type: event.GroupMessage, Group: 1, Chain: event.MessageChain{event.Plain{Text: "hi"}}}
	results := Tap(context.Background(), s, eng, ev, fakeSource("test"), nil)

	if len(results) != 1 {
		t.Fatalf("expected Tap to return the same single result Forward produced, got %d", len(results))
	}
	if got := countRows(t, s, "dispatch_outcomes"); got != 1 {
		t.Fatalf("expected Tap to have recorded 1 outcome, got %d", got)
	}
}
