package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/graph"
	"github.com/corvidwing/dispatch/keystore"
)

// Service is a namespaced bundle of terminals subscribed through one
// Engine, with its own privilege config, scheduled jobs, and broadcast
// throttling (spec §4.7).
type Service struct {
	Name   string
	Plugin string
	eng    *engine.Engine
	config *Config

	mu        sync.Mutex
	terminals []*engine.Terminal

	cron     *cron.Cron
	jobs     map[string]cron.EntryID
	throttle *rateLimiter
}

// New builds a Service bound to eng, loading (or initializing) its config
// from ./service_config/{plugin}.{name}.json.
func New(eng *engine.Engine, plugin, name string) (*Service, error) {
	cfg, err := LoadConfig(plugin, name)
	if err != nil {
		return nil, err
	}
	return &Service{
		Name:   name,
		Plugin: plugin,
		eng:    eng,
		config: cfg,
		cron:   cron.New(),
		jobs:   make(map[string]cron.EntryID),
	}, nil
}

// Config returns the service's persisted settings.
func (s *Service) Config() *Config { return s.config }

// On subscribes subgraph AND required's privilege/group check, tagging the
// resulting terminal as belonging to this service so Unload can find it.
func (s *Service) On(subgraph *graph.Graph, required Required, handler graph.HandlerFunc) *engine.Terminal {
	gated := subgraph.AndNode(graph.NewPredicateNode(privPredicate(s, required)))
	term := s.eng.On(gated).Apply(graph.NewHandlerNode(s.Name, handler))
	s.mu.Lock()
	s.terminals = append(s.terminals, term)
	s.mu.Unlock()
	return term
}

// OnMessage is On restricted to message-carrying events, sequencing an
// is-message predicate ahead of subgraph.
func (s *Service) OnMessage(subgraph *graph.Graph, required Required, handler graph.HandlerFunc) *engine.Terminal {
	isMessage := graph.NewPredicateNode(keystore.NewPredicate("is-message", func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (bool, error) {
		ev, ok := args.Event.(*event.Event)
		return ok && ev.IsMessage(), nil
	}))
	return s.On(subgraph.AndNode(isMessage), required, handler)
}

// ScheduledJob registers a cron-triggered callback, backed by robfig/cron
// (grounded on the teacher's serve/scheduler.go, generalized from a fixed
// agent-dispatch target to an arbitrary func(ctx) callback).
// Re-registering the same name replaces the previous schedule.
func (s *Service) ScheduledJob(name, cronExpr string, fn func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
	}
	id, err := s.cron.AddFunc(cronExpr, func() { fn(context.Background()) })
	if err != nil {
		return fmt.Errorf("service: invalid cron expression %q: %w", cronExpr, err)
	}
	s.jobs[name] = id
	return nil
}

// StartJobs starts the service's cron runner. Safe to call once per Service.
func (s *Service) StartJobs() { s.cron.Start() }

// StopJobs stops the cron runner, waiting for in-flight jobs to finish.
func (s *Service) StopJobs() { <-s.cron.Stop().Done() }

// WithThrottle installs a token-bucket broadcast rate limit (requests per
// minute), grounded on the teacher's own rateLimiter in orchestrator.go — no
// third-party token-bucket library appears anywhere in the pack, so this one
// concern is carried over as-is rather than ported to an external dep (see
// DESIGN.md).
func (s *Service) WithThrottle(perMinute int) *Service {
	s.throttle = newRateLimiter(perMinute)
	return s
}

// Broadcast fans a message out to every currently-enabled group via send,
// throttled if WithThrottle was called. Groups failing the throttle are
// skipped, not queued (matches the teacher's allow()/drop semantics).
func (s *Service) Broadcast(ctx context.Context, groups []int64, send func(ctx context.Context, group int64) error) []error {
	var errs []error
	for _, g := range groups {
		if !GroupEnabled(s.config, &event.Event{Type: event.GroupMessage, Group: g}) {
			continue
		}
		if s.throttle != nil && !s.throttle.allow() {
			continue
		}
		if err := send(ctx, g); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Unload unsubscribes every terminal this service contributed and stops
// its scheduled jobs. Dispatching ServiceUnload/PluginUnload meta-events is
// the caller's responsibility (Plugin.Unload does this before calling
// Unload on each of its services, per spec §4.7).
func (s *Service) Unload() {
	s.StopJobs()
	s.mu.Lock()
	terms := s.terminals
	s.terminals = nil
	s.mu.Unlock()
	for _, t := range terms {
		t.Unsubscribe()
	}
}

// rateLimiter is a simple token bucket refilled continuously over time,
// ported from the teacher's Orchestrator rate limiter.
type rateLimiter struct {
	perMinute float64
	tokens    float64
	lastTime  time.Time
	mu        sync.Mutex
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		perMinute: float64(perMinute),
		tokens:    float64(perMinute),
		lastTime:  time.Now(),
	}
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastTime).Minutes()
	r.lastTime = now

	r.tokens += elapsed * r.perMinute
	if r.tokens > r.perMinute {
		r.tokens = r.perMinute
	}
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}
