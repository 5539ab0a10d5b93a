// Package service implements namespaced bundles of graph terminals with
// per-group enable/disable, per-user privilege, scheduled jobs, and
// broadcast throttling, plus the Plugin hot-reload layer above it
// (spec §4.7).
package service

import (
	"context"

	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/keystore"
)

// Priv is the integer privilege ladder: higher is more trusted. Black
// (blacklisted) always overrides to Black regardless of any configured or
// role-derived level.
type Priv int

const (
	Everybody    Priv = -1000
	Black        Priv = -999
	Default      Priv = 0
	Group        Priv = 20
	PrivateOther Priv = 30
	Discuss      Priv = 40
	PrivateGroup Priv = 50
	Friend       Priv = 60
	Admin        Priv = 100
	Owner        Priv = 150
	White        Priv = 200
	Superuser    Priv = 990
	Nobody       Priv = 1000
)

// rolePriv maps an event.Permission to its role-derived privilege floor.
func rolePriv(p event.Permission) Priv {
	switch p {
	case event.PermOwner:
		return Owner
	case event.PermAdmin:
		return Admin
	default:
		return Default
	}
}

// Required is either a flat integer threshold or a predicate over the
// caller's computed privilege, matching spec §4.7's "int or callable"
// check_priv contract.
type Required struct {
	Level     Priv
	Predicate func(p Priv) bool
}

// AtLeast builds a Required that is satisfied by any privilege >= level.
func AtLeast(level Priv) Required { return Required{Level: level} }

// Where builds a Required satisfied by an arbitrary predicate over privilege.
func Where(pred func(p Priv) bool) Required { return Required{Predicate: pred} }

func (r Required) satisfiedBy(p Priv) bool {
	if r.Predicate != nil {
		return r.Predicate(p)
	}
	return p >= r.Level
}

// computePriv resolves a user's effective privilege for ev: the greater of
// their configured override and their role-derived floor, except a
// blacklisted user is always Black regardless of any other setting.
func computePriv(cfg *Config, ev *event.Event) Priv {
	if cfg.isBlacklisted(ev.Sender.QQ) {
		return Black
	}
	p := rolePriv(ev.Sender.Permission)
	if configured, ok := cfg.userPriv(ev.Sender.QQ); ok && configured > p {
		p = configured
	}
	return p
}

// CheckPriv reports whether ev's sender satisfies required under cfg. Non-
// message events always pass (spec §4.7: "for other events, always true").
func CheckPriv(cfg *Config, ev *event.Event, required Required) bool {
	if !ev.IsMessage() {
		return true
	}
	return required.satisfiedBy(computePriv(cfg, ev))
}

// GroupEnabled reports whether ev's group is active for this service: in
// enable_group, or (enable_on_default and not in disable_group).
func GroupEnabled(cfg *Config, ev *event.Event) bool {
	if ev.Type != event.GroupMessage && ev.Group == 0 {
		return true // not a group-scoped event
	}
	if cfg.inSet(cfg.EnableGroup, ev.Group) {
		return true
	}
	if cfg.EnableOnDefault {
		return !cfg.inSet(cfg.DisableGroup, ev.Group)
	}
	return false
}

// privPredicate adapts CheckPriv+GroupEnabled into a keystore.PredicateFunction
// for composition into a subgraph, grounded on graph.PredicateNode's contract.
func privPredicate(svc *Service, required Required) keystore.PredicateFunction {
	return keystore.NewPredicate(nil, func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (bool, error) {
		ev, ok := args.Event.(*event.Event)
		if !ok {
			return false, nil
		}
		if !GroupEnabled(svc.config, ev) {
			return false, nil
		}
		return CheckPriv(svc.config, ev, required), nil
	})
}
