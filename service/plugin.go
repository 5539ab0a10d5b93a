package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/graph"
	"github.com/corvidwing/dispatch/keystore"
)

// pluginSource is the engine.EventSource used for meta-events a Plugin
// dispatches about its own lifecycle (spec §4.7's ServiceLoaded/Unload,
// PluginLoaded/Unload).
type pluginSource string

func (p pluginSource) Name() string { return string(p) }

// Plugin owns an ordered set of Services loaded from one plugin directory
// (spec §4.7: "a Plugin owns an ordered map of Services"). Go cannot
// reimport a module and re-run its top-level code the way the original
// dynamically loaded plugin code, so a Plugin with a Binary manifest entry
// runs that binary inside a Sandbox and learns its services over the
// RPCRegister protocol instead of importing code in-process.
type Plugin struct {
	Dir      string
	Manifest *Manifest

	// InstanceID is a fresh identifier minted on every LoadPlugin/Reload,
	// so lifecycle meta-events and log lines from a reloaded generation of
	// the same plugin can be told apart in the persistence audit log.
	InstanceID string

	eng     *engine.Engine
	sandbox *Sandbox
	log     *slog.Logger

	mu       sync.Mutex
	order    []string
	services map[string]*Service
	proc     *Process
}

// LoadPlugin reads dir/plugin.json and registers the plugin's services
// with eng. If the manifest names a Binary, it is launched in sandbox and
// its RPC registrations are read until it closes its stdout (spec §6: the
// sandboxed process registers its services over RPCRegister, then keeps
// running to serve them).
func LoadPlugin(ctx context.Context, eng *engine.Engine, sandbox *Sandbox, dir string) (*Plugin, error) {
	m, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}

	p := &Plugin{
		Dir:        dir,
		Manifest:   m,
		InstanceID: uuid.NewString(),
		eng:        eng,
		sandbox:    sandbox,
		log:        eng.Log.With("plugin", m.Name),
		services:   make(map[string]*Service),
	}

	if m.Binary != "" {
		proc, err := sandbox.Start(ctx, dir, m.Name, m)
		if err != nil {
			return nil, fmt.Errorf("service: start plugin %s: %w", m.Name, err)
		}
		p.proc = proc
		if err := p.registerFromSandbox(proc); err != nil {
			proc.Stop(ctx)
			return nil, err
		}
	}

	p.dispatchMeta(ctx, "PluginLoaded")
	return p, nil
}

// registerFromSandbox reads register_service RPC requests off proc's
// stdout until it closes, acknowledging each over proc's stdin (the
// plugin-registration half of the RPCRegister protocol).
func (p *Plugin) registerFromSandbox(proc *Process) error {
	codec := newRPCCodec(proc.Stdout(), proc.Stdin())
	for {
		req, err := codec.next()
		if err != nil {
			return nil // EOF: plugin finished registering and is now serving
		}
		if req.Method != "register_service" {
			codec.reply(req.ID, nil, &rpcError{Code: -32601, Message: "unknown method " + req.Method})
			continue
		}
		var params RegisterServiceParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			codec.reply(req.ID, nil, &rpcError{Code: -32602, Message: err.Error()})
			continue
		}
		svc, err := p.newService(params)
		if err != nil {
			codec.reply(req.ID, nil, &rpcError{Code: -32603, Message: err.Error()})
			continue
		}
		if err := codec.reply(req.ID, map[string]string{"status": "ok"}, nil); err != nil {
			return err
		}
		_ = svc
	}
}

func (p *Plugin) newService(params RegisterServiceParams) (*Service, error) {
	svc, err := New(p.eng, p.Manifest.Name, params.ServiceName)
	if err != nil {
		return nil, err
	}

	sub := graph.New()
	required := AtLeast(Priv(params.Required))
	if params.MessageFilter != "" {
		filter := params.MessageFilter
		pred := graph.NewPredicateNode(keystore.NewPredicate(nil, func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (bool, error) {
			ev, ok := args.Event.(*event.Event)
			if !ok {
				return false, nil
			}
			for _, el := range ev.Chain {
				if plain, ok := el.(event.Plain); ok && strings.Contains(plain.Text, filter) {
					return true, nil
				}
			}
			return false, nil
		}))
		sub = sub.AndNode(pred)
	}

	svc.OnMessage(sub, required, func(ctx context.Context, args *keystore.RouteArgs, store *keystore.KeyStore) (any, error) {
		p.log.Debug("dispatch: sandboxed service matched, no in-process handler to run", "service", params.ServiceName)
		return nil, nil
	})

	p.mu.Lock()
	if _, exists := p.services[params.ServiceName]; !exists {
		p.order = append(p.order, params.ServiceName)
	}
	p.services[params.ServiceName] = svc
	p.mu.Unlock()

	p.dispatchMeta(context.Background(), "ServiceLoaded")
	return svc, nil
}

// Service looks up one of this plugin's registered services by name.
func (p *Plugin) Service(name string) (*Service, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.services[name]
	return s, ok
}

// Services returns the plugin's services in registration order.
func (p *Plugin) Services() []*Service {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Service, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.services[name])
	}
	return out
}

// Unload dispatches ServiceUnload/PluginUnload meta-events, stops the
// sandboxed process (if any), and unsubscribes every terminal every
// service contributed (spec §4.7).
func (p *Plugin) Unload(ctx context.Context) error {
	p.dispatchMeta(ctx, "ServiceUnload")

	p.mu.Lock()
	services := make([]*Service, 0, len(p.order))
	for _, name := range p.order {
		services = append(services, p.services[name])
	}
	p.order = nil
	p.services = make(map[string]*Service)
	proc := p.proc
	p.proc = nil
	p.mu.Unlock()

	for _, svc := range services {
		svc.Unload()
	}

	var err error
	if proc != nil {
		err = proc.Stop(ctx)
	}

	p.dispatchMeta(ctx, "PluginUnload")
	return err
}

// Reload unloads and re-loads the plugin from disk, picking up any changed
// plugin.json or binary.
func (p *Plugin) Reload(ctx context.Context) (*Plugin, error) {
	if err := p.Unload(ctx); err != nil {
		return nil, err
	}
	return LoadPlugin(ctx, p.eng, p.sandbox, p.Dir)
}

func (p *Plugin) dispatchMeta(ctx context.Context, kind string) {
	p.eng.Forward(ctx, &event.Event{
		Type:     event.Meta,
		MetaName: kind,
		Data:     map[string]any{"plugin": p.Manifest.Name, "instance": p.InstanceID},
	}, pluginSource(p.Manifest.Name), nil)
}
