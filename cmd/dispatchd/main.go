// Command dispatchd wires together an Engine, a Telegram EventSource, and
// whatever services are registered, then runs until interrupted (grounded
// on cmd/vega's serveCmd: flag parsing, env-sourced secrets, and
// signal.NotifyContext for graceful shutdown).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/corvidwing/dispatch/adapter/telegram"
	"github.com/corvidwing/dispatch/engine"
	"github.com/corvidwing/dispatch/event"
	"github.com/corvidwing/dispatch/executor"
	"github.com/corvidwing/dispatch/observability"
	"github.com/corvidwing/dispatch/persistence"
	"github.com/corvidwing/dispatch/service"
	"github.com/corvidwing/dispatch/wait"
)

func main() {
	fs := flag.NewFlagSet("dispatchd", flag.ExitOnError)
	workers := fs.Int("workers", 0, "max concurrent handler tasks (0 uses executor.DefaultMaxWorkers)")
	dbPath := fs.String("db", "./dispatch.db", "dispatch outcome audit log path")
	withOtel := fs.Bool("otel", false, "enable OpenTelemetry tracing and metrics")
	configPath := fs.String("config", "./dispatchd.yaml", "optional YAML config listing plugin directories to load")

	fs.Usage = func() {
		fmt.Println(`Usage: dispatchd [options]

Starts the dispatch engine against a Telegram bot, loading TELEGRAM_BOT_TOKEN
from the environment.

Options:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	cfg, err := loadFileConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *workers == 0 {
		*workers = cfg.Workers
	}
	if *dbPath == "./dispatch.db" && cfg.DBPath != "" {
		*dbPath = cfg.DBPath
	}
	if !*withOtel {
		*withOtel = cfg.Otel
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: TELEGRAM_BOT_TOKEN is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(*workers)
	wait.InstallCheckWait(eng)

	store, err := persistence.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audit log: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	source, err := telegram.New(token, eng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to Telegram: %v\n", err)
		os.Exit(1)
	}

	// forward is eng.Forward, wrapped by observability when enabled and then
	// always by persistence; each layer calls the one underneath it.
	forward := eng.Forward
	if *withOtel {
		inst, shutdown, err := observability.Init(ctx, "dispatchd")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing OpenTelemetry: %v\n", err)
			os.Exit(1)
		}
		defer shutdown(context.Background())
		forward = func(ctx context.Context, ev *event.Event, src engine.EventSource, extra map[string]any) []executor.Result {
			return inst.Forward(ctx, eng, ev, src, extra)
		}
	}
	next := forward
	forward = func(ctx context.Context, ev *event.Event, src engine.EventSource, extra map[string]any) []executor.Result {
		results := next(ctx, ev, src, extra)
		for _, r := range results {
			_ = store.RecordOutcome(ctx, ev, "", 0, r)
		}
		return results
	}
	source.Forward = forward

	sandbox := service.NewSandbox(ctx)
	defer sandbox.Close()
	if sandbox.IsAvailable() {
		fmt.Println("dispatchd: plugin sandbox using Docker")
	} else {
		fmt.Println("dispatchd: plugin sandbox falling back to direct subprocess (Docker unavailable)")
	}

	var plugins []*service.Plugin
	for _, dir := range cfg.Plugins {
		p, err := service.LoadPlugin(ctx, eng, sandbox, dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading plugin %s: %v\n", dir, err)
			continue
		}
		fmt.Printf("dispatchd: loaded plugin %s (%s)\n", p.Manifest.Name, p.InstanceID)
		plugins = append(plugins, p)
	}
	defer func() {
		for _, p := range plugins {
			_ = p.Unload(context.Background())
		}
	}()

	fmt.Println("dispatchd: running, press Ctrl+C to stop")
	source.Run(ctx)
	fmt.Println("dispatchd: shut down")
}
