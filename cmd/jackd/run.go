package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackagents/jackgo/agent"
	"github.com/jackagents/jackgo/bus"
	"github.com/jackagents/jackgo/core"
	"github.com/jackagents/jackgo/engine"
	"github.com/jackagents/jackgo/enginehttp"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
	"github.com/jackagents/jackgo/store"
	"github.com/jackagents/jackgo/task"
	"github.com/jackagents/jackgo/telemetry"
)

// liveAgents implements enginehttp.AgentSource over jackd's own
// spawn-time bookkeeping (the engine type itself exposes no enumeration
// of what it holds, by design — callers that spawned the entities keep
// track of them).
type liveAgents struct {
	agents map[string]*agent.Agent
	teams  map[string]*agent.Team
}

func (l liveAgents) Agents() map[string]*agent.Agent { return l.agents }
func (l liveAgents) Teams() map[string]*agent.Team   { return l.teams }

var (
	runBusURL        string
	runTelemetryURL  string
	runDebugHTTPAddr string
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a template bundle and run the engine until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&runBusURL, "bus-url", "", "websocket bus endpoint to forward unhandled events to")
	cmd.Flags().StringVar(&runTelemetryURL, "telemetry-redis-url", "", "Redis URL for the schedule/auction telemetry mirror")
	cmd.Flags().StringVar(&runDebugHTTPAddr, "debug-http-addr", "", "listen address for the read-only debug HTTP endpoint")
	return cmd
}

func runEngine(ctx context.Context) error {
	cfg := core.DefaultConfig()
	if path := resolveConfigPath(); path != "" {
		if err := cfg.LoadFromYAMLFile(path); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if runBusURL != "" {
		cfg.BusURL = runBusURL
	}
	if runTelemetryURL != "" {
		cfg.TelemetryRedisURL = runTelemetryURL
	}
	if runDebugHTTPAddr != "" {
		cfg.DebugHTTPAddr = runDebugHTTPAddr
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	logger := cfg.Logger()

	if bundleFile == "" {
		return fmt.Errorf("--templates is required")
	}
	bundle, err := engine.LoadBundleFile(bundleFile)
	if err != nil {
		return err
	}

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{ServiceName: cfg.Name})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer provider.Shutdown(ctx)

	nodeName := cfg.Name
	if nodeName == "" {
		nodeName = "jackd"
	}
	eng := engine.New(nodeName, cfg, provider)

	if err := bundle.Apply(eng.Registry(), builtinBodyCatalog(bundle), nil); err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	kinds := make(map[string]bus.Kind)
	teams := make(map[string]*agent.Team)
	agents := make(map[string]*agent.Agent)
	for _, spec := range bundle.Agents {
		if spec.Team {
			t, err := eng.SpawnTeam(spec.Name)
			if err != nil {
				return fmt.Errorf("spawn team %s: %w", spec.Name, err)
			}
			kinds[spec.Name] = bus.KindTeam
			teams[spec.Name] = t
		} else {
			a, err := eng.SpawnAgent(spec.Name)
			if err != nil {
				return fmt.Errorf("spawn agent %s: %w", spec.Name, err)
			}
			kinds[spec.Name] = bus.KindAgent
			agents[spec.Name] = a
		}
	}

	if cfg.BusURL != "" {
		conn, err := bus.DialWithRetry(ctx, cfg.BusURL, nil)
		if err != nil {
			return fmt.Errorf("bus dial %s: %w", cfg.BusURL, err)
		}
		defer conn.Close()
		fwd := bus.NewForwarder(conn, func(h identity.Handle) bus.Kind {
			if k, ok := kinds[h.Name]; ok {
				return k
			}
			return bus.KindAgent
		}, logger)
		eng.SetBusForward(fwd.Route)
		logger.Info("jackd: bus connection established", map[string]interface{}{"url": cfg.BusURL})
	}

	if cfg.TelemetryRedisURL != "" {
		telemetryStore, err := store.NewConfigured(store.WithRedisURL(cfg.TelemetryRedisURL), store.WithLogger(logger))
		if err != nil {
			logger.Warn("jackd: telemetry store degraded to no-op", map[string]interface{}{"error": err.Error()})
		}
		defer telemetryStore.Close()

		eng.SetHeartbeat(func(nowUs int64) {
			for name, a := range agents {
				snap := store.Capture(nodeName, a, nil, nowUs)
				if err := telemetryStore.Store(context.Background(), snap); err != nil {
					logger.Warn("jackd: telemetry store write failed", map[string]interface{}{"agent": name, "error": err.Error()})
				}
			}
			for name, t := range teams {
				snap := store.Capture(nodeName, t.Agent, t, nowUs)
				if err := telemetryStore.Store(context.Background(), snap); err != nil {
					logger.Warn("jackd: telemetry store write failed", map[string]interface{}{"agent": name, "error": err.Error()})
				}
			}
		})
	}

	if cfg.DebugHTTPAddr != "" {
		srv := enginehttp.NewServer(nodeName, liveAgents{agents: agents, teams: teams}, logger, func() int64 { return time.Now().UnixMicro() })
		httpSrv := &http.Server{Addr: cfg.DebugHTTPAddr, Handler: srv.Handler()}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("jackd: debug http server stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
		defer httpSrv.Close()
		logger.Info("jackd: debug http listening", map[string]interface{}{"addr": cfg.DebugHTTPAddr})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("jackd: shutting down", nil)
		cancel()
	}()

	logger.Info("jackd: engine running", map[string]interface{}{
		"node":        nodeName,
		"tick_period": cfg.TickPeriod.String(),
		"agents":      len(bundle.Agents),
	})
	eng.Start(runCtx, false)
	<-runCtx.Done()
	eng.Stop()
	return nil
}

// builtinBodyCatalog resolves every PlanSpec.BodyRef in bundle against a
// small convention-based set of plan bodies that need no compiled-in Go
// factory: "print:<text>" (demo output), "sleep:<duration>" (a timed
// no-op), and "action:<name>" (dispatch a single named action with no
// parameters, resource-locked the way its PlanSpec declares). Anything
// richer than that still requires embedding jackd's engine package
// directly and calling Bundle.Apply with a hand-built factory map.
func builtinBodyCatalog(bundle *engine.Bundle) map[string]engine.PlanBodyFactory {
	bodies := make(map[string]engine.PlanBodyFactory)
	for _, spec := range bundle.Agents {
		for _, ps := range spec.Plans {
			ref := ps.BodyRef
			if _, ok := bodies[ref]; ok {
				continue
			}
			locks := ps.ResourceLocks
			switch {
			case strings.HasPrefix(ref, "print:"):
				text := strings.TrimPrefix(ref, "print:")
				bodies[ref] = func() *task.Coroutine {
					b := task.NewBuilder()
					b.Add(task.NewPrintTask(text))
					return b.Build()
				}
			case strings.HasPrefix(ref, "sleep:"):
				d, err := time.ParseDuration(strings.TrimPrefix(ref, "sleep:"))
				if err != nil {
					d = time.Second
				}
				bodies[ref] = func() *task.Coroutine {
					b := task.NewBuilder()
					b.Add(task.NewSleepTask(d))
					return b.Build()
				}
			case strings.HasPrefix(ref, "action:"):
				name := strings.TrimPrefix(ref, "action:")
				bodies[ref] = func() *task.Coroutine {
					b := task.NewBuilder()
					b.Add(task.NewActionTask(name, message.Schema{Name: name}, locks))
					return b.Build()
				}
			}
		}
	}
	return bodies
}
