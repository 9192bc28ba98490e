package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/netonboard/netonboard/pkg/bigip"
	"github.com/netonboard/netonboard/pkg/config"
	"github.com/netonboard/netonboard/pkg/engine"
	"github.com/netonboard/netonboard/pkg/policy"
	"github.com/netonboard/netonboard/pkg/state"
	"github.com/netonboard/netonboard/pkg/stores"
	"github.com/netonboard/netonboard/pkg/telemetry"
	"github.com/netonboard/netonboard/pkg/transports/ssh"
)

const shutdownTimeout = 5 * time.Second

// runtime holds the components shared by commands.
type runtime struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger *telemetry.Logger
	tunnel *ssh.SSHClient
	store  *stores.SQLiteStore
}

// newRuntime loads the configuration and opens the store and tunnel when
// they are enabled. The returned context carries the telemetry instance.
func newRuntime(ctx context.Context) (*runtime, context.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, ctx, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	tel.StartMetricsServer()

	rt := &runtime{cfg: cfg, tel: tel, logger: tel.Logger}
	ctx = tel.WithContext(ctx)

	if cfg.Store.Enabled {
		store, err := stores.Open(ctx, cfg.Store.SQLite)
		if err != nil {
			rt.Close()
			return nil, ctx, fmt.Errorf("failed to open store: %w", err)
		}
		rt.store = store
	}

	if cfg.Tunnel.Enabled {
		client, err := ssh.NewSSHClient(cfg.Tunnel.SSHConfig())
		if err != nil {
			rt.Close()
			return nil, ctx, fmt.Errorf("failed to create tunnel: %w", err)
		}
		if err := client.Connect(ctx); err != nil {
			rt.Close()
			return nil, ctx, fmt.Errorf("failed to open tunnel: %w", err)
		}
		rt.tunnel = client
	}

	return rt, ctx, nil
}

// Close releases the tunnel, the store and telemetry exporters.
func (r *runtime) Close() {
	if r.tunnel != nil {
		if err := r.tunnel.Disconnect(); err != nil {
			r.logger.WithError(err).Warn("failed to close tunnel")
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.WithError(err).Warn("failed to close store")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.tel.Shutdown(ctx); err != nil {
		r.logger.WithError(err).Warn("failed to shut down telemetry")
	}
}

// device builds a client for the configured device, routed through the
// tunnel when one is open.
func (r *runtime) device(ctx context.Context) (*bigip.Client, error) {
	var dial bigip.DialContextFunc
	if r.tunnel != nil {
		dial = r.tunnel.DialContext
	}

	client, err := bigip.NewClient(&r.cfg.Device, dial,
		bigip.WithLogger(r.logger),
		bigip.WithMetrics(r.tel.Metrics),
		bigip.WithTracer(r.tel.Tracer),
	)
	if err != nil {
		return nil, err
	}

	if r.cfg.Engine.WaitReady {
		r.logger.Info("waiting for device to become ready")
		if err := client.WaitReady(ctx); err != nil {
			return nil, fmt.Errorf("device not ready: %w", err)
		}
	}
	return client, nil
}

// stateProvider returns the configured provider, or nil for "none".
func (r *runtime) stateProvider() (state.Provider, error) {
	var deps state.Deps
	if r.store != nil {
		deps.Store = r.store
	}
	if r.tunnel != nil {
		deps.Remote = r.tunnel
	}
	return state.New(r.cfg.State, deps)
}

// guard builds the policy engine from the engine section.
func (r *runtime) guard(ctx context.Context) (*policy.Engine, error) {
	eng, err := policy.NewEngine(r.logger.Zerolog())
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}

	for _, name := range r.cfg.Engine.EnablePolicies {
		if err := eng.EnablePolicy(name); err != nil {
			return nil, err
		}
	}

	paths := r.cfg.Engine.PolicyPaths
	if len(paths) == 0 {
		return eng, nil
	}
	if err := eng.LoadPolicies(ctx, paths); err != nil {
		return nil, err
	}
	if r.cfg.Engine.WatchPolicies {
		if _, err := eng.Watch(ctx, paths); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// deleteHandler wires a delete handler for the declaration at declPath.
// A non-empty statePath overrides the configured state provider.
func (r *runtime) deleteHandler(ctx context.Context, declPath, statePath string) (*engine.DeleteHandler, error) {
	data, err := readInput(declPath)
	if err != nil {
		return nil, err
	}
	decl, err := engine.ParseDeclaration(data)
	if err != nil {
		return nil, err
	}

	client, err := r.device(ctx)
	if err != nil {
		return nil, err
	}

	guard, err := r.guard(ctx)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithPartition(r.cfg.Engine.Partition),
		engine.WithMaxParallel(r.cfg.Engine.MaxParallel),
		engine.WithGuard(guard),
		engine.WithLogger(r.logger),
		engine.WithMetrics(r.tel.Metrics),
		engine.WithTracer(r.tel.Tracer),
	}
	if r.store != nil {
		opts = append(opts, engine.WithRecorder(r.store))
	}

	if statePath != "" {
		raw, err := readInput(statePath)
		if err != nil {
			return nil, err
		}
		snapshot, err := engine.ParseDeclaration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid state file: %w", err)
		}
		opts = append(opts, engine.WithCurrentState(snapshot))
	} else {
		provider, err := r.stateProvider()
		if err != nil {
			return nil, err
		}
		if provider != nil {
			r.logger.WithField("provider", provider.Name()).Debug("using state provider")
			opts = append(opts, engine.WithStateProvider(provider))
		}
	}

	return engine.NewDeleteHandler(decl, client, opts...), nil
}

// audit writes an audit entry when the store is enabled. Failures are logged.
func (r *runtime) audit(ctx context.Context, action, target string, details interface{}) {
	if r.store == nil {
		return
	}

	entry := &stores.AuditEntry{
		Action: action,
		Actor:  actor(),
	}
	if target != "" {
		entry.TargetID = &target
	}
	if details != nil {
		data, err := json.Marshal(details)
		if err == nil {
			s := string(data)
			entry.Details = &s
		}
	}

	if err := r.store.CreateAuditEntry(ctx, entry); err != nil {
		r.logger.WithError(err).Warn("failed to write audit entry")
	}
}

func actor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "netonboard"
}

// readInput reads path, or standard input for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
