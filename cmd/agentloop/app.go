// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jllopis/agentloop/pkg/agent"
	"github.com/jllopis/agentloop/pkg/audit"
	"github.com/jllopis/agentloop/pkg/capabilities"
	"github.com/jllopis/agentloop/pkg/capability"
	"github.com/jllopis/agentloop/pkg/config"
	"github.com/jllopis/agentloop/pkg/llm"
	"github.com/jllopis/agentloop/pkg/llm/openai"
	"github.com/jllopis/agentloop/pkg/mcp"
	"github.com/jllopis/agentloop/pkg/telemetry"
)

// app is the runtime shared by every command: configuration, logging,
// telemetry, the capability registry and the agent itself.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	level    *slog.LevelVar
	registry *capability.Registry
	agent    *agent.Agent
	audit    audit.Store
	cache    llm.Cache
	mcp      *mcp.Set

	closers []func(context.Context) error
}

func newApp(ctx context.Context, global globalFlags, stderr io.Writer) (_ *app, err error) {
	cfg, err := config.LoadWithOverrides(global.ConfigPath, global.Sets)
	if err != nil {
		return nil, NewConfigError(err, global.ConfigPath)
	}

	a := &app{cfg: cfg, level: new(slog.LevelVar)}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.level.Set(telemetry.ParseLevel(cfg.Log.Level))
	a.logger = telemetry.NewLeveledLogger(stderr, a.level, cfg.Log.Format)
	slog.SetDefault(a.logger)

	if global.Watch && global.ConfigPath != "" {
		if err := a.watchConfig(ctx, global); err != nil {
			return nil, err
		}
	}

	shutdown, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		OTLPInsecure: cfg.Telemetry.Insecure,
		OTLPTimeout:  cfg.Telemetry.Timeout,
		Writer:       stderr,
	})
	if err != nil {
		return nil, WrapStartupError(err, "telemetry")
	}
	a.closers = append(a.closers, shutdown)

	metrics, err := telemetry.NewTurnMetrics()
	if err != nil {
		a.logger.Warn("telemetry.metrics.disabled", slog.String("error", err.Error()))
		metrics = nil
	}

	backend, err := a.buildBackend(ctx)
	if err != nil {
		return nil, err
	}

	if a.audit, err = a.buildAudit(); err != nil {
		return nil, err
	}

	if a.registry, err = a.buildRegistry(ctx); err != nil {
		return nil, err
	}

	opts := []agent.Option{
		agent.WithRegistry(a.registry),
		agent.WithMaxMemory(cfg.Agent.MaxMemory),
		agent.WithBackendTimeout(cfg.LLM.Timeout),
		agent.WithAuditStore(a.audit),
		agent.WithLogger(a.logger),
		agent.WithMetrics(metrics),
		agent.WithBackendInfo(cfg.LLM.Provider, cfg.LLM.Model),
	}
	if strings.TrimSpace(cfg.Agent.FallbackMessage) != "" {
		opts = append(opts, agent.WithFallbackMessage(cfg.Agent.FallbackMessage))
	}
	if strings.TrimSpace(cfg.Agent.SessionID) != "" {
		opts = append(opts, agent.WithSessionID(cfg.Agent.SessionID))
	}

	if a.agent, err = agent.New(cfg.Agent.ID, backend, opts...); err != nil {
		return nil, NewConfigError(err, global.ConfigPath)
	}
	return a, nil
}

// watchConfig reloads the log level whenever the config file changes.
func (a *app) watchConfig(ctx context.Context, global globalFlags) error {
	w, err := config.NewWatcher(global.ConfigPath,
		config.WithWatchLogger(a.logger),
		config.WithWatchOverrides(global.Sets),
	)
	if err != nil {
		return NewConfigError(err, global.ConfigPath)
	}
	w.OnChange(func(cfg *config.Config) {
		a.level.Set(telemetry.ParseLevel(cfg.Log.Level))
	})
	w.Start(ctx)
	a.closers = append(a.closers, func(context.Context) error {
		w.Stop()
		return nil
	})
	return nil
}

// buildBackend selects the chat provider and wraps it with the completion
// cache when one is configured.
func (a *app) buildBackend(ctx context.Context) (llm.Completer, error) {
	cfg := a.cfg.LLM

	var provider llm.Provider
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if key := cfg.ResolveAPIKey(); key != "" {
			opts = append(opts, openai.WithAPIKey(key))
		}
		provider = openai.New(opts...)
	case "ollama":
		provider = llm.NewOllama(cfg.BaseURL)
	case "mock":
		provider = llm.NewScriptedMockProvider(cfg.Replies...)
	default:
		return nil, NewInvalidArgumentError("llm.provider", fmt.Sprintf("unknown provider %q", cfg.Provider))
	}

	var backend llm.Completer = llm.NewChatCompleter(provider,
		llm.WithModel(cfg.Model),
		llm.WithJSONMode(cfg.JSONMode),
		llm.WithTemperature(cfg.Temperature),
	)

	namespace := cfg.Provider + "/" + cfg.Model
	switch a.cfg.Cache.Driver {
	case "memory":
		a.cache = llm.NewMemoryCache(a.cfg.Cache.Size, a.cfg.Cache.TTL)
		backend = llm.NewCachedCompleter(backend, a.cache, namespace)
	case "redis":
		cache, err := llm.NewRedisCache(ctx, llm.RedisCacheConfig{
			Address:  a.cfg.Cache.Addr,
			Password: a.cfg.Cache.Password,
			DB:       a.cfg.Cache.DB,
			Prefix:   a.cfg.Cache.Prefix,
			TTL:      a.cfg.Cache.TTL,
		})
		if err != nil {
			return nil, WrapStartupError(err, "cache")
		}
		a.closers = append(a.closers, func(context.Context) error { return cache.Close() })
		a.cache = cache
		backend = llm.NewCachedCompleter(backend, cache, namespace)
	}
	return backend, nil
}

func (a *app) buildAudit() (audit.Store, error) {
	switch a.cfg.Audit.Driver {
	case "memory":
		return audit.NewMemoryStore(), nil
	case "sqlite":
		store, err := audit.OpenSQLite(a.cfg.Audit.Path)
		if err != nil {
			return nil, WrapStartupError(err, "audit")
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		return store, nil
	default:
		return audit.NopStore{}, nil
	}
}

// buildRegistry registers the built-in capabilities followed by the tools
// of every configured MCP server.
func (a *app) buildRegistry(ctx context.Context) (*capability.Registry, error) {
	cc := a.cfg.Capabilities
	caps, err := capabilities.Build(capabilities.Config{
		Enabled:            cc.Enabled,
		CalculatorExtended: cc.CalculatorExtended,
		SearchEndpoint:     cc.SearchEndpoint,
		SearchResults:      cc.SearchResults,
		FetchMaxBytes:      cc.FetchMaxBytes,
	})
	if err != nil {
		return nil, NewConfigError(err, "")
	}

	if len(a.cfg.MCP.Servers) > 0 {
		specs := make([]mcp.ServerSpec, 0, len(a.cfg.MCP.Servers))
		for name, s := range a.cfg.MCP.Servers {
			specs = append(specs, mcp.ServerSpec{Name: name, Command: s.Command, Args: s.Args, Env: s.Env, URL: s.URL})
		}
		set, err := mcp.Connect(ctx, specs)
		if err != nil {
			return nil, WrapStartupError(err, "mcp")
		}
		a.mcp = set
		a.closers = append(a.closers, func(context.Context) error { return set.Close() })

		remote, err := set.Capabilities(ctx)
		if err != nil {
			return nil, WrapStartupError(err, "mcp")
		}
		a.logger.Debug("mcp.capabilities.loaded",
			slog.Any("servers", set.Names()),
			slog.Int("count", len(remote)),
		)
		caps = append(caps, remote...)
	}

	return capability.NewRegistry(caps...)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return stderrors.Join(errs...)
}
