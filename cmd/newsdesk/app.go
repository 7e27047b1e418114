// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jllopis/newsdesk/pkg/agent"
	"github.com/jllopis/newsdesk/pkg/config"
	"github.com/jllopis/newsdesk/pkg/crew"
	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/llm"
	"github.com/jllopis/newsdesk/pkg/llm/anthropic"
	"github.com/jllopis/newsdesk/pkg/llm/gemini"
	"github.com/jllopis/newsdesk/pkg/llm/openai"
	"github.com/jllopis/newsdesk/pkg/mcp"
	"github.com/jllopis/newsdesk/pkg/pipeline"
	"github.com/jllopis/newsdesk/pkg/resilience"
	"github.com/jllopis/newsdesk/pkg/telemetry"
	"github.com/jllopis/newsdesk/pkg/tools"
)

const (
	serviceName = "newsdesk"

	// DashScope serves Qwen through an OpenAI-compatible API.
	qwenBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	qwenModel   = "qwen-plus"
)

// crewFlags selects a crew on the command line.
type crewFlags struct {
	name string
	dir  string
}

func (f *crewFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.name, "crew", "", "Builtin crew name (default from config)")
	fs.StringVar(&f.dir, "crew-dir", "", "Load the crew from a directory")
}

// loadCrew resolves the crew from flags, falling back to config.
func loadCrew(cfg *config.Config, f crewFlags) (*crew.Crew, error) {
	dir, name := f.dir, f.name
	if dir == "" && name == "" {
		dir, name = cfg.Crew.Dir, cfg.Crew.Name
	}
	if dir != "" {
		return crew.LoadDir(dir)
	}
	return crew.Builtin(name)
}

// app is the wiring for one CLI invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	crew    *crew.Crew
	runner  *pipeline.Runner
	audit   pipeline.AuditStore
	closers []func(context.Context) error
}

func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithCLI(c.flags.ConfigArgs)
	if err != nil {
		return nil, NewConfigError(err)
	}
	return cfg, nil
}

// newApp wires telemetry, the LLM provider, capability tools and the
// runner for cr. offline swaps the provider for the echo provider and
// skips tools; validation never calls a role.
func (c *cli) newApp(ctx context.Context, cfg *config.Config, cr *crew.Crew, offline bool) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: telemetry.ConfigureSlog(c.stderr, cfg.Log.Level, cfg.Log.Format),
		crew:   cr,
	}

	shutdown, err := telemetry.InitWithConfig(serviceName, Version, telemetry.Config{
		Exporter:           cfg.Telemetry.Exporter,
		OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
		OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
	})
	if err != nil {
		return nil, NewConfigError(fmt.Errorf("init telemetry: %w", err))
	}
	a.closers = append(a.closers, shutdown)

	emitter := telemetry.NewLogEmitter(a.logger)
	factoryOpts := []agent.Option{
		agent.WithModel(cfg.LLM.Model),
		agent.WithTemperature(cfg.LLM.Temperature),
		agent.WithMaxIterations(cfg.Pipeline.MaxIterations),
		agent.WithEmitter(emitter),
		agent.WithLogger(a.logger),
	}

	// Offline roles run without tools, so their capabilities are not checked.
	var provider llm.Provider = llm.EchoProvider{}
	if !offline {
		if provider, err = createProvider(ctx, cfg.LLM); err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		toolSet := tools.NewSet()
		if err := a.registerTools(ctx, toolSet); err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		factoryOpts = append(factoryOpts, agent.WithTools(toolSet))
	}

	factory, err := agent.NewFactory(provider, factoryOpts...)
	if err != nil {
		_ = a.Close(ctx)
		return nil, NewConfigError(err)
	}

	if a.audit, err = a.openAudit(); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	metrics, err := telemetry.NewPipelineMetrics()
	if err != nil {
		a.logger.Warn("pipeline.metrics.disabled", "error", err)
	}

	a.runner, err = pipeline.New(cr.Registry, factory,
		pipeline.WithCoordinators(factory),
		pipeline.WithMaxRounds(cfg.Pipeline.MaxRounds),
		pipeline.WithStepTimeout(cfg.Pipeline.StepTimeout),
		pipeline.WithRetry(resilience.DefaultRetryConfig().WithMaxAttempts(cfg.Pipeline.MaxAttempts)),
		pipeline.WithAuditStore(a.audit),
		pipeline.WithEmitter(emitter),
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(metrics),
	)
	if err != nil {
		_ = a.Close(ctx)
		return nil, NewConfigError(err)
	}
	return a, nil
}

// builtinCapabilities are served by registerTools without any MCP server.
var builtinCapabilities = []string{"search", "fetch"}

// checkCapabilities reports a role whose capabilities no builtin tool or
// configured MCP server serves, before any tool or provider is set up.
func checkCapabilities(cfg *config.Config, cr *crew.Crew) error {
	served := make(map[string]bool, len(builtinCapabilities)+len(cfg.Tools.MCP.Servers))
	for _, c := range builtinCapabilities {
		served[c] = true
	}
	for c := range cfg.Tools.MCP.Servers {
		served[c] = true
	}
	steps, err := cr.StepList()
	if err != nil {
		return err
	}
	for _, s := range steps {
		role, err := cr.Registry.Resolve(s.Role)
		if err != nil {
			return err
		}
		for _, c := range role.Capabilities() {
			if served[c] {
				continue
			}
			e := errors.New(errors.CodeInvalidInput,
				fmt.Sprintf("role %q needs capability %q, which no tool serves", role.ID(), c), nil).
				WithContext("step_id", s.ID).
				WithContext("role_id", role.ID()).
				WithContext("capability", c)
			return NewCLIError(e, fmt.Sprintf("serve it with tools.mcp.servers.%s or remove it from the role", c))
		}
	}
	return nil
}

// registerTools binds the search and fetch capabilities, then lets
// configured MCP servers add or replace capabilities.
func (a *app) registerTools(ctx context.Context, set *tools.Set) error {
	tc := a.cfg.Tools
	if err := set.Register("search", tools.NewSearchTool(tools.SearchConfig{
		SerperAPIKey:  tc.Serper.APIKey,
		SerperURL:     tc.Serper.URL,
		DuckDuckGoURL: tc.DuckDuckGo,
	})); err != nil {
		return err
	}
	if err := set.Register("fetch", tools.NewFetchTool(tools.FetchConfig{
		Timeout:  tc.Fetch.Timeout,
		MaxBytes: tc.Fetch.MaxBytes,
	})); err != nil {
		return err
	}
	if len(tc.MCP.Servers) == 0 {
		return nil
	}
	bindings, err := mcp.Bind(ctx, set, tc.MCP.Servers)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return bindings.Close() })
	return nil
}

func (a *app) openAudit() (pipeline.AuditStore, error) {
	if a.cfg.Audit.Path == "" {
		return pipeline.NewMemoryAuditStore(), nil
	}
	store, err := pipeline.OpenSQLiteAuditStore(a.cfg.Audit.Path)
	if err != nil {
		return nil, NewConfigError(fmt.Errorf("open audit store: %w", err))
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	return store, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return stderrors.Join(errs...)
}

func createProvider(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return llm.NewOllama(cfg.BaseURL, cfg.Model), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, NewCLIError(
				errors.New(errors.CodeInvalidInput, "gemini provider needs an API key", nil),
				"set GEMINI_API_KEY or llm.api_key",
			)
		}
		p, err := gemini.New(ctx, cfg.APIKey, gemini.WithModel(cfg.Model))
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai", "qwen":
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithBaseURL(cfg.BaseURL), openai.WithAPIKey(cfg.APIKey)}
		if strings.EqualFold(cfg.Provider, "qwen") {
			if cfg.APIKey == "" {
				return nil, NewCLIError(
					errors.New(errors.CodeInvalidInput, "qwen provider needs an API key", nil),
					"set DASHSCOPE_API_KEY or llm.api_key",
				)
			}
			if cfg.BaseURL == "" {
				opts = append(opts, openai.WithBaseURL(qwenBaseURL))
			}
			if cfg.Model == "" {
				opts = append(opts, openai.WithModel(qwenModel))
			}
		}
		return openai.New(opts...), nil
	case "anthropic":
		return anthropic.New(
			anthropic.WithModel(cfg.Model),
			anthropic.WithBaseURL(cfg.BaseURL),
			anthropic.WithAPIKey(cfg.APIKey),
		), nil
	case "mock", "echo":
		return llm.EchoProvider{}, nil
	default:
		return nil, NewConfigError(fmt.Errorf("unknown LLM provider %q (ollama, gemini, openai, qwen, anthropic, mock)", cfg.Provider))
	}
}
