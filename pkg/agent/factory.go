// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/llm"
	"github.com/jllopis/newsdesk/pkg/pipeline"
)

// ToolSource resolves capability ids to tools.
type ToolSource interface {
	Tools(capabilities []string) ([]core.Tool, error)
}

// Factory builds role actions and coordinators that share one provider.
type Factory struct {
	provider      llm.Provider
	model         string
	temperature   float64
	tools         ToolSource
	maxIterations int
	emitter       core.EventEmitter
	logger        *slog.Logger
	tracer        trace.Tracer
}

// ErrMissingProvider is returned by NewFactory without a provider.
var ErrMissingProvider = errors.New("llm provider is required")

// Option configures a Factory.
type Option func(*Factory) error

// NewFactory creates a factory backed by provider.
func NewFactory(provider llm.Provider, opts ...Option) (*Factory, error) {
	f := &Factory{
		provider:      provider,
		maxIterations: DefaultMaxIterations,
		emitter:       core.NoopEventEmitter{},
		logger:        slog.Default(),
		tracer:        otel.Tracer("newsdesk/agent"),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	if f.provider == nil {
		return nil, ErrMissingProvider
	}
	return f, nil
}

// WithModel sets the model requested from the provider.
func WithModel(model string) Option {
	return func(f *Factory) error {
		f.model = model
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(f *Factory) error {
		f.temperature = t
		return nil
	}
}

// WithTools sets where role capabilities are resolved.
func WithTools(tools ToolSource) Option {
	return func(f *Factory) error {
		f.tools = tools
		return nil
	}
}

// WithMaxIterations bounds the tool-calling loop.
func WithMaxIterations(n int) Option {
	return func(f *Factory) error {
		if n < 1 {
			return fmt.Errorf("max iterations must be at least 1, got %d", n)
		}
		f.maxIterations = n
		return nil
	}
}

// WithEmitter sends tool call events to emitter.
func WithEmitter(emitter core.EventEmitter) Option {
	return func(f *Factory) error {
		if emitter != nil {
			f.emitter = emitter
		}
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) error {
		if logger != nil {
			f.logger = logger
		}
		return nil
	}
}

// CheckRole implements pipeline.RoleChecker: every capability of role must
// be served by the tool source. Without a tool source roles run tool-less.
func (f *Factory) CheckRole(role core.Role) error {
	_, err := f.roleTools(role)
	return err
}

func (f *Factory) roleTools(role core.Role) ([]core.Tool, error) {
	caps := role.Capabilities()
	if len(caps) == 0 || f.tools == nil {
		return nil, nil
	}
	return f.tools.Tools(caps)
}

// Action implements pipeline.ActionProvider.
func (f *Factory) Action(role core.Role) (pipeline.Action, error) {
	tools, err := f.roleTools(role)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]core.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return &Action{
		role:          role,
		provider:      f.provider,
		model:         f.model,
		temperature:   f.temperature,
		tools:         byName,
		toolDefs:      toolDefinitions(tools),
		maxIterations: f.maxIterations,
		emitter:       f.emitter,
		logger:        f.logger,
		tracer:        f.tracer,
	}, nil
}

// Coordinator implements pipeline.CoordinatorProvider.
func (f *Factory) Coordinator(role core.Role) (pipeline.Coordinator, error) {
	return &Coordinator{
		role:        role,
		provider:    f.provider,
		model:       f.model,
		temperature: f.temperature,
		logger:      f.logger,
		tracer:      f.tracer,
	}, nil
}

var (
	_ pipeline.ActionProvider      = (*Factory)(nil)
	_ pipeline.CoordinatorProvider = (*Factory)(nil)
	_ pipeline.RoleChecker         = (*Factory)(nil)
)
