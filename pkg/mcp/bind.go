package mcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
)

// ServerConfig describes the MCP server that serves one capability. Either
// Command (stdio subprocess) or URL (streamable HTTP) is set. Tool names
// the server tool to use and defaults to the capability id.
type ServerConfig struct {
	Command string        `koanf:"command"`
	Args    []string      `koanf:"args"`
	Env     []string      `koanf:"env"`
	URL     string        `koanf:"url"`
	Tool    string        `koanf:"tool"`
	Timeout time.Duration `koanf:"timeout"`
	Retries int           `koanf:"retries"`
}

// Registrar receives capability tools.
type Registrar interface {
	Register(capability string, tool core.Tool) error
}

// Bindings holds the clients opened by Bind.
type Bindings struct {
	clients []*Client
}

// Close closes every client.
func (b *Bindings) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for _, c := range b.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Bind connects to each configured server and registers its tool under the
// capability id. Capabilities are bound in sorted order. On failure the
// clients opened so far are closed.
func Bind(ctx context.Context, reg Registrar, servers map[string]ServerConfig) (*Bindings, error) {
	caps := make([]string, 0, len(servers))
	for c := range servers {
		caps = append(caps, c)
	}
	sort.Strings(caps)

	b := &Bindings{}
	for _, capability := range caps {
		cfg := servers[capability]
		client, err := connect(ctx, cfg)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("capability %q: %w", capability, err)
		}
		b.clients = append(b.clients, client)

		toolName := cfg.Tool
		if toolName == "" {
			toolName = capability
		}
		def, err := client.Tool(ctx, toolName)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("capability %q: %w", capability, err)
		}
		adapter, err := NewToolAdapter(capability, def, client)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		if err := reg.Register(capability, adapter); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

func connect(ctx context.Context, cfg ServerConfig) (*Client, error) {
	var opts []ClientOption
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.Retries > 0 {
		opts = append(opts, WithRetry(cfg.Retries, 0))
	}
	switch {
	case cfg.Command != "" && cfg.URL != "":
		return nil, errors.InvalidInput("mcp server needs command or url, not both")
	case cfg.Command != "":
		return NewClientWithStdio(ctx, cfg.Command, cfg.Args, cfg.Env, opts...)
	case cfg.URL != "":
		return NewClientWithStreamableHTTP(ctx, cfg.URL, opts...)
	default:
		return nil, errors.InvalidInput("mcp server needs a command or url")
	}
}
