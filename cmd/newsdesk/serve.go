// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"

	"github.com/jllopis/newsdesk/pkg/mcp"
	"github.com/jllopis/newsdesk/pkg/tools"
)

// runServeTools publishes the search and fetch capabilities as an MCP
// server on stdin/stdout.
func (c *cli) runServeTools(_ context.Context, args []string) error {
	cmd := flag.NewFlagSet("serve-tools", flag.ContinueOnError)
	cmd.SetOutput(c.stderr)
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("serve-tools", err.Error())
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	srv := mcp.NewServer(serviceName, Version)
	err = srv.AddTool(tools.NewSearchTool(tools.SearchConfig{
		SerperAPIKey:  cfg.Tools.Serper.APIKey,
		SerperURL:     cfg.Tools.Serper.URL,
		DuckDuckGoURL: cfg.Tools.DuckDuckGo,
	}))
	if err != nil {
		return err
	}
	err = srv.AddTool(tools.NewFetchTool(tools.FetchConfig{
		Timeout:  cfg.Tools.Fetch.Timeout,
		MaxBytes: cfg.Tools.Fetch.MaxBytes,
	}))
	if err != nil {
		return err
	}
	return srv.ServeStdio()
}
