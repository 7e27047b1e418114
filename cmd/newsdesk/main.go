// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type globalFlags struct {
	ConfigArgs []string
	JSON       bool
	Help       bool
}

// cli carries the process streams so commands can be driven from tests.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// interactive reports whether stdin and stdout are terminals.
	interactive bool
	flags       globalFlags
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		interactive: isInteractive(),
	}
	code := c.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// run dispatches a command line and returns the process exit code.
func (c *cli) run(ctx context.Context, argv []string) int {
	global, args, err := parseGlobalFlags(argv)
	if err != nil {
		return c.fail(NewInvalidArgumentError("flags", err.Error()))
	}
	c.flags = global
	if global.Help || len(args) == 0 {
		c.printUsage()
		return exitOK
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		err = c.runRun(ctx, rest)
	case "validate":
		err = c.runValidate(ctx, rest)
	case "roles":
		err = c.runRoles(ctx, rest)
	case "audit":
		err = c.runAudit(ctx, rest)
	case "serve-tools":
		err = c.runServeTools(ctx, rest)
	case "version":
		fmt.Fprintln(c.stdout, Version)
	case "help":
		c.printUsage()
	default:
		err = NewInvalidArgumentError(cmd, fmt.Sprintf("unknown command %q", cmd))
	}
	if err != nil {
		return c.fail(err)
	}
	return exitOK
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config" || arg == "--set" || arg == "--profile" || arg == "--env":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="), strings.HasPrefix(arg, "--set="),
			strings.HasPrefix(arg, "--profile="), strings.HasPrefix(arg, "--env="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func (c *cli) printUsage() {
	fmt.Fprint(c.stdout, `newsdesk runs crews of language-model roles and saves what they write.

Usage:
  newsdesk [global flags] <command> [args]

Global flags:
  --config <path>      YAML config file
  --profile <name>     Overlay config.<name>.yaml next to --config
  --set key=value      Override config (repeatable)
  --json               JSON output

Commands:
  run [--crew name|--crew-dir dir] [--input key=value]... [--no-save]
      [--output-dir dir] [--offline]
  validate [--crew name|--crew-dir dir] [--input key=value]...
  roles [--crew name|--crew-dir dir]
  audit --run <id> [--step id] [--kind step|decision] [--limit N]
  serve-tools
  version
  help

Environment:
  NEWSDESK_<SECTION>_<KEY>   config override (NEWSDESK_LLM_PROVIDER=gemini)
  SERPER_API_KEY             Serper search key; without it search uses DuckDuckGo
  GEMINI_API_KEY             Gemini key when llm.provider is gemini
  OPENAI_API_KEY             OpenAI key when llm.provider is openai
  DASHSCOPE_API_KEY          DashScope key when llm.provider is qwen
  ANTHROPIC_API_KEY          Anthropic key when llm.provider is anthropic
`)
}

func (c *cli) printJSON(value any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func (c *cli) newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
}

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

// parseInputs turns repeated key=value flags into a map.
func parseInputs(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, NewInvalidArgumentError("--input", fmt.Sprintf("%q is not key=value", v))
		}
		out[key] = value
	}
	return out, nil
}
