// SPDX-License-Identifier: Apache-2.0
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jllopis/newsdesk/pkg/config"
	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/pipeline"
)

func newTestCLI() (*cli, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &cli{stdin: strings.NewReader(""), stdout: &stdout, stderr: &stderr}, &stdout, &stderr
}

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCfg  []string
		wantJSON bool
		wantRest []string
		wantErr  bool
	}{
		{name: "command only", args: []string{"run"}, wantRest: []string{"run"}},
		{
			name:     "config and json",
			args:     []string{"--config", "c.yaml", "--json", "validate", "--crew", "news"},
			wantCfg:  []string{"--config", "c.yaml"},
			wantJSON: true,
			wantRest: []string{"validate", "--crew", "news"},
		},
		{
			name:     "equals forms",
			args:     []string{"--set=llm.provider=mock", "--profile=dev", "roles"},
			wantCfg:  []string{"--set=llm.provider=mock", "--profile=dev"},
			wantRest: []string{"roles"},
		},
		{name: "double dash", args: []string{"--", "--json"}, wantRest: []string{"--json"}},
		{name: "missing value", args: []string{"--set"}, wantErr: true},
		{name: "unknown flag", args: []string{"--verbose", "run"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, rest, err := parseGlobalFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseGlobalFlags: %v", err)
			}
			if strings.Join(flags.ConfigArgs, " ") != strings.Join(tt.wantCfg, " ") {
				t.Fatalf("config args = %v, want %v", flags.ConfigArgs, tt.wantCfg)
			}
			if flags.JSON != tt.wantJSON {
				t.Fatalf("json = %v, want %v", flags.JSON, tt.wantJSON)
			}
			if strings.Join(rest, " ") != strings.Join(tt.wantRest, " ") {
				t.Fatalf("rest = %v, want %v", rest, tt.wantRest)
			}
		})
	}
}

func TestParseGlobalFlagsHelp(t *testing.T) {
	flags, rest, err := parseGlobalFlags([]string{"-h", "run"})
	if err != nil || !flags.Help || rest != nil {
		t.Fatalf("unexpected result: %+v %v %v", flags, rest, err)
	}
}

func TestParseInputs(t *testing.T) {
	got, err := parseInputs([]string{"topic=Space exploration", " native_state =Spain", "empty="})
	if err != nil {
		t.Fatalf("parseInputs: %v", err)
	}
	if got["topic"] != "Space exploration" || got["native_state"] != "Spain" {
		t.Fatalf("unexpected inputs: %v", got)
	}
	if v, ok := got["empty"]; !ok || v != "" {
		t.Fatalf("expected empty value to be kept, got %q %v", v, ok)
	}
	for _, bad := range []string{"topic", "=value"} {
		if _, err := parseInputs([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"missing input", errors.MissingInput("draft", "topic"), exitConfiguration},
		{"invalid argument", NewInvalidArgumentError("x", "bad"), exitConfiguration},
		{"role execution", errors.RoleExecution("draft", "writer", nil), exitRoleExecution},
		{"coordinator loop", errors.CoordinatorLoop("manager", 10), exitCoordinatorLoop},
		{"timeout", errors.New(errors.CodeTimeout, "slow", nil), exitFailure},
		{
			"interrupted step",
			errors.RoleExecution("draft", "writer", errors.New(errors.CodeContextLost, "operation canceled", context.Canceled)),
			exitInterrupted,
		},
		{"cancelled context", fmt.Errorf("run: %w", context.Canceled), exitInterrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintError(t *testing.T) {
	ce := asCLIError(errors.MissingInput("compile", "research"))
	if !strings.Contains(ce.Hint, "--input") {
		t.Fatalf("expected hint for missing input, got %q", ce.Hint)
	}

	var text bytes.Buffer
	ce.PrintError(&text, false)
	if !strings.HasPrefix(text.String(), "Error [MISSING_INPUT]: ") || !strings.Contains(text.String(), "Hint:") {
		t.Fatalf("unexpected text output %q", text.String())
	}

	var js bytes.Buffer
	ce.PrintError(&js, true)
	var payload struct {
		Error struct {
			Code string `json:"code"`
			Hint string `json:"hint"`
		} `json:"error"`
	}
	if err := json.Unmarshal(js.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Error.Code != "MISSING_INPUT" || payload.Error.Hint == "" {
		t.Fatalf("unexpected json output %s", js.String())
	}
}

func TestInterruptedHint(t *testing.T) {
	err := errors.RoleExecution("draft", "writer", errors.New(errors.CodeContextLost, "operation canceled", context.Canceled))
	ce := asCLIError(err)
	if ce.Hint != hintFor(errors.CodeContextLost) {
		t.Fatalf("expected interruption hint, got %q", ce.Hint)
	}
}

func TestRunVersionAndHelp(t *testing.T) {
	c, stdout, _ := newTestCLI()
	if code := c.run(context.Background(), []string{"version"}); code != exitOK {
		t.Fatalf("version exit = %d", code)
	}
	if strings.TrimSpace(stdout.String()) != Version {
		t.Fatalf("unexpected version output %q", stdout.String())
	}

	c, stdout, _ = newTestCLI()
	if code := c.run(context.Background(), nil); code != exitOK {
		t.Fatalf("help exit = %d", code)
	}
	if !strings.Contains(stdout.String(), "serve-tools") {
		t.Fatalf("usage does not list commands: %q", stdout.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	c, _, stderr := newTestCLI()
	if code := c.run(context.Background(), []string{"publish"}); code != exitConfiguration {
		t.Fatalf("exit = %d, want %d", code, exitConfiguration)
	}
	if !strings.Contains(stderr.String(), "Error [INVALID_INPUT]") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestValidateBuiltinNews(t *testing.T) {
	c, stdout, stderr := newTestCLI()
	code := c.run(context.Background(), []string{"--json", "validate", "--crew", "news"})
	if code != exitOK {
		t.Fatalf("exit = %d, stderr %s", code, stderr.String())
	}
	var result validateResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, stdout.String())
	}
	if !result.Valid || result.Coordinator != "news_manager" || len(result.Steps) != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := strings.Join(result.Steps[2].Requires, ","); !strings.Contains(got, "research") {
		t.Fatalf("compile step should require research, got %s", got)
	}
}

func TestValidateMissingInput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "crew.yaml", "name: broken\nsteps: [write]\n")
	writeFile(t, dir, "roles.yaml", "writer:\n  name: Writer\n  instruction: Write.\n")
	writeFile(t, dir, "steps.yaml", "write:\n  role: writer\n  goal: Write about {subject}.\n  output: text\n")

	c, _, stderr := newTestCLI()
	code := c.run(context.Background(), []string{"validate", "--crew-dir", dir})
	if code != exitConfiguration {
		t.Fatalf("exit = %d, want %d", code, exitConfiguration)
	}
	if !strings.Contains(stderr.String(), "MISSING_INPUT") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func writeCrewWithCapability(t *testing.T, capability string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "crew.yaml", "name: translate\nsteps: [translate]\ninputs:\n  - key: text\n    default: hola\n")
	writeFile(t, dir, "roles.yaml", "translator:\n  name: Translator\n  instruction: Translate.\n  capabilities: ["+capability+"]\n")
	writeFile(t, dir, "steps.yaml", "translate:\n  role: translator\n  goal: Translate {text}.\n  output: translation\n")
	return dir
}

func TestUnservedCapabilityIsConfigurationError(t *testing.T) {
	dir := writeCrewWithCapability(t, "translate")

	c, _, stderr := newTestCLI()
	if code := c.run(context.Background(), []string{"validate", "--crew-dir", dir}); code != exitConfiguration {
		t.Fatalf("validate exit = %d, want %d (%s)", code, exitConfiguration, stderr.String())
	}
	if !strings.Contains(stderr.String(), `capability "translate"`) {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}

	out := t.TempDir()
	c, _, stderr = newTestCLI()
	code := c.run(context.Background(), []string{
		"--set", "llm.provider=mock", "run", "--crew-dir", dir, "--output-dir", out,
	})
	if code != exitConfiguration {
		t.Fatalf("run exit = %d, want %d (%s)", code, exitConfiguration, stderr.String())
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Fatalf("no artifact should be written, got %d files", len(entries))
	}

	c, _, stderr = newTestCLI()
	if code := c.run(context.Background(), []string{"validate", "--crew-dir", writeCrewWithCapability(t, "search")}); code != exitOK {
		t.Fatalf("builtin capability should validate, exit = %d (%s)", code, stderr.String())
	}
}

func TestRunOfflineNewsCrew(t *testing.T) {
	c, stdout, stderr := newTestCLI()
	code := c.run(context.Background(), []string{"run", "--offline", "--crew", "news", "--no-save"})
	if code != exitOK {
		t.Fatalf("exit = %d, stderr %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "NEWS RESULT") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestRunOfflineSavesArtifact(t *testing.T) {
	out := t.TempDir()
	c, stdout, stderr := newTestCLI()
	code := c.run(context.Background(), []string{
		"run", "--offline", "--crew", "greeting", "--input", "name=Ada Lovelace", "--output-dir", out,
	})
	if code != exitOK {
		t.Fatalf("exit = %d, stderr %s", code, stderr.String())
	}
	path := filepath.Join(out, "greeting_ada_lovelace.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.HasPrefix(string(data), "[echo] Polish this greeting for Ada Lovelace.") {
		t.Fatalf("unexpected artifact %q", data)
	}
	if !strings.Contains(stdout.String(), path) {
		t.Fatalf("output does not mention saved file: %q", stdout.String())
	}
}

func TestRunJSONAndAudit(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "audit.db")
	c, stdout, stderr := newTestCLI()
	code := c.run(context.Background(), []string{
		"--json", "--set", "audit.path=" + dbPath,
		"run", "--offline", "--crew", "news", "--no-save",
	})
	if code != exitOK {
		t.Fatalf("exit = %d, stderr %s", code, stderr.String())
	}
	var result runResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, stdout.String())
	}
	if result.RunID == "" || result.Mode != "hierarchical" || result.SavedTo != "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Inputs["topic"] != "Technology" {
		t.Fatalf("expected default topic, got %q", result.Inputs["topic"])
	}
	if !strings.Contains(result.Artifact, "Technology") {
		t.Fatalf("artifact should mention the topic: %q", result.Artifact)
	}

	c, stdout, stderr = newTestCLI()
	code = c.run(context.Background(), []string{
		"--json", "--set", "audit.path=" + dbPath, "audit", "--run", result.RunID, "--kind", "step",
	})
	if code != exitOK {
		t.Fatalf("audit exit = %d, stderr %s", code, stderr.String())
	}
	var events []pipeline.AuditEvent
	if err := json.Unmarshal(stdout.Bytes(), &events); err != nil {
		t.Fatalf("unmarshal events: %v (%s)", err, stdout.String())
	}
	if len(events) == 0 {
		t.Fatalf("expected step events for run %s", result.RunID)
	}
	for _, ev := range events {
		if ev.RunID != result.RunID || ev.Kind != "step" {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestAuditRequiresStore(t *testing.T) {
	c, _, stderr := newTestCLI()
	if code := c.run(context.Background(), []string{"audit", "--run", "abc"}); code != exitConfiguration {
		t.Fatalf("exit = %d, want %d", code, exitConfiguration)
	}
	if !strings.Contains(stderr.String(), "audit.path") {
		t.Fatalf("expected hint about audit.path, got %q", stderr.String())
	}

	c, _, _ = newTestCLI()
	if code := c.run(context.Background(), []string{"audit"}); code != exitConfiguration {
		t.Fatalf("missing --run exit = %d", code)
	}
}

func TestRolesListing(t *testing.T) {
	c, stdout, stderr := newTestCLI()
	if code := c.run(context.Background(), []string{"roles", "--crew", "news"}); code != exitOK {
		t.Fatalf("exit = %d, stderr %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"headline_finder", "ground_level_reporter", "news_manager (coordinator)", "compile_news_report"} {
		if !strings.Contains(out, want) {
			t.Fatalf("roles output missing %q:\n%s", want, out)
		}
	}

	c, stdout, _ = newTestCLI()
	if code := c.run(context.Background(), []string{"--json", "roles", "--crew", "greeting"}); code != exitOK {
		t.Fatalf("json exit = %d", code)
	}
	var result rolesResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Crew != "greeting" || len(result.Roles) != 2 || len(result.Builtins) < 2 {
		t.Fatalf("unexpected roles result %+v", result)
	}
}

func TestCreateProvider(t *testing.T) {
	if _, err := createProvider(context.Background(), configLLM("mock", "")); err != nil {
		t.Fatalf("mock provider: %v", err)
	}
	if _, err := createProvider(context.Background(), configLLM("ollama", "")); err != nil {
		t.Fatalf("ollama provider: %v", err)
	}
	_, err := createProvider(context.Background(), configLLM("gemini", ""))
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
	for _, provider := range []string{"openai", "anthropic"} {
		if _, err := createProvider(context.Background(), configLLM(provider, "k")); err != nil {
			t.Fatalf("%s provider: %v", provider, err)
		}
	}
	if _, err := createProvider(context.Background(), configLLM("qwen", "")); err == nil {
		t.Fatalf("expected qwen to require a key")
	}
	if _, err := createProvider(context.Background(), configLLM("claude", "")); exitCode(err) != exitConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func configLLM(provider, key string) config.LLMConfig {
	return config.LLMConfig{Provider: provider, APIKey: key}
}
