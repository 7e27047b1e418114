// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/llm"
	"github.com/jllopis/newsdesk/pkg/pipeline"
	"github.com/jllopis/newsdesk/pkg/telemetry"
)

// maxStateChars caps how much of each state value the coordinator sees.
const maxStateChars = 2000

// Coordinator asks a language model which step of a hierarchical run comes next.
type Coordinator struct {
	role        core.Role
	provider    llm.Provider
	model       string
	temperature float64
	logger      *slog.Logger
	tracer      trace.Tracer
}

type decisionReply struct {
	Action   string `json:"action"`
	Step     string `json:"step"`
	Artifact string `json:"artifact"`
	Reason   string `json:"reason"`
}

// Decide implements pipeline.Coordinator.
func (c *Coordinator) Decide(ctx context.Context, view pipeline.CoordinatorView) (pipeline.Decision, error) {
	ctx, span := c.tracer.Start(ctx, "Agent.LLM.Chat")
	defer span.End()

	resp, err := c.provider.Chat(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: llm.CoordinatorMarker + "\n\n" + view.Instruction},
			{Role: llm.RoleUser, Content: coordinatorPrompt(view)},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return pipeline.Decision{}, WrapLLMError(err, c.model)
	}
	span.SetAttributes(telemetry.LLMAttributes(c.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, 0)...)

	decision, err := ParseDecision(resp.Content)
	if err != nil {
		c.logger.WarnContext(ctx, "agent.coordinator.bad_reply",
			slog.String("run_id", view.RunID),
			slog.String("role_id", c.role.ID()),
			slog.Int("round", view.Round),
			slog.String("error", err.Error()),
		)
		return pipeline.Decision{}, err
	}
	return decision, nil
}

// ParseDecision extracts the first JSON object in reply and maps it to a
// decision. "invoke" needs a step id; "finish" may omit the artifact.
func ParseDecision(reply string) (pipeline.Decision, error) {
	var parsed *decisionReply
	for i := strings.IndexByte(reply, '{'); i >= 0; {
		var d decisionReply
		if err := json.NewDecoder(strings.NewReader(reply[i:])).Decode(&d); err == nil {
			parsed = &d
			break
		}
		next := strings.IndexByte(reply[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	if parsed == nil {
		return pipeline.Decision{}, NewDecisionError("coordinator reply has no JSON decision", reply)
	}

	switch strings.ToLower(strings.TrimSpace(parsed.Action)) {
	case "invoke", "delegate", "run":
		step := strings.TrimSpace(parsed.Step)
		if step == "" {
			return pipeline.Decision{}, NewDecisionError("invoke decision names no step", reply)
		}
		return pipeline.Decision{Step: step, Reason: parsed.Reason}, nil
	case "finish", "done":
		return pipeline.Decision{Finish: true, Artifact: parsed.Artifact, Reason: parsed.Reason}, nil
	default:
		return pipeline.Decision{}, NewDecisionError(fmt.Sprintf("unknown coordinator action %q", parsed.Action), reply)
	}
}

func coordinatorPrompt(view pipeline.CoordinatorView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d of %d.\n\nSteps:\n", view.Round, view.MaxRounds)
	var ready []string
	for _, s := range view.Steps {
		status := "waiting for inputs"
		switch {
		case s.Completed:
			status = "completed"
		case s.Ready:
			status = "ready"
			ready = append(ready, s.ID)
		}
		fmt.Fprintf(&b, "- %s (role: %s, writes %q, %s): %s\n", s.ID, s.Role, s.Output, status, oneLine(s.Goal))
	}
	if len(ready) == 0 {
		ready = append(ready, "none")
	}
	fmt.Fprintf(&b, "%s %s\n", llm.ReadyStepsLabel, strings.Join(ready, ", "))

	b.WriteString("\nCurrent results:\n")
	for _, s := range view.Steps {
		value, ok := view.State[s.Output]
		if !ok {
			continue
		}
		if len(value) > maxStateChars {
			value = clip(value, maxStateChars) + "\n[truncated]"
		}
		fmt.Fprintf(&b, "### %s\n%s\n", s.Output, value)
	}

	b.WriteString("\nReply with exactly one JSON object and nothing else. To run a step: " +
		`{"action":"invoke","step":"<step id>","reason":"<why>"}` +
		". When the work is done: " +
		`{"action":"finish","artifact":"<final text, or empty to use the last result>"}` + ".")
	return b.String()
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
