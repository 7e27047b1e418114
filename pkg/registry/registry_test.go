package registry

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
)

func TestRegisterAndResolve(t *testing.T) {
	reg := New()
	role := core.NewRole("finder", "Headline Finder", "Find {topic} headlines", "search")
	if err := reg.Register(role); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := reg.Resolve("finder")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Name() != "Headline Finder" || !got.Can("search") {
		t.Fatalf("unexpected role %+v", got)
	}
}

func TestRegisterDuplicateRole(t *testing.T) {
	reg := New()
	if err := reg.Register(core.NewRole("finder", "", "x")); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := reg.Register(core.NewRole("finder", "", "y"))
	if !stderrors.Is(err, errors.ErrDuplicateRole) {
		t.Fatalf("expected duplicate role error, got %v", err)
	}
}

func TestResolveUnknownRole(t *testing.T) {
	_, err := New().Resolve("ghost")
	if !stderrors.Is(err, errors.ErrUnknownRole) {
		t.Fatalf("expected unknown role error, got %v", err)
	}
}

func TestRegisterStep(t *testing.T) {
	reg := New()
	if err := reg.Register(core.NewRole("writer", "", "Write")); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name string
		step core.Step
		want error
	}{
		{"ok", core.Step{ID: "draft", Role: "writer", Goal: "Draft", Output: "draft"}, nil},
		{"duplicate", core.Step{ID: "draft", Role: "writer", Goal: "Draft", Output: "draft2"}, errors.ErrDuplicateStep},
		{"unknown role", core.Step{ID: "edit", Role: "editor", Goal: "Edit", Output: "edit"}, errors.ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.RegisterStep(tt.step)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !stderrors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if err := reg.RegisterStep(core.Step{ID: "nooutput", Role: "writer"}); errors.CodeOf(err) != errors.CodeInvalidInput {
		t.Fatalf("expected invalid input for missing output, got %v", err)
	}
	if _, err := reg.Step("missing"); !stderrors.Is(err, errors.ErrUnknownStep) {
		t.Fatalf("expected unknown step, got %v", err)
	}
}

func TestSealRejectsRegistration(t *testing.T) {
	reg := New()
	if err := reg.Register(core.NewRole("writer", "", "Write")); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Seal()
	if !reg.Sealed() {
		t.Fatalf("expected sealed registry")
	}
	if err := reg.Register(core.NewRole("editor", "", "Edit")); !stderrors.Is(err, errors.ErrRegistrySealed) {
		t.Fatalf("expected sealed error, got %v", err)
	}
	if err := reg.RegisterStep(core.Step{ID: "s", Role: "writer", Output: "o"}); !stderrors.Is(err, errors.ErrRegistrySealed) {
		t.Fatalf("expected sealed error for step, got %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Resolve("writer"); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	wg.Wait()
}

const rolesYAML = `
headline_finder:
  name: Headline Finder
  instruction: |
    You track breaking news about {topic}.
  capabilities: [search]
ground_level_reporter:
  instruction: Dig into the story.
  capabilities: [search, fetch]
`

const stepsYAML = `
find_headlines:
  role: headline_finder
  goal: Find headlines about {topic} in {native_state}.
  expected_output: A bullet list.
  inputs: [topic, native_state]
  output: headlines
research_headline:
  role: ground_level_reporter
  goal: Research the top story.
  inputs: [headlines]
  output: research
`

func TestLoadPreservesOrder(t *testing.T) {
	reg := New()
	if err := reg.Load([]byte(rolesYAML), []byte(stepsYAML)); err != nil {
		t.Fatalf("load: %v", err)
	}
	roles := reg.Roles()
	if len(roles) != 2 || roles[0].ID() != "headline_finder" || roles[1].ID() != "ground_level_reporter" {
		t.Fatalf("unexpected role order %+v", roles)
	}
	if roles[1].Name() != "ground_level_reporter" {
		t.Fatalf("expected name to default to id, got %q", roles[1].Name())
	}
	steps, err := reg.Steps()
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	if len(steps) != 2 || steps[0].ID != "find_headlines" || steps[1].Output != "research" {
		t.Fatalf("unexpected steps %+v", steps)
	}
	if steps[0].ExpectedOutput != "A bullet list." {
		t.Fatalf("unexpected expected output %q", steps[0].ExpectedOutput)
	}
	if !steps[0].Reads("native_state") {
		t.Fatalf("expected declared input native_state")
	}
}

func TestParseRolesRejectsBadShape(t *testing.T) {
	if _, err := ParseRoles([]byte("- just\n- a list\n")); err == nil {
		t.Fatalf("expected error for non-mapping document")
	}
	if _, err := ParseRoles([]byte("writer:\n  name: W\n")); errors.CodeOf(err) != errors.CodeInvalidInput {
		t.Fatalf("expected invalid input for missing instruction, got %v", err)
	}
}

func TestLoadFSAndFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"crew/roles.yaml": {Data: []byte(rolesYAML)},
		"crew/steps.yaml": {Data: []byte(stepsYAML)},
	}
	if err := New().LoadFS(fsys, "crew"); err != nil {
		t.Fatalf("load fs: %v", err)
	}

	dir := t.TempDir()
	rolesPath := filepath.Join(dir, RolesFile)
	stepsPath := filepath.Join(dir, StepsFile)
	if err := os.WriteFile(rolesPath, []byte(rolesYAML), 0o644); err != nil {
		t.Fatalf("write roles: %v", err)
	}
	if err := os.WriteFile(stepsPath, []byte(stepsYAML), 0o644); err != nil {
		t.Fatalf("write steps: %v", err)
	}
	if err := New().LoadFiles(rolesPath, stepsPath); err != nil {
		t.Fatalf("load files: %v", err)
	}
}
