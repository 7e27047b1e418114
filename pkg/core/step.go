package core

import "slices"

// Step is one unit of pipeline work, assigned to a role, with declared data
// dependencies. Output is the only shared state key the step writes.
type Step struct {
	ID             string   `yaml:"-" json:"id"`
	Role           string   `yaml:"role" json:"role"`
	Goal           string   `yaml:"goal" json:"goal"`
	ExpectedOutput string   `yaml:"expected_output,omitempty" json:"expected_output,omitempty"`
	Inputs         []string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Output         string   `yaml:"output" json:"output"`
}

// Reads reports whether key is a declared input.
func (s Step) Reads(key string) bool {
	return slices.Contains(s.Inputs, key)
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	s.Inputs = append([]string(nil), s.Inputs...)
	return s
}
