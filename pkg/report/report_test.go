package report

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"news_report", "Technology", "news_report_technology.txt"},
		{"news_report", "Artificial Intelligence", "news_report_artificial_intelligence.txt"},
		{"news_report", "AI/ML", "news_report_ai_ml.txt"},
		{"news_report", `a\b`, "news_report_a_b.txt"},
		{"news_report", "  Climate Change ", "news_report_climate_change.txt"},
		{"greeting", "", "greeting.txt"},
		{"", "Ada", "ada.txt"},
		{"", "", "artifact.txt"},
	}
	for _, tt := range tests {
		if got := FileName(tt.prefix, tt.name); got != tt.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := Save(dir, "news_report", "Space Exploration", "the report")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(dir, "news_report_space_exploration.txt") {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "the report" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}
}
