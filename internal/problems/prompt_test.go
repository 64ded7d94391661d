package problems

import (
	"strings"
	"testing"

	"github.com/codeclash/server/internal/game"
)

func TestPromptCarriesSettings(t *testing.T) {
	p := Prompt(game.Settings{Difficulty: "hard", Language: "cpp", Category: "graphs"})
	for _, want := range []string{"hard", "cpp", "graphs"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt should mention %q", want)
		}
	}
}

func TestDecode(t *testing.T) {
	content := `{
		"title": "Sum Two Numbers",
		"description": "Read two integers, print their sum.",
		"constraints": ["1 <= a, b <= 1000"],
		"boilerplate": "def solve(data):",
		"execution_wrapper": "print(solve(input()))",
		"complete_solution": "def solve(data): return sum(map(int, data.split()))",
		"test_cases": [
			{"input": "1 2", "expected": "3", "hidden": false},
			{"input": "4 5", "expected": "9", "hidden": true}
		]
	}`
	p, err := Decode(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title != "Sum Two Numbers" {
		t.Fatalf("unexpected title %q", p.Title)
	}
	if len(p.TestCases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(p.TestCases))
	}
	if !p.TestCases[1].Hidden {
		t.Fatal("second case should be hidden")
	}
	if got := len(p.PublicTestCases()); got != 1 {
		t.Fatalf("expected 1 public case, got %d", got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("not json at all"); err == nil {
		t.Fatal("malformed json should error")
	}
	if _, err := Decode(`{"title": "", "test_cases": []}`); err == nil {
		t.Fatal("incomplete descriptor should error")
	}
}
