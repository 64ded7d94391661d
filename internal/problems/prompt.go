package problems

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codeclash/server/internal/game"
)

// Prompt builds the problem-setter instruction for a chat completion model.
// The model must answer with a single JSON object matching game.Problem.
func Prompt(settings game.Settings) string {
	return fmt.Sprintf(`You are an expert competitive programming problem setter.
Generate a unique coding problem based on these parameters:
- Difficulty: %s
- Language: %s
- Type: %s

IMPORTANT:
1. The "boilerplate" MUST be a LeetCode-style function signature for %s (e.g., 'function solve(input) { ... }' or 'def solve(data):').
2. The "execution_wrapper" MUST be a hidden piece of code that reads from Standard Input (stdin), calls the user's 'solve' function with the parsed input, and prints the return value EXACTLY to Standard Output (stdout).
3. The "complete_solution" MUST be a correct implementation of the solve function.

Return EXACTLY a JSON object:
{
  "title": "String",
  "description": "Markdown string (Problem, Input, Output, Examples)",
  "constraints": ["String"],
  "boilerplate": "The function signature only",
  "execution_wrapper": "Full code that wraps the user function to handle I/O",
  "complete_solution": "The correct solve function code",
  "test_cases": [
    { "input": "String", "expected": "String", "hidden": false },
    { "input": "String", "expected": "String", "hidden": false },
    { "input": "String", "expected": "String", "hidden": true }
  ]
}`, settings.Difficulty, settings.Language, settings.Category, settings.Language)
}

// Decode parses a model reply into a problem and sanity-checks it.
func Decode(content string) (*game.Problem, error) {
	content = strings.TrimSpace(content)
	var p game.Problem
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("malformed problem json: %w", err)
	}
	if p.Title == "" || len(p.TestCases) == 0 {
		return nil, errors.New("incomplete problem descriptor")
	}
	return &p, nil
}
