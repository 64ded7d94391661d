package game

import (
	"time"
)

type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseLoading  Phase = "loading"
	PhaseCoding   Phase = "coding"
	PhaseFinished Phase = "finished"
)

// Settings are chosen by the host at creation time and never change.
type Settings struct {
	Difficulty string `json:"difficulty"`
	Language   string `json:"language"`
	Category   string `json:"category"`
}

type Member struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	IsReady  bool      `json:"isReady"`
	JoinedAt time.Time `json:"joinedAt"`
}

type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Hidden   bool   `json:"hidden"`
}

type Problem struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Constraints      []string   `json:"constraints"`
	Boilerplate      string     `json:"boilerplate"`
	ExecutionWrapper string     `json:"execution_wrapper"`
	CompleteSolution string     `json:"complete_solution,omitempty"`
	TestCases        []TestCase `json:"test_cases"`
}

// PublicTestCases returns the cases a member may dry-run against.
func (p *Problem) PublicTestCases() []TestCase {
	out := make([]TestCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		if !tc.Hidden {
			out = append(out, tc)
		}
	}
	return out
}

type Submission struct {
	Username  string `json:"username"`
	Score     int    `json:"score"`
	PassedAll bool   `json:"passedAll"`
	TimeTaken int    `json:"timeTaken"` // seconds since startTime
}

// CaseResult is the per-case outcome of a dry run, replied privately.
type CaseResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Error    string `json:"error"`
	Passed   bool   `json:"passed"`
}

type Standing struct {
	Username  string `json:"username"`
	Score     int    `json:"score"`
	PassedAll bool   `json:"passedAll"`
	TimeTaken int    `json:"timeTaken"`
}

// ChatMessage is pure fan-out, independent of the room phase.
type ChatMessage struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot is the room view sent to clients on create and join.
// StartTime is unix milliseconds, zero until the room enters coding.
type Snapshot struct {
	Code      string   `json:"code"`
	HostID    string   `json:"host"`
	Members   []Member `json:"users"`
	Settings  Settings `json:"settings"`
	Phase     Phase    `json:"status"`
	Problem   *Problem `json:"problem,omitempty"`
	StartTime int64    `json:"startTime,omitempty"`
}
