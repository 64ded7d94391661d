package game

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Provider synthesizes a coding problem from the room settings.
type Provider interface {
	Generate(ctx context.Context, settings Settings) (*Problem, error)
}

// RunResult is what the sandboxed runner reports for one execution.
type RunResult struct {
	Stdout string
	Stderr string
}

// Runner executes untrusted source against a single stdin.
type Runner interface {
	Run(ctx context.Context, language, source, stdin string) (RunResult, error)
}

// Broadcaster delivers coordinator events either privately to one member or
// to every connected member of a room, in emission order.
type Broadcaster interface {
	ToMember(roomCode, memberID, event string, payload any)
	ToRoom(roomCode, event string, payload any)
}

// Coordinator processes member actions against room state. It is the only
// component that mutates rooms and the only source of broadcast decisions.
// Provider and Runner calls happen outside any room lock.
type Coordinator struct {
	rooms    *RoomManager
	provider Provider
	runner   Runner
	bus      Broadcaster

	providerTimeout time.Duration
	runnerTimeout   time.Duration

	exportFile string // empty disables result export
}

func NewCoordinator(rooms *RoomManager, provider Provider, runner Runner, bus Broadcaster) *Coordinator {
	return &Coordinator{
		rooms:           rooms,
		provider:        provider,
		runner:          runner,
		bus:             bus,
		providerTimeout: 30 * time.Second,
		runnerTimeout:   15 * time.Second,
	}
}

func (c *Coordinator) SetTimeouts(provider, runner time.Duration) {
	if provider > 0 {
		c.providerTimeout = provider
	}
	if runner > 0 {
		c.runnerTimeout = runner
	}
}

func (c *Coordinator) SetExportFile(path string) { c.exportFile = path }

// CreateRoom opens a fresh room with the creator as host and sole member.
func (c *Coordinator) CreateRoom(memberID, username string, settings Settings) (Snapshot, error) {
	room, err := c.rooms.CreateRoom(settings)
	if err != nil {
		return Snapshot{}, err
	}
	if err := room.AddMember(Member{ID: memberID, Username: username, JoinedAt: time.Now().UTC()}); err != nil {
		c.rooms.Remove(room.Code)
		return Snapshot{}, err
	}
	log.Info().Str("code", room.Code).Str("memberId", memberID).Msg("room created")
	return room.Snapshot(), nil
}

// JoinRoom appends the member and tells the rest of the room. The caller
// registers the joining connection for broadcasts after this returns, so
// the user_joined event reaches only the members already present.
func (c *Coordinator) JoinRoom(roomCode, memberID, username string) (Snapshot, error) {
	room, err := c.rooms.Get(roomCode)
	if err != nil {
		return Snapshot{}, err
	}
	m := Member{ID: memberID, Username: username, JoinedAt: time.Now().UTC()}
	if err := room.AddMember(m); err != nil {
		return Snapshot{}, err
	}
	log.Info().Str("code", roomCode).Str("memberId", memberID).Msg("member joined")
	c.bus.ToRoom(roomCode, "user_joined", map[string]any{"id": m.ID, "username": m.Username})
	return room.Snapshot(), nil
}

// StartCompetition begins loading and asks the provider for a problem in
// the background. Non-host or out-of-lobby starts are silent no-ops.
func (c *Coordinator) StartCompetition(roomCode, memberID string) {
	room, err := c.rooms.Get(roomCode)
	if err != nil {
		c.bus.ToMember(roomCode, memberID, "error", errPayload("room_not_found", "Room not found"))
		return
	}
	if err := room.BeginLoading(memberID); err != nil {
		log.Debug().Str("code", roomCode).Err(err).Msg("start ignored")
		return
	}
	c.bus.ToRoom(roomCode, "competition_loading", map[string]any{})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.providerTimeout)
		defer cancel()
		problem, err := c.provider.Generate(ctx, room.Settings)
		if err != nil {
			log.Error().Str("code", roomCode).Err(err).Msg("problem generation failed")
			room.AbortLoading()
			c.bus.ToRoom(roomCode, "error", errPayload("generation_failed", "Failed to generate problem"))
			return
		}
		start, err := room.FinishLoading(problem)
		if err != nil {
			// Room left loading some other way; nothing to announce.
			return
		}
		log.Info().Str("code", roomCode).Str("title", problem.Title).Msg("coding started")
		c.bus.ToRoom(roomCode, "start_coding", map[string]any{
			"problem":   problem,
			"startTime": start.UnixMilli(),
		})
	}()
}

// RunTests dry-runs the member's code against the public cases and replies
// privately. It never touches the submission ledger.
func (c *Coordinator) RunTests(ctx context.Context, roomCode, memberID, source, language string) {
	room, err := c.rooms.Get(roomCode)
	if err != nil {
		c.bus.ToMember(roomCode, memberID, "error", errPayload("room_not_found", "Room not found"))
		return
	}
	problem, err := room.ProblemForRun(memberID)
	if err != nil {
		log.Debug().Str("code", roomCode).Err(err).Msg("run_tests ignored")
		return
	}
	results, err := c.runCases(ctx, problem.PublicTestCases(), wrapSource(source, problem), language)
	if err != nil {
		log.Error().Str("code", roomCode).Err(err).Msg("test execution failed")
		c.bus.ToMember(roomCode, memberID, "error", errPayload("execution_failed", "Test execution failed"))
		return
	}
	c.bus.ToMember(roomCode, memberID, "test_results", map[string]any{"results": results})
}

// SubmitCode grades the member's one-shot submission against every case,
// records it, and closes the room when the last member lands.
func (c *Coordinator) SubmitCode(ctx context.Context, roomCode, memberID, source, language string) {
	room, err := c.rooms.Get(roomCode)
	if err != nil {
		c.bus.ToMember(roomCode, memberID, "error", errPayload("room_not_found", "Room not found"))
		return
	}
	problem, err := room.ReserveSubmission(memberID)
	if err != nil {
		log.Debug().Str("code", roomCode).Str("memberId", memberID).Err(err).Msg("submit ignored")
		return
	}
	results, err := c.runCases(ctx, problem.TestCases, wrapSource(source, problem), language)
	if err != nil {
		room.ReleaseSubmission(memberID)
		log.Error().Str("code", roomCode).Err(err).Msg("submission run failed")
		c.bus.ToMember(roomCode, memberID, "error", errPayload("execution_failed", "Submission failed"))
		return
	}
	passed := 0
	for _, res := range results {
		if res.Passed {
			passed++
		}
	}
	sub, standings, err := room.CommitSubmission(memberID, passed, len(problem.TestCases))
	if err != nil {
		if !errors.Is(err, ErrAlreadySubmitted) {
			log.Debug().Str("code", roomCode).Err(err).Msg("submit commit dropped")
		}
		return
	}
	log.Info().Str("code", roomCode).Str("memberId", memberID).Int("score", sub.Score).Msg("submission recorded")
	c.bus.ToMember(roomCode, memberID, "submission_confirmed", map[string]any{
		"score":     sub.Score,
		"passedAll": sub.PassedAll,
	})
	if standings != nil {
		c.finishRoom(roomCode, standings)
	}
}

// SendMessage is phase-independent chat fan-out.
func (c *Coordinator) SendMessage(roomCode, username, message string) {
	room, err := c.rooms.Get(roomCode)
	if err != nil {
		return
	}
	room.Touch()
	c.bus.ToRoom(roomCode, "new_message", ChatMessage{
		Username:  username,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Disconnect handles a member's connection going away. Rooms emptied before
// coding are destroyed at once; a departure can also complete the
// submission set and finish the room.
func (c *Coordinator) Disconnect(roomCode, memberID string) {
	room, err := c.rooms.Get(roomCode)
	if err != nil {
		return
	}
	empty, standings := room.RemoveMember(memberID)
	log.Info().Str("code", roomCode).Str("memberId", memberID).Msg("member left")
	if empty {
		c.rooms.Remove(roomCode)
		return
	}
	if standings != nil {
		c.finishRoom(roomCode, standings)
	}
}

func (c *Coordinator) finishRoom(roomCode string, standings []Standing) {
	log.Info().Str("code", roomCode).Int("entries", len(standings)).Msg("competition finished")
	c.bus.ToRoom(roomCode, "competition_finished", map[string]any{"standings": standings})
	if c.exportFile != "" {
		if err := ExportStandings(roomCode, standings, c.exportFile); err != nil {
			log.Error().Str("code", roomCode).Err(err).Msg("failed to export results")
		}
	}
}

// runCases executes the wrapped source against each case in order. A
// transport-level runner failure aborts the whole run; a nonzero stderr is
// recorded on the case and simply fails it.
func (c *Coordinator) runCases(ctx context.Context, cases []TestCase, source, language string) ([]CaseResult, error) {
	results := make([]CaseResult, 0, len(cases))
	for _, tc := range cases {
		runCtx, cancel := context.WithTimeout(ctx, c.runnerTimeout)
		run, err := c.runner.Run(runCtx, language, source, tc.Input)
		cancel()
		if err != nil {
			return nil, err
		}
		actual := strings.TrimSpace(run.Stdout)
		expected := strings.TrimSpace(tc.Expected)
		results = append(results, CaseResult{
			Input:    tc.Input,
			Expected: tc.Expected,
			Actual:   actual,
			Error:    run.Stderr,
			Passed:   actual == expected,
		})
	}
	return results, nil
}

// wrapSource appends the hidden stdin/stdout wrapper to the user's code.
func wrapSource(source string, p *Problem) string {
	if p.ExecutionWrapper == "" {
		return source
	}
	return source + "\n\n" + p.ExecutionWrapper
}

func errPayload(code, message string) map[string]any {
	return map[string]any{"code": code, "message": message}
}
