package game

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func testProblem(publicCases, hiddenCases int) *Problem {
	p := &Problem{
		Title:            "Sum Two Numbers",
		Description:      "Read two integers, print their sum.",
		Boilerplate:      "def solve(data):",
		ExecutionWrapper: "print(solve(input()))",
	}
	for i := 0; i < publicCases; i++ {
		p.TestCases = append(p.TestCases, TestCase{Input: fmt.Sprintf("%d %d", i, i), Expected: fmt.Sprintf("%d", i+i)})
	}
	for i := 0; i < hiddenCases; i++ {
		p.TestCases = append(p.TestCases, TestCase{Input: "100 100", Expected: "200", Hidden: true})
	}
	return p
}

func codingRoom(t *testing.T, memberIDs ...string) *Room {
	t.Helper()
	r := newRoom("ABC123", Settings{Difficulty: "easy", Language: "python"}, 10)
	for i, id := range memberIDs {
		if err := r.AddMember(Member{ID: id, Username: fmt.Sprintf("user%d", i)}); err != nil {
			t.Fatalf("should be able to add member: %v", err)
		}
	}
	if err := r.BeginLoading(memberIDs[0]); err != nil {
		t.Fatalf("host should be able to start: %v", err)
	}
	if _, err := r.FinishLoading(testProblem(2, 1)); err != nil {
		t.Fatalf("should be able to finish loading: %v", err)
	}
	return r
}

func TestAddMemberHostAndOrder(t *testing.T) {
	r := newRoom("ABC123", Settings{}, 10)
	for i := 0; i < 3; i++ {
		err := r.AddMember(Member{ID: fmt.Sprintf("m%d", i), Username: fmt.Sprintf("user%d", i)})
		if err != nil {
			t.Fatalf("should be able to add member: %v", err)
		}
	}
	if r.HostID != "m0" {
		t.Fatalf("first member should be host, got %s", r.HostID)
	}
	members := r.Members()
	for i, m := range members {
		if m.ID != fmt.Sprintf("m%d", i) {
			t.Fatalf("members should keep join order, got %s at %d", m.ID, i)
		}
	}
}

func TestAddMemberCapacity(t *testing.T) {
	r := newRoom("ABC123", Settings{}, 2)
	if err := r.AddMember(Member{ID: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.AddMember(Member{ID: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.AddMember(Member{ID: "c"}); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
}

func TestAddMemberAfterLobby(t *testing.T) {
	r := codingRoom(t, "host", "m1")
	if err := r.AddMember(Member{ID: "late"}); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestBeginLoadingHostOnly(t *testing.T) {
	r := newRoom("ABC123", Settings{}, 10)
	r.AddMember(Member{ID: "host"})
	r.AddMember(Member{ID: "m1"})

	if err := r.BeginLoading("m1"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if r.Phase() != PhaseLobby {
		t.Fatalf("non-host start must not change phase, got %s", r.Phase())
	}
	if err := r.BeginLoading("host"); err != nil {
		t.Fatalf("host should be able to start: %v", err)
	}
	if r.Phase() != PhaseLoading {
		t.Fatalf("expected loading, got %s", r.Phase())
	}
	// second start while loading is rejected
	if err := r.BeginLoading("host"); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestAbortLoadingRevertsToLobby(t *testing.T) {
	r := newRoom("ABC123", Settings{}, 10)
	r.AddMember(Member{ID: "host"})
	r.BeginLoading("host")
	r.AbortLoading()
	if r.Phase() != PhaseLobby {
		t.Fatalf("expected lobby after abort, got %s", r.Phase())
	}
	// host can retry without recreating the room
	if err := r.BeginLoading("host"); err != nil {
		t.Fatalf("host should be able to retry start: %v", err)
	}
	if _, err := r.FinishLoading(testProblem(1, 0)); err != nil {
		t.Fatalf("retry should reach coding: %v", err)
	}
	if r.Phase() != PhaseCoding {
		t.Fatalf("expected coding, got %s", r.Phase())
	}
	// abort after coding began is a no-op
	r.AbortLoading()
	if r.Phase() != PhaseCoding {
		t.Fatalf("abort must not regress coding, got %s", r.Phase())
	}
}

func TestFinishLoadingSetsProblemAndClock(t *testing.T) {
	r := newRoom("ABC123", Settings{}, 10)
	r.AddMember(Member{ID: "host"})
	if _, err := r.FinishLoading(testProblem(1, 0)); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("finish outside loading should fail, got %v", err)
	}
	r.BeginLoading("host")
	start, err := r.FinishLoading(testProblem(2, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.IsZero() {
		t.Fatal("start time should be set")
	}
	snap := r.Snapshot()
	if snap.Problem == nil {
		t.Fatal("snapshot should carry the problem after loading")
	}
	if snap.StartTime == 0 {
		t.Fatal("snapshot should carry the start time")
	}
}

func TestSubmissionOneShot(t *testing.T) {
	r := codingRoom(t, "host", "m1")

	if _, err := r.ReserveSubmission("host"); err != nil {
		t.Fatalf("first reservation should succeed: %v", err)
	}
	// concurrent second attempt is refused while the first is in flight
	if _, err := r.ReserveSubmission("host"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	sub, standings, err := r.CommitSubmission("host", 3, 3)
	if err != nil {
		t.Fatalf("commit should succeed: %v", err)
	}
	if sub.Score != 100 || !sub.PassedAll {
		t.Fatalf("expected perfect submission, got %+v", sub)
	}
	if standings != nil {
		t.Fatal("room should not finish before every member submitted")
	}
	// recorded submissions are immutable
	if _, err := r.ReserveSubmission("host"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted after commit, got %v", err)
	}
}

func TestReleaseSubmissionAllowsRetry(t *testing.T) {
	r := codingRoom(t, "host", "m1")
	if _, err := r.ReserveSubmission("host"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.ReleaseSubmission("host")
	if _, err := r.ReserveSubmission("host"); err != nil {
		t.Fatalf("reservation should be retryable after release: %v", err)
	}
}

func TestSubmissionScoreRounding(t *testing.T) {
	r := codingRoom(t, "host", "m1")
	r.ReserveSubmission("host")
	sub, _, err := r.CommitSubmission("host", 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Score != 67 {
		t.Fatalf("2/3 should round to 67, got %d", sub.Score)
	}
	if sub.PassedAll {
		t.Fatal("partial pass must not count as passedAll")
	}
}

func TestLastCommitFinishesRoom(t *testing.T) {
	r := codingRoom(t, "host", "m1")
	r.ReserveSubmission("host")
	if _, standings, _ := r.CommitSubmission("host", 3, 3); standings != nil {
		t.Fatal("first of two submissions must not finish the room")
	}
	r.ReserveSubmission("m1")
	_, standings, err := r.CommitSubmission("m1", 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if standings == nil {
		t.Fatal("final submission should finish the room")
	}
	if r.Phase() != PhaseFinished {
		t.Fatalf("expected finished, got %s", r.Phase())
	}
	if len(standings) != 2 {
		t.Fatalf("expected 2 standings entries, got %d", len(standings))
	}
	if standings[0].Username != "user0" {
		t.Fatalf("higher score should rank first, got %s", standings[0].Username)
	}
	// gameplay after finished is refused
	if _, err := r.ReserveSubmission("m1"); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestConcurrentSubmissionsFinishExactlyOnce(t *testing.T) {
	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%d", i)
	}
	r := codingRoom(t, ids...)

	var wg sync.WaitGroup
	finishes := make(chan []Standing, n)
	for _, id := range ids {
		wg.Add(1)
		go func(memberID string) {
			defer wg.Done()
			if _, err := r.ReserveSubmission(memberID); err != nil {
				t.Errorf("reservation failed for %s: %v", memberID, err)
				return
			}
			_, standings, err := r.CommitSubmission(memberID, 1, 3)
			if err != nil {
				t.Errorf("commit failed for %s: %v", memberID, err)
				return
			}
			if standings != nil {
				finishes <- standings
			}
		}(id)
	}
	wg.Wait()
	close(finishes)

	count := 0
	for range finishes {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one finish transition, got %d", count)
	}
	if r.Phase() != PhaseFinished {
		t.Fatalf("expected finished, got %s", r.Phase())
	}
}

func TestProblemForRunNeverMutates(t *testing.T) {
	r := codingRoom(t, "host", "m1")
	for i := 0; i < 5; i++ {
		p, err := r.ProblemForRun("m1")
		if err != nil {
			t.Fatalf("dry run should be repeatable: %v", err)
		}
		if got := len(p.PublicTestCases()); got != 2 {
			t.Fatalf("expected 2 public cases, got %d", got)
		}
	}
	if len(r.submissions) != 0 {
		t.Fatal("dry runs must not touch submissions")
	}
	if r.Phase() != PhaseCoding {
		t.Fatalf("dry runs must not change phase, got %s", r.Phase())
	}
}

func TestProblemForRunRequiresMembership(t *testing.T) {
	r := codingRoom(t, "host")
	if _, err := r.ProblemForRun("stranger"); !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
}

func TestRemoveMemberCompletesRoom(t *testing.T) {
	r := codingRoom(t, "host", "m1")
	r.ReserveSubmission("host")
	r.CommitSubmission("host", 3, 3)

	// m1 leaves without submitting; host's submission now covers everyone
	empty, standings := r.RemoveMember("m1")
	if empty {
		t.Fatal("room still has the host")
	}
	if standings == nil {
		t.Fatal("departure should complete the submission set")
	}
	if len(standings) != 1 || standings[0].Username != "user0" {
		t.Fatalf("unexpected standings: %+v", standings)
	}
	if r.Phase() != PhaseFinished {
		t.Fatalf("expected finished, got %s", r.Phase())
	}
}

func TestRemoveMemberKeepsInflightSubmitter(t *testing.T) {
	r := codingRoom(t, "host", "m1")
	r.ReserveSubmission("m1")
	empty, standings := r.RemoveMember("m1")
	if empty || standings != nil {
		t.Fatal("member with a submit in flight must stay counted")
	}
	if len(r.Members()) != 2 {
		t.Fatalf("expected 2 members, got %d", len(r.Members()))
	}
	// the in-flight submission still lands and finishes the room
	r.ReserveSubmission("host")
	r.CommitSubmission("host", 3, 3)
	_, standings, err := r.CommitSubmission("m1", 1, 3)
	if err != nil {
		t.Fatalf("in-flight commit should land: %v", err)
	}
	if standings == nil {
		t.Fatal("last commit should finish the room")
	}
}

func TestRemoveLastMemberReportsEmpty(t *testing.T) {
	r := newRoom("ABC123", Settings{}, 10)
	r.AddMember(Member{ID: "host"})
	empty, _ := r.RemoveMember("host")
	if !empty {
		t.Fatal("removing the only member should report empty")
	}
}
