package game

import (
	"errors"
	"math"
	"sync"
	"time"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotHost          = errors.New("not host")
	ErrInvalidPhase     = errors.New("invalid phase for action")
	ErrRoomFull         = errors.New("room is full")
	ErrNoProblem        = errors.New("no problem loaded")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrUnknownMember    = errors.New("member not in room")
)

// Room is one competition instance. All mutation goes through methods that
// take mu; slow external calls (problem generation, code execution) must
// never happen while mu is held.
type Room struct {
	Code      string
	HostID    string
	CreatedAt time.Time
	Settings  Settings

	members     []Member
	phase       Phase
	problem     *Problem
	startTime   time.Time
	submissions map[string]Submission
	pending     map[string]bool // member ids with a submit in flight
	lastActive  time.Time

	maxMembers int

	mu sync.Mutex
}

func newRoom(code string, settings Settings, maxMembers int) *Room {
	r := &Room{
		Code:        code,
		CreatedAt:   time.Now().UTC(),
		Settings:    settings,
		phase:       PhaseLobby,
		submissions: make(map[string]Submission),
		pending:     make(map[string]bool),
		lastActive:  time.Now().UTC(),
		maxMembers:  maxMembers,
	}
	return r
}

// AddMember appends a member in join order. The first member becomes host.
func (r *Room) AddMember(m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseLobby {
		return ErrInvalidPhase
	}
	if len(r.members) >= r.maxMembers {
		return ErrRoomFull
	}
	if r.HostID == "" {
		r.HostID = m.ID
	}
	r.members = append(r.members, m)
	r.lastActive = time.Now().UTC()
	return nil
}

// RemoveMember drops a member on explicit disconnect. A member with a
// submission recorded or in flight is kept so their result still counts.
// Returns whether the room is now empty and whether the departure completed
// the submission set (standings are non-nil in that case).
func (r *Room) RemoveMember(memberID string) (empty bool, standings []Standing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[memberID] {
		return false, nil
	}
	if _, ok := r.submissions[memberID]; ok && r.phase != PhaseLobby {
		return false, nil
	}
	idx := -1
	for i, m := range r.members {
		if m.ID == memberID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return len(r.members) == 0, nil
	}
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	r.lastActive = time.Now().UTC()
	if len(r.members) == 0 {
		return true, nil
	}
	if r.phase == PhaseCoding && len(r.submissions) == len(r.members) {
		r.finish()
		return false, r.standingsLocked()
	}
	return false, nil
}

// BeginLoading moves lobby -> loading. Only the host may start, and only
// from the lobby; anything else is a silent no-op for the caller to drop.
func (r *Room) BeginLoading(memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if memberID != r.HostID {
		return ErrNotHost
	}
	if r.phase != PhaseLobby {
		return ErrInvalidPhase
	}
	r.phase = PhaseLoading
	r.lastActive = time.Now().UTC()
	return nil
}

// FinishLoading commits the generated problem and opens the coding phase.
func (r *Room) FinishLoading(p *Problem) (startTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseLoading {
		return time.Time{}, ErrInvalidPhase
	}
	r.problem = p
	r.startTime = time.Now().UTC()
	r.submissions = make(map[string]Submission)
	r.pending = make(map[string]bool)
	r.phase = PhaseCoding
	r.lastActive = time.Now().UTC()
	return r.startTime, nil
}

// AbortLoading reverts to the lobby after a provider failure so the host
// can retry without recreating the room. This is the single permitted
// backwards transition.
func (r *Room) AbortLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseLoading {
		r.phase = PhaseLobby
		r.lastActive = time.Now().UTC()
	}
}

// ProblemForRun hands out the immutable problem for a dry run, valid only
// while coding is open. Dry runs never touch submissions.
func (r *Room) ProblemForRun(memberID string) (*Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseCoding {
		return nil, ErrInvalidPhase
	}
	if r.problem == nil {
		return nil, ErrNoProblem
	}
	if !r.hasMember(memberID) {
		return nil, ErrUnknownMember
	}
	return r.problem, nil
}

// ReserveSubmission claims the member's one-shot submission slot before the
// slow grading run. A second submit attempt, concurrent or later, fails the
// reservation and is dropped as a no-op.
func (r *Room) ReserveSubmission(memberID string) (*Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseCoding {
		return nil, ErrInvalidPhase
	}
	if r.problem == nil {
		return nil, ErrNoProblem
	}
	if !r.hasMember(memberID) {
		return nil, ErrUnknownMember
	}
	if r.pending[memberID] {
		return nil, ErrAlreadySubmitted
	}
	if _, ok := r.submissions[memberID]; ok {
		return nil, ErrAlreadySubmitted
	}
	r.pending[memberID] = true
	return r.problem, nil
}

// ReleaseSubmission returns the slot after a failed grading run so the
// member may try again.
func (r *Room) ReleaseSubmission(memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, memberID)
}

// CommitSubmission records the graded result and, atomically with the
// write, checks whether every member has now submitted. Exactly one commit
// can observe completion, so the finished transition fires once.
func (r *Room) CommitSubmission(memberID string, passedCount, totalCases int) (sub Submission, standings []Standing, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, memberID)
	if r.phase != PhaseCoding {
		return Submission{}, nil, ErrInvalidPhase
	}
	if _, ok := r.submissions[memberID]; ok {
		return Submission{}, nil, ErrAlreadySubmitted
	}
	username := ""
	for _, m := range r.members {
		if m.ID == memberID {
			username = m.Username
		}
	}
	if username == "" {
		return Submission{}, nil, ErrUnknownMember
	}
	score := 0
	if totalCases > 0 {
		score = int(math.Round(float64(passedCount) / float64(totalCases) * 100))
	}
	sub = Submission{
		Username:  username,
		Score:     score,
		PassedAll: passedCount == totalCases,
		TimeTaken: int(time.Since(r.startTime).Seconds()),
	}
	r.submissions[memberID] = sub
	r.lastActive = time.Now().UTC()
	if len(r.submissions) == len(r.members) {
		r.finish()
		return sub, r.standingsLocked(), nil
	}
	return sub, nil, nil
}

func (r *Room) finish() {
	r.phase = PhaseFinished
	r.lastActive = time.Now().UTC()
}

func (r *Room) standingsLocked() []Standing {
	return Standings(r.submissions)
}

func (r *Room) hasMember(memberID string) bool {
	for _, m := range r.members {
		if m.ID == memberID {
			return true
		}
	}
	return false
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) Members() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := make([]Member, len(r.members))
	copy(members, r.members)
	snap := Snapshot{
		Code:     r.Code,
		HostID:   r.HostID,
		Members:  members,
		Settings: r.Settings,
		Phase:    r.phase,
		Problem:  r.problem,
	}
	if !r.startTime.IsZero() {
		snap.StartTime = r.startTime.UnixMilli()
	}
	return snap
}

// Touch marks the room active, deferring the reaper.
func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now().UTC()
}

// reapable reports whether the janitor may collect the room: empty rooms
// always, finished rooms once idle for ttl. Chat counts as activity.
func (r *Room) reapable(ttl time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) == 0 {
		return true
	}
	if r.phase == PhaseFinished && now.Sub(r.lastActive) > ttl {
		return true
	}
	return false
}
