package game

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"codeduel/internal/events"
	"codeduel/internal/identity"
)

type Status string

const (
	StatusWaiting  = Status("waiting")
	StatusActive   = Status("active")
	StatusFinished = Status("finished")
)

// ResubmitPolicy controls what a repeated submit_code from the same member does.
type ResubmitPolicy string

const (
	ResubmitOverwrite = ResubmitPolicy("overwrite")
	ResubmitReject    = ResubmitPolicy("reject")
	ResubmitFirst     = ResubmitPolicy("first")
)

type Config struct {
	TickInterval time.Duration
	Resubmit     ResubmitPolicy
}

func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		Resubmit:     ResubmitOverwrite,
	}
}

// Relay fans an event out to every connection joined to a room.
type Relay interface {
	Broadcast(roomID string, ev events.Event)
}

var (
	ErrRoomFull  = errors.New("room is full")
	ErrNotActive = errors.New("room is not active")
)

// Match is the per-room state machine: membership, countdown, submissions
// and the outcome decision. All transitions are guarded by one mutex; the
// first terminal transition (winner, draw, expiry, abort) wins teardown duty.
type Match struct {
	mu          sync.Mutex
	roomID      string
	owner       identity.Identity
	questionID  string
	timeLimit   int
	members     []identity.Identity
	status      Status
	submissions map[string]events.Submission
	currentTime int
	started     bool
	done        bool
	stop        chan struct{} // non-nil while the countdown goroutine runs

	clock    clockwork.Clock
	cfg      Config
	relay    Relay
	teardown func()
}

func NewMatch(roomID string, owner identity.Identity, questionID string, timeLimit int, clock clockwork.Clock, cfg Config, relay Relay) *Match {
	return &Match{
		roomID:      roomID,
		owner:       owner,
		questionID:  questionID,
		timeLimit:   timeLimit,
		members:     []identity.Identity{owner},
		status:      StatusWaiting,
		submissions: make(map[string]events.Submission),
		clock:       clock,
		cfg:         cfg,
		relay:       relay,
	}
}

// SetTeardown installs the hook that removes the room from the registry.
// It runs exactly once, after the terminal broadcast.
func (m *Match) SetTeardown(fn func()) {
	m.mu.Lock()
	m.teardown = fn
	m.mu.Unlock()
}

func (m *Match) RoomID() string { return m.roomID }

func (m *Match) Owner() identity.Identity { return m.owner }

func (m *Match) QuestionID() string { return m.questionID }

func (m *Match) TimeLimit() int { return m.timeLimit }

func (m *Match) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Match) TimeLeft() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *Match) Members() []identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]identity.Identity, len(m.members))
	copy(out, m.members)
	return out
}

func (m *Match) MemberNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.members))
	for i, mem := range m.members {
		names[i] = mem.Username
	}
	return names
}

func (m *Match) HasMember(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.UID == uid {
			return true
		}
	}
	return false
}

func (m *Match) Submissions() map[string]events.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submissionsLocked()
}

func (m *Match) submissionsLocked() map[string]events.Submission {
	out := make(map[string]events.Submission, len(m.submissions))
	for uid, s := range m.submissions {
		out[uid] = s
	}
	return out
}

// Join appends a member. The second member flips the room to active.
func (m *Match) Join(id identity.Identity) error {
	m.mu.Lock()
	if m.status == StatusFinished {
		m.mu.Unlock()
		return ErrNotActive
	}
	if len(m.members) >= 2 {
		m.mu.Unlock()
		return ErrRoomFull
	}
	m.members = append(m.members, id)
	total := len(m.members)
	if total == 2 {
		m.status = StatusActive
	}
	owner := m.owner.UID
	m.mu.Unlock()

	m.relay.Broadcast(m.roomID, events.PlayerJoined(id.UID, id.Username, total))
	if total == 2 {
		m.relay.Broadcast(m.roomID, events.RoomReady(owner))
		log.Info().Str("room_id", m.roomID).Str("uid", id.UID).Msg("room ready")
	} else {
		log.Info().Str("room_id", m.roomID).Str("uid", id.UID).Msg("player joined, waiting for opponent")
	}
	return nil
}

// Submit records a member's attempt and resolves the outcome. A submission
// against a non-active match is dropped; the caller acks regardless.
func (m *Match) Submit(uid, output string, passed bool) {
	m.mu.Lock()
	if m.status != StatusActive {
		m.mu.Unlock()
		return
	}

	if _, exists := m.submissions[uid]; exists && m.cfg.Resubmit != ResubmitOverwrite {
		m.mu.Unlock()
		log.Debug().Str("room_id", m.roomID).Str("uid", uid).
			Str("policy", string(m.cfg.Resubmit)).Msg("resubmission ignored")
		return
	}

	username := uid
	for _, mem := range m.members {
		if mem.UID == uid {
			username = mem.Username
		}
	}
	elapsed := 0
	if m.started {
		elapsed = m.timeLimit - m.currentTime
	}
	m.submissions[uid] = events.Submission{
		Username:  username,
		Passed:    passed,
		TimeTaken: elapsed,
		Output:    output,
	}

	passers := 0
	winner := ""
	for _, s := range m.submissions {
		if s.Passed {
			passers++
			winner = s.Username
		}
	}

	switch {
	case passers == 1:
		m.terminateLocked()
		m.mu.Unlock()
		m.relay.Broadcast(m.roomID, events.WinnerDeclared(winner))
		log.Info().Str("room_id", m.roomID).Str("winner", winner).Msg("winner decided")
		m.runTeardown()
	case len(m.submissions) == 2:
		subs := m.submissionsLocked()
		m.terminateLocked()
		m.mu.Unlock()
		m.relay.Broadcast(m.roomID, events.MatchEnd(subs))
		log.Info().Str("room_id", m.roomID).Msg("match drawn, both submitted")
		m.runTeardown()
	default:
		m.mu.Unlock()
		log.Debug().Str("room_id", m.roomID).Str("uid", uid).Msg("submission recorded")
	}
}

// Abort is the whole-room teardown on disconnect, leave or expiry sweep.
// It fires at most one room_ended broadcast.
func (m *Match) Abort(reason, disconnectedPlayer string) {
	if !m.terminate() {
		return
	}
	m.relay.Broadcast(m.roomID, events.RoomEnded(reason, disconnectedPlayer))
	log.Info().Str("room_id", m.roomID).Str("reason", reason).Msg("room ended")
	m.runTeardown()
}

// terminate is the compare-and-set out of the live states. The caller that
// wins it owns the terminal broadcast and the teardown.
func (m *Match) terminate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return false
	}
	m.terminateLocked()
	return true
}

func (m *Match) terminateLocked() {
	m.done = true
	m.status = StatusFinished
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *Match) runTeardown() {
	m.mu.Lock()
	fn := m.teardown
	m.teardown = nil
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}
