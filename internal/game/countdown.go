package game

import (
	"github.com/rs/zerolog/log"

	"codeduel/internal/events"
)

// Start begins the countdown. Only the owner may start, only an active
// match starts, and a duplicate start is a no-op.
func (m *Match) Start(requesterUID string) {
	m.mu.Lock()
	if m.status != StatusActive || requesterUID != m.owner.UID || m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.currentTime = m.timeLimit
	m.started = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	go m.run(stop)
	m.relay.Broadcast(m.roomID, events.StartGame(m.questionID))
	log.Info().Str("room_id", m.roomID).Int("time_limit", m.timeLimit).Msg("game started")
}

func (m *Match) run(stop <-chan struct{}) {
	ticker := m.clock.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if m.tick() {
				return
			}
		}
	}
}

// tick decrements and broadcasts the countdown. It reports true when the
// countdown must stop: either the match finished concurrently or the clock
// ran out, in which case whoever wins the terminal CAS broadcasts match_end.
func (m *Match) tick() bool {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return true
	}
	m.currentTime--
	left := m.currentTime
	// Broadcast under the lock so no tick can slip out after a terminal
	// transition has fired its own broadcast.
	m.relay.Broadcast(m.roomID, events.Tick(left))
	m.mu.Unlock()
	if left >= 0 {
		return false
	}

	if m.terminate() {
		m.relay.Broadcast(m.roomID, events.MatchEnd(m.Submissions()))
		log.Info().Str("room_id", m.roomID).Msg("match ended, time expired")
		m.runTeardown()
	}
	return true
}
