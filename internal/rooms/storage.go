package rooms

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"codeduel/internal/game"
	"codeduel/internal/identity"
)

const sweepInterval = 5 * time.Minute

// Store is the process-wide registry of live rooms.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room

	cfg      game.Config
	ttl      time.Duration
	clock    clockwork.Clock
	relay    game.Relay
	onDelete func(roomID string)
}

// NewStore builds the registry. onDelete runs after a room is removed, so
// the caller can release per-room resources (the hub group); it may be nil.
func NewStore(cfg game.Config, ttl time.Duration, clock clockwork.Clock, relay game.Relay, onDelete func(roomID string)) *Store {
	s := &Store{
		rooms:    make(map[string]*Room),
		cfg:      cfg,
		ttl:      ttl,
		clock:    clock,
		relay:    relay,
		onDelete: onDelete,
	}
	go s.sweepStale()
	return s
}

// Create inserts a new room owned by owner. The id is retried until it does
// not collide with a live room.
func (s *Store) Create(owner identity.Identity, questionID string, timeLimit int) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range 10 {
		id, err := GenerateID()
		if err != nil {
			return nil, fmt.Errorf("generating room id: %w", err)
		}
		if _, exists := s.rooms[id]; exists {
			continue
		}

		match := game.NewMatch(id, owner, questionID, timeLimit, s.clock, s.cfg, s.relay)
		match.SetTeardown(func() {
			s.Delete(id)
			if s.onDelete != nil {
				s.onDelete(id)
			}
		})

		room := &Room{
			ID:        id,
			Match:     match,
			CreatedAt: s.clock.Now(),
		}
		s.rooms[id] = room
		log.Info().Str("room_id", id).Str("owner", owner.UID).Msg("room created")
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate unique room id after 10 attempts")
}

func (s *Store) Get(id string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[id]
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

func (s *Store) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	return list
}

// Members returns the display names in a room, or an empty slice if the
// room does not exist. Callers cannot tell the two apart on purpose.
func (s *Store) Members(id string) []string {
	s.mu.Lock()
	room := s.rooms[id]
	s.mu.Unlock()
	if room == nil {
		return []string{}
	}
	return room.Match.MemberNames()
}

// FindByMember returns every live room the identity belongs to.
func (s *Store) FindByMember(uid string) []*Room {
	s.mu.Lock()
	snapshot := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		snapshot = append(snapshot, r)
	}
	s.mu.Unlock()

	var out []*Room
	for _, r := range snapshot {
		if r.Match.HasMember(uid) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) sweepStale() {
	ticker := s.clock.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.Chan() {
		now := s.clock.Now()

		s.mu.Lock()
		var stale []*Room
		for _, room := range s.rooms {
			if now.Sub(room.CreatedAt) > s.ttl {
				stale = append(stale, room)
			}
		}
		s.mu.Unlock()

		// Abort outside the lock: teardown re-enters Delete.
		for _, room := range stale {
			log.Info().Str("room_id", room.ID).Msg("sweeping stale room")
			room.Match.Abort("room expired", "")
		}
	}
}
