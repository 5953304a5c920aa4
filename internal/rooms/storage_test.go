package rooms

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"codeduel/internal/events"
	"codeduel/internal/game"
	"codeduel/internal/identity"
)

type nopRelay struct{}

func (nopRelay) Broadcast(roomID string, ev events.Event) {}

var (
	owner  = identity.Identity{UID: "u1", Username: "alice"}
	second = identity.Identity{UID: "u2", Username: "bob"}
)

func newTestStore(clock clockwork.Clock) *Store {
	cfg := game.Config{TickInterval: time.Second, Resubmit: game.ResubmitOverwrite}
	return NewStore(cfg, time.Hour, clock, nopRelay{}, nil)
}

func TestStore_Create(t *testing.T) {
	s := newTestStore(clockwork.NewRealClock())

	room, err := s.Create(owner, "q42", 300)
	if err != nil {
		t.Fatal(err)
	}
	if room.ID == "" {
		t.Error("room id should not be empty")
	}
	if room.Match == nil {
		t.Fatal("room Match should not be nil")
	}
	if room.Match.Owner().UID != "u1" {
		t.Errorf("owner = %q, want %q", room.Match.Owner().UID, "u1")
	}
	if room.Match.Status() != game.StatusWaiting {
		t.Errorf("status = %q, want waiting", room.Match.Status())
	}
	if got := len(room.Match.Members()); got != 1 {
		t.Errorf("members = %d, want 1 (the owner)", got)
	}
}

func TestStore_CreateUniqueIDs(t *testing.T) {
	s := newTestStore(clockwork.NewRealClock())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, err := s.Create(owner, "q42", 300)
		if err != nil {
			t.Fatal(err)
		}
		if seen[room.ID] {
			t.Fatalf("duplicate live room id %q", room.ID)
		}
		seen[room.ID] = true
	}
}

func TestStore_GetDelete(t *testing.T) {
	s := newTestStore(clockwork.NewRealClock())
	room, _ := s.Create(owner, "q42", 300)

	if s.Get(room.ID) == nil {
		t.Fatal("Get() returned nil for existing room")
	}
	if s.Get("zzzzzz") != nil {
		t.Error("Get() should return nil for nonexistent room")
	}

	s.Delete(room.ID)
	if s.Get(room.ID) != nil {
		t.Error("room should be deleted")
	}
}

func TestStore_Members(t *testing.T) {
	s := newTestStore(clockwork.NewRealClock())
	room, _ := s.Create(owner, "q42", 300)
	if err := room.Match.Join(second); err != nil {
		t.Fatal(err)
	}

	got := s.Members(room.ID)
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("Members() = %v, want [alice bob]", got)
	}

	if got := s.Members("zzzzzz"); len(got) != 0 {
		t.Errorf("Members() for absent room = %v, want empty", got)
	}
}

func TestStore_FindByMember(t *testing.T) {
	s := newTestStore(clockwork.NewRealClock())
	room, _ := s.Create(owner, "q42", 300)
	s.Create(identity.Identity{UID: "u9", Username: "eve"}, "q1", 60)

	found := s.FindByMember("u1")
	if len(found) != 1 || found[0].ID != room.ID {
		t.Errorf("FindByMember(u1) = %v, want [%s]", found, room.ID)
	}
	if found := s.FindByMember("nobody"); len(found) != 0 {
		t.Errorf("FindByMember(nobody) = %v, want none", found)
	}
}

func TestStore_TeardownRemovesRoom(t *testing.T) {
	deleted := make(chan string, 1)
	cfg := game.Config{TickInterval: time.Second, Resubmit: game.ResubmitOverwrite}
	s := NewStore(cfg, time.Hour, clockwork.NewRealClock(), nopRelay{}, func(id string) {
		deleted <- id
	})

	room, _ := s.Create(owner, "q42", 300)
	if err := room.Match.Join(second); err != nil {
		t.Fatal(err)
	}

	// A unique passer finishes the match; the teardown hook must remove the
	// room and notify onDelete.
	room.Match.Submit("u2", "42", true)

	select {
	case id := <-deleted:
		if id != room.ID {
			t.Errorf("onDelete id = %q, want %q", id, room.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onDelete was not called")
	}
	if s.Get(room.ID) != nil {
		t.Error("room should be removed from the registry after the match ends")
	}
}

func TestStore_SweepAbortsStaleRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := game.Config{TickInterval: time.Second, Resubmit: game.ResubmitOverwrite}
	s := NewStore(cfg, time.Minute, clock, nopRelay{}, nil)

	room, _ := s.Create(owner, "q42", 300)

	clock.BlockUntil(1) // sweep ticker registered
	clock.Advance(10 * time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for s.Get(room.ID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("stale room was not swept")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if room.Match.Status() != game.StatusFinished {
		t.Errorf("status = %q, want finished", room.Match.Status())
	}
}

func TestStore_ConcurrentCreates(t *testing.T) {
	s := newTestStore(clockwork.NewRealClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Create(owner, "q42", 300)
		}()
	}
	wg.Wait()

	if got := len(s.List()); got != 50 {
		t.Errorf("concurrent creates: got %d rooms, want 50", got)
	}
}
