package rooms

import (
	"time"

	"codeduel/internal/game"
)

// Room is a registry entry: one match, one id, one creation time for the
// stale sweep.
type Room struct {
	ID        string
	Match     *game.Match
	CreatedAt time.Time
}
