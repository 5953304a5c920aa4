// Package events defines the server-to-client wire events and their payloads.
package events

// Wire event names. Client commands reuse the same names in the other
// direction where the catalog is bidirectional (start_game).
const (
	TypeAuthenticated  = "authenticated"
	TypeAck            = "ack"
	TypePlayerJoined   = "player_joined"
	TypeRoomReady      = "room_ready"
	TypeStartGame      = "start_game"
	TypeTick           = "tick"
	TypeWinner         = "winner"
	TypeMatchEnd       = "match_end"
	TypeReceiveMessage = "receive_message"
	TypeRoomEnded      = "room_ended"
)

// Submission is a recorded attempt by a member.
type Submission struct {
	Username  string `json:"username"`
	Passed    bool   `json:"passed"`
	TimeTaken int    `json:"timeTaken"`
	Output    string `json:"output"`
}

// Event is a flat server-to-client message. Acks echo the client's seq.
// Success and TimeLeft are pointers so that false and 0 survive omitempty.
type Event struct {
	Type               string                `json:"type"`
	Seq                int                   `json:"seq,omitempty"`
	Success            *bool                 `json:"success,omitempty"`
	RoomID             string                `json:"roomId,omitempty"`
	Message            string                `json:"message,omitempty"`
	PlayerID           string                `json:"playerId,omitempty"`
	Username           string                `json:"username,omitempty"`
	TotalPlayers       int                   `json:"totalPlayers,omitempty"`
	Owner              string                `json:"owner,omitempty"`
	QuestionID         string                `json:"questionId,omitempty"`
	TimeLeft           *int                  `json:"timeLeft,omitempty"`
	Winner             string                `json:"winner,omitempty"`
	Players            []string              `json:"players,omitempty"`
	Submissions        map[string]Submission `json:"submissions,omitempty"`
	SenderID           string                `json:"id,omitempty"`
	Reason             string                `json:"reason,omitempty"`
	DisconnectedPlayer string                `json:"disconnectedPlayer,omitempty"`
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func Authenticated(ok bool) Event {
	return Event{Type: TypeAuthenticated, Success: boolPtr(ok)}
}

func AckRoomCreated(seq int, roomID string) Event {
	return Event{Type: TypeAck, Seq: seq, RoomID: roomID}
}

func AckJoined(seq int, roomID string) Event {
	return Event{Type: TypeAck, Seq: seq, Success: boolPtr(true), RoomID: roomID}
}

func AckRejected(seq int, message string) Event {
	return Event{Type: TypeAck, Seq: seq, Success: boolPtr(false), Message: message}
}

func AckPlayers(seq int, players []string) Event {
	return Event{Type: TypeAck, Seq: seq, Players: players}
}

func AckSubmitted(seq int) Event {
	return Event{Type: TypeAck, Seq: seq, Success: boolPtr(true)}
}

func PlayerJoined(uid, username string, total int) Event {
	return Event{Type: TypePlayerJoined, PlayerID: uid, Username: username, TotalPlayers: total}
}

func RoomReady(owner string) Event {
	return Event{Type: TypeRoomReady, Owner: owner}
}

func StartGame(questionID string) Event {
	return Event{Type: TypeStartGame, QuestionID: questionID}
}

func Tick(timeLeft int) Event {
	return Event{Type: TypeTick, TimeLeft: intPtr(timeLeft)}
}

func WinnerDeclared(username string) Event {
	return Event{Type: TypeWinner, Winner: username}
}

func MatchEnd(submissions map[string]Submission) Event {
	return Event{Type: TypeMatchEnd, Submissions: submissions}
}

func ReceiveMessage(username, uid, message string) Event {
	return Event{Type: TypeReceiveMessage, Username: username, SenderID: uid, Message: message}
}

func RoomEnded(reason, disconnectedPlayer string) Event {
	return Event{Type: TypeRoomEnded, Reason: reason, DisconnectedPlayer: disconnectedPlayer}
}
