package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"codeduel/internal/events"
	"codeduel/internal/game"
	"codeduel/internal/identity"
	"codeduel/internal/rooms"
	"codeduel/internal/wshub"
)

type Server struct {
	Hub      *wshub.Hub
	Rooms    *rooms.Store
	Verifier identity.Verifier
}

// session is the per-connection command state: the hub client plus the
// identity attached by a successful authenticate.
type session struct {
	srv    *Server
	client *wshub.Client
	auth   *identity.Identity
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}

	client := &wshub.Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 32),
	}
	s.Hub.Register(client)
	log.Info().Str("client_id", client.ID).Msg("connection established")

	ctx := r.Context()
	go client.WritePump(ctx)

	defer func() {
		s.endRoomsFor(client)
		s.Hub.Unregister(client.ID)
		conn.CloseNow()
		log.Info().Str("client_id", client.ID).Str("uid", client.UID).Msg("connection closed")
	}()

	sess := &session{srv: s, client: client}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg wshub.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Str("client_id", client.ID).Err(err).Msg("bad frame, skipping")
			continue
		}
		sess.dispatch(ctx, msg)
	}
}

func (ss *session) dispatch(ctx context.Context, msg wshub.ClientMessage) {
	if msg.Type == "authenticate" {
		ss.handleAuthenticate(ctx, msg)
		return
	}
	// Precondition for every room command: the connection is authenticated.
	if ss.auth == nil {
		log.Debug().Str("client_id", ss.client.ID).Str("type", msg.Type).
			Msg("dropping command from unauthenticated connection")
		return
	}

	switch msg.Type {
	case "create_room":
		ss.handleCreateRoom(msg)
	case "join_room":
		ss.handleJoinRoom(msg)
	case "show_players":
		ss.client.Enqueue(events.AckPlayers(msg.Seq, ss.srv.Rooms.Members(msg.RoomID)))
	case "start_game":
		if room := ss.srv.Rooms.Get(msg.RoomID); room != nil {
			room.Match.Start(ss.auth.UID)
		}
	case "submit_code":
		ss.handleSubmitCode(msg)
	case "send_message":
		ss.handleSendMessage(msg)
	case "leave_room":
		ss.handleLeaveRoom(msg)
	default:
		log.Debug().Str("type", msg.Type).Msg("unknown command")
	}
}

func (ss *session) handleAuthenticate(ctx context.Context, msg wshub.ClientMessage) {
	id, err := ss.srv.Verifier.Verify(msg.Token)
	if err != nil {
		log.Info().Str("client_id", ss.client.ID).Msg("authentication failed")
		// Write the result directly so it lands before the close frame.
		// Nothing else can be writing yet: an unauthenticated connection
		// belongs to no room group and receives no acks.
		if data, merr := json.Marshal(events.Authenticated(false)); merr == nil {
			ss.client.Conn.Write(ctx, websocket.MessageText, data)
		}
		ss.client.Conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	ss.auth = &id
	ss.client.UID = id.UID
	ss.client.Username = id.Username
	ss.client.Enqueue(events.Authenticated(true))
	log.Info().Str("client_id", ss.client.ID).Str("uid", id.UID).
		Str("username", id.Username).Msg("authenticated")
}

func (ss *session) handleCreateRoom(msg wshub.ClientMessage) {
	room, err := ss.srv.Rooms.Create(*ss.auth, msg.QuestionID, msg.TimeLimit)
	if err != nil {
		log.Error().Err(err).Msg("create room")
		ss.client.Enqueue(events.AckRejected(msg.Seq, "Failed to create room"))
		return
	}
	ss.srv.Hub.Join(room.ID, ss.client)
	ss.client.Enqueue(events.AckRoomCreated(msg.Seq, room.ID))
}

func (ss *session) handleJoinRoom(msg wshub.ClientMessage) {
	room := ss.srv.Rooms.Get(msg.RoomID)
	if room == nil {
		ss.client.Enqueue(events.AckRejected(msg.Seq, "Room not found"))
		return
	}

	// Group membership first, so the joiner sees its own player_joined.
	ss.srv.Hub.Join(room.ID, ss.client)
	if err := room.Match.Join(*ss.auth); err != nil {
		ss.srv.Hub.Leave(room.ID, ss.client.ID)
		reason := "Room not found"
		if errors.Is(err, game.ErrRoomFull) {
			reason = "Room is full"
		}
		ss.client.Enqueue(events.AckRejected(msg.Seq, reason))
		return
	}
	ss.client.Enqueue(events.AckJoined(msg.Seq, room.ID))
}

func (ss *session) handleSubmitCode(msg wshub.ClientMessage) {
	if room := ss.srv.Rooms.Get(msg.RoomID); room != nil {
		room.Match.Submit(ss.auth.UID, msg.Output, msg.Passed)
	}
	// Acceptance and outcome travel on different channels: the ack is
	// unconditional, the result arrives as a broadcast.
	ss.client.Enqueue(events.AckSubmitted(msg.Seq))
}

func (ss *session) handleSendMessage(msg wshub.ClientMessage) {
	ss.srv.Hub.Broadcast(msg.RoomID, events.ReceiveMessage(ss.auth.Username, ss.auth.UID, msg.Message))
}

func (ss *session) handleLeaveRoom(msg wshub.ClientMessage) {
	room := ss.srv.Rooms.Get(msg.RoomID)
	if room == nil || !room.Match.HasMember(ss.auth.UID) {
		return
	}
	room.Match.Abort("Player left the room", ss.auth.Username)
}

// endRoomsFor is the disconnect supervisor: any room the identity belongs
// to is torn down outright, no grace period for the remaining member.
func (s *Server) endRoomsFor(client *wshub.Client) {
	if client.UID == "" {
		return
	}
	for _, room := range s.Rooms.FindByMember(client.UID) {
		log.Info().Str("room_id", room.ID).Str("uid", client.UID).
			Msg("room ended due to player disconnect")
		room.Match.Abort("Player disconnected", client.Username)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients, _ := s.Hub.Counts()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","rooms":%d,"connections":%d}`, len(s.Rooms.List()), clients)
}
