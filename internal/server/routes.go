package server

import (
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"codeduel/internal/config"
	"codeduel/internal/game"
	"codeduel/internal/identity"
	"codeduel/internal/rooms"
	"codeduel/internal/wshub"
)

func Run() error {
	cfg := config.Load()

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set, all authentication will fail")
	}

	hub := wshub.NewHub()
	gameCfg := game.Config{
		TickInterval: cfg.TickInterval,
		Resubmit:     game.ResubmitPolicy(cfg.ResubmitPolicy),
	}
	store := rooms.NewStore(gameCfg, cfg.RoomTTL, clockwork.NewRealClock(), hub, hub.CloseRoom)

	srv := &Server{
		Hub:      hub,
		Rooms:    store,
		Verifier: identity.NewTokenVerifier(cfg.JWTSecret),
	}

	addr := "0.0.0.0:" + cfg.Port
	log.Info().Str("addr", addr).Msg("server listening")
	return http.ListenAndServe(addr, srv.routes())
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}
