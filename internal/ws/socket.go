package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/codeclash/server/internal/game"
)

// ConnCtx is the per-connection registry entry: which room the connection
// belongs to and under which identity.
type ConnCtx struct {
	Code     string
	MemberID string
	Username string
}

// Server adapts socket.io connections to coordinator actions and implements
// game.Broadcaster over the room membership map.
type Server struct {
	coord *game.Coordinator

	mu      sync.RWMutex
	members map[string]map[string]socketio.Conn // roomCode -> memberID -> Conn
}

func New() *Server {
	return &Server{members: make(map[string]map[string]socketio.Conn)}
}

func (srv *Server) SetCoordinator(c *game.Coordinator) { srv.coord = c }

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "create_room", func(s socketio.Conn, payload struct {
		Username string        `json:"username"`
		Settings game.Settings `json:"settings"`
	}) {
		memberID := uuid.NewString()
		snap, err := srv.coord.CreateRoom(memberID, payload.Username, payload.Settings)
		if err != nil {
			srv.err(s, "create_failed", "Failed to create room")
			return
		}
		s.SetContext(&ConnCtx{Code: snap.Code, MemberID: memberID, Username: payload.Username})
		s.Join(snap.Code)
		srv.addMember(snap.Code, memberID, s)
		log.Info().Str("sid", s.ID()).Str("code", snap.Code).Msg("create_room")
		s.Emit("room_created", snap)
	})

	io.OnEvent("/", "join_room", func(s socketio.Conn, payload struct {
		Username string `json:"username"`
		RoomCode string `json:"roomCode"`
	}) {
		memberID := uuid.NewString()
		snap, err := srv.coord.JoinRoom(payload.RoomCode, memberID, payload.Username)
		switch {
		case errors.Is(err, game.ErrRoomNotFound):
			srv.err(s, "room_not_found", "Room not found")
			return
		case errors.Is(err, game.ErrRoomFull):
			srv.err(s, "room_full", "Room is full")
			return
		case errors.Is(err, game.ErrInvalidPhase):
			srv.err(s, "already_started", "Competition already started")
			return
		case err != nil:
			srv.err(s, "join_failed", "Failed to join room")
			return
		}
		s.SetContext(&ConnCtx{Code: payload.RoomCode, MemberID: memberID, Username: payload.Username})
		s.Join(payload.RoomCode)
		srv.addMember(payload.RoomCode, memberID, s)
		log.Info().Str("sid", s.ID()).Str("code", payload.RoomCode).Str("memberId", memberID).Msg("join_room")
		s.Emit("room_joined", snap)
	})

	io.OnEvent("/", "start_competition", func(s socketio.Conn, payload struct {
		RoomCode string `json:"roomCode"`
	}) {
		ctx := s.Context().(*ConnCtx)
		if ctx.Code == "" {
			return
		}
		srv.coord.StartCompetition(ctx.Code, ctx.MemberID)
	})

	io.OnEvent("/", "run_tests", func(s socketio.Conn, payload struct {
		RoomCode string `json:"roomCode"`
		Code     string `json:"code"`
		Language string `json:"language"`
	}) {
		ctx := s.Context().(*ConnCtx)
		if ctx.Code == "" {
			return
		}
		// Runs in the background so one member's slow execution never
		// stalls the rest of their connection's events.
		go srv.coord.RunTests(context.Background(), ctx.Code, ctx.MemberID, payload.Code, payload.Language)
	})

	io.OnEvent("/", "submit_code", func(s socketio.Conn, payload struct {
		RoomCode string `json:"roomCode"`
		Code     string `json:"code"`
		Language string `json:"language"`
	}) {
		ctx := s.Context().(*ConnCtx)
		if ctx.Code == "" {
			return
		}
		go srv.coord.SubmitCode(context.Background(), ctx.Code, ctx.MemberID, payload.Code, payload.Language)
	})

	io.OnEvent("/", "send_message", func(s socketio.Conn, payload struct {
		RoomCode string `json:"roomCode"`
		Message  string `json:"message"`
		Username string `json:"username"`
	}) {
		ctx := s.Context().(*ConnCtx)
		if ctx.Code == "" {
			return
		}
		username := payload.Username
		if username == "" {
			username = ctx.Username
		}
		srv.coord.SendMessage(ctx.Code, username, payload.Message)
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})

	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if ctx, ok := s.Context().(*ConnCtx); ok && ctx.Code != "" {
			srv.removeMember(ctx.Code, ctx.MemberID)
			srv.coord.Disconnect(ctx.Code, ctx.MemberID)
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go io.Serve()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

// ToMember delivers a private event to one member of a room.
func (srv *Server) ToMember(roomCode, memberID, event string, payload any) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	if conn := srv.members[roomCode][memberID]; conn != nil {
		conn.Emit(event, payload)
	}
}

// ToRoom delivers an event to every currently-connected member of a room.
func (srv *Server) ToRoom(roomCode, event string, payload any) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	for _, conn := range srv.members[roomCode] {
		conn.Emit(event, payload)
	}
}

func (srv *Server) addMember(code, memberID string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.members[code] == nil {
		srv.members[code] = make(map[string]socketio.Conn)
	}
	srv.members[code][memberID] = c
}

func (srv *Server) removeMember(code, memberID string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[code]; m != nil {
		delete(m, memberID)
		if len(m) == 0 {
			delete(srv.members, code)
		}
	}
}

func (srv *Server) err(s socketio.Conn, code, message string) {
	s.Emit("error", map[string]any{"code": code, "message": message})
}
