package ws

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/lockstep/internal/multiplayer"
)

// Server accepts websocket sessions into the coordinator's arenas.
type Server struct {
	coord     *multiplayer.Coordinator
	sessions  *multiplayer.SessionRegistry
	logger    *log.Logger
	upgrader  websocket.Upgrader
	sendQueue int
	started   time.Time
}

// NewServer creates a server. sendQueue is how many updates may wait for a
// slow client before it is dropped.
func NewServer(coord *multiplayer.Coordinator, logger *log.Logger, sendQueue int) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if sendQueue < 1 {
		sendQueue = 64
	}
	return &Server{
		coord:     coord,
		sessions:  multiplayer.NewSessionRegistry(),
		logger:    logger,
		sendQueue: sendQueue,
		started:   time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler routes /arena/{name}, /healthz and /stats.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /arena/{name}", s.handleArena)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok\n")
	})
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

// handleArena joins the named arena, creating it with ?game= if needed.
// ?reliable=1 declares that requests arrive in order without loss.
func (s *Server) handleArena(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	room, err := s.coord.GetOrCreate(name, r.URL.Query().Get("game"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "err", err)
		return
	}

	c := newConn(ws, multiplayer.NewSessionID(), s.sendQueue, r.URL.Query().Get("reliable") != "1")
	player, err := room.Join(c)
	if err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()), time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}
	s.sessions.Register(c)
	s.logger.Info("session joined", "session", c.id, "arena", name, "player", player, "remote", r.RemoteAddr)

	go c.writePump()
	c.readPump(func(frame []byte) { room.Deliver(c.id, frame) })

	room.Leave(c.id)
	s.sessions.Unregister(c.id)
	s.logger.Info("session left", "session", c.id, "arena", name)
}

type statsResponse struct {
	UptimeSeconds int64                    `json:"uptime_seconds"`
	Sessions      int                      `json:"sessions"`
	Arenas        []multiplayer.ArenaStats `json:"arenas"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsResponse{
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Sessions:      s.sessions.Count(),
		Arenas:        s.coord.Stats(),
	})
}
