package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/wfunc/tetris/broadcast"
	"github.com/wfunc/tetris/config"
	"github.com/wfunc/tetris/engine"
	"github.com/wfunc/tetris/logger"
	"github.com/wfunc/tetris/monitor"
	"github.com/wfunc/tetris/network"
	"github.com/wfunc/tetris/persistence"
	"github.com/wfunc/tetris/room"
	tetris_rpc "github.com/wfunc/tetris/rpc"
	"github.com/wfunc/tetris/services"
	"github.com/wfunc/tetris/session"
	"github.com/wfunc/tetris/timer"
)

var (
	ErrNotInRoom    = errors.New("not in a room")
	ErrBadRequest   = errors.New("bad request")
	ErrRoomGone     = errors.New("room closed by owner")
	ErrShuttingDown = errors.New("server shutting down")
)

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	router         *mux.Router
	httpServer     *http.Server
	roomManager    *room.Manager
	sessionManager *session.Manager
	roomService    *services.RoomService
	broadcaster    broadcast.Broadcaster
	timers         *timer.TimerManager
	monitor        *monitor.Monitor
	db             persistence.Database
	rpcServer      *tetris_rpc.Server
	sweepTimer     int64
	mutex          sync.Mutex
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

// NewGameServer wires rooms, sessions, the admin RPC service and the HTTP
// router. The RPC listener is bound immediately.
func NewGameServer(cfg *config.Config, db persistence.Database, timers *timer.TimerManager, mon *monitor.Monitor) (*GameServer, error) {
	s := &GameServer{
		cfg:            cfg,
		roomManager:    room.NewRoomManager(),
		sessionManager: session.NewManager(),
		timers:         timers,
		monitor:        mon,
		db:             db,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)
	s.roomService = services.NewRoomService(s.roomManager, db)

	// 初始化RPC服务器
	if cfg.Server.RPCAddress != "" {
		rpcServer, err := tetris_rpc.NewServer(cfg.Server.RPCAddress, tetris_rpc.NewGameService(s.roomService))
		if err != nil {
			return nil, err
		}
		s.rpcServer = rpcServer
	}

	s.router = s.routes()
	return s, nil
}

func (s *GameServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods(http.MethodGet)
	if dir := s.cfg.Server.StaticDir; dir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(dir)))
	}
	return r
}

// Handler exposes the router, mainly for tests.
func (s *GameServer) Handler() http.Handler {
	return s.router
}

func (s *GameServer) Start() error {
	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}
	s.startSweeper()

	s.mutex.Lock()
	s.httpServer = &http.Server{Addr: s.cfg.Server.HTTPAddress, Handler: s.router}
	srv := s.httpServer
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown tells every client, stops accepting requests and closes all rooms.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		if data, mErr := json.Marshal(network.ErrorMessage{Error: ErrShuttingDown.Error()}); mErr == nil {
			s.broadcaster.BroadcastToAll(network.MsgTypeError, data)
		}

		if s.sweepTimer != 0 {
			s.timers.RemoveTimer(s.sweepTimer)
		}
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}

		s.mutex.Lock()
		srv := s.httpServer
		s.mutex.Unlock()
		if srv != nil {
			err = srv.Shutdown(ctx)
		}

		s.roomManager.CloseAll()
		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}
	})
	return err
}

// startSweeper closes sessions that have been silent for longer than the
// idle timeout. Their read loops then clean up as for any disconnect.
func (s *GameServer) startSweeper() {
	idle := s.cfg.Session.IdleTimeout
	if idle <= 0 || s.timers == nil {
		return
	}
	every := idle / 2
	s.sweepTimer = s.timers.AddTimer(every, every, func() {
		for _, sess := range s.sessionManager.Idle(time.Now().Add(-idle)) {
			logger.Log.Infof("Closing idle session %s", sess.GetID())
			sess.Close()
		}
	})
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *GameServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, network.ErrorMessage{Error: ErrBadRequest.Error()})
			return
		}
		limit = n
	}

	rooms, err := s.roomService.ListRooms(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, network.ErrorMessage{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *GameServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	summary, err := s.roomService.GetRoom(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, services.ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, network.ErrorMessage{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, network.ErrorMessage{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("Failed to write response: %v", err)
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(conn network.Connection) {
	sess := session.NewSession(uuid.New().String(), conn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()
	s.extendDeadline(sess)

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
		s.leaveRoom(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		conn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}
		packet, err := conn.ReadPacket()
		if err != nil {
			return
		}
		s.handlePacket(sess, packet)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	s.monitor.IncMessagesReceived()
	defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()

	sess.Touch()
	s.extendDeadline(sess)

	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		err = sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeCreateRoom:
		err = s.handleCreateRoom(sess)
	case network.MsgTypeJoinRoom:
		err = s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		err = s.handleLeaveRoom(sess)
	case network.MsgTypePlayerAction:
		err = s.handleGameAction(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}

	if err != nil {
		logger.Log.Warnf("Session %s message %d failed: %v", sess.GetID(), packet.MsgID, err)
		s.sendError(sess, err)
	}
}

// extendDeadline gives the client two heartbeat intervals to send its next packet.
func (s *GameServer) extendDeadline(sess *session.Session) {
	if hb := s.cfg.Session.HeartbeatInterval; hb > 0 {
		sess.Conn.SetHeartbeat(hb)
	}
}

func (s *GameServer) sendError(sess *session.Session, err error) {
	data, mErr := json.Marshal(network.ErrorMessage{Error: err.Error()})
	if mErr != nil {
		return
	}
	sess.Send(network.MsgTypeError, data)
}

func (s *GameServer) roomOptions() room.Options {
	game := s.cfg.Game
	var rng engine.Rand
	if game.Seed != 0 {
		rng = engine.NewRand(game.Seed)
	}
	return room.Options{
		Engine:        game.Engine(),
		Rand:          rng,
		StartDelay:    game.StartDelay,
		MaxSpectators: game.MaxSpectators,
		Scheduler:     s.timers,
		Broadcaster:   s.broadcaster,
		Recorder:      s.db,
		Metrics:       s.monitor,
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session) error {
	s.leaveRoom(sess)

	roomID := uuid.New().String()
	r := s.roomManager.CreateRoom(roomID, "Room "+roomID[:8], sess, s.roomOptions())
	s.monitor.SetActiveRooms(s.roomManager.Count())

	logger.Log.Infof("Session %s created room %s", sess.GetID(), roomID)

	data, err := json.Marshal(network.RoomRequest{RoomID: roomID})
	if err != nil {
		return err
	}
	if err := sess.Send(network.MsgTypeCreateRoom, data); err != nil {
		return err
	}
	s.broadcastRoomState(r)
	return nil
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) error {
	var req network.RoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return ErrBadRequest
	}

	r, exists := s.roomManager.GetRoom(req.RoomID)
	if !exists {
		return broadcast.ErrRoomNotFound
	}
	if sess.RoomID() == r.ID {
		return nil
	}
	s.leaveRoom(sess)

	if err := r.AddPlayer(sess); err != nil {
		return err
	}
	logger.Log.Infof("Session %s joined room %s", sess.GetID(), r.ID)

	data, err := json.Marshal(roomState(r))
	if err != nil {
		return err
	}
	if err := sess.Send(network.MsgTypeJoinRoom, data); err != nil {
		return err
	}
	s.broadcastRoomState(r)
	return nil
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) error {
	if sess.RoomID() == "" {
		return ErrNotInRoom
	}
	s.leaveRoom(sess)
	return nil
}

// leaveRoom drops sess from its room. When the owner leaves the room is
// closed and every spectator is told.
func (s *GameServer) leaveRoom(sess *session.Session) {
	roomID := sess.RoomID()
	if roomID == "" {
		return
	}
	r, exists := s.roomManager.GetRoom(roomID)
	if !exists {
		sess.SetRoomID("")
		return
	}

	if r.OwnerID == sess.GetID() {
		members := r.GetSessions()
		s.roomManager.RemoveRoom(roomID)
		s.monitor.SetActiveRooms(s.roomManager.Count())
		for _, member := range members {
			if member.GetID() != sess.GetID() {
				s.sendError(member, ErrRoomGone)
			}
		}
		logger.Log.Infof("Room %s closed by owner %s", roomID, sess.GetID())
		return
	}

	r.RemovePlayer(sess.GetID())
	s.broadcastRoomState(r)
	logger.Log.Infof("Session %s left room %s", sess.GetID(), roomID)
}

func (s *GameServer) handleGameAction(sess *session.Session, packet *network.Packet) error {
	roomID := sess.RoomID()
	if roomID == "" {
		return ErrNotInRoom
	}

	r, exists := s.roomManager.GetRoom(roomID)
	if !exists {
		return broadcast.ErrRoomNotFound
	}
	return r.HandleAction(sess, packet.Data)
}

func roomState(r *room.Room) network.RoomState {
	return network.RoomState{
		RoomID:  r.ID,
		State:   r.StateMachine.GetCurrentState().GetID(),
		OwnerID: r.OwnerID,
		Players: r.PlayerIDs(),
	}
}

func (s *GameServer) broadcastRoomState(r *room.Room) {
	data, err := json.Marshal(roomState(r))
	if err != nil {
		logger.Log.Errorf("Error marshalling room state: %v", err)
		return
	}
	if err := s.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeRoomState, data); err != nil {
		logger.Log.Warnf("Room %s state broadcast failed: %v", r.ID, err)
	}
}
