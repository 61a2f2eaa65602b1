// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/tetris/engine"
	"github.com/wfunc/tetris/logger"
	"github.com/wfunc/tetris/models"
	"github.com/wfunc/tetris/network"
	"github.com/wfunc/tetris/session"
	"github.com/wfunc/tetris/state"
)

const GameType = "tetris"

// StateClosed is stored for rooms whose loop has stopped.
const StateClosed = "closed"

var (
	ErrRoomFull   = errors.New("room is full")
	ErrRoomClosed = errors.New("room is closed")
)

// Options configure a new room.
type Options struct {
	Engine        engine.Config
	Rand          engine.Rand
	StartDelay    time.Duration
	MaxSpectators int
	Scheduler     state.Scheduler
	Broadcaster   Broadcaster
	Recorder      Recorder
	Metrics       state.GameMetrics
}

// Room is one game. The owner plays; other members watch.
// Every engine call runs on the room's loop goroutine.
type Room struct {
	ID            string
	Name          string
	GameType      string
	OwnerID       string
	MaxSpectators int
	Players       map[string]*session.Session // sessionID -> session
	StateMachine  state.StateMachine
	CreatedAt     time.Time
	engine        *engine.Engine
	scheduler     state.Scheduler
	broadcaster   Broadcaster // Use the interface, not the concrete type
	recorder      Recorder
	metrics       state.GameMetrics
	playerMutex   sync.RWMutex
	events        chan func()
	ticker        *time.Ticker
	closeChan     chan struct{}
	closeOnce     sync.Once
	done          chan struct{}
}

// NewRoom creates a room; owner becomes the only player allowed to act.
func NewRoom(id, name string, owner *session.Session, opts Options) *Room {
	room := &Room{
		ID:            id,
		Name:          name,
		GameType:      GameType,
		OwnerID:       owner.GetID(),
		MaxSpectators: opts.MaxSpectators,
		Players:       map[string]*session.Session{owner.GetID(): owner},
		CreatedAt:     time.Now(),
		engine:        engine.New(opts.Engine, opts.Rand),
		scheduler:     opts.Scheduler,
		broadcaster:   opts.Broadcaster,
		recorder:      opts.Recorder,
		metrics:       opts.Metrics,
		events:        make(chan func(), 64),
		closeChan:     make(chan struct{}),
		done:          make(chan struct{}),
	}
	if room.metrics == nil {
		room.metrics = noopMetrics{}
	}
	owner.SetRoomID(id)

	machine := state.NewBaseStateMachine(state.NewWaitingState(room, opts.StartDelay))
	machine.AddTransition(state.StatePlaying, state.StateGameOver, func() bool {
		return room.engine.Status() == engine.GameOver
	})
	machine.AddTransition(state.StateGameOver, state.StatePlaying, func() bool {
		return room.engine.Status() == engine.Running
	})
	room.StateMachine = machine
	room.record()

	// 启动房间心跳
	room.ticker = time.NewTicker(100 * time.Millisecond) // 10 FPS
	go room.loop()

	return room
}

// --- 实现 state.RoomContext 接口 ---

func (r *Room) GetID() string {
	return r.ID
}

func (r *Room) GetGameType() string {
	return r.GameType
}

// GetPlayers 获取房间中的所有成员，返回的map值为 state.Player 接口
func (r *Room) GetPlayers() map[string]state.Player {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	players := make(map[string]state.Player)
	for k, v := range r.Players {
		players[k] = v
	}
	return players
}

func (r *Room) IsOwner(player state.Player) bool {
	return player.GetID() == r.OwnerID
}

func (r *Room) Engine() *engine.Engine {
	return r.engine
}

func (r *Room) Scheduler() state.Scheduler {
	return r.scheduler
}

func (r *Room) Metrics() state.GameMetrics {
	return r.metrics
}

// ChangeState switches the room state and records it.
func (r *Room) ChangeState(newState state.State) error {
	if err := r.StateMachine.ChangeState(newState); err != nil {
		return err
	}
	r.record()
	return nil
}

// Broadcast sends a message to all members of the room.
func (r *Room) Broadcast(msgID uint16, data []byte) error {
	return r.broadcaster.BroadcastToRoom(r.ID, msgID, data)
}

// Dispatch queues fn onto the room loop.
func (r *Room) Dispatch(fn func()) bool {
	select {
	case <-r.closeChan:
		return false
	default:
	}
	select {
	case r.events <- fn:
		return true
	case <-r.closeChan:
		return false
	}
}

// --- 房间核心逻辑 ---

// Member is a room player that can be answered directly.
type Member interface {
	state.Player
	Send(msgID uint16, data []byte) error
}

// HandleAction queues a player action for the current state. A rejected
// action is answered with an error packet to that player only.
func (r *Room) HandleAction(player Member, data []byte) error {
	ok := r.Dispatch(func() {
		current := r.StateMachine.GetCurrentState()
		if err := current.HandleAction(player, data); err != nil {
			logger.Log.Warnf("Room %s rejected action from %s: %v", r.ID, player.GetID(), err)
			reply, _ := json.Marshal(network.ErrorMessage{Error: err.Error()})
			if sendErr := player.Send(network.MsgTypeError, reply); sendErr != nil {
				logger.Log.Debugf("Room %s error reply to %s failed: %v", r.ID, player.GetID(), sendErr)
			}
		}
	})
	if !ok {
		return ErrRoomClosed
	}
	return nil
}

// Snapshot reads the engine state through the room loop.
func (r *Room) Snapshot() (engine.Snapshot, string, error) {
	type result struct {
		snap    engine.Snapshot
		stateID string
	}
	reply := make(chan result, 1)
	if !r.Dispatch(func() {
		reply <- result{snap: r.engine.Snapshot(), stateID: r.StateMachine.GetCurrentState().GetID()}
	}) {
		return engine.Snapshot{}, "", ErrRoomClosed
	}
	select {
	case res := <-reply:
		return res.snap, res.stateID, nil
	case <-r.done:
		return engine.Snapshot{}, "", ErrRoomClosed
	}
}

// AddPlayer adds a spectator to the room.
func (r *Room) AddPlayer(s *session.Session) error {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if _, exists := r.Players[s.ID]; exists {
		return nil
	}
	if len(r.Players)-1 >= r.MaxSpectators {
		return fmt.Errorf("%w: %s", ErrRoomFull, r.ID)
	}

	r.Players[s.ID] = s
	s.SetRoomID(r.ID)
	return nil
}

// RemovePlayer 从房间移除一个成员
func (r *Room) RemovePlayer(sessionID string) {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if player, exists := r.Players[sessionID]; exists {
		player.SetRoomID("")
		delete(r.Players, sessionID)
	}
}

func (r *Room) GetPlayer(sessionID string) (*session.Session, bool) {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	player, exists := r.Players[sessionID]
	return player, exists
}

// GetSessions returns a slice of all sessions in the room (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.Players))
	for _, s := range r.Players {
		sessions = append(sessions, s)
	}
	return sessions
}

// PlayerIDs returns member ids in sorted order.
func (r *Room) PlayerIDs() []string {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) record() {
	r.recordState(r.StateMachine.GetCurrentState().GetID())
}

func (r *Room) recordState(stateID string) {
	if r.recorder == nil {
		return
	}
	rec := models.RoomRecord{
		RoomID:   r.ID,
		GameType: r.GameType,
		State:    stateID,
		Players:  r.PlayerIDs(),
	}
	if err := r.recorder.SaveRoomState(rec); err != nil {
		logger.Log.Errorf("Failed to save room %s: %v", r.ID, err)
	}
}

// loop 是房间的主循环，定时驱动状态更新
func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ticker.C:
			r.Update()
		case fn := <-r.events:
			fn()
		case <-r.closeChan:
			r.ticker.Stop()
			r.StateMachine.GetCurrentState().OnExit()
			r.recordState(StateClosed)
			return
		}
	}
}

// Update 由主循环调用，驱动状态机更新
func (r *Room) Update() {
	if r.StateMachine != nil {
		currentState := r.StateMachine.GetCurrentState()
		if currentState != nil {
			currentState.OnUpdate()
		}
	}
}

// Close stops the room loop and waits for it to exit.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.closeChan) })
	<-r.done
}

type noopMetrics struct{}

func (noopMetrics) AddLinesCleared(int) {}
func (noopMetrics) IncGamesOver()       {}

// --- 房间管理器 ---

// Manager 管理所有房间
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom 创建一个新房间并添加到管理器
func (m *Manager) CreateRoom(id, name string, owner *session.Session, opts Options) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room := NewRoom(id, name, owner, opts)
	m.rooms[id] = room
	return room
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	room, exists := m.rooms[id]
	delete(m.rooms, id)
	m.mutex.Unlock()

	if exists {
		room.Close()
		for _, s := range room.GetSessions() {
			s.SetRoomID("")
		}
	}
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Rooms returns every live room ordered by creation time.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// CloseAll closes every room.
func (m *Manager) CloseAll() {
	for _, room := range m.Rooms() {
		m.RemoveRoom(room.ID)
	}
}
