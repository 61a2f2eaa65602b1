package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetris/engine"
	"github.com/wfunc/tetris/network"
)

type testPlayer string

func (p testPlayer) GetID() string { return string(p) }

type sentPacket struct {
	msgID uint16
	data  []byte
}

type fakeTimer struct {
	delay    time.Duration
	interval time.Duration
	callback func()
}

// fakeScheduler records timers instead of running them.
type fakeScheduler struct {
	nextID  int64
	timers  map[int64]*fakeTimer
	removed []int64
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{timers: make(map[int64]*fakeTimer)}
}

func (f *fakeScheduler) AddTimer(delay, interval time.Duration, callback func()) int64 {
	f.nextID++
	f.timers[f.nextID] = &fakeTimer{delay: delay, interval: interval, callback: callback}
	return f.nextID
}

func (f *fakeScheduler) RemoveTimer(id int64) bool {
	if _, ok := f.timers[id]; !ok {
		return false
	}
	delete(f.timers, id)
	f.removed = append(f.removed, id)
	return true
}

func (f *fakeScheduler) only(t *testing.T) *fakeTimer {
	t.Helper()
	require.Len(t, f.timers, 1)
	for _, timer := range f.timers {
		return timer
	}
	return nil
}

type fakeMetrics struct {
	lines     int
	gamesOver int
}

func (m *fakeMetrics) AddLinesCleared(n int) { m.lines += n }
func (m *fakeMetrics) IncGamesOver()         { m.gamesOver++ }

// fakeRoom runs dispatched work synchronously, like a room loop that is
// always idle.
type fakeRoom struct {
	machine   *BaseStateMachine
	engine    *engine.Engine
	scheduler *fakeScheduler
	metrics   *fakeMetrics
	sent      []sentPacket
	owner     string
}

type fixedRand struct{ n int }

func (r fixedRand) IntN(int) int { return r.n }

func newFakeRoom(t *testing.T) *fakeRoom {
	r := &fakeRoom{
		engine:    engine.New(engine.DefaultConfig(), fixedRand{n: 1}), // O pieces only
		scheduler: newFakeScheduler(),
		metrics:   &fakeMetrics{},
		owner:     "owner",
	}
	r.machine = NewBaseStateMachine(NewWaitingState(r, time.Hour))
	r.machine.AddTransition(StatePlaying, StateGameOver, func() bool { return r.engine.Status() == engine.GameOver })
	r.machine.AddTransition(StateGameOver, StatePlaying, func() bool { return r.engine.Status() == engine.Running })
	return r
}

func (r *fakeRoom) GetID() string       { return "room" }
func (r *fakeRoom) GetGameType() string { return "tetris" }
func (r *fakeRoom) GetPlayers() map[string]Player {
	return map[string]Player{r.owner: testPlayer(r.owner)}
}
func (r *fakeRoom) IsOwner(p Player) bool     { return p.GetID() == r.owner }
func (r *fakeRoom) Engine() *engine.Engine    { return r.engine }
func (r *fakeRoom) Scheduler() Scheduler      { return r.scheduler }
func (r *fakeRoom) Metrics() GameMetrics      { return r.metrics }
func (r *fakeRoom) ChangeState(s State) error { return r.machine.ChangeState(s) }
func (r *fakeRoom) Dispatch(fn func()) bool   { fn(); return true }

func (r *fakeRoom) Broadcast(msgID uint16, data []byte) error {
	r.sent = append(r.sent, sentPacket{msgID: msgID, data: data})
	return nil
}

func (r *fakeRoom) act(t *testing.T, player, action string) error {
	t.Helper()
	data, err := json.Marshal(network.Action{Type: action})
	require.NoError(t, err)
	return r.machine.GetCurrentState().HandleAction(testPlayer(player), data)
}

func (r *fakeRoom) last() sentPacket {
	return r.sent[len(r.sent)-1]
}

func startedRoom(t *testing.T) *fakeRoom {
	r := newFakeRoom(t)
	require.NoError(t, r.act(t, "owner", network.ActionStart))
	require.Equal(t, StatePlaying, r.machine.GetCurrentState().GetID())
	return r
}

func TestWaitingState_StartByOwner(t *testing.T) {
	r := newFakeRoom(t)

	assert.ErrorIs(t, r.act(t, "guest", network.ActionStart), ErrNotOwner)
	assert.Equal(t, StateWaiting, r.machine.GetCurrentState().GetID())

	assert.NoError(t, r.act(t, "owner", network.ActionLeft))
	assert.Equal(t, StateWaiting, r.machine.GetCurrentState().GetID())

	require.NoError(t, r.act(t, "owner", network.ActionStart))
	assert.Equal(t, StatePlaying, r.machine.GetCurrentState().GetID())
	assert.Equal(t, uint16(network.MsgTypeGameStart), r.last().msgID)
}

func TestWaitingState_StartsAfterDelay(t *testing.T) {
	r := newFakeRoom(t)
	r.machine = NewBaseStateMachine(NewWaitingState(r, 0))

	r.machine.GetCurrentState().OnUpdate()
	assert.Equal(t, StatePlaying, r.machine.GetCurrentState().GetID())
}

func TestWaitingState_RejectsGarbage(t *testing.T) {
	r := newFakeRoom(t)
	err := r.machine.GetCurrentState().HandleAction(testPlayer("owner"), []byte("{"))
	assert.Error(t, err)
	assert.ErrorIs(t, r.act(t, "owner", "dance"), ErrUnknownAction)
}

func TestPlayingState_ArmsGravity(t *testing.T) {
	r := startedRoom(t)

	timer := r.scheduler.only(t)
	assert.Equal(t, 700*time.Millisecond, timer.interval)
	assert.Equal(t, 700*time.Millisecond, timer.delay)

	timer.callback()
	assert.Equal(t, 1, r.engine.Snapshot().Current.Y)
	assert.Equal(t, uint16(network.MsgTypeGameSync), r.last().msgID)

	var snap GameSnapshot
	require.NoError(t, json.Unmarshal(r.last().data, &snap.Snapshot))
	assert.Equal(t, 1, snap.Current.Y)
}

func TestPlayingState_Commands(t *testing.T) {
	r := startedRoom(t)

	require.NoError(t, r.act(t, "owner", network.ActionLeft))
	assert.Equal(t, engine.SpawnX-1, r.engine.Snapshot().Current.X)

	require.NoError(t, r.act(t, "owner", network.ActionRight))
	require.NoError(t, r.act(t, "owner", network.ActionRight))
	assert.Equal(t, engine.SpawnX+1, r.engine.Snapshot().Current.X)

	require.NoError(t, r.act(t, "owner", network.ActionSoftDrop))
	assert.Equal(t, 1, r.engine.Snapshot().Current.Y)

	require.NoError(t, r.act(t, "owner", network.ActionHardDrop))
	assert.False(t, r.engine.Snapshot().Board.Empty())

	assert.ErrorIs(t, r.act(t, "guest", network.ActionLeft), ErrNotOwner)
	assert.ErrorIs(t, r.act(t, "owner", "fly"), ErrUnknownAction)
}

func TestPlayingState_RearmsWhenIntervalChanges(t *testing.T) {
	r := startedRoom(t)
	first := r.scheduler.only(t)

	// five O drops at x=-1,1,3,5,7 fill the two bottom rows
	for _, dx := range []int{-4, -2, 0, 2, 4} {
		for i := 0; i < 4; i++ {
			if dx < 0 {
				require.NoError(t, r.act(t, "owner", network.ActionLeft))
				dx++
			} else if dx > 0 {
				require.NoError(t, r.act(t, "owner", network.ActionRight))
				dx--
			}
		}
		require.NoError(t, r.act(t, "owner", network.ActionHardDrop))
	}

	assert.Equal(t, 250, r.engine.Score())
	assert.Equal(t, 2, r.metrics.lines)
	second := r.scheduler.only(t)
	assert.NotSame(t, first, second)
	assert.Equal(t, 680*time.Millisecond, second.interval)

	// a tick queued by the cancelled timer is discarded
	y := r.engine.Snapshot().Current.Y
	first.callback()
	assert.Equal(t, y, r.engine.Snapshot().Current.Y)
	second.callback()
	assert.Equal(t, y+1, r.engine.Snapshot().Current.Y)
}

func TestPlayingState_GameOverAndRestart(t *testing.T) {
	r := startedRoom(t)

	// O pieces stacked in the spawn columns top out after ten drops
	for i := 0; i < 10 && r.engine.Status() == engine.Running; i++ {
		require.NoError(t, r.act(t, "owner", network.ActionHardDrop))
	}

	require.Equal(t, engine.GameOver, r.engine.Status())
	assert.Equal(t, StateGameOver, r.machine.GetCurrentState().GetID())
	assert.Empty(t, r.scheduler.timers, "gravity must stop on game over")
	assert.Equal(t, 1, r.metrics.gamesOver)

	end := r.last()
	assert.Equal(t, uint16(network.MsgTypeGameEnd), end.msgID)
	var result GameResult
	require.NoError(t, json.Unmarshal(end.data, &result))
	assert.Equal(t, 0, result.Score)

	// movement is ignored, restart brings the game back
	require.NoError(t, r.act(t, "owner", network.ActionHardDrop))
	assert.Equal(t, StateGameOver, r.machine.GetCurrentState().GetID())
	assert.ErrorIs(t, r.act(t, "guest", network.ActionRestart), ErrNotOwner)

	require.NoError(t, r.act(t, "owner", network.ActionRestart))
	assert.Equal(t, StatePlaying, r.machine.GetCurrentState().GetID())
	assert.Equal(t, engine.Running, r.engine.Status())
	assert.True(t, r.engine.Snapshot().Board.Empty())
	r.scheduler.only(t)
}

func TestPlayingState_RestartWhilePlaying(t *testing.T) {
	r := startedRoom(t)
	require.NoError(t, r.act(t, "owner", network.ActionHardDrop))
	require.NoError(t, r.act(t, "owner", network.ActionRestart))

	assert.True(t, r.engine.Snapshot().Board.Empty())
	assert.Equal(t, StatePlaying, r.machine.GetCurrentState().GetID())
	r.scheduler.only(t)
}

func TestPlayingState_OnExitStopsGravity(t *testing.T) {
	r := startedRoom(t)
	timer := r.scheduler.only(t)

	r.machine.GetCurrentState().OnExit()
	assert.Empty(t, r.scheduler.timers)

	y := r.engine.Snapshot().Current.Y
	timer.callback()
	assert.Equal(t, y, r.engine.Snapshot().Current.Y)
}
