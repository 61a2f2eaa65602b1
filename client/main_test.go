package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetris/engine"
	"github.com/wfunc/tetris/network"
	"github.com/wfunc/tetris/state"
)

func TestRender(t *testing.T) {
	snap := engine.New(engine.DefaultConfig(), engine.NewRand(3)).Snapshot()
	snap.Board[19][0] = engine.L

	out := render(state.NewGameSnapshot(snap))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, engine.Rows+2)

	assert.Equal(t, "|L.........|", lines[19])
	assert.Contains(t, lines[0]+lines[1], snap.Current.Type.String())
	assert.Contains(t, lines[engine.Rows+1], "score 0")
	assert.Contains(t, lines[engine.Rows+1], "700ms")
}

func TestCommandsMapToKnownActions(t *testing.T) {
	known := map[string]bool{
		network.ActionLeft: true, network.ActionRight: true, network.ActionRotate: true,
		network.ActionSoftDrop: true, network.ActionHardDrop: true, network.ActionRestart: true,
		network.ActionStart: true,
	}
	for word, action := range commands {
		assert.True(t, known[action], "%s -> %s", word, action)
	}
}
