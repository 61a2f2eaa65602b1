// Command client is a terminal client: it creates (or joins) a room,
// reads commands from stdin and prints the board after every update.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/tetris/engine"
	"github.com/wfunc/tetris/network"
	"github.com/wfunc/tetris/state"
)

// commands maps typed words and single keys to player actions.
var commands = map[string]string{
	"a": network.ActionLeft, "left": network.ActionLeft,
	"d": network.ActionRight, "right": network.ActionRight,
	"w": network.ActionRotate, "rotate": network.ActionRotate,
	"s": network.ActionSoftDrop, "down": network.ActionSoftDrop,
	"x": network.ActionHardDrop, "drop": network.ActionHardDrop,
	"r": network.ActionRestart, "restart": network.ActionRestart,
	"start": network.ActionStart,
}

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// render draws the board with the falling piece overlaid.
func render(snap state.GameSnapshot) string {
	grid := snap.Board
	for _, b := range snap.Blocks {
		if b.Y >= 0 && b.Y < engine.Rows && b.X >= 0 && b.X < engine.Cols {
			grid[b.Y][b.X] = snap.Current.Type
		}
	}

	var sb strings.Builder
	for _, row := range grid {
		sb.WriteByte('|')
		for _, cell := range row {
			if cell == engine.None {
				sb.WriteByte('.')
			} else {
				sb.WriteString(cell.String())
			}
		}
		sb.WriteString("|\n")
	}
	sb.WriteString("+" + strings.Repeat("-", engine.Cols) + "+\n")
	fmt.Fprintf(&sb, "score %d  lines %d  next %s  %dms  %s\n",
		snap.Score, snap.Lines, snap.Next, snap.IntervalMS, snap.Status)
	return sb.String()
}

func handle(packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeGameStart, network.MsgTypeGameSync:
		var snap state.GameSnapshot
		if err := json.Unmarshal(packet.Data, &snap); err != nil {
			log.Printf("Bad snapshot: %v", err)
			return
		}
		fmt.Print("\033[H\033[2J" + render(snap))
	case network.MsgTypeGameEnd:
		var result state.GameResult
		json.Unmarshal(packet.Data, &result)
		fmt.Printf("GAME OVER  score %d  lines %d  (r to restart)\n", result.Score, result.Lines)
	case network.MsgTypeHeartbeat:
	default:
		log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
	}
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	roomID := flag.String("room", "", "room to watch instead of creating one")
	heartbeat := flag.Duration("heartbeat", 10*time.Second, "heartbeat interval")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.Decode(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			handle(packet)
		}
	}()

	if *roomID != "" {
		data, _ := json.Marshal(network.RoomRequest{RoomID: *roomID})
		err = send(c, network.MsgTypeJoinRoom, data)
	} else {
		err = send(c, network.MsgTypeCreateRoom, nil)
	}
	if err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Client started. a/d move, w rotate, s soft drop, x hard drop, r restart, start to begin.")

	lines := make(chan string)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			text, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- strings.TrimSpace(text)
		}
	}()

	ticker := time.NewTicker(*heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				log.Println("Write error:", err)
				return
			}
		case text, ok := <-lines:
			if !ok {
				return
			}
			actionType, known := commands[text]
			if !known {
				log.Printf("Unknown command %q", text)
				continue
			}
			actionData, _ := json.Marshal(network.Action{Type: actionType})
			if err := send(c, network.MsgTypePlayerAction, actionData); err != nil {
				log.Println("Write error:", err)
				return
			}
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
