package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/boomsapp/boomsd/internal/events/journal"
)

const (
	sendBufferSize  = 256
	maxMessageSize  = 32 * 1024
	readDeadline    = 60 * time.Second
	writeDeadline   = 10 * time.Second
	pingInterval    = 54 * time.Second
	replayBatchSize = 500
)

// Authenticator resolves the caller of a websocket upgrade request.
type Authenticator func(r *http.Request) (userID int64, admin bool, err error)

// WebSocketServer upgrades connections onto the hub. Every connection
// is auto-subscribed to its own user stream; BOOM streams are opt-in
// via the subscribe command, the treasury stream requires admin.
type WebSocketServer struct {
	upgrader websocket.Upgrader
	hub      *Hub
	journal  *journal.Journal
	auth     Authenticator
	logger   *log.Logger

	mu    sync.RWMutex
	conns map[string]*wsConn
}

type wsConn struct {
	conn   *websocket.Conn
	sub    *Connection
	userID int64
	admin  bool
}

// NewWebSocketServer creates a server over the hub. A nil journal
// disables the replay command.
func NewWebSocketServer(hub *Hub, j *journal.Journal, auth Authenticator, logger *log.Logger) *WebSocketServer {
	if logger == nil {
		logger = log.Default()
	}
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub:     hub,
		journal: j,
		auth:    auth,
		logger:  logger,
		conns:   make(map[string]*wsConn),
	}
}

// ServeHTTP handles the websocket upgrade.
func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, admin, err := ws.auth(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Printf("websocket upgrade: %v", err)
		return
	}

	sub := NewConnection(uuid.NewString(), sendBufferSize)
	wc := &wsConn{conn: conn, sub: sub, userID: userID, admin: admin}

	ws.mu.Lock()
	ws.conns[sub.ID] = wc
	ws.mu.Unlock()

	ws.hub.AddConnection(sub)
	ws.hub.Subscribe(sub, UserStream(userID))

	go ws.readLoop(wc)
	go ws.writeLoop(wc)
}

// command is the client-to-server message shape.
type command struct {
	Command string  `json:"command"`
	Booms   []int64 `json:"booms,omitempty"`
	// Treasury opts the admin stream in or out.
	Treasury bool `json:"treasury,omitempty"`
	// FromSeq starts a replay of the caller's user stream.
	FromSeq uint64 `json:"from_seq,omitempty"`
}

type commandReply struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

func (ws *WebSocketServer) readLoop(wc *wsConn) {
	defer ws.closeConn(wc)

	wc.conn.SetReadLimit(maxMessageSize)
	wc.conn.SetReadDeadline(time.Now().Add(readDeadline))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Printf("websocket %s: %v", wc.sub.ID, err)
			}
			return
		}
		ws.handleCommand(wc, message)
	}
}

func (ws *WebSocketServer) writeLoop(wc *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wc.sub.CloseChannel:
			return
		case <-ticker.C:
			wc.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.closeConn(wc)
				return
			}
		case data := <-wc.sub.SendChannel:
			wc.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := wc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				ws.closeConn(wc)
				return
			}
		}
	}
}

func (ws *WebSocketServer) handleCommand(wc *wsConn, message []byte) {
	var cmd command
	if err := json.Unmarshal(message, &cmd); err != nil {
		ws.reply(wc, commandReply{Type: "response", Status: "error", Error: "invalid JSON"})
		return
	}

	switch cmd.Command {
	case "subscribe":
		for _, boomID := range cmd.Booms {
			ws.hub.Subscribe(wc.sub, BoomStream(boomID))
		}
		if cmd.Treasury {
			if !wc.admin {
				ws.reply(wc, commandReply{Type: "response", Command: cmd.Command,
					Status: "error", Error: "treasury stream requires admin"})
				return
			}
			ws.hub.Subscribe(wc.sub, StreamTreasury)
		}
		ws.reply(wc, commandReply{Type: "response", Command: cmd.Command, Status: "success"})

	case "unsubscribe":
		for _, boomID := range cmd.Booms {
			ws.hub.Unsubscribe(wc.sub, BoomStream(boomID))
		}
		if cmd.Treasury {
			ws.hub.Unsubscribe(wc.sub, StreamTreasury)
		}
		ws.reply(wc, commandReply{Type: "response", Command: cmd.Command, Status: "success"})

	case "replay":
		ws.handleReplay(wc, cmd)

	case "ping":
		ws.reply(wc, commandReply{Type: "response", Command: cmd.Command, Status: "success"})

	default:
		ws.reply(wc, commandReply{Type: "response", Command: cmd.Command,
			Status: "error", Error: "unknown command"})
	}
}

// handleReplay resends the caller's own user stream from a sequence
// number, capped per request so one client cannot monopolize the
// journal.
func (ws *WebSocketServer) handleReplay(wc *wsConn, cmd command) {
	if ws.journal == nil {
		ws.reply(wc, commandReply{Type: "response", Command: cmd.Command,
			Status: "error", Error: "replay unavailable"})
		return
	}

	stream := UserStream(wc.userID)
	sent := 0
	err := ws.journal.Replay(string(stream), cmd.FromSeq, func(rec *journal.Record) error {
		if sent >= replayBatchSize {
			return nil
		}
		data, err := json.Marshal(StreamMessage{
			Type:    rec.Type,
			Stream:  stream,
			Seq:     rec.Seq,
			UserID:  rec.UserID,
			BoomID:  rec.BoomID,
			Payload: rec.Payload,
			At:      rec.At,
		})
		if err != nil {
			return err
		}
		select {
		case wc.sub.SendChannel <- data:
			sent++
		case <-wc.sub.CloseChannel:
		}
		return nil
	})
	if err != nil {
		ws.reply(wc, commandReply{Type: "response", Command: cmd.Command,
			Status: "error", Error: "replay failed"})
		return
	}
	ws.reply(wc, commandReply{Type: "response", Command: cmd.Command, Status: "success"})
}

func (ws *WebSocketServer) reply(wc *wsConn, r commandReply) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case wc.sub.SendChannel <- data:
	case <-wc.sub.CloseChannel:
	default:
	}
}

func (ws *WebSocketServer) closeConn(wc *wsConn) {
	ws.mu.Lock()
	_, open := ws.conns[wc.sub.ID]
	delete(ws.conns, wc.sub.ID)
	ws.mu.Unlock()
	if !open {
		return
	}

	ws.hub.RemoveConnection(wc.sub.ID)
	wc.conn.Close()
}
