package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"beatbrowser/internal/browser"
	"beatbrowser/pkg/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = 30 * time.Second
	wsMaxMessage   = 4096
	wsReplyBacklog = 8
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Outbound WebSocket message types
const (
	MessageSnapshot = "snapshot"
	MessageResult   = "result"
	MessageError    = "error"
)

// Message is one frame sent to a WebSocket client
type Message struct {
	Type     string            `json:"type"`
	ClientID string            `json:"clientId,omitempty"`
	Snapshot *browser.Snapshot `json:"snapshot,omitempty"`
	Row      *models.RowView   `json:"row,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// handleWebSocket streams snapshots to the client and accepts row commands.
// Any number of clients may follow and drive the same browser.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := s.sessions.Register(r.UserAgent(), r.RemoteAddr)
	log := s.logger.WithField("client_id", client.ID)
	log.Debug("WebSocket client connected")

	publisher := s.browser.Publisher()
	snapshots := publisher.Subscribe()
	replies := make(chan Message, wsReplyBacklog)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		publisher.Unsubscribe(snapshots)
		s.sessions.Remove(client.ID)
		conn.Close()
		log.Debug("WebSocket client disconnected")
	}()

	go s.readCommands(ctx, cancel, conn, client.ID, replies, log)

	if latest := publisher.Latest(); latest != nil {
		if err := writeMessage(conn, Message{Type: MessageSnapshot, ClientID: client.ID, Snapshot: latest}); err != nil {
			return
		}
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case snap, ok := <-snapshots:
			if !ok {
				// Dropped as a slow subscriber
				log.Warn("WebSocket client fell behind, closing")
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"))
				return
			}
			if err := writeMessage(conn, Message{Type: MessageSnapshot, Snapshot: snap}); err != nil {
				return
			}
		case reply := <-replies:
			if err := writeMessage(conn, reply); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readCommands decodes and executes client commands until the connection
// fails, then cancels the session
func (s *Server) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, clientID string, replies chan<- Message, log *logrus.Entry) {
	defer cancel()

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		s.sessions.Touch(clientID, false)
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		reply := s.handleCommandMessage(ctx, clientID, data)
		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

// handleCommandMessage runs one inbound frame and builds the reply
func (s *Server) handleCommandMessage(ctx context.Context, clientID string, data []byte) Message {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Message{Type: MessageError, Error: "invalid command"}
	}
	cmd.RowID = sanitizeInput(cmd.RowID)
	if errs := validateCommand(cmd); len(errs) > 0 {
		return Message{Type: MessageError, Errors: errs}
	}

	s.sessions.Touch(clientID, true)
	view, err := s.execute(ctx, cmd)
	if err != nil {
		if errors.Is(err, browser.ErrUnknownRow) {
			return Message{Type: MessageError, Error: "row not found"}
		}
		return Message{Type: MessageError, Error: err.Error()}
	}
	return Message{Type: MessageResult, Row: &view}
}

func writeMessage(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
