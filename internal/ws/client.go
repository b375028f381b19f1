// Package ws is the WebSocket transport: it turns connections into client
// handles the engine can broadcast to, and feeds inbound intents into the
// hub and its projects.
package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkwell-md/inkwell/internal/hub"
	"github.com/inkwell-md/inkwell/internal/project"
	"github.com/inkwell-md/inkwell/internal/protocol"
	"github.com/inkwell-md/inkwell/internal/ratelimit"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 1024 * 1024
	messagesPerSecond = 100
	messageBurst      = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one connected editing session. It implements registry.Conn:
// Send reports false once the client is gone or hopelessly backed up, which
// is the registries' signal to prune it.
type Client struct {
	hub      *hub.Hub
	conn     *websocket.Conn
	send     chan protocol.ServerMessage
	editorID protocol.EditorID
	limiter  *ratelimit.Limiter

	mu     sync.Mutex
	closed bool
}

// Send queues an outbound message. A single writer goroutine drains the
// queue, so one client's messages always arrive in broadcast order.
func (c *Client) Send(msg protocol.ServerMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		// Buffer full: the connection is slow or dead.
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ServeWs upgrades an HTTP request into an editing session.
func ServeWs(h *hub.Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan protocol.ServerMessage, 256),
		editorID: h.NewEditor(),
		limiter:  ratelimit.NewLimiter(messagesPerSecond, messageBurst),
	}

	go client.writePump()
	go client.readPump()

	h.Connect(client.editorID, client)
}

// clientMessage is one inbound intent.
type clientMessage struct {
	Type      string             `json:"type"`
	ProjectID protocol.ProjectID `json:"project_id"`
	FileID    protocol.FileID    `json:"file_id"`
	Name      string             `json:"name"`
	Src       string             `json:"src"`
	Kind      string             `json:"kind"` // "source" or "compiled"
	NewIndex  int                `json:"new_index"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.editorID)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if !c.limiter.Allow() {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(protocol.Error("invalid message"))
			continue
		}

		if err := c.handle(msg); err != nil {
			c.Send(protocol.Error(err.Error()))
		}
	}
}

func (c *Client) handle(msg clientMessage) error {
	switch msg.Type {
	case "create_project":
		_, err := c.hub.CreateProject(msg.Name, c.editorID)
		return err

	case "join_project":
		p, err := c.hub.Project(msg.ProjectID)
		if err != nil {
			return err
		}
		p.Join(c.editorID, c)
		return nil

	case "leave_project":
		p, err := c.hub.Project(msg.ProjectID)
		if err != nil {
			return err
		}
		p.Leave(c.editorID)
		return nil

	case "join_file":
		p, err := c.hub.Project(msg.ProjectID)
		if err != nil {
			return err
		}
		return p.JoinFile(msg.FileID, listenKind(msg.Kind), c.editorID, c)

	case "leave_file":
		p, err := c.hub.Project(msg.ProjectID)
		if err != nil {
			return err
		}
		return p.LeaveFile(msg.FileID, listenKind(msg.Kind), c.editorID)

	case "new_file":
		p, err := c.hub.Project(msg.ProjectID)
		if err != nil {
			return err
		}
		p.NewFile(msg.Name, msg.Src)
		return nil

	case "edit_file":
		p, err := c.hub.Project(msg.ProjectID)
		if err != nil {
			return err
		}
		_, err = p.EditFile(c.editorID, msg.FileID, msg.Src)
		var locked *project.LockedError
		if errors.As(err, &locked) {
			return err
		}
		// Source committed; a recompile failure is already logged.
		return nil

	case "reorder_file":
		p, err := c.hub.Project(msg.ProjectID)
		if err != nil {
			return err
		}
		return p.Reorder(c.editorID, msg.FileID, msg.NewIndex)

	default:
		return errors.New("unknown message type: " + msg.Type)
	}
}

func listenKind(kind string) project.ListenKind {
	if kind == "compiled" {
		return project.ListenCompiled
	}
	return project.ListenSource
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
