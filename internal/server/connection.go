package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"blackjacktable/internal/auth"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// ErrConnectionClosed is returned when sending on a closed connection.
var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one websocket client. The identity and table binding are
// fixed at upgrade time; only the send queue and lifecycle are mutable.
type Connection struct {
	id       string
	identity string
	tableID  string

	conn      *websocket.Conn
	send      chan *Message
	host      *TableHost
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded websocket bound to identity and host.
func NewConnection(id, identity string, conn *websocket.Conn, host *TableHost, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		id:       id,
		identity: identity,
		tableID:  host.ID(),
		conn:     conn,
		send:     make(chan *Message, 64),
		host:     host,
		logger:   logger.WithPrefix("conn").With("conn", id, "player", identity),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// Identity returns the authenticated identity bound at upgrade time.
func (c *Connection) Identity() string { return c.identity }

// TableID returns the table this connection is attached to.
func (c *Connection) TableID() string { return c.tableID }

// Start begins the read and write pumps.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for delivery. Slow consumers are dropped:
// a full send buffer closes the connection rather than blocking the table.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel closed during shutdown; the message is lost by design
			// of the fire-and-forget contract.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage routes one inbound frame. Malformed or unauthorized frames
// are dropped; the sender infers rejection from the missing snapshot.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "room", msg.Room, "type", msg.Type)

	if msg.Room != RoomBlackjack {
		c.logger.Warn("message for unknown room dropped", "room", msg.Room)
		return
	}
	if c.identity == auth.GuestID {
		c.logger.Debug("guest intent dropped", "type", msg.Type)
		return
	}

	intent, err := ParseIntent(msg)
	if err != nil {
		c.logger.Warn("malformed message dropped", "type", msg.Type, "error", err)
		return
	}

	c.host.Dispatch(c.id, c.identity, intent)
}
