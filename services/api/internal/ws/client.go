package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 << 10
	sendBuffer     = 32
)

// Client is one upgraded socket. The hub owns the send channel; readPump and
// writePump are the only goroutines touching conn.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	group string
	role  string
}

func NewClient(hub *Hub, conn *websocket.Conn, group, role string) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		group: group,
		role:  role,
	}
}

// Run registers the client and starts both pumps. It returns when the socket
// closes.
func (c *Client) Run() {
	c.hub.register(c)
	go c.writePump()
	c.readPump()
}

// readPump drains the socket. Inbound traffic is limited to ping messages,
// which are answered with a pong; anything else is ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if isPing(msg) {
			select {
			case c.send <- []byte(`{"type":"pong"}`):
			default:
			}
		}
	}
}

// isPing parses the frame rather than comparing bytes, so clients whose
// serializers emit whitespace or reorder keys still get their pong.
func isPing(raw []byte) bool {
	var m struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(raw, &m) == nil && m.Type == "ping"
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
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
