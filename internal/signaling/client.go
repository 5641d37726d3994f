package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	readLimit    = 65536
)

func marshalPayload(data interface{}) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return raw, nil
	}
}

// Client wraps one WebSocket connection's transport plumbing: a buffered
// outbound queue drained by writePump, and a blocking inbound read loop the
// caller drives via ReadLoop. It carries no signaling state — that lives in
// the Session the Engine builds around it.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan Message
	logger *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(id string, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan Message, 256),
		logger: logger,
		closed: make(chan struct{}),
	}
}

func (c *Client) ConnID() string { return c.id }

// Push enqueues a server->client event; drops silently if the send buffer is
// full (a stalled client must not block the hub).
func (c *Client) Push(event string, payload json.RawMessage) {
	select {
	case c.send <- Message{Event: event, Payload: payload}:
	default:
		c.logger.Warn("dropping push, client send buffer full", zap.String("conn_id", c.id), zap.String("event", event))
	}
}

// Ack enqueues a one-shot response to a request that carried an ackId.
func (c *Client) Ack(ackID string, data interface{}, errMsg string) {
	raw, err := marshalPayload(data)
	if err != nil {
		raw = nil
		errMsg = "internal: failed to encode response"
	}
	payload, _ := json.Marshal(Ack{AckID: ackID, Data: raw, Error: errMsg})
	select {
	case c.send <- Message{Event: "ack", Payload: payload, AckID: ackID}:
	default:
		c.logger.Warn("dropping ack, client send buffer full", zap.String("conn_id", c.id))
	}
}

// WritePump drains the send queue and heartbeats the connection. Runs until
// the connection errors or Close is called.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// ReadLoop blocks reading frames and invokes handler for each. Returns when
// the connection closes or errors.
func (c *Client) ReadLoop(handler func(Message)) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
		handler(msg)
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		close(c.send)
	})
}
