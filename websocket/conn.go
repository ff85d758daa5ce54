// Package websocket is the transport layer: it upgrades an
// authenticated HTTP request to a gorilla/websocket connection and
// runs its read/write pumps. All writes go through a buffered channel
// drained by a single writer goroutine, since concurrent
// EmitToUser/EmitToRoom calls from unrelated goroutines must never
// race on a single gorilla connection (gorilla requires one writer at
// a time).
package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 16
)

var errConnClosed = errors.New("websocket: connection closed")

// Conn wraps a *websocket.Conn to satisfy registry.Conn. All writes go
// through a buffered channel drained by a single writePump goroutine.
type Conn struct {
	ws        *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// WriteJSON marshals v and queues it for the write pump. It returns an
// error if the connection is already closed, or drops the message and
// returns an error if the send buffer stays full for two seconds, so
// the Session Registry is never blocked longer than that.
func (c *Conn) WriteJSON(v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.send <- body:
		return nil
	case <-c.closed:
		return errConnClosed
	case <-time.After(2 * time.Second):
		return errors.New("websocket: slow consumer, message dropped")
	}
}

// Close marks the connection closed; the write pump tears down the
// underlying socket. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case body, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump blocks reading frames until the connection errors or
// closes, invoking handle for each decoded frame body. It never
// returns until the connection is gone.
func (c *Conn) readPump(handle func(data []byte)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		handle(data)
	}
}
