/******************************************************************************
 *
 *  Description :
 *
 *    session.Connection implemented over a gorilla/websocket connection.
 *    Modeled on server/session.go's queueOut/dispatchRaw split: outbound
 *    frames go through a buffered channel drained by a dedicated write
 *    pump, so Send never blocks the caller on network I/O.
 *
 *****************************************************************************/

package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/collabhub/sessionproxy/internal/logs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	sendQueueSize    = 256
	sendQueueTimeout = 50 * time.Microsecond
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
)

var (
	errSendQueueFull = errors.New("ws: send queue full")
	errConnClosed    = errors.New("ws: connection closed")
)

// Conn adapts one upgraded websocket to session.Connection. Its identity
// (ID) is a fresh UUID, independent of whatever session/user identity is
// layered on top by the proxy.
type Conn struct {
	id string
	ws *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once
}

// Accept upgrades r to a websocket and starts the connection's read and
// write pumps. onMessage is invoked from the read pump's goroutine for
// every inbound frame; onClose is invoked exactly once, from the same
// goroutine, after the socket is no longer usable.
func Accept(w http.ResponseWriter, r *http.Request, onMessage func(*Conn, []byte), onClose func(*Conn)) (*Conn, error) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		id:   uuid.NewString(),
		ws:   sock,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	sock.SetReadDeadline(time.Now().Add(pongWait))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()
	go c.readPump(onMessage, onClose)
	return c, nil
}

// ID implements session.Connection.
func (c *Conn) ID() string { return c.id }

// Send implements session.Connection: a non-blocking enqueue onto the
// write pump's channel, with a short timeout to detect and shed a
// pathologically slow consumer rather than stall the caller.
func (c *Conn) Send(frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errConnClosed
	case <-time.After(sendQueueTimeout):
		logs.Warn.Printf("ws: dropping frame to %s, send queue full", c.id)
		return errSendQueueFull
	}
}

// Close stops the write pump and closes the underlying socket. Safe to
// call more than once.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.ws.Close()
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Conn) readPump(onMessage func(*Conn, []byte), onClose func(*Conn)) {
	defer func() {
		c.Close()
		onClose(c)
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		onMessage(c, data)
	}
}
