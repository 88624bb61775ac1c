package server

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-presence/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	conn         *websocket.Conn
	ps           *PresenceServer
	log          *log.Logger
	user         types.User
	send         chan *ServerEvent
	stop         chan struct{}
	stopOnce     sync.Once
	lastActivity atomic.Int64
}

func NewClient(user types.User, conn *websocket.Conn, ps *PresenceServer, l *log.Logger) *Client {
	c := &Client{
		conn: conn,
		ps:   ps,
		log:  l,
		user: user,
		send: make(chan *ServerEvent, 256),
		stop: make(chan struct{}),
	}
	c.touch()
	return c
}

func (c *Client) User() types.User {
	return c.user
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// staleSince reports whether the connection has shown no read activity since
// the given cutoff. Used by the health monitor to reconcile the registry
// against sockets that vanished without a close event.
func (c *Client) staleSince(cutoff time.Time) bool {
	return time.Unix(0, c.lastActivity.Load()).Before(cutoff)
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeEvent(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeFrame(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		c.touch()

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing event:", err)
			c.queueEvent(ErrInvalidPayload())
			continue
		}

		c.ps.dispatch(c, &ev)
	}
}

// queueEvent attempts to queue ev for delivery without blocking. A full
// channel means the client is too slow; the event is treated as undelivered.
func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case <-c.stop:
		return false
	default:
	}

	select {
	case c.send <- ev:
	default:
		c.log.Printf("send channel full for user %q, dropping event", c.user.Id)
		return false
	}

	return true
}

func serializeEvent(ev *ServerEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func (c *Client) writeFrame(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.ps.Disconnect(c)
	c.stopClient()
}
