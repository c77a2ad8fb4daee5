package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errSendBufferFull = errors.New("send buffer full")

// wsConfig holds the websocket keepalive and sizing knobs.
type wsConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// wsClient is one live websocket connection. Outbound events are marshaled
// onto a buffered channel drained by the write pump, so the read loop and
// hub broadcasts never block on a slow socket.
type wsClient struct {
	connID   int64
	userID   string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
	cfg      wsConfig
	log      zerolog.Logger
}

func newWSClient(userID string, conn *websocket.Conn, cfg wsConfig, log zerolog.Logger) *wsClient {
	return &wsClient{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		cfg:    cfg,
		log:    log,
	}
}

// Send queues an event for delivery. A full buffer means the client is not
// draining; report an error so the hub prunes the connection instead of
// blocking a broadcast.
func (c *wsClient) Send(e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return errors.New("connection closed")
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsClient) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// readPump reads client events until the connection drops and dispatches
// each to the server. Runs as the connection's single handler goroutine:
// storage calls block only this connection.
func (c *wsClient) readPump(s *Server) {
	defer func() {
		s.hub.Unregister(c.userID, c.connID)
		c.stop()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		s.dispatch(c, raw)
	}
}

// writePump drains the send channel to the socket and keeps the connection
// alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWS authenticates the handshake, upgrades the connection, registers
// it with the hub and replays pending messages before entering the read
// loop. A missing or invalid token refuses the connection outright.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	claims, err := s.auth.VerifyToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	log := s.log.With().Str("user_id", claims.UserID).Logger()
	client := newWSClient(claims.UserID, conn, s.wsCfg, log)
	client.connID = s.hub.Register(claims.UserID, client)
	log.Debug().Int64("conn_id", client.connID).Msg("connection registered")

	go client.writePump()

	// Replay undelivered messages to this connection only. Runs concurrently
	// with the read loop; a message arriving through the live send path at
	// the same time is absorbed by idempotent delivery marking and client
	// dedup by clientMsgId.
	go s.replayPending(client)

	client.readPump(s)
}
