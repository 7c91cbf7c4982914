package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/atultiwari1305/coon/pkg/chat"
	"github.com/atultiwari1305/coon/pkg/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var errSlowConsumer = errors.New("send queue full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is the transport session: one per websocket connection. It
// translates inbound frames into service calls and outbound service
// events into frames.
type Client struct {
	svc      *chat.Service
	registry *chat.Registry
	conn     *websocket.Conn
	log      zerolog.Logger

	// Buffered channel of outbound frames.
	send chan []byte

	id     string
	userID string
}

func (c *Client) ID() string { return c.id }

// Send queues an outbound event without blocking. The frame is shared:
// a broadcast marshals once for all subscribers. The registry drops this
// connection from the room when the queue is full.
func (c *Client) Send(ev *chat.Event) error {
	data, err := ev.Frame()
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSlowConsumer
	}
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRoomData struct {
	Room string `json:"room"`
}

type sendMessageData struct {
	Room      string    `json:"room"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	// SenderID is accepted for compatibility but the authenticated
	// identity is what gets persisted.
	SenderID string `json:"senderID"`
}

type deleteMessageData struct {
	MessageID int64  `json:"messageId"`
	UserID    string `json:"userId"`
}

type clearChannelData struct {
	ChannelName string `json:"channelName"`
	AdminID     string `json:"adminId"`
}

// readPump pumps frames from the websocket connection into the service.
func (c *Client) readPump() {
	defer func() {
		c.registry.UnsubscribeAll(c)
		c.conn.Close()
		metrics.OpenConnections.Dec()
		c.log.Info().Str("conn", c.id).Str("user", c.userID).Msg("disconnected")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Str("conn", c.id).Msg("read error")
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Warn().Err(err).Str("conn", c.id).Msg("malformed frame")
			continue
		}
		// One handler per inbound event; a slow store call on one frame
		// must not stall the connection's read loop.
		go c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame inboundFrame) {
	ctx := context.Background()

	switch frame.Event {
	case "join_room":
		var d joinRoomData
		if err := json.Unmarshal(frame.Data, &d); err != nil || d.Room == "" {
			return
		}
		_ = c.svc.JoinRoom(ctx, d.Room, c)

	case "send_message":
		var d sendMessageData
		if err := json.Unmarshal(frame.Data, &d); err != nil || d.Room == "" {
			return
		}
		if d.Timestamp.IsZero() {
			d.Timestamp = time.Now()
		}
		if _, err := c.svc.SendMessage(ctx, d.Room, c.userID, d.Message, d.Timestamp); err != nil {
			// Surfaced to the originating connection only.
			_ = c.Send(&chat.Event{Type: chat.EventError, Data: chat.ErrorPayload{Message: "message not sent"}})
		}

	case "delete_message":
		var d deleteMessageData
		if err := json.Unmarshal(frame.Data, &d); err != nil {
			return
		}
		// Unauthorized or failed deletes are a silent no-op on this
		// surface; the service has already logged and counted them.
		_ = c.svc.DeleteMessage(ctx, d.MessageID, c.userID)

	case "clear_channel":
		var d clearChannelData
		if err := json.Unmarshal(frame.Data, &d); err != nil || d.ChannelName == "" {
			return
		}
		_ = c.svc.ClearRoom(ctx, d.ChannelName, c.userID)

	default:
		c.log.Warn().Str("event", frame.Event).Str("conn", c.id).Msg("unknown event")
	}
}

// writePump pumps frames from the send queue to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// serveWs authenticates and upgrades a websocket request.
func (s *server) serveWs(w http.ResponseWriter, r *http.Request) {
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
		tokenString = tokenString[7:]
	}
	if tokenString == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := s.auth.ValidateToken(tokenString)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket auth failed")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		svc:      s.svc,
		registry: s.registry,
		conn:     conn,
		log:      s.log,
		send:     make(chan []byte, 256),
		id:       uuid.NewString(),
		userID:   claims.UserID,
	}
	metrics.OpenConnections.Inc()
	s.log.Info().Str("conn", client.id).Str("user", client.userID).Msg("connected")

	go client.writePump()
	go client.readPump()
}
