package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamEvent is the wire form of a collection change. Value is the entity
// JSON and is absent for deletes.
type StreamEvent struct {
	Action     models.ChangeAction `json:"action"`
	Collection string              `json:"collection"`
	ID         string              `json:"id"`
	Version    int                 `json:"version,omitempty"`
	Value      json.RawMessage     `json:"value,omitempty"`
}

func encodeStreamEvent(ev models.ChangeEvent) ([]byte, error) {
	out := StreamEvent{
		Action:     ev.Action,
		Collection: ev.Collection,
		ID:         ev.ID,
	}
	if ev.Document != nil {
		out.Version = ev.Document.Version
		if ev.Document.Value != "" {
			out.Value = json.RawMessage(ev.Document.Value)
		}
	}
	return json.Marshal(out)
}

// streamClient forwards one owner's change feed to one websocket.
type streamClient struct {
	conn   *websocket.Conn
	events <-chan models.ChangeEvent
	cancel context.CancelFunc
	logger *common.Logger
}

// handleStream handles GET /api/stream/{collection}: the connection is
// upgraded to a websocket that receives every change to the caller's
// documents in that collection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	collection := PathParam(r, "/api/stream/", "")
	if !models.ValidCollection(collection) {
		WriteErrorWithCode(w, http.StatusNotFound, "unknown collection: "+collection, "not_found")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	events, err := s.app.Store.Watch(ctx, collection, ownerID)
	if err != nil {
		cancel()
		s.WriteServiceError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	s.logger.Debug().
		Str("owner_id", ownerID).
		Str("collection", collection).
		Msg("Change stream connected")

	c := &streamClient{conn: conn, events: events, cancel: cancel, logger: s.logger}
	go c.readPump()
	c.writePump()

	s.logger.Debug().
		Str("owner_id", ownerID).
		Str("collection", collection).
		Msg("Change stream disconnected")
}

// writePump sends change events to the websocket until the feed closes or a
// write fails.
func (c *streamClient) writePump() {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.events:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := encodeStreamEvent(ev)
			if err != nil {
				c.logger.Warn().Err(err).Str("id", ev.ID).Msg("Failed to marshal change event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads from the websocket only to detect close; cancelling the
// watch closes the event channel and stops writePump.
func (c *streamClient) readPump() {
	defer c.cancel()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
