package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
	"github.com/pkordes/wine-catalog/backend/internal/filter"
	"github.com/pkordes/wine-catalog/backend/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// LiveCommand is a client message on /wines/live. Either field may be omitted.
type LiveCommand struct {
	Filter   *string `json:"filter,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// LiveLookup is pushed on /wines/{id}/live. Wine is omitted when Found is false.
type LiveLookup struct {
	Found bool         `json:"found"`
	Wine  *domain.Wine `json:"wine,omitempty"`
}

// LiveWines handles GET /wines/live.
// Every committed collection change and every filter command from the client
// produces a filter.View pushed as JSON.
func (s *Server) LiveWines(w http.ResponseWriter, r *http.Request) {
	sub, err := s.wines.Observe()
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	defer sub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := filter.NewEngine()
	filters := make(chan string)
	go s.readLoop(conn, cancel, func(msg []byte) {
		var cmd LiveCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			return
		}
		if cmd.Position != nil {
			engine.SelectPosition(*cmd.Position)
		}
		if cmd.Filter != nil {
			select {
			case filters <- *cmd.Filter:
			case <-ctx.Done():
			}
		}
	})
	go keepAlive(ctx, conn)

	err = engine.Run(ctx, sub.C(), filters, func(v filter.View) {
		if v.Entries == nil {
			v.Entries = []domain.Wine{}
		}
		if err := writeMessage(conn, v); err != nil {
			cancel()
		}
	})
	if err == nil {
		// The store closed the collection.
		closeConn(conn, websocket.CloseGoingAway, "catalogue closed")
	}
}

// LiveWine handles GET /wines/{id}/live.
// It pushes the entry's current state and every later change, including its
// deletion.
func (s *Server) LiveWine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sub, err := s.wines.Select(id)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	defer sub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.readLoop(conn, cancel, func([]byte) {})
	go keepAlive(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-sub.C():
			if !ok {
				closeConn(conn, websocket.CloseGoingAway, "catalogue closed")
				return
			}
			if err := writeMessage(conn, toLiveLookup(l)); err != nil {
				return
			}
		}
	}
}

func toLiveLookup(l store.Lookup) LiveLookup {
	if !l.Found {
		return LiveLookup{}
	}
	return LiveLookup{Found: true, Wine: &l.Wine}
}

// readLoop passes client messages to handle until the connection fails, then
// calls cancel.
func (s *Server) readLoop(conn *websocket.Conn, cancel context.CancelFunc, handle func([]byte)) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read ended", "error", err)
			}
			return
		}
		handle(msg)
	}
}

// keepAlive pings the client until ctx is done. WriteControl may run
// concurrently with the data writer.
func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
