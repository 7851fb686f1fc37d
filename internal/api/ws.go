package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// wsHandler streams frames: the current one on connect, then one per change.
func (s *APIServer) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	model := s.engine.Model()
	frames, unsubscribe := model.Subscribe()
	defer unsubscribe()

	log := s.logger.With(zap.String("remote", r.RemoteAddr))
	log.Info("WebSocket client connected")

	// The reader only handles control frames; it ends when the client goes away.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := s.writeFrame(conn, model.Frame()); err != nil {
		log.Warn("Failed to send initial frame", zap.Error(err))
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			log.Info("WebSocket client disconnected")
			return
		case <-s.shutdown:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case f := <-frames:
			if err := s.writeFrame(conn, f); err != nil {
				log.Warn("Failed to send frame", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn("Ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *APIServer) writeFrame(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
