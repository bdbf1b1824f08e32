package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP connections to WebSockets for display boards.
type Server struct {
	ctx          context.Context
	hub          *Hub
	board        *Board
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server. Connections are closed when ctx is done.
func NewServer(ctx context.Context, hub *Hub, board *Board, writeTimeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		ctx:          ctx,
		hub:          hub,
		board:        board,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /ws/board endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	connection := NewConnection(uuid.NewString(), conn, s.writeTimeout, s.logger, func(id string) {
		s.hub.Remove(id)
		cancel()
	})
	s.hub.Add(connection)

	if frame, err := s.board.Snapshot(ctx); err == nil {
		connection.Send(frame)
	} else {
		s.logger.Warn("failed to send initial occupancy", zap.Error(err))
	}

	go connection.Start(ctx)
	s.logger.Info("board connected", zap.String("board_id", connection.ID()))
}
