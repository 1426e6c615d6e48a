package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dmchat/internal/app/message"
	"dmchat/internal/app/user"
)

// session is the loop serving one authenticated connection.
type session struct {
	m      *Manager
	client *Client
	user   user.User
	logger zerolog.Logger
}

func newSession(m *Manager, client *Client, u user.User) *session {
	return &session{
		m:      m,
		client: client,
		user:   u,
		logger: client.logger.With().Int64("user_id", u.ID).Logger(),
	}
}

// run registers the session, serves inbound frames until the connection ends,
// then releases the registry entry on every exit path.
func (s *session) run() {
	if prev := s.m.registry.Register(s.user.ID, s.client); prev != nil {
		if old, ok := prev.(*Client); ok {
			old.CloseWith(CloseCodeSessionReplaced, "session replaced")
		}
	}

	s.logger.Info().Msg("Session active")

	defer s.terminate()

	s.announce(TypeUserOnline)

	go s.client.keepAlive(s.m.ctx, s.m.opts.PongWait*9/10)

	s.readLoop()
}

func (s *session) terminate() {
	if r := recover(); r != nil {
		s.logger.Error().Err(fmt.Errorf("panic: %v", r)).Msg("Session loop panicked")
	}

	removed := s.m.registry.Release(s.user.ID, s.client)
	s.client.Close()

	if removed {
		s.announce(TypeUserOffline)
	}

	s.logger.Info().Bool("released", removed).Msg("Session closed")
}

func (s *session) announce(eventType string) {
	if !s.m.opts.PresenceEvents {
		return
	}
	s.m.registry.Broadcast(PresenceEvent(eventType, s.user.ID), s.user.ID)
}

func (s *session) readLoop() {
	conn := s.client.conn
	pongWait := s.m.opts.PongWait

	conn.SetReadLimit(maxMessageSize)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Read ended")
			}
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}

		s.handleFrame(data)
	}
}

// handleFrame persists one inbound message, dispatches it, and acknowledges it to the sender.
func (s *session) handleFrame(data []byte) {
	receiverID, content, ok := parseInbound(data)
	if !ok {
		s.logger.Debug().Int("frame_bytes", len(data)).Msg("Malformed inbound frame")
		s.reply(ErrorFrame{Error: ErrTextInvalidFormat})
		return
	}

	ctx, cancel := context.WithTimeout(s.m.ctx, s.m.opts.PersistTimeout)
	defer cancel()

	msg, err := s.m.messages.CreateMessage(ctx, message.New{
		SenderID:   s.user.ID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.m.now(),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("receiver_id", receiverID).Msg("Failed to save message")
		s.reply(ErrorFrame{Error: ErrTextSaveFailed})
		return
	}

	delivered := s.m.dispatcher.Dispatch(msg, s.user.Summary())

	s.reply(MessageStatusEvent(msg, StatusFor(delivered)))
}

func (s *session) reply(v any) {
	if err := s.client.WriteJSON(v); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write reply")
	}
}
