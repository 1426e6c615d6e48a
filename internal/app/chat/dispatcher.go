package chat

import (
	"github.com/rs/zerolog"

	"dmchat/internal/app/message"
	"dmchat/internal/app/user"
	"dmchat/internal/pkg/logx"
)

// Notifier addresses a payload to one user's live session.
type Notifier interface {
	Unicast(userID int64, payload any) bool
}

// Dispatcher routes persisted messages to their receiver's live session.
type Dispatcher struct {
	notifier Notifier
	logger   zerolog.Logger
}

// NewDispatcher returns a Dispatcher delivering through n.
func NewDispatcher(n Notifier) *Dispatcher {
	return &Dispatcher{
		notifier: n,
		logger:   logx.Component("Dispatcher"),
	}
}

// Dispatch makes a single delivery attempt of msg to its receiver and reports whether it was delivered.
// An offline receiver is a normal outcome, not an error.
func (d *Dispatcher) Dispatch(msg message.Message, sender user.Summary) bool {
	delivered := d.notifier.Unicast(msg.ReceiverID, NewMessageEvent(msg, sender))

	d.logger.Debug().
		Int64("message_id", msg.ID).
		Int64("receiver_id", msg.ReceiverID).
		Bool("delivered", delivered).
		Msg("Message dispatched")

	return delivered
}
