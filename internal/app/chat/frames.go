/*
Package chat contains the real-time direct-message delivery core.

This file defines the JSON frames exchanged over a session's websocket.
*/
package chat

import (
	"encoding/json"

	"dmchat/internal/app/message"
	"dmchat/internal/app/user"
)

// Event types sent from the server.
const (
	// TypeNewMessage notifies a recipient of a message addressed to them.
	TypeNewMessage = "new_message"

	// TypeMessageStatus acknowledges an accepted inbound frame to its sender.
	TypeMessageStatus = "message_status"

	// TypeUserOnline announces that a user opened a session.
	TypeUserOnline = "user_online"

	// TypeUserOffline announces that a user's last session ended.
	TypeUserOffline = "user_offline"
)

// Error texts sent in error frames.
const (
	ErrTextInvalidFormat = "Invalid message format"
	ErrTextSaveFailed    = "Failed to save message"
)

// DeliveryStatus tells a sender whether a message reached a live recipient.
type DeliveryStatus string

const (
	// StatusDelivered means the recipient had a session and the write to it succeeded.
	StatusDelivered DeliveryStatus = "delivered"

	// StatusSent means the message is persisted but the recipient was offline or unreachable.
	StatusSent DeliveryStatus = "sent"
)

// StatusFor maps a unicast outcome to the status reported to the sender.
func StatusFor(delivered bool) DeliveryStatus {
	if delivered {
		return StatusDelivered
	}
	return StatusSent
}

// Event is the envelope of every server-initiated frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NotificationData is the payload of a new_message event: the message fields plus the sender summary.
type NotificationData struct {
	message.Message
	Sender user.Summary `json:"sender"`
}

// StatusData is the payload of a message_status event.
type StatusData struct {
	Status  DeliveryStatus  `json:"status"`
	Message message.Message `json:"message"`
}

// PresenceData is the payload of user_online and user_offline events.
type PresenceData struct {
	UserID int64 `json:"user_id"`
}

// ErrorFrame reports a recoverable problem with the last inbound frame.
type ErrorFrame struct {
	Error string `json:"error"`
}

// NewMessageEvent builds the notification delivered to a message's receiver.
func NewMessageEvent(m message.Message, sender user.Summary) Event {
	return Event{
		Type: TypeNewMessage,
		Data: NotificationData{Message: m, Sender: sender},
	}
}

// MessageStatusEvent builds the acknowledgment returned to a message's sender.
func MessageStatusEvent(m message.Message, status DeliveryStatus) Event {
	return Event{
		Type: TypeMessageStatus,
		Data: StatusData{Status: status, Message: m},
	}
}

// PresenceEvent builds a user_online or user_offline event.
func PresenceEvent(eventType string, userID int64) Event {
	return Event{
		Type: eventType,
		Data: PresenceData{UserID: userID},
	}
}

// inboundFrame is what clients send. Pointers distinguish missing fields from zero values.
// receiver_id must be a JSON number; a numeric string such as "5" is rejected.
type inboundFrame struct {
	ReceiverID *int64  `json:"receiver_id"`
	Content    *string `json:"content"`
}

// parseInbound decodes a client frame. ok is false when the frame is not a JSON
// object carrying a positive integer receiver_id and a string content.
func parseInbound(data []byte) (receiverID int64, content string, ok bool) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return 0, "", false
	}

	if frame.ReceiverID == nil || frame.Content == nil || *frame.ReceiverID <= 0 {
		return 0, "", false
	}

	return *frame.ReceiverID, *frame.Content, true
}

// encodePayload turns a payload into frame bytes, passing pre-encoded bytes through.
func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}
