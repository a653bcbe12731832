package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/abdelslam1997/light-messages-backend/internal/messenger"
)

// Wire event discriminators. Ping/pong belong to the heartbeat protocol;
// new_message and read_message are the fan-out events.
const (
	EventPing        = "ping"
	EventPong        = "pong"
	EventNewMessage  = "new_message"
	EventReadMessage = "read_message"
)

// Envelope carries the type discriminator of any inbound frame.
type Envelope struct {
	Type string `json:"type"`
}

type messagePayload struct {
	ID        int64     `json:"id"`
	SenderID  int64     `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type newMessageEvent struct {
	Type    string         `json:"type"`
	Message messagePayload `json:"message"`
}

type readMessagePayload struct {
	LastReadMessageID int64 `json:"last_read_message_id"`
	ReaderID          int64 `json:"reader_id"`
}

type readMessageEvent struct {
	Type    string             `json:"type"`
	Message readMessagePayload `json:"message"`
}

var pingPayload = []byte(`{"type":"ping"}`)

// UserGroup names the fabric group owned by one user.
func UserGroup(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// NewMessageEvent encodes the fan-out frame for a freshly persisted message.
func NewMessageEvent(m messenger.Message) ([]byte, error) {
	return json.Marshal(newMessageEvent{
		Type: EventNewMessage,
		Message: messagePayload{
			ID:        m.ID,
			SenderID:  m.SenderID,
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		},
	})
}

// ReadMessageEvent encodes the read-receipt frame sent to the original sender.
func ReadMessageEvent(lastReadMessageID, readerID int64) ([]byte, error) {
	return json.Marshal(readMessageEvent{
		Type: EventReadMessage,
		Message: readMessagePayload{
			LastReadMessageID: lastReadMessageID,
			ReaderID:          readerID,
		},
	})
}
