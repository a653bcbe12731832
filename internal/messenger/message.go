package messenger

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Validation errors surfaced to the API layer. All of them are rejected
// before anything touches storage.
var (
	ErrSelfMessage      = errors.New("messenger: sender and receiver must be different users")
	ErrEmptyBody        = errors.New("messenger: message body is empty")
	ErrMessageTooLong   = errors.New("messenger: message body exceeds the maximum length")
	ErrReceiverNotFound = errors.New("messenger: receiver does not exist")
)

// DefaultMaxBodyLength bounds the message body in Unicode code points when no
// explicit limit is configured.
const DefaultMaxBodyLength = 2048

// Message is an immutable entry in the append-only conversation log.
// ID and CreatedAt are store-assigned; ConversationKey is derived from the
// two participant ids and never set independently.
type Message struct {
	ID              int64     `json:"id"`
	SenderID        int64     `json:"sender_id"`
	ReceiverID      int64     `json:"receiver_id"`
	Body            string    `json:"body"`
	CreatedAt       time.Time `json:"created_at"`
	Read            bool      `json:"read"`
	ConversationKey string    `json:"-"`
}

// ConversationKey derives the stable, order-independent identifier for the
// conversation between two users: "{min}_{max}".
func ConversationKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// ValidateBody checks the body against the rune bound. maxLen <= 0 falls back
// to DefaultMaxBodyLength.
func ValidateBody(body string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxBodyLength
	}
	if body == "" {
		return ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > maxLen {
		return ErrMessageTooLong
	}
	return nil
}

// NewMessage validates a send request and shapes the message ready to
// persist. The store still assigns ID and CreatedAt.
func NewMessage(senderID, receiverID int64, body string, maxLen int) (Message, error) {
	if senderID == receiverID {
		return Message{}, ErrSelfMessage
	}
	if err := ValidateBody(body, maxLen); err != nil {
		return Message{}, err
	}
	return Message{
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Body:            body,
		ConversationKey: ConversationKey(senderID, receiverID),
	}, nil
}
