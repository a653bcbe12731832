package messenger

import (
	"context"
	"time"
)

// Page is a page-number pagination request. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// Offset converts the page request into a row offset.
func (p Page) Offset() int {
	n := p.Number
	if n < 1 {
		n = 1
	}
	return (n - 1) * p.Size
}

// ConversationSummary is one entry of the recent-conversations view: the most
// recent message exchanged with one other participant plus the number of
// messages still unread by the requesting user.
type ConversationSummary struct {
	OtherUserID int64
	LastMessage string
	LastID      int64
	Timestamp   time.Time
	UnreadCount int64
}

// Store is the persistence boundary for the append-only message log.
//
// Append rejects invalid writes synchronously with the typed errors declared
// in this package and never partially persists a message. MarkRead must be a
// single conditional bulk update so that concurrent calls for the same
// conversation cannot double count.
type Store interface {
	Append(ctx context.Context, senderID, receiverID int64, body string) (Message, error)

	// ListConversation returns messages for one conversation key, newest
	// first with (created_at DESC, id DESC) ordering, plus the total count
	// for pagination.
	ListConversation(ctx context.Context, key string, page Page) ([]Message, int64, error)

	// MarkRead flips read=false->true for every message in the conversation
	// addressed to recipientID. It reports how many rows changed and the
	// highest message id touched (0 when nothing was unread).
	MarkRead(ctx context.Context, key string, recipientID int64) (count int64, lastID int64, err error)

	// ListRecentConversations returns one summary per distinct other
	// participant, ordered by recency, plus the total number of
	// conversations.
	ListRecentConversations(ctx context.Context, userID int64, page Page) ([]ConversationSummary, int64, error)
}
