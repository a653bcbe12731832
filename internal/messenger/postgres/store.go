package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdelslam1997/light-messages-backend/internal/messenger"
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Store implements messenger.Store on top of Postgres. The messages table
// carries a check constraint mirroring the sender != receiver invariant and a
// foreign key to the directory-owned users table; see schema.sql.
type Store struct {
	pool      *pgxpool.Pool
	maxLength int
}

var _ messenger.Store = (*Store)(nil)

// NewStore builds a Store. maxLength bounds message bodies in runes; zero
// falls back to messenger.DefaultMaxBodyLength.
func NewStore(pool *pgxpool.Pool, maxLength int) *Store {
	return &Store{pool: pool, maxLength: maxLength}
}

func (s *Store) Append(ctx context.Context, senderID, receiverID int64, body string) (messenger.Message, error) {
	m, err := messenger.NewMessage(senderID, receiverID, body, s.maxLength)
	if err != nil {
		return messenger.Message{}, err
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages (sender_id, receiver_id, conversation_key, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.SenderID, m.ReceiverID, m.ConversationKey, m.Body).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgForeignKeyViolation:
				return messenger.Message{}, messenger.ErrReceiverNotFound
			case pgCheckViolation:
				return messenger.Message{}, messenger.ErrSelfMessage
			}
		}
		return messenger.Message{}, fmt.Errorf("messenger store: append: %w", err)
	}
	return m, nil
}

func (s *Store) ListConversation(ctx context.Context, key string, page messenger.Page) ([]messenger.Message, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_key = $1`, key,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("messenger store: count conversation: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, conversation_key, body, created_at, read
		FROM messages
		WHERE conversation_key = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, key, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("messenger store: list conversation: %w", err)
	}
	defer rows.Close()

	var msgs []messenger.Message
	for rows.Next() {
		var m messenger.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ConversationKey, &m.Body, &m.CreatedAt, &m.Read); err != nil {
			return nil, 0, fmt.Errorf("messenger store: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return msgs, total, nil
}

// MarkRead is a single conditional bulk update: only rows still unread are
// touched, so concurrent calls for the same conversation cannot both report
// changed rows for the same messages.
func (s *Store) MarkRead(ctx context.Context, key string, recipientID int64) (int64, int64, error) {
	var count, lastID int64
	err := s.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE messages
			SET read = TRUE
			WHERE conversation_key = $1 AND receiver_id = $2 AND read = FALSE
			RETURNING id
		)
		SELECT COUNT(*), COALESCE(MAX(id), 0) FROM updated
	`, key, recipientID).Scan(&count, &lastID)
	if err != nil {
		return 0, 0, fmt.Errorf("messenger store: mark read: %w", err)
	}
	return count, lastID, nil
}

// ListRecentConversations computes the top message per conversation in two
// cheap aggregate scans (sent-by and received-by), merges them by max id in
// memory, then fetches exactly the winning rows and batches the unread
// counts into one grouped query.
func (s *Store) ListRecentConversations(ctx context.Context, userID int64, page messenger.Page) ([]messenger.ConversationSummary, int64, error) {
	winners := make(map[string]int64)

	collect := func(query string) error {
		rows, err := s.pool.Query(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			var maxID int64
			if err := rows.Scan(&key, &maxID); err != nil {
				return err
			}
			if maxID > winners[key] {
				winners[key] = maxID
			}
		}
		return rows.Err()
	}

	if err := collect(`SELECT conversation_key, MAX(id) FROM messages WHERE sender_id = $1 GROUP BY conversation_key`); err != nil {
		return nil, 0, fmt.Errorf("messenger store: aggregate sent: %w", err)
	}
	if err := collect(`SELECT conversation_key, MAX(id) FROM messages WHERE receiver_id = $1 GROUP BY conversation_key`); err != nil {
		return nil, 0, fmt.Errorf("messenger store: aggregate received: %w", err)
	}

	total := int64(len(winners))
	if total == 0 {
		return nil, 0, nil
	}

	ids := make([]int64, 0, len(winners))
	for _, id := range winners {
		ids = append(ids, id)
	}
	// Newest conversation first; ids are monotonic within the log.
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	offset := page.Offset()
	if offset >= len(ids) {
		return nil, total, nil
	}
	end := offset + page.Size
	if page.Size <= 0 || end > len(ids) {
		end = len(ids)
	}
	ids = ids[offset:end]

	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, conversation_key, body, created_at
		FROM messages
		WHERE id = ANY($1)
		ORDER BY id DESC
	`, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("messenger store: fetch winners: %w", err)
	}
	defer rows.Close()

	summaries := make([]messenger.ConversationSummary, 0, len(ids))
	keys := make([]string, 0, len(ids))
	byKey := make(map[string]int)
	for rows.Next() {
		var m messenger.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ConversationKey, &m.Body, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("messenger store: scan winner: %w", err)
		}
		other := m.SenderID
		if m.SenderID == userID {
			other = m.ReceiverID
		}
		byKey[m.ConversationKey] = len(summaries)
		keys = append(keys, m.ConversationKey)
		summaries = append(summaries, messenger.ConversationSummary{
			OtherUserID: other,
			LastMessage: m.Body,
			LastID:      m.ID,
			Timestamp:   m.CreatedAt,
		})
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	// One grouped query for all unread counts on this page; never per row.
	counts, err := s.pool.Query(ctx, `
		SELECT conversation_key, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND read = FALSE AND conversation_key = ANY($2)
		GROUP BY conversation_key
	`, userID, keys)
	if err != nil {
		return nil, 0, fmt.Errorf("messenger store: unread counts: %w", err)
	}
	defer counts.Close()

	for counts.Next() {
		var key string
		var unread int64
		if err := counts.Scan(&key, &unread); err != nil {
			return nil, 0, fmt.Errorf("messenger store: scan unread count: %w", err)
		}
		if i, ok := byKey[key]; ok {
			summaries[i].UnreadCount = unread
		}
	}
	if counts.Err() != nil {
		return nil, 0, counts.Err()
	}

	return summaries, total, nil
}
