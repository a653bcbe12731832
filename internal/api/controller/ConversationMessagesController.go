package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abdelslam1997/light-messages-backend/internal/messenger"
	"github.com/abdelslam1997/light-messages-backend/internal/realtime"
)

// ConversationMessagesController lists one conversation newest first. Viewing
// the conversation marks everything addressed to the caller as read, and a
// read receipt is dispatched only when that actually changed rows.
type ConversationMessagesController struct {
	Store      messenger.Store
	Dispatcher *realtime.Dispatcher
	Pages      Paginator
}

func NewConversationMessagesController(store messenger.Store, dispatcher *realtime.Dispatcher, pages Paginator) *ConversationMessagesController {
	return &ConversationMessagesController{Store: store, Dispatcher: dispatcher, Pages: pages}
}

func (h *ConversationMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(ContextUserKey)
		otherID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
		if err != nil || otherID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user id must be a positive integer"})
			return
		}

		key := messenger.ConversationKey(userID, otherID)
		page := h.Pages.FromQuery(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		count, lastID, err := h.Store.MarkRead(ctx, key, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update read state"})
			return
		}
		if count > 0 {
			h.Dispatcher.MessagesRead(ctx, key, userID, otherID, lastID)
		}

		msgs, total, err := h.Store.ListConversation(ctx, key, page)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
			return
		}

		results := make([]gin.H, 0, len(msgs))
		for _, m := range msgs {
			results = append(results, messageJSON(m))
		}
		c.JSON(http.StatusOK, Envelope(page, total, results))
	}
}

func messageJSON(m messenger.Message) gin.H {
	return gin.H{
		"id":          m.ID,
		"sender_id":   m.SenderID,
		"receiver_id": m.ReceiverID,
		"body":        m.Body,
		"created_at":  m.CreatedAt,
		"read":        m.Read,
	}
}
