package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abdelslam1997/light-messages-backend/internal/messenger"
	"github.com/abdelslam1997/light-messages-backend/internal/realtime"
)

// SendMessageController persists a message and fans it out to the receiver's
// live connections. The response does not depend on whether any subscriber
// was present.
type SendMessageController struct {
	Store      messenger.Store
	Dispatcher *realtime.Dispatcher
}

func NewSendMessageController(store messenger.Store, dispatcher *realtime.Dispatcher) *SendMessageController {
	return &SendMessageController{Store: store, Dispatcher: dispatcher}
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(ContextUserKey)
		receiverID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
		if err != nil || receiverID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user id must be a positive integer"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msg, err := h.Store.Append(ctx, userID, receiverID, req.Body)
		if err != nil {
			status, payload := sendErrorResponse(err)
			c.JSON(status, payload)
			return
		}

		h.Dispatcher.MessageCreated(ctx, msg)

		c.JSON(http.StatusCreated, messageJSON(msg))
	}
}

func sendErrorResponse(err error) (int, gin.H) {
	switch {
	case errors.Is(err, messenger.ErrEmptyBody):
		return http.StatusBadRequest, gin.H{"errors": gin.H{"body": "message body is required"}}
	case errors.Is(err, messenger.ErrMessageTooLong):
		return http.StatusBadRequest, gin.H{"errors": gin.H{"body": "message body exceeds the maximum length"}}
	case errors.Is(err, messenger.ErrSelfMessage):
		return http.StatusBadRequest, gin.H{"errors": gin.H{"receiver": "sender and receiver must be different users"}}
	case errors.Is(err, messenger.ErrReceiverNotFound):
		return http.StatusNotFound, gin.H{"error": "receiver not found"}
	default:
		return http.StatusInternalServerError, gin.H{"error": "failed to send message"}
	}
}
