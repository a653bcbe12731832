package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abdelslam1997/light-messages-backend/internal/directory"
	"github.com/abdelslam1997/light-messages-backend/internal/media"
	"github.com/abdelslam1997/light-messages-backend/internal/messenger"
)

// ConversationListController serves the recent-conversations view: one entry
// per other participant with the last message and the unread count.
type ConversationListController struct {
	Store     messenger.Store
	Directory directory.Directory
	Media     *media.Resolver
	Pages     Paginator
}

func NewConversationListController(store messenger.Store, dir directory.Directory, resolver *media.Resolver, pages Paginator) *ConversationListController {
	return &ConversationListController{Store: store, Directory: dir, Media: resolver, Pages: pages}
}

func (h *ConversationListController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(ContextUserKey)
		page := h.Pages.FromQuery(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		summaries, total, err := h.Store.ListRecentConversations(ctx, userID, page)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
			return
		}

		results := make([]gin.H, 0, len(summaries))
		for _, s := range summaries {
			name, avatar := "", ""
			if u, err := h.Directory.LookupUser(ctx, s.OtherUserID); err == nil {
				name = u.DisplayName
				avatar = h.Media.URL(u.AvatarRef)
			}
			results = append(results, gin.H{
				"user_id":       s.OtherUserID,
				"first_name":    name,
				"profile_image": avatar,
				"last_message":  s.LastMessage,
				"timestamp":     s.Timestamp,
				"unread_count":  s.UnreadCount,
			})
		}

		c.JSON(http.StatusOK, Envelope(page, total, results))
	}
}
