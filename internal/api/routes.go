package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abdelslam1997/light-messages-backend/internal/api/controller"
	"github.com/abdelslam1997/light-messages-backend/internal/auth"
	"github.com/abdelslam1997/light-messages-backend/internal/config"
	"github.com/abdelslam1997/light-messages-backend/internal/directory"
	"github.com/abdelslam1997/light-messages-backend/internal/media"
	"github.com/abdelslam1997/light-messages-backend/internal/messenger"
	"github.com/abdelslam1997/light-messages-backend/internal/realtime"
)

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Store      messenger.Store
	Dispatcher *realtime.Dispatcher
	Fabric     realtime.Fabric
	Gate       *auth.Gate
	Directory  directory.Directory
	Media      *media.Resolver
	Cfg        config.Config
	Log        *slog.Logger
}

// RegisterRoutes mounts the conversation API, the websocket endpoint and the
// health probe.
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	conversationPages := controller.Paginator{DefaultSize: d.Cfg.ConversationPageSize, MaxSize: d.Cfg.MaxPageSize}
	messagePages := controller.Paginator{DefaultSize: d.Cfg.MessagePageSize, MaxSize: d.Cfg.MaxPageSize}

	listCtl := controller.NewConversationListController(d.Store, d.Directory, d.Media, conversationPages)
	messagesCtl := controller.NewConversationMessagesController(d.Store, d.Dispatcher, messagePages)
	sendCtl := controller.NewSendMessageController(d.Store, d.Dispatcher)
	socketCtl := controller.NewSocketController(d.Gate, d.Fabric, d.Cfg.PingInterval, d.Cfg.PongTimeout, d.Log)

	v1 := r.Group("/api/v1")
	conversations := v1.Group("/conversations", RequireAuth(d.Gate))
	conversations.GET("/", listCtl.Handle())
	conversations.GET("/:userID/messages/", messagesCtl.Handle())
	conversations.POST("/:userID/messages/", sendCtl.Handle())

	r.GET("/ws/messages/", socketCtl.Handle())
}

// RequireAuth resolves the Authorization bearer header and stores the user id
// on the request context. Headers without the Bearer scheme and anonymous
// requests are rejected with 401.
func RequireAuth(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		userID, ok := gate.Resolve(c.Request.Context(), credential)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(controller.ContextUserKey, userID)
	}
}
