package controller

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/abdelslam1997/light-messages-backend/internal/auth"
	"github.com/abdelslam1997/light-messages-backend/internal/realtime"
)

// SocketController upgrades authenticated clients to the realtime event
// stream. The credential travels as a "token" query parameter because
// browsers cannot set headers on websocket connects.
type SocketController struct {
	Gate         *auth.Gate
	Fabric       realtime.Fabric
	PingInterval time.Duration
	PongTimeout  time.Duration
	Log          *slog.Logger
}

func NewSocketController(gate *auth.Gate, fabric realtime.Fabric, pingInterval, pongTimeout time.Duration, log *slog.Logger) *SocketController {
	return &SocketController{
		Gate:         gate,
		Fabric:       fabric,
		PingInterval: pingInterval,
		PongTimeout:  pongTimeout,
		Log:          log,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks belong to the fronting proxy in this deployment.
		return true
	},
}

func (ctl *SocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		userID, ok := ctl.Gate.Resolve(c.Request.Context(), c.Query("token"))
		if !ok {
			// Anonymous connect: closed before any group join, no event emitted.
			deadline := time.Now().Add(5 * time.Second)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"), deadline)
			_ = ws.Close()
			return
		}

		session := realtime.NewSession(userID, ws, ctl.Fabric, ctl.PingInterval, ctl.PongTimeout, ctl.Log)
		session.Start()
		defer session.Close(websocket.CloseNormalClosure, "session closed")

		ws.SetReadLimit(1 << 20)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				// Covers client disconnects and transport errors alike; the
				// deferred Close leaves the group either way.
				return
			}
			var frame realtime.Envelope
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			if frame.Type == realtime.EventPong {
				session.Pong()
			}
			// Other inbound frames are not part of this subsystem.
		}
	}
}
