package controller

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/abdelslam1997/light-messages-backend/internal/auth"
	"github.com/abdelslam1997/light-messages-backend/internal/directory"
	"github.com/abdelslam1997/light-messages-backend/internal/realtime"
)

const socketTestSecret = "socket-test-secret"

func socketToken(t *testing.T, userID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(socketTestSecret))
	require.NoError(t, err)
	return signed
}

func newSocketServer(t *testing.T, fabric realtime.Fabric, pingInterval, pongTimeout time.Duration) *httptest.Server {
	t.Helper()

	dir := &fakeDirectory{users: map[int64]directory.User{
		1: {ID: 1, DisplayName: "Adam"},
		2: {ID: 2, DisplayName: "Sara"},
	}}
	gate := auth.NewGate(socketTestSecret, dir, testLogger())
	ctl := NewSocketController(gate, fabric, pingInterval, pongTimeout, testLogger())

	r := gin.New()
	r.GET("/ws/messages/", ctl.Handle())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialSocket(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/messages/"
	if token != "" {
		url += "?token=" + token
	}
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestSocket_AnonymousConnectIsClosed(t *testing.T) {
	req := require.New(t)
	fabric := realtime.NewLocalFabric()
	srv := newSocketServer(t, fabric, time.Hour, time.Minute)

	ws := dialSocket(t, srv, "")
	ws.SetReadDeadline(time.Now().Add(time.Second))

	_, _, err := ws.ReadMessage()
	req.Error(err)
	closeErr, ok := err.(*websocket.CloseError)
	req.True(ok, "expected a close frame, got %v", err)
	req.Equal(websocket.ClosePolicyViolation, closeErr.Code)
	req.Equal("authentication required", closeErr.Text)

	// Nothing was ever joined, so publishes find nobody.
	req.Zero(fabric.Publish(realtime.UserGroup(1), []byte("x")))
}

func TestSocket_AuthenticatedConnectReceivesFanout(t *testing.T) {
	req := require.New(t)
	fabric := realtime.NewLocalFabric()
	srv := newSocketServer(t, fabric, time.Hour, time.Minute)

	ws := dialSocket(t, srv, socketToken(t, 2))

	// The join happens during the upgrade handshake handling; wait for it.
	req.Eventually(func() bool {
		return fabric.Publish(realtime.UserGroup(2), []byte(`{"type":"new_message"}`)) == 1
	}, time.Second, 5*time.Millisecond)

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := ws.ReadMessage()
	req.NoError(err)

	var frame realtime.Envelope
	req.NoError(json.Unmarshal(data, &frame))
	req.Equal(realtime.EventNewMessage, frame.Type)
}

func TestSocket_PongKeepsConnectionAlive(t *testing.T) {
	req := require.New(t)
	fabric := realtime.NewLocalFabric()
	srv := newSocketServer(t, fabric, 30*time.Millisecond, 25*time.Millisecond)

	ws := dialSocket(t, srv, socketToken(t, 1))

	// Answer every application-level ping for a while; the session must
	// outlive several heartbeat cycles.
	deadline := time.Now().Add(300 * time.Millisecond)
	pings := 0
	for time.Now().Before(deadline) {
		ws.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := ws.ReadMessage()
		req.NoError(err)

		var frame realtime.Envelope
		req.NoError(json.Unmarshal(data, &frame))
		if frame.Type == realtime.EventPing {
			pings++
			req.NoError(ws.WriteJSON(realtime.Envelope{Type: realtime.EventPong}))
		}
	}
	req.GreaterOrEqual(pings, 3)
	req.Equal(1, fabric.Publish(realtime.UserGroup(1), []byte("still subscribed")))
}

func TestSocket_SilentClientIsDisconnected(t *testing.T) {
	req := require.New(t)
	fabric := realtime.NewLocalFabric()
	srv := newSocketServer(t, fabric, 20*time.Millisecond, 20*time.Millisecond)

	ws := dialSocket(t, srv, socketToken(t, 1))

	// Never answer the ping; the server must close us and leave the group.
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	req.Eventually(func() bool {
		return fabric.Publish(realtime.UserGroup(1), []byte("anyone")) == 0
	}, time.Second, 5*time.Millisecond)
}
