package realtime

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// State of a session. Transitions only move forward except for the
// Alive <-> AwaitingPong heartbeat cycle; Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateAlive
	StateAwaitingPong
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateAlive:
		return "alive"
	case StateAwaitingPong:
		return "awaiting_pong"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var errSessionClosed = errors.New("realtime: session closed")
var errSendBufferFull = errors.New("realtime: send buffer full")

// conn is the slice of *websocket.Conn the session writes to. Reads stay with
// the transport handler that owns the socket.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one live client connection: it owns the outbound side of the
// transport, its group membership, and the heartbeat state machine. The
// handler goroutine that created it is the only reader of the socket; the
// session's own goroutines handle writes and heartbeats and are torn down
// atomically by Close.
type Session struct {
	ID     string
	UserID int64

	fabric Fabric
	ws     conn
	log    *slog.Logger

	pingInterval time.Duration
	pongTimeout  time.Duration

	send chan []byte
	pong chan struct{}
	done chan struct{}
	once sync.Once

	state    atomic.Int32
	lastPong atomic.Int64 // unix nanos of the last pong received
}

var _ Subscriber = (*Session)(nil)

// NewSession builds a session for an authenticated user. It starts in
// Connecting; Start performs the group join and brings it Alive.
func NewSession(userID int64, ws conn, fabric Fabric, pingInterval, pongTimeout time.Duration, log *slog.Logger) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		fabric:       fabric,
		ws:           ws,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		send:         make(chan []byte, 128),
		pong:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	s.log = log.With("connection_id", s.ID, "user_id", userID)
	return s
}

// Group names the fabric group this session subscribes to.
func (s *Session) Group() string {
	return UserGroup(s.UserID)
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// LastPong reports when the client last answered a ping; zero before the
// first pong.
func (s *Session) LastPong() time.Time {
	n := s.lastPong.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Start joins the user group and launches the write and heartbeat loops.
// Call exactly once, after authentication resolved a user identity.
func (s *Session) Start() {
	s.state.Store(int32(StateAuthenticated))
	s.fabric.Join(s.Group(), s.ID, s)
	s.state.Store(int32(StateJoined))
	s.state.Store(int32(StateAlive))
	go s.writeLoop()
	go s.heartbeatLoop()
}

// Deliver implements Subscriber. It never blocks: when the client is too slow
// to drain its buffer the payload is dropped for this connection only and the
// heartbeat eventually reaps the session.
func (s *Session) Deliver(payload []byte) error {
	select {
	case <-s.done:
		return errSessionClosed
	case s.send <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

// Pong records a heartbeat answer from the client.
func (s *Session) Pong() {
	s.lastPong.Store(time.Now().UnixNano())
	select {
	case s.pong <- struct{}{}:
	default:
	}
}

// Close transitions to Closed from any state, leaves the group and tears the
// transport down. Safe to call from any goroutine, any number of times; it
// never blocks on in-flight deliveries.
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		close(s.done)
		s.state.Store(int32(StateClosed))
		s.fabric.Leave(s.Group(), s.ID)
		_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = s.ws.Close()
	})
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			if err := s.writeFrame(payload); err != nil {
				s.log.Debug("session write failed", "err", err)
				s.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (s *Session) writeFrame(payload []byte) error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, payload)
}

// heartbeatLoop sends a ping every pingInterval and waits pongTimeout for the
// answer. A pong in time reschedules the next ping after
// max(0, pingInterval-pongTimeout); a miss closes and reaps the session. The
// loop is a child of the session and stops with it.
func (s *Session) heartbeatLoop() {
	timer := time.NewTimer(s.pingInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-timer.C:
		}

		// Discard a stale pong token so only answers to this ping count.
		// Pongs carry no correlation id on the wire, so one landing between
		// this drain and the send is indistinguishable from an answer; it
		// still proves the client was alive within the current interval.
		select {
		case <-s.pong:
		default:
		}

		if err := s.Deliver(pingPayload); err != nil {
			s.Close(websocket.CloseGoingAway, "heartbeat send failed")
			return
		}
		s.state.Store(int32(StateAwaitingPong))

		wait := time.NewTimer(s.pongTimeout)
		select {
		case <-s.done:
			wait.Stop()
			return
		case <-s.pong:
			wait.Stop()
			s.state.Store(int32(StateAlive))
			next := s.pingInterval - s.pongTimeout
			if next < 0 {
				next = 0
			}
			timer.Reset(next)
		case <-wait.C:
			s.log.Info("session heartbeat timeout", "last_pong", s.LastPong())
			s.Close(websocket.ClosePolicyViolation, "pong timeout")
			return
		}
	}
}
