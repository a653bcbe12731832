package realtime

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	controls []int
	closed   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, messageType)
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) countFrames(match []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fr := range f.frames {
		if bytes.Equal(fr, match) {
			n++
		}
	}
	return n
}

func (f *fakeConn) framesExcept(skip []byte) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, fr := range f.frames {
		if !bytes.Equal(fr, skip) {
			out = append(out, fr)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestSession_StartJoinsGroupAndGoesAlive(t *testing.T) {
	req := require.New(t)
	fabric := NewLocalFabric()
	ws := &fakeConn{}

	s := NewSession(9, ws, fabric, time.Hour, time.Minute, testLogger())
	req.Equal(StateConnecting, s.State())

	s.Start()
	defer s.Close(1000, "test done")

	req.Equal(StateAlive, s.State())
	req.Equal("user_9", s.Group())
	req.Equal(1, fabric.Publish("user_9", []byte(`{"x":1}`)))
}

func TestSession_AnsweredPingsKeepItAlive(t *testing.T) {
	req := require.New(t)
	fabric := NewLocalFabric()
	ws := &fakeConn{}

	s := NewSession(3, ws, fabric, 20*time.Millisecond, 15*time.Millisecond, testLogger())
	s.Start()
	defer s.Close(1000, "test done")

	// Answer every ping as it shows up on the wire.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		answered := 0
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
			}
			if n := ws.countFrames(pingPayload); n > answered {
				answered = n
				s.Pong()
			}
		}
	}()

	req.Eventually(func() bool { return ws.countFrames(pingPayload) >= 3 },
		time.Second, time.Millisecond, "expected at least three pings")

	req.NotEqual(StateClosed, s.State())
	req.False(ws.isClosed())
	req.Equal(1, fabric.Publish("user_3", []byte("still here")))
	req.False(s.LastPong().IsZero())
}

func TestSession_MissedPongClosesAndLeavesGroup(t *testing.T) {
	req := require.New(t)
	fabric := NewLocalFabric()
	ws := &fakeConn{}

	s := NewSession(4, ws, fabric, 10*time.Millisecond, 10*time.Millisecond, testLogger())
	s.Start()

	req.Eventually(func() bool { return s.State() == StateClosed },
		time.Second, time.Millisecond, "session should close on missed pong")

	req.True(ws.isClosed())
	// Membership is gone by the time closure completes.
	req.Zero(fabric.Publish("user_4", []byte("anyone")))
}

func TestSession_StalePongDoesNotSatisfyPing(t *testing.T) {
	req := require.New(t)
	fabric := NewLocalFabric()
	ws := &fakeConn{}

	s := NewSession(10, ws, fabric, 50*time.Millisecond, 25*time.Millisecond, testLogger())
	s.Start()

	// A pong with no outstanding ping must not pre-pay the next one.
	s.Pong()

	req.Eventually(func() bool { return s.State() == StateClosed },
		time.Second, time.Millisecond, "an unanswered ping must close the session despite the earlier pong")
	req.True(ws.isClosed())
}

func TestSession_DeliversInOrder(t *testing.T) {
	req := require.New(t)
	fabric := NewLocalFabric()
	ws := &fakeConn{}

	s := NewSession(5, ws, fabric, time.Hour, time.Minute, testLogger())
	s.Start()
	defer s.Close(1000, "test done")

	req.NoError(s.Deliver([]byte("one")))
	req.NoError(s.Deliver([]byte("two")))
	req.NoError(s.Deliver([]byte("three")))

	req.Eventually(func() bool { return len(ws.framesExcept(pingPayload)) == 3 },
		time.Second, time.Millisecond)
	req.Equal([][]byte{[]byte("one"), []byte("two"), []byte("three")}, ws.framesExcept(pingPayload))
}

func TestSession_CloseCancelsHeartbeat(t *testing.T) {
	req := require.New(t)
	fabric := NewLocalFabric()
	ws := &fakeConn{}

	s := NewSession(6, ws, fabric, 10*time.Millisecond, 5*time.Millisecond, testLogger())
	s.Start()
	s.Close(1000, "going away")

	req.Equal(StateClosed, s.State())
	before := ws.countFrames(pingPayload)
	time.Sleep(50 * time.Millisecond)
	req.Equal(before, ws.countFrames(pingPayload), "no pings after close")

	req.Error(s.Deliver([]byte("too late")))
}

func TestSession_CloseIsIdempotentAndSafeBeforeStart(t *testing.T) {
	fabric := NewLocalFabric()
	ws := &fakeConn{}

	// Connecting -> Closed directly, no group ever joined.
	s := NewSession(7, ws, fabric, time.Hour, time.Minute, testLogger())
	s.Close(4401, "unauthorized")
	s.Close(4401, "unauthorized")

	require.Equal(t, StateClosed, s.State())
	require.True(t, ws.isClosed())
}

func TestSession_DeliverDropsWhenBufferFull(t *testing.T) {
	req := require.New(t)
	fabric := NewLocalFabric()
	ws := &fakeConn{}

	// No Start: nothing drains the buffer.
	s := NewSession(8, ws, fabric, time.Hour, time.Minute, testLogger())
	for i := 0; i < 128; i++ {
		req.NoError(s.Deliver([]byte("fill")))
	}
	req.ErrorIs(s.Deliver([]byte("overflow")), errSendBufferFull)
}
