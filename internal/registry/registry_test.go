package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	sent   []Event
	closed bool
	fail   bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.fail {
		return errWrite
	}
	f.sent = append(f.sent, v.(Event))
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

type writeError struct{}

func (writeError) Error() string { return "write failed" }

var errWrite error = writeError{}

func TestBindAndEmitToUser(t *testing.T) {
	r := New()
	conn := &fakeConn{}
	r.Bind(conn, "u1", "alice")

	r.EmitToUser("u1", Event{Type: "pvp:queue_joined"})

	require.Len(t, conn.sent, 1)
	assert.Equal(t, "pvp:queue_joined", conn.sent[0].Type)
}

func TestEmitToUser_OfflineIsNoop(t *testing.T) {
	r := New()
	assert.NotPanics(t, func() {
		r.EmitToUser("ghost", Event{Type: "pvp:match_found"})
	})
}

func TestEmitToUser_MultipleConnectionsAllReceive(t *testing.T) {
	r := New()
	c1, c2 := &fakeConn{}, &fakeConn{}
	r.Bind(c1, "u1", "alice")
	r.Bind(c2, "u1", "alice")

	r.EmitToUser("u1", Event{Type: "pvp:queue_status"})

	assert.Len(t, c1.sent, 1)
	assert.Len(t, c2.sent, 1)
}

func TestUnbind_RemovesFromUserAndRooms(t *testing.T) {
	r := New()
	conn := &fakeConn{}
	r.Bind(conn, "u1", "alice")
	r.JoinRoom(conn, "match-1")

	r.Unbind(conn)

	assert.False(t, r.IsOnline("u1"))
	r.EmitToRoom("match-1", Event{Type: "pvp:match_result"})
	assert.Empty(t, conn.sent)
}

func TestEmitToUser_SwallowsWriteFailure(t *testing.T) {
	r := New()
	conn := &fakeConn{fail: true}
	r.Bind(conn, "u1", "alice")

	assert.NotPanics(t, func() {
		r.EmitToUser("u1", Event{Type: "pvp:match_found"})
	})
}

func TestJoinRoomAndEmitToRoom(t *testing.T) {
	r := New()
	c1, c2, c3 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	r.Bind(c1, "u1", "alice")
	r.Bind(c2, "u2", "bob")
	r.Bind(c3, "u3", "carol")

	r.JoinRoom(c1, "match-1")
	r.JoinRoom(c2, "match-1")

	r.EmitToRoom("match-1", Event{Type: "pvp:game_start"})

	assert.Len(t, c1.sent, 1)
	assert.Len(t, c2.sent, 1)
	assert.Empty(t, c3.sent)
}

func TestLeaveRoom(t *testing.T) {
	r := New()
	conn := &fakeConn{}
	r.Bind(conn, "u1", "alice")
	r.JoinRoom(conn, "match-1")
	r.LeaveRoom(conn, "match-1")

	r.EmitToRoom("match-1", Event{Type: "pvp:match_result"})
	assert.Empty(t, conn.sent)
}

func TestIsOnline(t *testing.T) {
	r := New()
	assert.False(t, r.IsOnline("u1"))
	conn := &fakeConn{}
	r.Bind(conn, "u1", "alice")
	assert.True(t, r.IsOnline("u1"))
}
