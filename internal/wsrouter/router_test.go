package wsrouter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pvparena/typing-arena/internal/registry"
	"github.com/pvparena/typing-arena/websocket/message"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	written []registry.Event
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.written = append(f.written, v.(registry.Event))
	return nil
}

func (f *fakeConn) Close() error { return nil }

type fakeRooms struct {
	joined []string
	left   []string
}

func (r *fakeRooms) JoinRoom(conn registry.Conn, roomID string) { r.joined = append(r.joined, roomID) }
func (r *fakeRooms) LeaveRoom(conn registry.Conn, roomID string) { r.left = append(r.left, roomID) }
func (r *fakeRooms) Unbind(conn registry.Conn) (string, []string) { return "", nil }
func (r *fakeRooms) EmitToUser(userID string, event registry.Event) {}

type fakeQueue struct {
	joined string
	left   string
	leaveOK bool
}

func (q *fakeQueue) Join(userID, username string, conn interface{}) int {
	q.joined = userID
	return 1
}

func (q *fakeQueue) Leave(userID string) bool {
	q.left = userID
	return q.leaveOK
}

type fakeCoordinator struct {
	startCalls      []string
	progressCalls   []string
	completeCalls   []string
	forfeitCalls    []string
	reconnectCalls  []string
	disconnectCalls []string
	err             error
}

func (c *fakeCoordinator) Start(matchID, userID string) error {
	c.startCalls = append(c.startCalls, matchID)
	return c.err
}

func (c *fakeCoordinator) Progress(ctx context.Context, matchID, userID string, wpm, accuracy float64) error {
	c.progressCalls = append(c.progressCalls, matchID)
	return c.err
}

func (c *fakeCoordinator) Complete(ctx context.Context, matchID, userID string, wpm, accuracy float64) error {
	c.completeCalls = append(c.completeCalls, matchID)
	return c.err
}

func (c *fakeCoordinator) Forfeit(ctx context.Context, matchID, userID string) error {
	c.forfeitCalls = append(c.forfeitCalls, matchID)
	return c.err
}

func (c *fakeCoordinator) Reconnect(matchID, userID string) error {
	c.reconnectCalls = append(c.reconnectCalls, matchID)
	return c.err
}

func (c *fakeCoordinator) Disconnect(matchID, userID string) {
	c.disconnectCalls = append(c.disconnectCalls, matchID)
}

func newTestRouter() (*Router, *fakeRooms, *fakeQueue, *fakeCoordinator) {
	rooms := &fakeRooms{}
	queue := &fakeQueue{}
	coordinator := &fakeCoordinator{}
	return New(rooms, queue, coordinator), rooms, queue, coordinator
}

func encode(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	body, err := json.Marshal(v)
	assert.NoError(t, err)
	return body
}

func TestRoute_JoinQueue(t *testing.T) {
	router, _, queue, _ := newTestRouter()
	router.Route(context.Background(), &fakeConn{}, "u1", "alice", message.Message{Type: "pvp:join_queue"})
	assert.Equal(t, "u1", queue.joined)
}

func TestRoute_LegacyAcceptMatchTranslatesAndJoinsRoom(t *testing.T) {
	router, rooms, _, coordinator := newTestRouter()
	msg := message.Message{
		Type:    "ACCEPT_MATCH",
		Payload: encode(t, message.AcceptMatchPayload{MatchID: "m1"}),
	}
	router.Route(context.Background(), &fakeConn{}, "u1", "alice", msg)

	assert.Equal(t, []string{"m1"}, rooms.joined)
	assert.Equal(t, []string{"m1"}, coordinator.startCalls)
}

func TestRoute_UnknownTypeSendsError(t *testing.T) {
	router, _, _, _ := newTestRouter()
	conn := &fakeConn{}
	router.Route(context.Background(), conn, "u1", "alice", message.Message{Type: "NOT_A_TYPE"})

	assert.Len(t, conn.written, 1)
	assert.Equal(t, "error", conn.written[0].Type)
}

func TestRoute_InvalidPayloadSendsError(t *testing.T) {
	router, _, _, coordinator := newTestRouter()
	conn := &fakeConn{}
	router.Route(context.Background(), conn, "u1", "alice", message.Message{
		Type:    "pvp:match_progress",
		Payload: json.RawMessage(`{"matchId": 5}`),
	})

	assert.Len(t, conn.written, 1)
	assert.Equal(t, "error", conn.written[0].Type)
	assert.Empty(t, coordinator.progressCalls)
}

func TestDisconnect_LeavesQueueAndNotifiesEveryRoom(t *testing.T) {
	router, _, queue, coordinator := newTestRouter()
	router.Disconnect("u1", []string{"m1", "m2"})

	assert.Equal(t, "u1", queue.left)
	assert.ElementsMatch(t, []string{"m1", "m2"}, coordinator.disconnectCalls)
}
