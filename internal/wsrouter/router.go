// Package wsrouter dispatches decoded inbound WebSocket frames to the
// matchmaking queue and match coordinator, accepting both the pvp:*
// event namespace and a set of legacy uppercase aliases.
package wsrouter

import (
	"context"
	"encoding/json"
	"log"

	"github.com/pvparena/typing-arena/internal/registry"
	"github.com/pvparena/typing-arena/websocket/message"
)

// QueueOps is the slice of the Matchmaking Queue the router drives.
type QueueOps interface {
	Join(userID, username string, conn interface{}) int
	Leave(userID string) bool
}

// CoordinatorOps is the slice of the Match Coordinator the router
// drives.
type CoordinatorOps interface {
	Start(matchID, userID string) error
	Progress(ctx context.Context, matchID, userID string, wpm, accuracy float64) error
	Complete(ctx context.Context, matchID, userID string, wpm, accuracy float64) error
	Forfeit(ctx context.Context, matchID, userID string) error
	Reconnect(matchID, userID string) error
	Disconnect(matchID, userID string)
}

// RoomOps is the slice of the Session Registry the router needs beyond
// plain emit, for room membership management around match acceptance
// and reconnection.
type RoomOps interface {
	JoinRoom(conn registry.Conn, roomID string)
	LeaveRoom(conn registry.Conn, roomID string)
	Unbind(conn registry.Conn) (userID string, rooms []string)
	EmitToUser(userID string, event registry.Event)
}

// Router dispatches decoded inbound frames to the queue and
// coordinator, and translates every failure into the generic outbound
// `error` event.
type Router struct {
	rooms       RoomOps
	queue       QueueOps
	coordinator CoordinatorOps
}

func New(rooms RoomOps, queue QueueOps, coordinator CoordinatorOps) *Router {
	return &Router{rooms: rooms, queue: queue, coordinator: coordinator}
}

var legacyToCanonical = map[string]string{
	"ACCEPT_MATCH":   "pvp:accept_match",
	"MATCH_PROGRESS": "pvp:match_progress",
	"MATCH_COMPLETE": "pvp:match_complete",
	"FORFEIT":        "pvp:forfeit",
	"RECONNECT":      "pvp:reconnect",
}

// Route decodes msg and invokes the matching handler. conn identifies
// the connection the frame arrived on, needed for queue joins (which
// carry the connection reference into the queue entry) and room
// membership changes.
func (r *Router) Route(ctx context.Context, conn registry.Conn, userID, username string, msg message.Message) {
	msgType := msg.Type
	if canonical, ok := legacyToCanonical[msgType]; ok {
		msgType = canonical
	}

	switch msgType {
	case "pvp:join_queue":
		r.queue.Join(userID, username, conn)

	case "pvp:leave_queue":
		if !r.queue.Leave(userID) {
			r.sendError(conn, "you are not in the queue")
		}

	case "pvp:accept_match":
		var payload message.AcceptMatchPayload
		if !r.decode(conn, msg.Payload, &payload) {
			return
		}
		r.rooms.JoinRoom(conn, payload.MatchID)
		if err := r.coordinator.Start(payload.MatchID, userID); err != nil {
			r.sendError(conn, err.Error())
		}

	case "pvp:match_progress":
		var payload message.ProgressPayload
		if !r.decode(conn, msg.Payload, &payload) {
			return
		}
		if err := r.coordinator.Progress(ctx, payload.MatchID, userID, payload.Wpm, payload.Accuracy); err != nil {
			r.sendError(conn, err.Error())
		}

	case "pvp:match_complete":
		var payload message.CompletePayload
		if !r.decode(conn, msg.Payload, &payload) {
			return
		}
		if err := r.coordinator.Complete(ctx, payload.MatchID, userID, payload.Wpm, payload.Accuracy); err != nil {
			r.sendError(conn, err.Error())
		}

	case "pvp:forfeit":
		var payload message.ForfeitPayload
		if !r.decode(conn, msg.Payload, &payload) {
			return
		}
		if err := r.coordinator.Forfeit(ctx, payload.MatchID, userID); err != nil {
			r.sendError(conn, err.Error())
		}

	case "pvp:reconnect":
		var payload message.ReconnectPayload
		if !r.decode(conn, msg.Payload, &payload) {
			return
		}
		r.rooms.JoinRoom(conn, payload.MatchID)
		if err := r.coordinator.Reconnect(payload.MatchID, userID); err != nil {
			r.sendError(conn, err.Error())
		}

	default:
		log.Printf("wsrouter: unknown message type %q from %s", msg.Type, userID)
		r.sendError(conn, "unknown message type")
	}
}

// Disconnect tells the coordinator about every match room a dropped
// connection was part of and clears any pending queue membership.
// Disconnect is only a hint: the coordinator alone decides whether
// both players are actually gone.
func (r *Router) Disconnect(userID string, rooms []string) {
	r.queue.Leave(userID)
	for _, matchID := range rooms {
		r.coordinator.Disconnect(matchID, userID)
	}
}

func (r *Router) decode(conn registry.Conn, raw json.RawMessage, target interface{}) bool {
	if err := json.Unmarshal(raw, target); err != nil {
		r.sendError(conn, "invalid payload")
		return false
	}
	return true
}

func (r *Router) sendError(conn registry.Conn, msg string) {
	_ = conn.WriteJSON(registry.Event{Type: "error", Payload: message.ErrorPayload{Message: msg}})
}
