// Package message defines the {type, payload} wire envelope and the
// inbound payload shapes carried inside it.
package message

import "encoding/json"

// Message is the envelope every inbound and outbound frame uses.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AcceptMatchPayload is sent for both the pvp:accept_match event and
// its legacy ACCEPT_MATCH alias.
type AcceptMatchPayload struct {
	MatchID string `json:"matchId"`
}

// ProgressPayload is sent for pvp:match_progress / MATCH_PROGRESS.
type ProgressPayload struct {
	MatchID  string  `json:"matchId"`
	Wpm      float64 `json:"wpm"`
	Accuracy float64 `json:"acc"`
}

// CompletePayload is sent for pvp:match_complete / MATCH_COMPLETE.
type CompletePayload struct {
	MatchID  string  `json:"matchId"`
	Wpm      float64 `json:"wpm"`
	Accuracy float64 `json:"acc"`
}

// ForfeitPayload is sent for pvp:forfeit / FORFEIT.
type ForfeitPayload struct {
	MatchID string `json:"matchId"`
}

// ReconnectPayload is sent for pvp:reconnect / RECONNECT.
type ReconnectPayload struct {
	MatchID string `json:"matchId"`
}

// ErrorPayload is the generic outbound failure shape.
type ErrorPayload struct {
	Message string `json:"message"`
}
