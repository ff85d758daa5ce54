// Package match runs the per-match state machine: pairing two players,
// tracking live progress, and finalizing a result once both sides
// report in.
package match

import "time"

// Status is a match's position in the PENDING -> ACTIVE ->
// COMPLETED|CANCELLED state machine.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PlayerInfo identifies a match participant, snapshotting the
// username at pair-off time (usernames are treated as immutable for
// the lifetime of a match).
type PlayerInfo struct {
	UserID   string
	Username string
}

// LiveProgress is the transient, in-memory last-known progress for
// one participant. Cleared when the match finalizes.
type LiveProgress struct {
	Wpm       float64
	Accuracy  float64
	Timestamp time.Time
}

// finalStats records a player's reported final result. Finalization
// requires one of these for both players.
type finalStats struct {
	Wpm      float64
	Accuracy float64
}

// Outbound wire payloads.

type opponentInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Elo      int    `json:"elo"`
}

type matchFoundPayload struct {
	MatchID  string       `json:"matchId"`
	Opponent opponentInfo `json:"opponent"`
}

type playerRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type gameStartPayload struct {
	MatchID      string    `json:"matchId"`
	Player1      playerRef `json:"player1"`
	Player2      playerRef `json:"player2"`
	StartTime    int64     `json:"startTime"`
	TestDuration int       `json:"testDuration"`
}

type opponentProgressPayload struct {
	MatchID          string  `json:"matchId"`
	OpponentWpm      float64 `json:"opponentWpm"`
	OpponentAccuracy float64 `json:"opponentAccuracy"`
	Timestamp        int64   `json:"timestamp"`
}

type matchResultPayload struct {
	MatchID          string  `json:"matchId"`
	WinnerID         *string `json:"winnerId"`
	WinnerName       *string `json:"winnerName"`
	Player1ID        string  `json:"player1Id"`
	Player1Name      string  `json:"player1Name"`
	Player1Wpm       float64 `json:"player1Wpm"`
	Player1Accuracy  float64 `json:"player1Accuracy"`
	Player1EloChange int     `json:"player1EloChange"`
	Player2ID        string  `json:"player2Id"`
	Player2Name      string  `json:"player2Name"`
	Player2Wpm       float64 `json:"player2Wpm"`
	Player2Accuracy  float64 `json:"player2Accuracy"`
	Player2EloChange int     `json:"player2EloChange"`
	MatchDuration    int     `json:"matchDuration"`
}

type matchTimeoutPayload struct {
	MatchID string `json:"matchId"`
	Message string `json:"message"`
}
