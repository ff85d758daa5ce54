// Package ranking is the persistent Elo ladder, storing player
// rankings and match records with the indexes the leaderboard and
// history queries need.
package ranking

import "time"

// Ranking is one player's ladder standing. Created lazily on first
// match, mutated only by the match coordinator at finalization.
type Ranking struct {
	UserID      string     `gorm:"column:user_id;primaryKey" json:"userId"`
	Username    string     `gorm:"column:username;not null" json:"username"`
	Elo         int        `gorm:"column:elo;not null;default:1000;index:idx_ranking_elo,sort:desc" json:"elo"`
	Wins        int        `gorm:"column:wins;not null;default:0" json:"wins"`
	Losses      int        `gorm:"column:losses;not null;default:0" json:"losses"`
	Matches     int        `gorm:"column:matches;not null;default:0" json:"matches"`
	LastMatchAt *time.Time `gorm:"column:last_match_at" json:"lastMatchAt"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;index:idx_ranking_elo,priority:2" json:"updatedAt"`
}

func (Ranking) TableName() string { return "pvp_rankings" }

// MatchStatus is the persisted lifecycle stage of a Match row.
type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchCompleted MatchStatus = "completed"
	MatchCancelled MatchStatus = "cancelled"
)

// Match is one head-to-head race, created active at pair-off and
// mutated exclusively by the match coordinator thereafter.
type Match struct {
	MatchID         string      `gorm:"column:match_id;primaryKey" json:"matchId"`
	Player1ID       string      `gorm:"column:player1_id;index:idx_match_player1" json:"player1Id"`
	Player1Username string      `gorm:"column:player1_username" json:"player1Username"`
	Player2ID       string      `gorm:"column:player2_id;index:idx_match_player2" json:"player2Id"`
	Player2Username string      `gorm:"column:player2_username" json:"player2Username"`
	Player1Wpm      float64     `gorm:"column:player1_wpm;not null;default:0" json:"player1Wpm"`
	Player1Accuracy float64     `gorm:"column:player1_accuracy;not null;default:0" json:"player1Accuracy"`
	Player2Wpm      float64     `gorm:"column:player2_wpm;not null;default:0" json:"player2Wpm"`
	Player2Accuracy float64     `gorm:"column:player2_accuracy;not null;default:0" json:"player2Accuracy"`
	WinnerID        *string     `gorm:"column:winner_id" json:"winnerId"`
	WinnerName      *string     `gorm:"column:winner_name" json:"winnerName"`
	Player1EloChange int        `gorm:"column:player1_elo_change;not null;default:0" json:"player1EloChange"`
	Player2EloChange int        `gorm:"column:player2_elo_change;not null;default:0" json:"player2EloChange"`
	MatchDuration   int         `gorm:"column:match_duration;not null;default:0" json:"matchDuration"`
	Status          MatchStatus `gorm:"column:status;not null;index:idx_match_status" json:"status"`
	CreatedAt       time.Time   `gorm:"column:created_at;index:idx_match_created_at,sort:desc" json:"createdAt"`
	CompletedAt     *time.Time  `gorm:"column:completed_at" json:"completedAt"`
}

func (Match) TableName() string { return "pvp_matches" }

// RankingPatch is a partial update over a Ranking; nil fields are left
// untouched. UpdatedAt is always stamped by the store on apply.
type RankingPatch struct {
	Elo         *int
	Wins        *int
	Losses      *int
	Matches     *int
	LastMatchAt *time.Time
}

// MatchPatch is a partial update over a Match; nil fields are left
// untouched. WinnerID/WinnerName use a distinct Set flag because a
// draw legitimately patches the winner to "no one" (a nil value),
// which a bare nil pointer cannot distinguish from "don't touch".
type MatchPatch struct {
	Player1Wpm        *float64
	Player1Accuracy   *float64
	Player2Wpm        *float64
	Player2Accuracy   *float64
	SetWinner         bool
	WinnerID          *string
	WinnerName        *string
	Player1EloChange  *int
	Player2EloChange  *int
	MatchDuration     *int
	Status            *MatchStatus
	CompletedAt       *time.Time
}
