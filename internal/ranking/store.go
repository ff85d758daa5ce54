package ranking

import (
	"context"
	"errors"
	"time"

	"github.com/pvparena/typing-arena/internal/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the Ranking Store Facade contract: idempotent CRUD over
// Ranking and Match, with the query shapes the leaderboard and match
// history endpoints need.
type Store interface {
	GetRanking(ctx context.Context, userID string) (*Ranking, error)
	CreateRanking(ctx context.Context, r *Ranking) (*Ranking, error)
	UpdateRanking(ctx context.Context, userID string, patch RankingPatch) (*Ranking, error)
	GetLeaderboard(ctx context.Context, limit, offset int) ([]Ranking, int64, error)

	CreateMatch(ctx context.Context, m *Match) (*Match, error)
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	UpdateMatch(ctx context.Context, matchID string, patch MatchPatch) (*Match, error)
	GetMatchHistory(ctx context.Context, userID string, limit, offset int) ([]Match, int64, error)

	EnsureIndexes(ctx context.Context) error
}

// GormStore implements Store over a Postgres-backed *gorm.DB, following
// pkg/db/db.go's gorm.Open(postgres.Open(dsn), ...) connection style.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) EnsureIndexes(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Ranking{}, &Match{}); err != nil {
		return apperr.Storage("failed to migrate pvp schema", err)
	}
	return nil
}

func (s *GormStore) GetRanking(ctx context.Context, userID string) (*Ranking, error) {
	var r Ranking
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("failed to load ranking", err)
	}
	return &r, nil
}

// CreateRanking inserts r, returning the existing row instead of
// failing when userId already exists — the race two concurrent
// first-match creations can hit is resolved by the database's
// uniqueness constraint rather than a check-then-act in Go.
func (s *GormStore) CreateRanking(ctx context.Context, r *Ranking) (*Ranking, error) {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(r).Error
	if err != nil {
		return nil, apperr.Storage("failed to create ranking", err)
	}

	existing, err := s.GetRanking(ctx, r.UserID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.Storage("ranking vanished immediately after create", nil)
	}
	return existing, nil
}

func (s *GormStore) UpdateRanking(ctx context.Context, userID string, patch RankingPatch) (*Ranking, error) {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if patch.Elo != nil {
		updates["elo"] = *patch.Elo
	}
	if patch.Wins != nil {
		updates["wins"] = *patch.Wins
	}
	if patch.Losses != nil {
		updates["losses"] = *patch.Losses
	}
	if patch.Matches != nil {
		updates["matches"] = *patch.Matches
	}
	if patch.LastMatchAt != nil {
		updates["last_match_at"] = *patch.LastMatchAt
	}

	res := s.db.WithContext(ctx).Model(&Ranking{}).Where("user_id = ?", userID).Updates(updates)
	if res.Error != nil {
		return nil, apperr.Storage("failed to update ranking", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetRanking(ctx, userID)
}

func (s *GormStore) GetLeaderboard(ctx context.Context, limit, offset int) ([]Ranking, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Ranking{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage("failed to count rankings", err)
	}

	var rows []Ranking
	err := s.db.WithContext(ctx).
		Order("elo DESC, updated_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, apperr.Storage("failed to load leaderboard", err)
	}
	return rows, total, nil
}

func (s *GormStore) CreateMatch(ctx context.Context, m *Match) (*Match, error) {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, apperr.Storage("failed to create match", err)
	}
	return m, nil
}

func (s *GormStore) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	var m Match
	err := s.db.WithContext(ctx).Where("match_id = ?", matchID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("failed to load match", err)
	}
	return &m, nil
}

func (s *GormStore) UpdateMatch(ctx context.Context, matchID string, patch MatchPatch) (*Match, error) {
	updates := map[string]interface{}{}
	if patch.Player1Wpm != nil {
		updates["player1_wpm"] = *patch.Player1Wpm
	}
	if patch.Player1Accuracy != nil {
		updates["player1_accuracy"] = *patch.Player1Accuracy
	}
	if patch.Player2Wpm != nil {
		updates["player2_wpm"] = *patch.Player2Wpm
	}
	if patch.Player2Accuracy != nil {
		updates["player2_accuracy"] = *patch.Player2Accuracy
	}
	if patch.SetWinner {
		updates["winner_id"] = patch.WinnerID
		updates["winner_name"] = patch.WinnerName
	}
	if patch.Player1EloChange != nil {
		updates["player1_elo_change"] = *patch.Player1EloChange
	}
	if patch.Player2EloChange != nil {
		updates["player2_elo_change"] = *patch.Player2EloChange
	}
	if patch.MatchDuration != nil {
		updates["match_duration"] = *patch.MatchDuration
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.CompletedAt != nil {
		updates["completed_at"] = *patch.CompletedAt
	}

	if len(updates) == 0 {
		return s.GetMatch(ctx, matchID)
	}

	res := s.db.WithContext(ctx).Model(&Match{}).Where("match_id = ?", matchID).Updates(updates)
	if res.Error != nil {
		return nil, apperr.Storage("failed to update match", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetMatch(ctx, matchID)
}

func (s *GormStore) GetMatchHistory(ctx context.Context, userID string, limit, offset int) ([]Match, int64, error) {
	scope := s.db.WithContext(ctx).Model(&Match{}).
		Where("status = ? AND (player1_id = ? OR player2_id = ?)", MatchCompleted, userID, userID)

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage("failed to count match history", err)
	}

	var rows []Match
	err := s.db.WithContext(ctx).
		Where("status = ? AND (player1_id = ? OR player2_id = ?)", MatchCompleted, userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, apperr.Storage("failed to load match history", err)
	}
	return rows, total, nil
}
