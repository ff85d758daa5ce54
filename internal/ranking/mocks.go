package ranking

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// StoreMock is a hand-rolled testify mock for Store: one mock.Mock-
// embedding struct with a method per Store call, rather than a
// generated mocking framework.
type StoreMock struct {
	mock.Mock
}

func NewStoreMock() *StoreMock {
	return &StoreMock{}
}

func (m *StoreMock) GetRanking(ctx context.Context, userID string) (*Ranking, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*Ranking)
	return r, args.Error(1)
}

func (m *StoreMock) CreateRanking(ctx context.Context, r *Ranking) (*Ranking, error) {
	args := m.Called(ctx, r)
	out, _ := args.Get(0).(*Ranking)
	return out, args.Error(1)
}

func (m *StoreMock) UpdateRanking(ctx context.Context, userID string, patch RankingPatch) (*Ranking, error) {
	args := m.Called(ctx, userID, patch)
	out, _ := args.Get(0).(*Ranking)
	return out, args.Error(1)
}

func (m *StoreMock) GetLeaderboard(ctx context.Context, limit, offset int) ([]Ranking, int64, error) {
	args := m.Called(ctx, limit, offset)
	rows, _ := args.Get(0).([]Ranking)
	return rows, args.Get(1).(int64), args.Error(2)
}

func (m *StoreMock) CreateMatch(ctx context.Context, match *Match) (*Match, error) {
	args := m.Called(ctx, match)
	out, _ := args.Get(0).(*Match)
	return out, args.Error(1)
}

func (m *StoreMock) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	args := m.Called(ctx, matchID)
	out, _ := args.Get(0).(*Match)
	return out, args.Error(1)
}

func (m *StoreMock) UpdateMatch(ctx context.Context, matchID string, patch MatchPatch) (*Match, error) {
	args := m.Called(ctx, matchID, patch)
	out, _ := args.Get(0).(*Match)
	return out, args.Error(1)
}

func (m *StoreMock) GetMatchHistory(ctx context.Context, userID string, limit, offset int) ([]Match, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	rows, _ := args.Get(0).([]Match)
	return rows, args.Get(1).(int64), args.Error(2)
}

func (m *StoreMock) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
