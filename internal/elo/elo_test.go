package elo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelta_EqualRatingsWin(t *testing.T) {
	assert.Equal(t, 16, Delta(1000, 1000, Win))
}

func TestDelta_EqualRatingsLoss(t *testing.T) {
	assert.Equal(t, -16, Delta(1000, 1000, Loss))
}

func TestDelta_EqualRatingsDraw(t *testing.T) {
	assert.Equal(t, 0, Delta(1000, 1000, Draw))
}

func TestDelta_ConservationZeroSum(t *testing.T) {
	// The winner's gain and the loser's loss must be equal in magnitude
	// when ratings are symmetric, so their sum is zero.
	winnerDelta := Delta(1200, 1400, Win)
	loserDelta := Delta(1400, 1200, Loss)
	assert.Zero(t, winnerDelta+loserDelta)
}

func TestDelta_HigherRatedFavored(t *testing.T) {
	strong := Delta(1600, 1200, Win)
	weak := Delta(1200, 1600, Win)
	assert.Less(t, strong, weak)
}

func TestApply_FloorsAtZero(t *testing.T) {
	assert.Equal(t, 0, Apply(10, -50))
}

func TestApply_NoFloorNeeded(t *testing.T) {
	assert.Equal(t, 1016, Apply(1000, 16))
}

func TestExpected_SymmetricAroundHalf(t *testing.T) {
	assert.Equal(t, 0.5, Expected(1000, 1000))
}
