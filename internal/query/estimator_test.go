package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpoofingScoreZeroAtZeroError(t *testing.T) {
	assert.Equal(t, 0.0, spoofingScore(0, 10))
}

func TestSpoofingScoreMonotonicIncreasing(t *testing.T) {
	prev := 0.0
	for _, e := range []float64{0, 5, 10, 20, 30, 60, 100} {
		s := spoofingScore(e, 10)
		assert.GreaterOrEqual(t, s, prev)
		prev = s
	}
}

func TestSpoofingScoreHighForLargeRatio(t *testing.T) {
	s := spoofingScore(100, 10) // r = 10
	assert.GreaterOrEqual(t, s, 0.7)
}

func TestSpoofingScoreLowForSmallRatio(t *testing.T) {
	s := spoofingScore(2, 10) // r = 0.2
	assert.Less(t, s, 0.3)
}
