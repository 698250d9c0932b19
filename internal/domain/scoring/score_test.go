package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ablemap/internal/domain/entity"
)

func TestSizeFor(t *testing.T) {
	require.Equal(t, entity.SizeVerySmall, SizeFor(0.005))
	require.Equal(t, entity.SizeSmall, SizeFor(0.01))
	require.Equal(t, entity.SizeMedium, SizeFor(0.1))
	require.Equal(t, entity.SizeLarge, SizeFor(0.2))
	require.Equal(t, entity.SizeVeryLarge, SizeFor(0.3))
}

func TestWidthFor(t *testing.T) {
	require.Equal(t, entity.WidthNarrow, WidthFor(0.005))
	require.Equal(t, entity.WidthStandard, WidthFor(0.02))
	require.Equal(t, entity.WidthWide, WidthFor(0.05))
}

// Every combination of inputs stays inside [1,10].
func TestScore_AlwaysClamped(t *testing.T) {
	widths := []entity.WidthBucket{entity.WidthNarrow, entity.WidthStandard, entity.WidthWide}
	for mask := 0; mask < 32; mask++ {
		for _, w := range widths {
			res := &entity.AccessibilityResult{
				HasStairs:        mask&1 != 0,
				HasStairsRailing: mask&2 != 0,
				HasDoor:          mask&4 != 0,
			}
			if mask&8 != 0 {
				res.AddObstacle(entity.ObstacleStairsAtEntrance)
			}
			if mask&16 != 0 {
				res.AddObstacle(entity.ObstacleDisconnectedSidewalk)
			}
			if res.HasDoor {
				res.Details.Door = &entity.ObjectFinding{EstimatedWidth: w}
			}
			s := Score(res)
			require.GreaterOrEqual(t, s, MinScore)
			require.LessOrEqual(t, s, MaxScore)
		}
	}
}

func TestScore_EntranceBranchExcludesStairsPenalty(t *testing.T) {
	res := &entity.AccessibilityResult{HasStairs: true}
	res.AddObstacle(entity.ObstacleStairsAtEntrance)
	require.Equal(t, 5, Score(res))

	res.HasStairsRailing = true
	require.Equal(t, 6, Score(res))
}

func TestClamp(t *testing.T) {
	require.Equal(t, 1, Clamp(-3))
	require.Equal(t, 10, Clamp(11))
	require.Equal(t, 6, Clamp(6))
}

func TestExplain_BandsAreMonotonic(t *testing.T) {
	seen := map[string]bool{}
	prev := BandFor(1)
	for s := 1; s <= 10; s++ {
		b := BandFor(s)
		require.GreaterOrEqual(t, b, prev, "score %d", s)
		prev = b

		text := Explain(s)
		require.NotEmpty(t, text)
		seen[text] = true
	}
	require.Len(t, seen, 5)

	require.Equal(t, BandVeryHigh, BandFor(9))
	require.Equal(t, BandGood, BandFor(7))
	require.Equal(t, BandModerate, BandFor(5))
	require.Equal(t, BandLow, BandFor(3))
	require.Equal(t, BandVeryLow, BandFor(2))
	require.Equal(t, BandVeryLow, BandFor(0))
}
