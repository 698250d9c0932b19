package scoring

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"ablemap/internal/domain/entity"
)

func TestMinDistance_EmptyMaskIsInfinite(t *testing.T) {
	g := paint(t, 3, 3, map[entity.Point]int{{Y: 0, X: 0}: door})
	rng := rand.New(rand.NewPCG(1, 2))

	require.True(t, math.IsInf(MinDistance(g.Mask(door), g.Mask(stairs), rng), 1))
	require.True(t, math.IsInf(MinDistance(nil, g.Mask(door), rng), 1))
}

func TestMinDistance_ExactForSmallMasks(t *testing.T) {
	g := paint(t, 10, 10, map[entity.Point]int{
		{Y: 0, X: 0}: door,
		{Y: 3, X: 4}: stairs,
		{Y: 9, X: 9}: stairs,
	})
	rng := rand.New(rand.NewPCG(1, 2))

	require.InDelta(t, 5.0, MinDistance(g.Mask(door), g.Mask(stairs), rng), 1e-9)
}

// Sampling is an approximation: the estimate never undercuts the exact
// distance and stays within the grid diagonal.
func TestMinDistance_SampledLargeMasks(t *testing.T) {
	cells := map[entity.Point]int{}
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if y < 20 {
				cells[entity.Point{Y: y, X: x}] = stairs
			} else {
				cells[entity.Point{Y: y, X: x}] = door
			}
		}
	}
	g := paint(t, 40, 40, cells)
	a, b := g.Mask(stairs), g.Mask(door)

	for seed := uint64(0); seed < 20; seed++ {
		d := MinDistance(a, b, rand.New(rand.NewPCG(seed, seed)))
		require.GreaterOrEqual(t, d, 1.0)
		require.LessOrEqual(t, d, math.Hypot(39, 39))
	}

	d1 := MinDistance(a, b, rand.New(rand.NewPCG(7, 7)))
	d2 := MinDistance(a, b, rand.New(rand.NewPCG(7, 7)))
	require.Equal(t, d1, d2)
}

func TestSamplePoints_DistinctAndBounded(t *testing.T) {
	pts := make([]entity.Point, 500)
	for i := range pts {
		pts[i] = entity.Point{Y: i / 50, X: i % 50}
	}
	rng := rand.New(rand.NewPCG(3, 4))

	got := samplePoints(pts, MaxSamplePoints, rng)
	require.Len(t, got, MaxSamplePoints)

	seen := map[entity.Point]bool{}
	for _, p := range got {
		require.False(t, seen[p], "duplicate point %v", p)
		seen[p] = true
	}

	small := pts[:10]
	require.Equal(t, small, samplePoints(small, MaxSamplePoints, rng))
}
