package scoring

import (
	"math"
	"math/rand/v2"

	"ablemap/internal/domain/entity"
)

// MaxSamplePoints caps how many points of each mask enter the pairwise scan.
const MaxSamplePoints = 100

// MinDistance estimates the smallest Euclidean distance between two masks.
// Masks with more than MaxSamplePoints cells are reduced to a uniform
// sample without replacement, so the result is an upper bound on the exact
// distance. An empty mask yields +Inf.
func MinDistance(a, b *entity.ObjectMask, rng *rand.Rand) float64 {
	pa, pb := a.Points(), b.Points()
	if len(pa) == 0 || len(pb) == 0 {
		return math.Inf(1)
	}
	pa = samplePoints(pa, MaxSamplePoints, rng)
	pb = samplePoints(pb, MaxSamplePoints, rng)

	best := math.Inf(1)
	for _, p := range pa {
		for _, q := range pb {
			dy, dx := float64(p.Y-q.Y), float64(p.X-q.X)
			if d := dy*dy + dx*dx; d < best {
				best = d
			}
		}
	}
	return math.Sqrt(best)
}

// samplePoints picks k distinct points with Floyd's algorithm, keeping the
// original order of the picked points.
func samplePoints(pts []entity.Point, k int, rng *rand.Rand) []entity.Point {
	n := len(pts)
	if n <= k {
		return pts
	}
	picked := make(map[int]struct{}, k)
	for j := n - k; j < n; j++ {
		t := rng.IntN(j + 1)
		if _, dup := picked[t]; dup {
			t = j
		}
		picked[t] = struct{}{}
	}
	out := make([]entity.Point, 0, k)
	for i, p := range pts {
		if _, ok := picked[i]; ok {
			out = append(out, p)
		}
	}
	return out
}
