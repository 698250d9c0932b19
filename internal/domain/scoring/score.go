package scoring

import "ablemap/internal/domain/entity"

const (
	MinScore  = 1
	MaxScore  = 10
	baseScore = 10
)

// SizeFor buckets the share of the image covered by stairs.
func SizeFor(ratio float64) entity.SizeBucket {
	switch {
	case ratio < 0.01:
		return entity.SizeVerySmall
	case ratio < 0.05:
		return entity.SizeSmall
	case ratio < 0.15:
		return entity.SizeMedium
	case ratio < 0.3:
		return entity.SizeLarge
	default:
		return entity.SizeVeryLarge
	}
}

// WidthFor buckets the share of the image covered by a door.
func WidthFor(ratio float64) entity.WidthBucket {
	switch {
	case ratio < 0.01:
		return entity.WidthNarrow
	case ratio < 0.03:
		return entity.WidthStandard
	default:
		return entity.WidthWide
	}
}

// Score composes the entrance score from a result's flags and findings.
// Stairs at the entrance and stairs elsewhere are exclusive penalties;
// sidewalk and door adjustments always apply.
func Score(res *entity.AccessibilityResult) int {
	score := baseScore

	if res.HasObstacle(entity.ObstacleStairsAtEntrance) {
		score -= 5
		if res.HasStairsRailing {
			score++
		}
	} else if res.HasStairs {
		score -= 2
	}

	if res.HasObstacle(entity.ObstacleDisconnectedSidewalk) {
		score -= 2
	}

	if res.HasDoor && res.Details.Door != nil {
		switch res.Details.Door.EstimatedWidth {
		case entity.WidthNarrow:
			score -= 3
		case entity.WidthWide:
			score++
		}
	}

	return Clamp(score)
}

// Clamp limits score to [MinScore, MaxScore].
func Clamp(score int) int {
	return max(MinScore, min(MaxScore, score))
}

// Band is a qualitative accessibility level.
type Band int

const (
	BandVeryLow Band = iota
	BandLow
	BandModerate
	BandGood
	BandVeryHigh
)

var bandText = map[Band]string{
	BandVeryHigh: "Very high accessibility: a wheelchair user can reach the entrance easily.",
	BandGood:     "Good accessibility: mostly reachable by wheelchair, with minor inconvenience.",
	BandModerate: "Moderate accessibility: reachable by wheelchair, but some assistance may be needed.",
	BandLow:      "Low accessibility: a wheelchair user is likely to face significant difficulty.",
	BandVeryLow:  "Very low accessibility: hard to reach by wheelchair without help.",
}

// BandFor maps a score to its band.
func BandFor(score int) Band {
	switch {
	case score >= 9:
		return BandVeryHigh
	case score >= 7:
		return BandGood
	case score >= 5:
		return BandModerate
	case score >= 3:
		return BandLow
	default:
		return BandVeryLow
	}
}

// String returns the band description.
func (b Band) String() string { return bandText[b] }

// Explain describes a score in words.
func Explain(score int) string {
	return BandFor(score).String()
}
