package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlexScore_AcceptsNumbersAndStrings(t *testing.T) {
	var n NarrativeReport
	err := json.Unmarshal([]byte(`{"external_accessibility_score": 6, "internal_accessibility_score": "7.5", "final_accessibility_score": null}`), &n)
	require.NoError(t, err)
	require.InDelta(t, 6, float64(*n.ExternalScore), 1e-9)
	require.InDelta(t, 7.5, float64(*n.InternalScore), 1e-9)
	require.Nil(t, n.FinalScore)
	require.True(t, n.Structured())
}

func TestFlexScore_RejectsText(t *testing.T) {
	var n NarrativeReport
	err := json.Unmarshal([]byte(`{"final_accessibility_score": "high"}`), &n)
	require.Error(t, err)
}

func TestReport_FinalScoreFallback(t *testing.T) {
	r := &Report{Accessibility: &AccessibilityResult{Score: 4}}
	require.InDelta(t, 4, r.FinalScore(), 1e-9)

	final := FlexScore(8)
	r.Narrative = &NarrativeReport{FinalScore: &final}
	require.InDelta(t, 8, r.FinalScore(), 1e-9)
}

func TestAccessibilityResult_AddObstacleUnique(t *testing.T) {
	r := &AccessibilityResult{}
	r.AddObstacle(ObstacleStairs)
	r.AddObstacle(ObstacleStairs)
	require.Equal(t, []ObstacleTag{ObstacleStairs}, r.Obstacles)
	require.True(t, r.HasObstacle(ObstacleStairs))
	require.False(t, r.HasObstacle(ObstacleStairsAtEntrance))
}
