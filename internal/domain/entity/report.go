package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexScore accepts JSON numbers and numeric strings.
type FlexScore float64

// UnmarshalJSON decodes 7, 7.5 or "7".
func (s *FlexScore) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("score %q: %w", str, err)
		}
		*s = FlexScore(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = FlexScore(v)
	return nil
}

// NarrativeReport is the structured reply of the language model. When the
// reply had no parseable JSON only TextResponse is set.
type NarrativeReport struct {
	ExternalScore         *FlexScore `json:"external_accessibility_score,omitempty"`
	InternalScore         *FlexScore `json:"internal_accessibility_score,omitempty"`
	FinalScore            *FlexScore `json:"final_accessibility_score,omitempty"`
	StairsCount           any        `json:"stairs_count,omitempty"`
	StairsHeight          string     `json:"stairs_height,omitempty"`
	AlternativeRoute      *bool      `json:"alternative_route,omitempty"`
	AlternativeRouteNotes string     `json:"alternative_route_description,omitempty"`
	Recommendations       []string   `json:"recommendations,omitempty"`
	Observations          []string   `json:"observations,omitempty"`
	Improvements          []string   `json:"improvement_suggestions,omitempty"`
	TextResponse          string     `json:"text_response,omitempty"`
	Error                 string     `json:"error,omitempty"`
}

// Structured reports whether the model reply was parsed as JSON.
func (n *NarrativeReport) Structured() bool {
	return n != nil && n.TextResponse == "" && n.Error == ""
}

// Report is the combined, persisted result for one image.
type Report struct {
	ID            string               `json:"id"`
	ImagePath     string               `json:"image_path,omitempty"`
	OverlayPath   string               `json:"overlay_path,omitempty"`
	Location      *LocationDescriptor  `json:"location_info"`
	Accessibility *AccessibilityResult `json:"accessibility_info"`
	Explanation   string               `json:"accessibility_explanation"`
	Facility      *FacilityInfo        `json:"facility_info"`
	Narrative     *NarrativeReport     `json:"llm_analysis"`
	APIResponse   map[string]any       `json:"api_response,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

// FinalScore returns the model's final score, falling back to the engine score.
func (r *Report) FinalScore() float64 {
	if r.Narrative != nil && r.Narrative.FinalScore != nil {
		return float64(*r.Narrative.FinalScore)
	}
	if r.Accessibility != nil {
		return float64(r.Accessibility.Score)
	}
	return 0
}

// ErrorReport is persisted when processing an image fails.
type ErrorReport struct {
	Error     string    `json:"error"`
	ImagePath string    `json:"image_path"`
	Timestamp time.Time `json:"timestamp"`
}
