package port

import (
	"context"
	"image"

	"ablemap/internal/domain/entity"
)

// NarrativeAnalyzer asks a language model for a written assessment.
type NarrativeAnalyzer interface {
	// BuildPrompt renders the engine result and facility data into a prompt.
	BuildPrompt(result *entity.AccessibilityResult, facility *entity.FacilityInfo) string

	// RequestAnalysis sends the prompt with images attached. Transport and
	// API failures wrap entity.ErrLLM.
	RequestAnalysis(ctx context.Context, images []image.Image, prompt string) (*entity.NarrativeReport, error)
}
