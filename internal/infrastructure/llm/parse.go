package llm

import (
	"encoding/json"
	"strings"

	"ablemap/internal/domain/entity"
)

// ParseResponse extracts the JSON object spanning the first '{' to the last
// '}' of text. Text without a parseable object is kept as TextResponse.
func ParseResponse(text string) *entity.NarrativeReport {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return &entity.NarrativeReport{TextResponse: strings.TrimSpace(text)}
	}

	var report entity.NarrativeReport
	if err := json.Unmarshal([]byte(text[start:end+1]), &report); err != nil {
		return &entity.NarrativeReport{TextResponse: strings.TrimSpace(text)}
	}
	return &report
}
