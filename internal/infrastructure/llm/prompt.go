package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"ablemap/internal/domain/entity"
)

// BuildPrompt renders the engine result and facility data into the
// analysis prompt.
func (c *Client) BuildPrompt(result *entity.AccessibilityResult, facility *entity.FacilityInfo) string {
	return Prompt(result, facility, c.cfg.Language)
}

// Prompt builds the analysis prompt. language names the language the
// model must answer in.
func Prompt(result *entity.AccessibilityResult, facility *entity.FacilityInfo, language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	var b strings.Builder

	b.WriteString("Below is the result of an automated analysis of a building's exterior accessibility:\n\n")
	if result != nil {
		fmt.Fprintf(&b, "- Stairs present: %t\n", result.HasStairs)
		fmt.Fprintf(&b, "- Ramp present: %t\n", result.HasRamp)
		fmt.Fprintf(&b, "- Entrance accessible: %t\n", result.EntranceAccessible)
		fmt.Fprintf(&b, "- Detected obstacles: %s\n", obstacleList(result.Obstacles))
		fmt.Fprintf(&b, "- Sidewalk present: %t\n", result.HasSidewalk)
		fmt.Fprintf(&b, "- Railing next to stairs: %t\n", result.HasStairsRailing)

		b.WriteString("\nObstacle details:\n")
		writeDetail(&b, "stairs", result.Details.Stairs)
		writeDetail(&b, "door", result.Details.Door)
		writeDetail(&b, "building", result.Details.Building)
		writeDetail(&b, "stairs_to_door_distance", result.Details.StairsToDoorDistance)
		writeDetail(&b, "sidewalk_to_door_distance", result.Details.SidewalkToDoorDistance)
		writeDetail(&b, "railing_to_stairs_distance", result.Details.RailingToStairsDistance)

		fmt.Fprintf(&b, "\nExterior accessibility score (external_accessibility_score): %d/10\n", result.Score)
		b.WriteString(`
This score was computed automatically from image segmentation and reflects:
- whether stairs exist and where they are
- the width of the entrance door
- the distance between the sidewalk and the entrance
- whether the stairs have a railing

Use it as a reference and focus on interior accessibility (from the facility data) when computing internal_accessibility_score.
`)
	}

	if facility != nil {
		b.WriteString("\nPublic facility data:\n")
		if facility.Available {
			writeFacility(&b, facility)
		} else {
			msg := facility.Message
			if msg == "" {
				msg = "facility information not found"
			}
			fmt.Fprintf(&b, "- %s\n", msg)
		}
	}

	b.WriteString(`
Compute internal_accessibility_score out of 10 from these items:

[Main entrance, 3 points]
- 주출입구 접근로 (entrance approach): 1
- 주출입구 높이차이 제거 (no level difference at the entrance): 1
- 주출입구(문) (entrance door): 1

[Accessible restroom, 2 points]
- 장애인사용가능화장실: 2

[Elevator, 2 points]
- 승강기: 2

[Other, 3 points]
- 장애인전용주차구역 (reserved parking): 1
- 장애인사용가능객실 (accessible rooms): 1
- 유도 및 안내 설비 (guidance facilities): 1

Compute final_accessibility_score as:
- external_accessibility_score: 40%
- internal_accessibility_score: 60%
- round to the nearest integer (e.g. 7.6 -> 8)

`)
	fmt.Fprintf(&b, "Answer in %s using exactly this JSON format:\n", language)
	b.WriteString(`
{
"external_accessibility_score": 1-10,
"internal_accessibility_score": 1-10,
"final_accessibility_score": 1-10,
"stairs_count": estimated number of steps,
"stairs_height": "estimated height",
"alternative_route": true/false,
"alternative_route_description": "description",
"recommendations": ["advice 1", ...],
"observations": ["observation 1", ...],
"improvement_suggestions": ["suggestion 1", ...]
}
`)
	return b.String()
}

// SystemPrompt is the system message sent with every request.
func SystemPrompt(language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	return "You are an expert in accessibility assessment for people with disabilities. " +
		"Following the given criteria, compute accurate and objective accessibility scores from the images and data. " +
		"Always answer in " + language + "."
}

func obstacleList(tags []entity.ObstacleTag) string {
	if len(tags) == 0 {
		return "none"
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// writeDetail skips nil pointers.
func writeDetail[T any](b *strings.Builder, name string, v *T) {
	if v == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", name, data)
}

func writeFacility(b *strings.Builder, f *entity.FacilityInfo) {
	if f.Basic != nil {
		fmt.Fprintf(b, "- Name: %s\n", orUnknown(f.Basic[entity.FieldName]))
		fmt.Fprintf(b, "- Address: %s\n", orUnknown(f.Basic[entity.FieldAddress]))
		fmt.Fprintf(b, "- Established: %s\n", orUnknown(f.Basic[entity.FieldEstablish]))
	}
	if len(f.Features) > 0 {
		b.WriteString("\nFacility features:\n")
		for _, feat := range f.Features {
			fmt.Fprintf(b, "- %s\n", feat)
		}
	}
	a := f.Accessibility
	fmt.Fprintf(b, "\nEntrance: %s\n", yesNo(a.Entrance.Available, "accessible", "limited"))
	fmt.Fprintf(b, "Entrance features: %s\n", strings.Join(a.Entrance.Features, ", "))
	fmt.Fprintf(b, "Accessible parking: %s\n", yesNo(a.Parking.Available, "yes", "no"))
	fmt.Fprintf(b, "Parking features: %s\n", strings.Join(a.Parking.Features, ", "))
	fmt.Fprintf(b, "Accessible restroom: %s\n", yesNo(a.Restroom.Available, "yes", "no"))
	fmt.Fprintf(b, "Restroom features: %s\n", strings.Join(a.Restroom.Features, ", "))
	fmt.Fprintf(b, "Elevator: %s\n", yesNo(a.Elevator.Available, "yes", "no or unknown"))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func yesNo(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
