package entity

import "slices"

// ObstacleTag names an accessibility obstacle found in an image.
type ObstacleTag string

const (
	ObstacleStairs               ObstacleTag = "stairs"
	ObstacleStairsAtEntrance     ObstacleTag = "stairs_at_entrance"
	ObstacleDisconnectedSidewalk ObstacleTag = "disconnected_sidewalk"
)

// SizeBucket is a qualitative size estimate for stairs.
type SizeBucket string

const (
	SizeVerySmall SizeBucket = "very small"
	SizeSmall     SizeBucket = "small"
	SizeMedium    SizeBucket = "medium"
	SizeLarge     SizeBucket = "large"
	SizeVeryLarge SizeBucket = "very large"
)

// WidthBucket is a qualitative door width estimate.
type WidthBucket string

const (
	WidthNarrow   WidthBucket = "narrow"
	WidthStandard WidthBucket = "standard"
	WidthWide     WidthBucket = "wide"
)

// ObjectFinding holds the measured footprint of one class.
type ObjectFinding struct {
	PixelCount     int         `json:"pixel_count"`
	Ratio          float64     `json:"ratio"`
	EstimatedSize  SizeBucket  `json:"estimated_size,omitempty"`
	EstimatedWidth WidthBucket `json:"estimated_width,omitempty"`
	Bounds         *Region     `json:"bounds,omitempty"`
}

// ObstacleDetails collects per-object findings and pairwise distances.
// Distances are in grid cells and only set when both objects exist.
type ObstacleDetails struct {
	Stairs                  *ObjectFinding `json:"stairs,omitempty"`
	Door                    *ObjectFinding `json:"door,omitempty"`
	Building                *ObjectFinding `json:"building,omitempty"`
	StairsToDoorDistance    *float64       `json:"stairs_to_door_distance,omitempty"`
	SidewalkToDoorDistance  *float64       `json:"sidewalk_to_door_distance,omitempty"`
	RailingToStairsDistance *float64       `json:"railing_to_stairs_distance,omitempty"`
}

// AccessibilityResult is the output of the scoring engine.
type AccessibilityResult struct {
	HasStairs          bool            `json:"has_stairs"`
	HasRamp            bool            `json:"has_ramp"`
	EntranceAccessible bool            `json:"entrance_accessible"`
	HasSidewalk        bool            `json:"has_sidewalk"`
	HasBuilding        bool            `json:"has_building"`
	HasRailing         bool            `json:"has_railing"`
	HasStairsRailing   bool            `json:"has_stairs_railing"`
	HasDoor            bool            `json:"has_door"`
	Obstacles          []ObstacleTag   `json:"obstacles"`
	Details            ObstacleDetails `json:"obstacle_details"`
	Score              int             `json:"accessibility_score"`
}

// HasObstacle reports whether tag was recorded.
func (r *AccessibilityResult) HasObstacle(tag ObstacleTag) bool {
	return slices.Contains(r.Obstacles, tag)
}

// AddObstacle records tag once.
func (r *AccessibilityResult) AddObstacle(tag ObstacleTag) {
	if !r.HasObstacle(tag) {
		r.Obstacles = append(r.Obstacles, tag)
	}
}
