package port

import (
	"context"

	"ablemap/internal/domain/entity"
)

// FacilityLookup finds public accessibility data for a location.
type FacilityLookup interface {
	// Lookup never reports "not found" as an error: it returns a
	// FacilityInfo with Available=false and a message instead.
	Lookup(ctx context.Context, loc *entity.LocationDescriptor) (*entity.FacilityInfo, error)
}
