package facility

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"ablemap/internal/domain/entity"
)

// NearestFacility returns the candidate closest to (lat, lon) by great-circle
// distance. Candidates without an ID or with missing, zero or unparseable
// coordinates are skipped. The first of equally distant candidates wins.
func NearestFacility(lat, lon float64, candidates []entity.FacilityRecord) (entity.FacilityRecord, bool) {
	origin := orb.Point{lon, lat}
	best := math.Inf(1)
	var nearest entity.FacilityRecord

	for _, c := range candidates {
		if c.ID() == "" {
			continue
		}
		p, ok := recordPoint(c)
		if !ok {
			continue
		}
		if d := geo.DistanceHaversine(origin, p); d < best {
			best = d
			nearest = c
		}
	}
	return nearest, nearest != nil
}

func recordPoint(r entity.FacilityRecord) (orb.Point, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(r[entity.FieldLatitude]), 64)
	if err != nil || lat == 0 {
		return orb.Point{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(r[entity.FieldLongitude]), 64)
	if err != nil || lon == 0 {
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}
