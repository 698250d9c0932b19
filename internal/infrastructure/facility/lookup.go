package facility

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"ablemap/internal/domain/entity"
)

// Keywords that mark evalInfo features per accessibility aspect.
const (
	keywordEntrance = "주출입구"
	keywordParking  = "주차"
	keywordRestroom = "화장실"
	keywordElevator = "엘리베이터"
)

const (
	msgNoLocation = "no location information"
	msgNotFound   = "facility not found"
)

// Lookup resolves a location to facility data. It prefers the facility ID,
// then coordinates, then the region. Service failures are reported as an
// unavailable result; only context cancellation is returned as an error.
func (c *Client) Lookup(ctx context.Context, loc *entity.LocationDescriptor) (*entity.FacilityInfo, error) {
	if loc.IsZero() {
		return entity.UnavailableFacility(msgNoLocation), nil
	}

	var (
		basic, detail entity.FacilityRecord
		err           error
	)
	region := regionOf(loc)

	switch {
	case loc.FacilityID != "":
		var page []entity.FacilityRecord
		page, err = c.ListFacilities(ctx, 1, c.cfg.Rows, nil)
		if err == nil {
			if i := slices.IndexFunc(page, func(r entity.FacilityRecord) bool { return r.ID() == loc.FacilityID }); i >= 0 {
				basic = page[i]
			}
			detail, err = c.Detail(ctx, loc.FacilityID)
		}
	case loc.HasCoordinates():
		var all []entity.FacilityRecord
		all, err = c.scan(ctx, region)
		if err == nil {
			if near, ok := NearestFacility(*loc.Latitude, *loc.Longitude, all); ok {
				basic = near
				detail, err = c.Detail(ctx, near.ID())
			}
		}
	case region.HasRegion():
		var all []entity.FacilityRecord
		all, err = c.scan(ctx, region)
		if err == nil && len(all) > 0 {
			basic = all[0]
			detail, err = c.Detail(ctx, basic.ID())
		}
	default:
		return entity.UnavailableFacility(msgNoLocation), nil
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Printf("facility: lookup failed: %v", err)
		return entity.UnavailableFacility(fmt.Sprintf("facility lookup failed: %v", err)), nil
	}
	if basic == nil && detail == nil {
		return entity.UnavailableFacility(msgNotFound), nil
	}
	return BuildInfo(basic, detail), nil
}

// scan reads list pages until one comes back empty.
func (c *Client) scan(ctx context.Context, region *entity.LocationDescriptor) ([]entity.FacilityRecord, error) {
	var all []entity.FacilityRecord
	for page := 1; page <= c.cfg.Pages; page++ {
		recs, err := c.ListFacilities(ctx, page, c.cfg.Rows, region)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			break
		}
		all = append(all, recs...)
	}
	return all, nil
}

// regionOf returns the region part of loc, falling back to an address key.
func regionOf(loc *entity.LocationDescriptor) *entity.LocationDescriptor {
	if loc.SiDoNm != "" {
		return &entity.LocationDescriptor{SiDoNm: loc.SiDoNm, CggNm: loc.CggNm, RoadNm: loc.RoadNm}
	}
	if r, ok := ParseAddressKey(loc.Address); ok {
		return r
	}
	return nil
}

// ParseAddressKey splits "province_district_road_number" into a region
// descriptor. Everything after the district joins into the road name.
func ParseAddressKey(key string) (*entity.LocationDescriptor, bool) {
	parts := strings.Split(strings.TrimSpace(key), "_")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}
	d := &entity.LocationDescriptor{SiDoNm: parts[0], CggNm: parts[1]}
	if len(parts) > 2 {
		d.RoadNm = strings.Join(parts[2:], " ")
	}
	return d, true
}

// BuildInfo combines a list record and a detail record into FacilityInfo.
func BuildInfo(basic, detail entity.FacilityRecord) *entity.FacilityInfo {
	var features []string
	if detail != nil {
		if eval := detail[entity.FieldEvalInfo]; eval != "" {
			features = strings.Split(eval, ", ")
		}
	}
	if basic == nil {
		basic = detail
	}
	return &entity.FacilityInfo{
		Available: true,
		Basic:     basic,
		Features:  features,
		Accessibility: entity.FacilityAccessibility{
			Entrance: flag(features, keywordEntrance),
			Parking:  flag(features, keywordParking),
			Restroom: flag(features, keywordRestroom),
			Elevator: flag(features, keywordElevator),
		},
	}
}

func flag(features []string, keyword string) entity.FeatureFlag {
	var f entity.FeatureFlag
	for _, feat := range features {
		if strings.Contains(feat, keyword) {
			f.Features = append(f.Features, feat)
		}
	}
	f.Available = len(f.Features) > 0
	return f
}
