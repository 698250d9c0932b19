// Package location derives where a photo was taken from its EXIF GPS tags
// and from file names of the form province_district_road_number.
package location

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

// Extractor implements port.LocationExtractor.
type Extractor struct {
	log port.Logger
}

var _ port.LocationExtractor = (*Extractor)(nil)

// NewExtractor creates an extractor.
func NewExtractor(logger port.Logger) *Extractor {
	return &Extractor{log: logger}
}

// Extract combines GPS coordinates from data with a region parsed from
// name. It returns nil when neither is available.
func (e *Extractor) Extract(name string, data []byte) *entity.LocationDescriptor {
	loc := &entity.LocationDescriptor{}

	if lat, lon, ok := e.gps(data); ok {
		loc.Latitude, loc.Longitude = &lat, &lon
	}
	if region, ok := RegionFromName(name); ok {
		loc.SiDoNm, loc.CggNm, loc.RoadNm = region.SiDoNm, region.CggNm, region.RoadNm
	}

	if !loc.HasCoordinates() && loc.SiDoNm == "" {
		return nil
	}
	return loc
}

func (e *Extractor) gps(data []byte) (float64, float64, bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	lat, lon, err := x.LatLong()
	if err != nil {
		if e.log != nil {
			e.log.Printf("location: exif present but no usable gps: %v", err)
		}
		return 0, 0, false
	}
	return lat, lon, true
}

// RegionFromName parses the file stem of name. At least three
// underscore-separated parts are required; parts after the district form
// the road name.
func RegionFromName(name string) (*entity.LocationDescriptor, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return nil, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" || parts[1] == "" {
		return nil, false
	}
	return &entity.LocationDescriptor{
		SiDoNm: parts[0],
		CggNm:  parts[1],
		RoadNm: strings.TrimSpace(strings.Join(parts[2:], " ")),
	}, true
}
