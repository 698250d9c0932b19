package entity

// Field names of the public facility dataset.
const (
	FieldFacilityID = "wfcltId"
	FieldName       = "faclNm"
	FieldAddress    = "lcMnad"
	FieldLatitude   = "faclLat"
	FieldLongitude  = "faclLng"
	FieldEstablish  = "estbDate"
	FieldEvalInfo   = "evalInfo"
)

// LocationDescriptor identifies where a photo was taken. Lookup prefers
// FacilityID, then coordinates, then the region fields.
type LocationDescriptor struct {
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Address    string   `json:"address,omitempty"`
	SiDoNm     string   `json:"siDoNm,omitempty"` // province / metropolitan city
	CggNm      string   `json:"cggNm,omitempty"`  // district
	RoadNm     string   `json:"roadNm,omitempty"` // road name and number
	FacilityID string   `json:"wfcltId,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (d *LocationDescriptor) HasCoordinates() bool {
	return d != nil && d.Latitude != nil && d.Longitude != nil
}

// HasRegion reports whether province and district are set.
func (d *LocationDescriptor) HasRegion() bool {
	return d != nil && d.SiDoNm != "" && d.CggNm != ""
}

// IsZero reports whether nothing usable is set.
func (d *LocationDescriptor) IsZero() bool {
	return d == nil || (!d.HasCoordinates() && d.SiDoNm == "" && d.FacilityID == "" && d.Address == "")
}

// FacilityRecord is one servList entry keyed by element name.
type FacilityRecord map[string]string

// ID returns the facility identifier.
func (r FacilityRecord) ID() string { return r[FieldFacilityID] }

// Name returns the facility name or a placeholder.
func (r FacilityRecord) Name() string {
	if n := r[FieldName]; n != "" {
		return n
	}
	return "unnamed"
}

// FeatureFlag summarises one accessibility aspect of a facility.
type FeatureFlag struct {
	Available bool     `json:"available"`
	Features  []string `json:"features,omitempty"`
}

// FacilityAccessibility groups the derived feature flags.
type FacilityAccessibility struct {
	Entrance FeatureFlag `json:"entrance"`
	Parking  FeatureFlag `json:"parking"`
	Restroom FeatureFlag `json:"restroom"`
	Elevator FeatureFlag `json:"elevator"`
}

// FacilityInfo is the result of a facility lookup. When Available is false
// Message explains why.
type FacilityInfo struct {
	Available     bool                  `json:"available"`
	Message       string                `json:"message,omitempty"`
	Basic         FacilityRecord        `json:"basic_info,omitempty"`
	Features      []string              `json:"facility_features,omitempty"`
	Accessibility FacilityAccessibility `json:"accessibility_details"`
}

// UnavailableFacility builds a lookup result carrying only a reason.
func UnavailableFacility(reason string) *FacilityInfo {
	return &FacilityInfo{Available: false, Message: reason}
}
