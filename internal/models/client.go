package models

// UnitCategory buckets authorized service units the way payers authorize them.
// One unit covers one grid step (15 minutes) of service.
type UnitCategory string

const (
	UnitOneToOne      UnitCategory = "one_to_one"
	UnitSupervision   UnitCategory = "supervision"
	UnitParentConsult UnitCategory = "parent_consult"
)

var serviceUnitCategories = map[string]UnitCategory{
	"direct_therapy": UnitOneToOne,
	"one_to_one":     UnitOneToOne,
	"supervision":    UnitSupervision,
	"parent_consult": UnitParentConsult,
}

// UnitCategoryFor selects the unit counter a session type draws from.
// Unknown service types bill against the one-to-one bucket.
func UnitCategoryFor(serviceType string) UnitCategory {
	if cat, ok := serviceUnitCategories[serviceType]; ok {
		return cat
	}
	return UnitOneToOne
}

// Client is the scheduling view of a client, snapshotted for one run.
// AuthorizedUnits holds the remaining authorized units per category for the
// current authorization period. PreferredTimeBands, when present, narrows the
// availability windows to the bands the family prefers.
type Client struct {
	ID                 string               `json:"id"`
	Name               string               `json:"name"`
	Preferences        []string             `json:"preferences"`
	Location           *GeoPoint            `json:"location,omitempty"`
	MaxTravelKm        float64              `json:"maxTravelKm"`
	AuthorizedUnits    map[UnitCategory]int `json:"authorizedUnits"`
	Availability       WeeklyAvailability   `json:"availability"`
	PreferredTimeBands WeeklyAvailability   `json:"preferredTimeBands,omitempty"`
}
