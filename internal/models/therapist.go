package models

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Therapist is the scheduling view of a therapist: the narrow projection of
// the persisted record that the engine needs for one run. It is treated as an
// immutable snapshot for the duration of a scheduling run.
type Therapist struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Specialties     []string           `json:"specialties"`
	ServiceTypes    []string           `json:"serviceTypes"`
	MinWeeklyHours  float64            `json:"minWeeklyHours"`
	MaxWeeklyHours  float64            `json:"maxWeeklyHours"`
	Location        *GeoPoint          `json:"location,omitempty"`
	ServiceRadiusKm float64            `json:"serviceRadiusKm"`
	MaxCaseload     int                `json:"maxCaseload"`
	CurrentCaseload int                `json:"currentCaseload"`
	Availability    WeeklyAvailability `json:"availability"`
}

// OffersService reports whether the therapist delivers the given service type.
// An empty service-type list means the therapist takes any service.
func (t *Therapist) OffersService(serviceType string) bool {
	if len(t.ServiceTypes) == 0 {
		return true
	}
	for _, s := range t.ServiceTypes {
		if s == serviceType {
			return true
		}
	}
	return false
}
