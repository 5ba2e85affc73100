package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
)

// RosterRepository loads the therapist and client rosters that seed a
// scheduling run. Availability and preference documents are stored as JSONB
// and decoded into domain types on read.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs a RosterRepository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

type therapistRow struct {
	ID              string          `db:"id"`
	Name            string          `db:"full_name"`
	Specialties     pq.StringArray  `db:"specialties"`
	ServiceTypes    pq.StringArray  `db:"service_types"`
	MinWeeklyHours  float64         `db:"min_weekly_hours"`
	MaxWeeklyHours  float64         `db:"max_weekly_hours"`
	Latitude        *float64        `db:"latitude"`
	Longitude       *float64        `db:"longitude"`
	ServiceRadiusKm float64         `db:"service_radius_km"`
	MaxCaseload     int             `db:"max_caseload"`
	CurrentCaseload int             `db:"current_caseload"`
	Availability    json.RawMessage `db:"availability"`
	Active          bool            `db:"active"`
}

type clientRow struct {
	ID              string          `db:"id"`
	Name            string          `db:"full_name"`
	Preferences     pq.StringArray  `db:"preferences"`
	Latitude        *float64        `db:"latitude"`
	Longitude       *float64        `db:"longitude"`
	MaxTravelKm     float64         `db:"max_travel_km"`
	AuthorizedUnits json.RawMessage `db:"authorized_units"`
	Availability    json.RawMessage `db:"availability"`
	TimeBands       json.RawMessage `db:"preferred_time_bands"`
	Active          bool            `db:"active"`
}

// ListTherapists returns every active therapist with decoded availability.
func (r *RosterRepository) ListTherapists(ctx context.Context) ([]models.Therapist, error) {
	query := `SELECT id, full_name, specialties, service_types, min_weekly_hours, max_weekly_hours,
        latitude, longitude, service_radius_km, max_caseload, current_caseload, availability, active
        FROM therapists WHERE active = true ORDER BY id`

	var rows []therapistRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list therapists: %w", err)
	}

	therapists := make([]models.Therapist, 0, len(rows))
	for _, row := range rows {
		availability, err := decodeAvailability(row.Availability)
		if err != nil {
			return nil, fmt.Errorf("decode availability for therapist %s: %w", row.ID, err)
		}
		therapists = append(therapists, models.Therapist{
			ID:              row.ID,
			Name:            row.Name,
			Specialties:     row.Specialties,
			ServiceTypes:    row.ServiceTypes,
			MinWeeklyHours:  row.MinWeeklyHours,
			MaxWeeklyHours:  row.MaxWeeklyHours,
			Location:        geoPoint(row.Latitude, row.Longitude),
			ServiceRadiusKm: row.ServiceRadiusKm,
			MaxCaseload:     row.MaxCaseload,
			CurrentCaseload: row.CurrentCaseload,
			Availability:    availability,
		})
	}
	return therapists, nil
}

// ListClients returns every active client with decoded availability, bands
// and remaining authorization units.
func (r *RosterRepository) ListClients(ctx context.Context) ([]models.Client, error) {
	query := `SELECT id, full_name, preferences, latitude, longitude, max_travel_km,
        authorized_units, availability, preferred_time_bands, active
        FROM clients WHERE active = true ORDER BY id`

	var rows []clientRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	clients := make([]models.Client, 0, len(rows))
	for _, row := range rows {
		availability, err := decodeAvailability(row.Availability)
		if err != nil {
			return nil, fmt.Errorf("decode availability for client %s: %w", row.ID, err)
		}
		bands, err := decodeAvailability(row.TimeBands)
		if err != nil {
			return nil, fmt.Errorf("decode time bands for client %s: %w", row.ID, err)
		}
		units := map[models.UnitCategory]int{}
		if len(row.AuthorizedUnits) > 0 {
			if err := json.Unmarshal(row.AuthorizedUnits, &units); err != nil {
				return nil, fmt.Errorf("decode authorized units for client %s: %w", row.ID, err)
			}
		}
		clients = append(clients, models.Client{
			ID:                 row.ID,
			Name:               row.Name,
			Preferences:        row.Preferences,
			Location:           geoPoint(row.Latitude, row.Longitude),
			MaxTravelKm:        row.MaxTravelKm,
			AuthorizedUnits:    units,
			Availability:       availability,
			PreferredTimeBands: bands,
		})
	}
	return clients, nil
}

func geoPoint(lat, lng *float64) *models.GeoPoint {
	if lat == nil || lng == nil {
		return nil
	}
	return &models.GeoPoint{Lat: *lat, Lng: *lng}
}

// decodeAvailability reads the JSONB weekly document. Keys are weekday names
// as produced by time.Weekday.String.
func decodeAvailability(raw json.RawMessage) (models.WeeklyAvailability, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var byName map[string]models.DayWindow
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, err
	}
	availability := make(models.WeeklyAvailability, len(byName))
	for name, window := range byName {
		day, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		availability[day] = window
	}
	return availability, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if day.String() == name {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
