package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
	"github.com/noah-isme/aba-scheduler-api/pkg/memocache"
)

func newTherapist(id string, specialties ...string) *models.Therapist {
	return &models.Therapist{
		ID:          id,
		Name:        "Therapist " + id,
		Specialties: specialties,
	}
}

func newClient(id string, preferences ...string) *models.Client {
	return &models.Client{
		ID:          id,
		Name:        "Client " + id,
		Preferences: preferences,
	}
}

func TestScoreIsBounded(t *testing.T) {
	svc := NewCompatibilityService(nil, time.Minute, nil)

	therapist := newTherapist("t1", "verbal_behavior", "early_intervention")
	therapist.Location = &models.GeoPoint{Lat: -6.2, Lng: 106.8}
	therapist.ServiceRadiusKm = 10
	therapist.MaxCaseload = 10
	therapist.CurrentCaseload = 2

	client := newClient("c1", "verbal_behavior")
	client.Location = &models.GeoPoint{Lat: -6.21, Lng: 106.81}
	client.MaxTravelKm = 8

	score := svc.Score(therapist, client)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestScoreHardGateOnSpecialtyMismatch(t *testing.T) {
	svc := NewCompatibilityService(nil, time.Minute, nil)

	therapist := newTherapist("t1", "verbal_behavior")
	therapist.MaxCaseload = 10
	client := newClient("c1", "feeding_therapy")

	assert.Zero(t, svc.Score(therapist, client), "no specialty overlap must score zero regardless of logistics")
}

func TestScoreCombinesWeightedTerms(t *testing.T) {
	svc := NewCompatibilityService(nil, time.Minute, nil)

	// Full specialty match, no locations, 2 of 10 caseload used.
	therapist := newTherapist("t1", "verbal_behavior", "social_skills")
	therapist.MaxCaseload = 10
	therapist.CurrentCaseload = 2
	client := newClient("c1", "verbal_behavior", "social_skills")

	// 0.4*1.0 + 0.3*1.0 + 0.3*0.8 = 0.94
	assert.InDelta(t, 0.94, svc.Score(therapist, client), 1e-9)
}

func TestScoreProximityDecaysWithDistance(t *testing.T) {
	svc := NewCompatibilityService(nil, time.Minute, nil)

	near := newClient("near", "verbal_behavior")
	near.Location = &models.GeoPoint{Lat: -6.2, Lng: 106.8}
	far := newClient("far", "verbal_behavior")
	far.Location = &models.GeoPoint{Lat: -6.4, Lng: 107.0}

	therapist := newTherapist("t1", "verbal_behavior")
	therapist.Location = &models.GeoPoint{Lat: -6.2, Lng: 106.8}
	therapist.ServiceRadiusKm = 40

	assert.Greater(t, svc.Score(therapist, near), svc.Score(therapist, far))
}

func TestScoreOutsideRadiusFloorsAtZeroProximity(t *testing.T) {
	therapist := newTherapist("t1", "verbal_behavior")
	therapist.Location = &models.GeoPoint{Lat: 0, Lng: 0}
	therapist.ServiceRadiusKm = 5

	client := newClient("c1", "verbal_behavior")
	client.Location = &models.GeoPoint{Lat: 1, Lng: 1} // ~157km away

	// Specialty 1.0, proximity 0, headroom 1.0.
	svc := NewCompatibilityService(nil, time.Minute, nil)
	assert.InDelta(t, 0.7, svc.Score(therapist, client), 1e-9)
}

func TestScoreUsesCacheForRepeatLookups(t *testing.T) {
	cache := memocache.New[PairKey, models.CompatibilityScore]()
	svc := NewCompatibilityService(cache, time.Minute, nil)

	therapist := newTherapist("t1", "verbal_behavior")
	client := newClient("c1", "verbal_behavior")

	first := svc.Score(therapist, client)
	second := svc.Score(therapist, client)
	assert.Equal(t, first, second)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9, "one miss then one hit")
}

func TestInvalidateDropsPairEntry(t *testing.T) {
	cache := memocache.New[PairKey, models.CompatibilityScore]()
	svc := NewCompatibilityService(cache, time.Minute, nil)

	therapist := newTherapist("t1", "verbal_behavior")
	client := newClient("c1", "verbal_behavior")

	svc.Score(therapist, client)
	require.Equal(t, 1, cache.Len())

	svc.Invalidate("t1", "c1")
	assert.Zero(t, cache.Len())
}

func TestHaversineKnownDistance(t *testing.T) {
	// Jakarta to Bandung, roughly 116km.
	d := haversineKm(-6.2088, 106.8456, -6.9175, 107.6191)
	assert.InDelta(t, 116, d, 5)
}
