package service

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
	"github.com/noah-isme/aba-scheduler-api/pkg/memocache"
)

const (
	specialtyWeight = 0.4
	proximityWeight = 0.3
	headroomWeight  = 0.3
)

// PairKey identifies one (therapist, client) pairing in the score cache.
type PairKey struct {
	TherapistID string
	ClientID    string
}

// ScoreCache memoizes pairwise compatibility scores.
type ScoreCache = memocache.Cache[PairKey, models.CompatibilityScore]

// CompatibilityService computes a bounded [0, 1] fit score between a
// therapist and a client. Scores are memoized through an injected cache whose
// TTL should stay well below the staleness tolerance of the roster snapshot.
type CompatibilityService struct {
	cache  *ScoreCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCompatibilityService wires the scorer to its cache.
func NewCompatibilityService(cache *ScoreCache, ttl time.Duration, logger *zap.Logger) *CompatibilityService {
	if cache == nil {
		cache = memocache.New[PairKey, models.CompatibilityScore]()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompatibilityService{cache: cache, ttl: ttl, logger: logger}
}

// Score returns the compatibility score for the pair, consulting the cache
// first. The cache is an optimization only: a recompute always yields the
// same value for the same snapshot.
func (s *CompatibilityService) Score(therapist *models.Therapist, client *models.Client) float64 {
	key := PairKey{TherapistID: therapist.ID, ClientID: client.ID}
	cached, err := s.cache.GetOrCompute(key, s.ttl, func() (models.CompatibilityScore, error) {
		return models.CompatibilityScore{
			TherapistID: therapist.ID,
			ClientID:    client.ID,
			Score:       computeScore(therapist, client),
			ComputedAt:  time.Now().UTC(),
		}, nil
	})
	if err != nil {
		// Degrade to a direct computation on any cache failure.
		s.logger.Warn("score cache unavailable, recomputing",
			zap.String("therapist_id", therapist.ID),
			zap.String("client_id", client.ID),
			zap.Error(err))
		return computeScore(therapist, client)
	}
	return cached.Score
}

// Invalidate drops the cached score for one pair.
func (s *CompatibilityService) Invalidate(therapistID, clientID string) {
	s.cache.Invalidate(PairKey{TherapistID: therapistID, ClientID: clientID})
}

// SweepExpired removes expired score entries and returns the count removed.
func (s *CompatibilityService) SweepExpired() int {
	return s.cache.InvalidateExpired()
}

// CacheStats snapshots the score cache for observability.
func (s *CompatibilityService) CacheStats() memocache.Stats {
	return s.cache.Stats()
}

func computeScore(therapist *models.Therapist, client *models.Client) float64 {
	overlap := specialtyOverlap(therapist.Specialties, client.Preferences)
	if overlap == 0 {
		// Hard gate: a clinically mismatched pair scores zero no matter how
		// convenient the logistics are.
		return 0
	}

	specialty := float64(overlap) / math.Max(1, float64(len(client.Preferences)))
	proximity := proximityScore(therapist, client)
	headroom := caseloadHeadroom(therapist)

	score := specialtyWeight*specialty + proximityWeight*proximity + headroomWeight*headroom
	return math.Max(0, math.Min(1, score))
}

func specialtyOverlap(specialties, preferences []string) int {
	if len(specialties) == 0 || len(preferences) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(specialties))
	for _, s := range specialties {
		set[s] = struct{}{}
	}
	count := 0
	for _, p := range preferences {
		if _, ok := set[p]; ok {
			count++
		}
	}
	return count
}

func proximityScore(therapist *models.Therapist, client *models.Client) float64 {
	if therapist.Location == nil || client.Location == nil {
		return 1
	}
	radius := effectiveRadius(therapist.ServiceRadiusKm, client.MaxTravelKm)
	if radius <= 0 {
		return 1
	}
	distance := haversineKm(therapist.Location.Lat, therapist.Location.Lng, client.Location.Lat, client.Location.Lng)
	return math.Max(0, 1-distance/radius)
}

func effectiveRadius(serviceRadiusKm, maxTravelKm float64) float64 {
	switch {
	case serviceRadiusKm > 0 && maxTravelKm > 0:
		return math.Min(serviceRadiusKm, maxTravelKm)
	case serviceRadiusKm > 0:
		return serviceRadiusKm
	default:
		return maxTravelKm
	}
}

func caseloadHeadroom(therapist *models.Therapist) float64 {
	if therapist.MaxCaseload <= 0 {
		return 1
	}
	return math.Max(0, 1-float64(therapist.CurrentCaseload)/float64(therapist.MaxCaseload))
}

// haversineKm calculates the great-circle distance (in km) between two
// lat/lng points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
