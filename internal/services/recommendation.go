package services

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/actuallyakshat/chrona/internal/apperrors"
	"github.com/actuallyakshat/chrona/internal/geo"
	"github.com/actuallyakshat/chrona/internal/models"
)

const (
	recommendationCount = 3
	shufflePoolSize     = 20
	snapshotTTL         = 48 * time.Hour

	// ExclusionCumulative never re-shows a user once recommended;
	// ExclusionDaily lets exclusion reset at each day boundary.
	ExclusionCumulative = "cumulative"
	ExclusionDaily      = "daily"
)

// defaultPreferences is applied when a viewer has not set preferences yet.
var defaultPreferences = models.Preferences{
	MinAge:        18,
	MaxAge:        99,
	MaxDistanceKm: 10000,
	Gender:        "any",
}

// RecommendationUserStore is the user persistence surface the engine needs.
type RecommendationUserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListAll(ctx context.Context) ([]*models.User, error)
	AppendRecommended(ctx context.Context, userID string, ids []string, at time.Time) error
}

// RecommendationConnectionStore lists a viewer's existing connections.
type RecommendationConnectionStore interface {
	ListByUserID(ctx context.Context, userID string) ([]*models.Connection, error)
}

// SnapshotCache holds the per-viewer daily recommendation snapshot.
type SnapshotCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetNXJSON(ctx context.Context, key string, v any, ttl time.Duration) (bool, error)
}

// RecommendationService scores candidate pen pals against the viewer's
// preferences and serves at most one fresh triple per viewer per UTC day.
type RecommendationService struct {
	userRepo  RecommendationUserStore
	connRepo  RecommendationConnectionStore
	snapshots SnapshotCache
	exclusion string

	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(
	userRepo RecommendationUserStore,
	connRepo RecommendationConnectionStore,
	snapshots SnapshotCache,
	exclusion string,
) *RecommendationService {
	return &RecommendationService{
		userRepo:  userRepo,
		connRepo:  connRepo,
		snapshots: snapshots,
		exclusion: exclusion,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Recommend returns up to three candidate profiles for the viewer. A viewer
// whose identity has not synced yet gets an empty result, not an error.
// Repeated calls on the same UTC day converge on the same triple.
func (s *RecommendationService) Recommend(ctx context.Context, viewerID string) ([]*models.User, error) {
	viewer, err := s.userRepo.GetByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return []*models.User{}, nil
		}
		return nil, err
	}

	now := s.now().UTC()
	today := now.Format(time.DateOnly)
	key := snapshotKey(viewer.ID, today)

	connected, err := s.connectedSet(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}

	// Fresh-for-today: serve the cached snapshot without recomputation.
	var cachedIDs []string
	if found, err := s.snapshots.GetJSON(ctx, key, &cachedIDs); err == nil && found {
		return s.resolve(ctx, cachedIDs, connected), nil
	}
	if viewer.LastRecommendationDate != nil &&
		viewer.LastRecommendationDate.UTC().Format(time.DateOnly) == today {
		return s.resolve(ctx, viewer.LastRecommended, connected), nil
	}

	chosen, err := s.recompute(ctx, viewer, connected)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chosen))
	for i, u := range chosen {
		ids[i] = u.ID
	}

	won, err := s.snapshots.SetNXJSON(ctx, key, ids, snapshotTTL)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent request published first; serve its snapshot.
		var winnerIDs []string
		if found, err := s.snapshots.GetJSON(ctx, key, &winnerIDs); err == nil && found {
			return s.resolve(ctx, winnerIDs, connected), nil
		}
		return chosen, nil
	}

	// Stamp the date even when the pool came up empty, so an empty day
	// does not trigger a full rescan on every request.
	if err := s.userRepo.AppendRecommended(ctx, viewer.ID, ids, now); err != nil {
		return nil, err
	}
	return chosen, nil
}

// recompute scans the eligible population, partitions exact matches, scores
// and ranks, then shuffles the top of the ranking to vary near-ties.
func (s *RecommendationService) recompute(ctx context.Context, viewer *models.User, connected map[string]bool) ([]*models.User, error) {
	all, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool)
	if s.exclusion != ExclusionDaily {
		for _, id := range viewer.Recommended {
			excluded[id] = true
		}
	}

	pool := make([]*models.User, 0, len(all))
	for _, u := range all {
		if u.ID == viewer.ID || connected[u.ID] || excluded[u.ID] {
			continue
		}
		pool = append(pool, u)
	}

	prefs := defaultPreferences
	if viewer.Preferences != nil {
		prefs = *viewer.Preferences
	}
	viewerLoc := viewer.Location

	exact := make([]*models.User, 0, len(pool))
	for _, u := range pool {
		if exactMatch(u, prefs, viewerLoc) {
			exact = append(exact, u)
		}
	}

	candidates := pool
	if len(exact) >= recommendationCount {
		candidates = exact
	}

	type scored struct {
		user  *models.User
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, u := range candidates {
		ranked[i] = scored{user: u, score: similarity(u, prefs, viewerLoc)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > shufflePoolSize {
		ranked = ranked[:shufflePoolSize]
	}
	s.mu.Lock()
	s.rnd.Shuffle(len(ranked), func(i, j int) {
		ranked[i], ranked[j] = ranked[j], ranked[i]
	})
	s.mu.Unlock()

	n := recommendationCount
	if len(ranked) < n {
		n = len(ranked)
	}
	chosen := make([]*models.User, n)
	for i := 0; i < n; i++ {
		chosen[i] = ranked[i].user
	}
	return chosen, nil
}

// exactMatch reports whether the candidate satisfies every defined
// preference constraint.
func exactMatch(u *models.User, prefs models.Preferences, viewerLoc *models.Location) bool {
	if u.Age != nil && (*u.Age < prefs.MinAge || *u.Age > prefs.MaxAge) {
		return false
	}
	if prefs.Gender != "" && prefs.Gender != "any" && u.Gender != prefs.Gender {
		return false
	}
	if len(prefs.Languages) > 0 && len(u.Languages) > 0 && overlap(prefs.Languages, u.Languages) == 0 {
		return false
	}
	if len(prefs.Interests) > 0 && len(u.Interests) > 0 && overlap(prefs.Interests, u.Interests) == 0 {
		return false
	}
	if prefs.MaxDistanceKm > 0 && viewerLoc != nil && u.Location != nil {
		if distanceKm(viewerLoc, u.Location) > prefs.MaxDistanceKm {
			return false
		}
	}
	return true
}

// similarity is a weighted score in [0,1] built only from components both
// sides have data for, so sparse profiles are never penalized for missing
// fields.
func similarity(u *models.User, prefs models.Preferences, viewerLoc *models.Location) float64 {
	var score float64
	var weight int

	if u.Age != nil {
		if *u.Age >= prefs.MinAge && *u.Age <= prefs.MaxAge {
			score++
		}
		weight++
	}

	if prefs.Gender != "" && u.Gender != "" {
		if prefs.Gender == "any" || prefs.Gender == u.Gender {
			score++
		}
		weight++
	}

	if len(prefs.Languages) > 0 && len(u.Languages) > 0 {
		score += float64(overlap(prefs.Languages, u.Languages)) / float64(maxInt(len(prefs.Languages), len(u.Languages)))
		weight++
	}

	if len(prefs.Interests) > 0 && len(u.Interests) > 0 {
		score += float64(overlap(prefs.Interests, u.Interests)) / float64(maxInt(len(prefs.Interests), len(u.Interests)))
		weight++
	}

	if viewerLoc != nil && u.Location != nil && prefs.MaxDistanceKm > 0 {
		closeness := 1 - distanceKm(viewerLoc, u.Location)/prefs.MaxDistanceKm
		if closeness < 0 {
			closeness = 0
		}
		score += closeness
		weight++
	}

	if weight == 0 {
		return 0
	}
	return score / float64(weight)
}

// connectedSet collects the ids of everyone the viewer already has a
// connection with; those are never recommended.
func (s *RecommendationService) connectedSet(ctx context.Context, viewerID string) (map[string]bool, error) {
	conns, err := s.connRepo.ListByUserID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	connected := make(map[string]bool, len(conns))
	for _, conn := range conns {
		connected[conn.Counterpart(viewerID)] = true
	}
	return connected, nil
}

// resolve turns stored ids back into profiles, dropping any that have since
// become connections or disappeared.
func (s *RecommendationService) resolve(ctx context.Context, ids []string, connected map[string]bool) []*models.User {
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if connected[id] {
			continue
		}
		u, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		users = append(users, u)
	}
	return users
}

func snapshotKey(viewerID, date string) string {
	return "rec:" + viewerID + ":" + date
}

func overlap(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	n := 0
	for _, v := range b {
		if set[v] {
			n++
		}
	}
	return n
}

func distanceKm(a, b *models.Location) float64 {
	return geo.DistanceKm(
		geo.Point{Lat: a.Latitude, Lon: a.Longitude},
		geo.Point{Lat: b.Latitude, Lon: b.Longitude},
	)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
