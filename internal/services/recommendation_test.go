package services

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/actuallyakshat/chrona/internal/apperrors"
	"github.com/actuallyakshat/chrona/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecUserStore struct {
	all []*models.User

	listAllCalls int
	appendedTo   string
	appendedIDs  []string
}

func (f *fakeRecUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range f.all {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeRecUserStore) ListAll(ctx context.Context) ([]*models.User, error) {
	f.listAllCalls++
	return f.all, nil
}

func (f *fakeRecUserStore) AppendRecommended(ctx context.Context, userID string, ids []string, at time.Time) error {
	f.appendedTo = userID
	f.appendedIDs = append(f.appendedIDs, ids...)
	for _, u := range f.all {
		if u.ID == userID {
			u.Recommended = append(u.Recommended, ids...)
			u.LastRecommended = ids
			stamped := at
			u.LastRecommendationDate = &stamped
		}
	}
	return nil
}

type fakeRecConnStore struct {
	conns []*models.Connection
}

func (f *fakeRecConnStore) ListByUserID(ctx context.Context, userID string) ([]*models.Connection, error) {
	var out []*models.Connection
	for _, c := range f.conns {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeSnapshotCache struct {
	m map[string][]byte

	getJSONFn   func(ctx context.Context, key string, dest any) (bool, error)
	setNXJSONFn func(ctx context.Context, key string, v any, ttl time.Duration) (bool, error)
}

func newFakeSnapshotCache() *fakeSnapshotCache {
	return &fakeSnapshotCache{m: make(map[string][]byte)}
}

func (f *fakeSnapshotCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if f.getJSONFn != nil {
		return f.getJSONFn(ctx, key, dest)
	}
	raw, ok := f.m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeSnapshotCache) SetNXJSON(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	if f.setNXJSONFn != nil {
		return f.setNXJSONFn(ctx, key, v, ttl)
	}
	if _, ok := f.m[key]; ok {
		return false, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	f.m[key] = raw
	return true, nil
}

func newTestRecommendationService(users *fakeRecUserStore, conns *fakeRecConnStore, cache *fakeSnapshotCache, exclusion string) *RecommendationService {
	svc := NewRecommendationService(users, conns, cache, exclusion)
	svc.now = func() time.Time { return testNow }
	svc.rnd = rand.New(rand.NewSource(1))
	return svc
}

func intPtr(n int) *int { return &n }

func candidate(id string, age int, langs, interests []string) *models.User {
	return &models.User{ID: id, Age: intPtr(age), Languages: langs, Interests: interests}
}

func viewerWithPrefs(id string) *models.User {
	return &models.User{
		ID: id,
		Preferences: &models.Preferences{
			MinAge:    20,
			MaxAge:    30,
			Gender:    "any",
			Languages: []string{"en"},
			Interests: []string{"hiking"},
		},
	}
}

func resultIDs(users []*models.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func TestRecommendUnknownViewer(t *testing.T) {
	users := &fakeRecUserStore{}
	svc := newTestRecommendationService(users, &fakeRecConnStore{}, newFakeSnapshotCache(), ExclusionCumulative)

	got, err := svc.Recommend(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, users.listAllCalls, "unknown viewer never triggers a scan")
}

func TestRecommendPrefersExactMatches(t *testing.T) {
	users := &fakeRecUserStore{all: []*models.User{
		viewerWithPrefs("viewer"),
		candidate("exact1", 22, []string{"en"}, []string{"hiking"}),
		candidate("exact2", 25, []string{"en", "fr"}, []string{"hiking", "chess"}),
		candidate("exact3", 28, []string{"en"}, []string{"hiking"}),
		candidate("exact4", 30, []string{"en"}, []string{"hiking"}),
		candidate("tooOld", 45, []string{"en"}, []string{"hiking"}),
	}}
	svc := newTestRecommendationService(users, &fakeRecConnStore{}, newFakeSnapshotCache(), ExclusionCumulative)

	got, err := svc.Recommend(context.Background(), "viewer")
	require.NoError(t, err)
	require.Len(t, got, 3)

	for _, u := range got {
		assert.NotEqual(t, "viewer", u.ID)
		assert.NotEqual(t, "tooOld", u.ID, "non-matching candidate must lose to a full exact pool")
	}
}

func TestRecommendFallsBackWhenExactPoolIsThin(t *testing.T) {
	users := &fakeRecUserStore{all: []*models.User{
		viewerWithPrefs("viewer"),
		candidate("exact1", 22, []string{"en"}, []string{"hiking"}),
		candidate("exact2", 25, []string{"en"}, []string{"hiking"}),
		candidate("tooOld", 45, []string{"en"}, []string{"hiking"}),
		candidate("noOverlap", 24, []string{"jp"}, []string{"chess"}),
	}}
	svc := newTestRecommendationService(users, &fakeRecConnStore{}, newFakeSnapshotCache(), ExclusionCumulative)

	got, err := svc.Recommend(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Len(t, got, 3, "fewer than three exact matches widens to the full pool")
}

func TestRecommendExcludesConnectedUsers(t *testing.T) {
	users := &fakeRecUserStore{all: []*models.User{
		viewerWithPrefs("viewer"),
		candidate("bob", 22, []string{"en"}, []string{"hiking"}),
		candidate("carol", 25, []string{"en"}, []string{"hiking"}),
		candidate("dave", 28, []string{"en"}, []string{"hiking"}),
	}}
	conns := &fakeRecConnStore{conns: []*models.Connection{
		{ID: "c1", UserAID: "viewer", UserBID: "bob"},
	}}
	svc := newTestRecommendationService(users, conns, newFakeSnapshotCache(), ExclusionCumulative)

	got, err := svc.Recommend(context.Background(), "viewer")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotContains(t, resultIDs(got), "bob")

	assert.Equal(t, "viewer", users.appendedTo)
	assert.ElementsMatch(t, resultIDs(got), users.appendedIDs)
}

func TestRecommendDropsNewConnectionsFromCachedSnapshot(t *testing.T) {
	users := &fakeRecUserStore{all: []*models.User{
		viewerWithPrefs("viewer"),
		candidate("bob", 22, []string{"en"}, []string{"hiking"}),
		candidate("carol", 25, []string{"en"}, []string{"hiking"}),
	}}
	conns := &fakeRecConnStore{conns: []*models.Connection{
		{ID: "c1", UserAID: "viewer", UserBID: "bob"},
	}}
	cache := newFakeSnapshotCache()
	raw, err := json.Marshal([]string{"bob", "carol"})
	require.NoError(t, err)
	cache.m[snapshotKey("viewer", testNow.UTC().Format(time.DateOnly))] = raw

	svc := newTestRecommendationService(users, conns, cache, ExclusionCumulative)
	got, err := svc.Recommend(context.Background(), "viewer")
	require.NoError(t, err)

	assert.Equal(t, []string{"carol"}, resultIDs(got))
	assert.Zero(t, users.listAllCalls, "cached snapshot must not trigger recomputation")
}

func TestRecommendSameDayIsIdempotent(t *testing.T) {
	users := &fakeRecUserStore{all: []*models.User{
		viewerWithPrefs("viewer"),
		candidate("a", 22, []string{"en"}, []string{"hiking"}),
		candidate("b", 23, []string{"en"}, []string{"hiking"}),
		candidate("c", 24, []string{"en"}, []string{"hiking"}),
		candidate("d", 25, []string{"en"}, []string{"hiking"}),
		candidate("e", 26, []string{"en"}, []string{"hiking"}),
	}}
	svc := newTestRecommendationService(users, &fakeRecConnStore{}, newFakeSnapshotCache(), ExclusionCumulative)
	ctx := context.Background()

	first, err := svc.Recommend(ctx, "viewer")
	require.NoError(t, err)
	second, err := svc.Recommend(ctx, "viewer")
	require.NoError(t, err)

	assert.Equal(t, resultIDs(first), resultIDs(second))
	assert.Equal(t, 1, users.listAllCalls, "second call must be served from the snapshot")
}

func TestRecommendServesTodaysTripleWithoutCache(t *testing.T) {
	stamp := testNow
	viewer := viewerWithPrefs("viewer")
	viewer.Recommended = []string{"old", "a", "b", "c"}
	viewer.LastRecommended = []string{"a", "b", "c"}
	viewer.LastRecommendationDate = &stamp

	users := &fakeRecUserStore{all: []*models.User{
		viewer,
		candidate("a", 22, nil, nil),
		candidate("b", 23, nil, nil),
		candidate("c", 24, nil, nil),
		candidate("old", 25, nil, nil),
	}}
	svc := newTestRecommendationService(users, &fakeRecConnStore{}, newFakeSnapshotCache(), ExclusionCumulative)

	got, err := svc.Recommend(context.Background(), "viewer")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, resultIDs(got), "only the most recent triple is served")
	assert.Zero(t, users.listAllCalls)
}

func TestRecommendEmptyDayStampsDate(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	viewer := viewerWithPrefs("viewer")
	viewer.Recommended = []string{"bob"}
	viewer.LastRecommended = []string{"bob"}
	viewer.LastRecommendationDate = &yesterday

	users := &fakeRecUserStore{all: []*models.User{
		viewer,
		candidate("bob", 22, []string{"en"}, []string{"hiking"}),
	}}

	// Behaves like the disabled cache: every lookup misses, every publish wins.
	cache := newFakeSnapshotCache()
	cache.getJSONFn = func(ctx context.Context, key string, dest any) (bool, error) {
		return false, nil
	}
	cache.setNXJSONFn = func(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
		return true, nil
	}

	svc := newTestRecommendationService(users, &fakeRecConnStore{}, cache, ExclusionCumulative)
	ctx := context.Background()

	got, err := svc.Recommend(ctx, "viewer")
	require.NoError(t, err)
	assert.Empty(t, got, "cumulative exclusion exhausted the pool")
	assert.Equal(t, "viewer", users.appendedTo, "empty day must still stamp the date")

	got, err = svc.Recommend(ctx, "viewer")
	require.NoError(t, err)
	assert.Empty(t, got, "yesterday's ids must not resurface")
	assert.Equal(t, 1, users.listAllCalls, "stamped date short-circuits the rescan")
}

func TestRecommendLoserServesWinnersSnapshot(t *testing.T) {
	users := &fakeRecUserStore{all: []*models.User{
		viewerWithPrefs("viewer"),
		candidate("a", 22, nil, nil),
		candidate("b", 23, nil, nil),
		candidate("winner", 24, nil, nil),
	}}
	cache := newFakeSnapshotCache()
	gets := 0
	cache.getJSONFn = func(ctx context.Context, key string, dest any) (bool, error) {
		gets++
		if gets == 1 {
			return false, nil
		}
		return true, json.Unmarshal([]byte(`["winner"]`), dest)
	}
	cache.setNXJSONFn = func(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
		return false, nil
	}

	svc := newTestRecommendationService(users, &fakeRecConnStore{}, cache, ExclusionCumulative)
	got, err := svc.Recommend(context.Background(), "viewer")
	require.NoError(t, err)

	assert.Equal(t, []string{"winner"}, resultIDs(got))
	assert.Empty(t, users.appendedIDs, "only the winning request persists the triple")
}

func TestRecommendExclusionPolicy(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)

	newViewer := func() *models.User {
		v := viewerWithPrefs("viewer")
		v.Recommended = []string{"bob"}
		stamp := yesterday
		v.LastRecommendationDate = &stamp
		return v
	}

	t.Run("cumulative never re-shows", func(t *testing.T) {
		users := &fakeRecUserStore{all: []*models.User{
			newViewer(),
			candidate("bob", 22, []string{"en"}, []string{"hiking"}),
		}}
		svc := newTestRecommendationService(users, &fakeRecConnStore{}, newFakeSnapshotCache(), ExclusionCumulative)

		got, err := svc.Recommend(context.Background(), "viewer")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("daily resets at the day boundary", func(t *testing.T) {
		users := &fakeRecUserStore{all: []*models.User{
			newViewer(),
			candidate("bob", 22, []string{"en"}, []string{"hiking"}),
		}}
		svc := newTestRecommendationService(users, &fakeRecConnStore{}, newFakeSnapshotCache(), ExclusionDaily)

		got, err := svc.Recommend(context.Background(), "viewer")
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, resultIDs(got))
	})
}

func TestSimilarity(t *testing.T) {
	prefs := models.Preferences{MinAge: 20, MaxAge: 30, Gender: "any", Languages: []string{"en", "fr"}, Interests: []string{"hiking"}}

	t.Run("nothing evaluable scores zero", func(t *testing.T) {
		assert.Zero(t, similarity(&models.User{ID: "blank"}, prefs, nil))
	})

	t.Run("age in range", func(t *testing.T) {
		assert.Equal(t, 1.0, similarity(&models.User{Age: intPtr(25)}, prefs, nil))
		assert.Equal(t, 0.0, similarity(&models.User{Age: intPtr(45)}, prefs, nil))
	})

	t.Run("language overlap is a fraction of the larger set", func(t *testing.T) {
		u := &models.User{Languages: []string{"en", "de", "jp"}}
		assert.InDelta(t, 1.0/3, similarity(u, prefs, nil), 1e-9)
	})

	t.Run("distance beyond the cap contributes nothing", func(t *testing.T) {
		withDistance := prefs
		withDistance.MaxDistanceKm = 100
		viewerLoc := &models.Location{Latitude: 48.8566, Longitude: 2.3522}
		u := &models.User{Location: &models.Location{Latitude: 35.6762, Longitude: 139.6503}}
		assert.Zero(t, similarity(u, withDistance, viewerLoc))
	})

	t.Run("missing fields are not penalized", func(t *testing.T) {
		sparse := &models.User{Age: intPtr(25)}
		full := &models.User{Age: intPtr(25), Languages: []string{"jp"}}
		assert.Greater(t, similarity(sparse, prefs, nil), similarity(full, prefs, nil))
	})
}

func TestExactMatch(t *testing.T) {
	prefs := models.Preferences{MinAge: 20, MaxAge: 30, Gender: "female", Languages: []string{"en"}}

	t.Run("unknown age passes the age constraint", func(t *testing.T) {
		assert.True(t, exactMatch(&models.User{Gender: "female"}, prefs, nil))
	})

	t.Run("gender mismatch fails", func(t *testing.T) {
		assert.False(t, exactMatch(&models.User{Gender: "male"}, prefs, nil))
	})

	t.Run("disjoint languages fail", func(t *testing.T) {
		assert.False(t, exactMatch(&models.User{Gender: "female", Languages: []string{"jp"}}, prefs, nil))
	})

	t.Run("distance cap applies only when both locations are known", func(t *testing.T) {
		capped := prefs
		capped.MaxDistanceKm = 100
		paris := &models.Location{Latitude: 48.8566, Longitude: 2.3522}
		tokyo := &models.Location{Latitude: 35.6762, Longitude: 139.6503}

		assert.False(t, exactMatch(&models.User{Gender: "female", Location: tokyo}, capped, paris))
		assert.True(t, exactMatch(&models.User{Gender: "female"}, capped, paris))
	})
}
