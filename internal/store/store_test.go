package store

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TalWayn72/EduSphere-sub002/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	s, err := New(StoreConfig{Path: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, s.Init())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUninitializedStoreIsRecoverable(t *testing.T) {
	s, err := New(StoreConfig{Path: t.TempDir()})
	require.NoError(t, err)

	_, _, err = s.GetCachedQuery("query q", nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = s.EnqueueMutation("mutation m", nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = s.ListBundles()
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	// After explicit Init the same instance works.
	require.NoError(t, s.Init())
	defer s.Close()
	_, found, err := s.GetCachedQuery("query q", nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheRoundTripIsByteIdentical(t *testing.T) {
	s := newTestStore(t)

	vars := []byte(`{"courseId":"c-7","page":2}`)
	result := []byte(`{"items":[{"id":"l1"},{"id":"l2"}],"total":2}`)
	require.NoError(t, s.CacheQuery("query lessons", vars, result))

	got, found, err := s.GetCachedQuery("query lessons", vars)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, result, got)
}

func TestCacheOverwritesSameFingerprint(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CacheQuery("query q", nil, []byte(`"old"`)))
	require.NoError(t, s.CacheQuery("query q", nil, []byte(`"new"`)))

	got, found, err := s.GetCachedQuery("query q", nil)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`"new"`), got)
}

func TestOutboxIsFIFO(t *testing.T) {
	s := newTestStore(t)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := s.EnqueueMutation("mutation m", []byte{byte('0' + i)})
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(time.Millisecond) // distinct enqueue timestamps
	}

	pending, err := s.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 5)
	for i, rec := range pending {
		assert.Equal(t, ids[i], rec.ID)
		assert.Equal(t, model.MutationPending, rec.Status)
	}
}

func TestMarkMutationRemovesFromPending(t *testing.T) {
	s := newTestStore(t)

	first, err := s.EnqueueMutation("mutation a", nil)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := s.EnqueueMutation("mutation b", nil)
	require.NoError(t, err)

	require.NoError(t, s.MarkMutation(first, model.MutationSynced))
	require.NoError(t, s.MarkMutation(second, model.MutationFailed))

	pending, err := s.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Failed records are retained, not dropped.
	all, err := s.ListOutbox()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.MutationSynced, all[0].Status)
	assert.Equal(t, model.MutationFailed, all[1].Status)
}

func TestMarkMutationUnknownID(t *testing.T) {
	s := newTestStore(t)
	err := s.MarkMutation("no-such-id", model.MutationSynced)
	assert.Error(t, err)
}

func TestBundleRecords(t *testing.T) {
	s := newTestStore(t)

	rec := model.OfflineBundleRecord{
		ID:           "b1",
		Title:        "Algebra I",
		DownloadedAt: time.Now().UTC(),
		TotalBytes:   1234,
		UnitCount:    3,
	}
	require.NoError(t, s.UpsertBundle(rec))

	// Same id replaces.
	rec.TotalBytes = 4321
	require.NoError(t, s.UpsertBundle(rec))

	bundles, err := s.ListBundles()
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, int64(4321), bundles[0].TotalBytes)

	require.NoError(t, s.DeleteBundle("b1"))
	require.NoError(t, s.DeleteBundle("b1")) // idempotent

	bundles, err = s.ListBundles()
	require.NoError(t, err)
	assert.Empty(t, bundles)
}

func TestPruneCacheOlderThan(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CacheQuery("query old", nil, []byte(`1`)))
	time.Sleep(5 * time.Millisecond)

	// Nothing is older than an hour yet.
	pruned, err := s.PruneCacheOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	// A zero cutoff makes everything stale.
	pruned, err = s.PruneCacheOlderThan(0)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	_, found, err := s.GetCachedQuery("query old", nil)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClearTablesAreIndependent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CacheQuery("query q", nil, []byte(`1`)))
	require.NoError(t, s.UpsertBundle(model.OfflineBundleRecord{ID: "b1", Title: "t"}))
	_, err := s.EnqueueMutation("mutation m", nil)
	require.NoError(t, err)

	require.NoError(t, s.ClearCacheTable())
	_, found, err := s.GetCachedQuery("query q", nil)
	require.NoError(t, err)
	assert.False(t, found)

	// Outbox and bundles survive a cache clear.
	pending, err := s.ListPending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	bundles, err := s.ListBundles()
	require.NoError(t, err)
	assert.Len(t, bundles, 1)

	require.NoError(t, s.ClearBundleTable())
	bundles, err = s.ListBundles()
	require.NoError(t, err)
	assert.Empty(t, bundles)
}

func TestPreferences(t *testing.T) {
	s := newTestStore(t)

	v, err := s.Preference("downloads.wifiOnly")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, s.SetPreference("downloads.wifiOnly", "true"))
	v, err = s.Preference("downloads.wifiOnly")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}
