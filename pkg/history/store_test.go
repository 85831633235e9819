package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regscan/pkg/extract"
)

var sample = extract.Record{RegistrationNo: "KA05AB1234", OwnerName: "Ravi Kumar"}

func newTestSQLiteKV(t *testing.T, path string) *SQLiteKV {
	t.Helper()
	kv, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

// exerciseStore runs the history contract against any backend.
func exerciseStore(t *testing.T, kv KV) {
	ctx := context.Background()
	s := NewStore(kv, "test_history")
	require.NoError(t, s.Clear(ctx))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	saved, err := s.Save(ctx, sample, 92)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, time.UTC, saved.CreatedAt.Location())

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)
	assert.Equal(t, sample, list[0].ParsedData)
	assert.Equal(t, 92.0, list[0].Confidence)
	assert.True(t, saved.CreatedAt.Equal(list[0].CreatedAt))

	second, err := s.Save(ctx, extract.Record{Make: "Honda"}, 61)
	require.NoError(t, err)
	assert.Greater(t, second.ID, saved.ID)

	require.NoError(t, s.Delete(ctx, saved.ID))
	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, s.Delete(ctx, 424242), "deleting an unknown id is a no-op")

	require.NoError(t, s.Clear(ctx))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryKV())
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newTestSQLiteKV(t, filepath.Join(t.TempDir(), "history.db")))
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	kv, err := OpenPostgres(os.Getenv("DB_DSN"), true)
	require.NoError(t, err)
	defer kv.Close()
	exerciseStore(t, kv)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	kv, err := OpenRedis(context.Background(), url, "regscan-test:")
	require.NoError(t, err)
	defer kv.Close()
	exerciseStore(t, kv)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	kv, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	saved, err := NewStore(kv, "").Save(ctx, sample, 80)
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	list, err := NewStore(newTestSQLiteKV(t, path), "").List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)
}

func TestIDsStayUniqueWithinOneMillisecond(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), "")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		r, err := s.Save(ctx, sample, 70)
		require.NoError(t, err)
		assert.False(t, seen[r.ID])
		seen[r.ID] = true
	}
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i].ID, list[i-1].ID, "insertion order")
	}
}

func TestSaveSeesWritesFromAnotherStore(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	a, b := NewStore(kv, ""), NewStore(kv, "")

	first, err := a.Save(ctx, sample, 70)
	require.NoError(t, err)
	second, err := b.Save(ctx, sample, 71)
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	list, err := a.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

type brokenKV struct{}

var errOffline = errors.New("storage offline")

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errOffline }
func (brokenKV) Put(context.Context, string, []byte) error   { return errOffline }
func (brokenKV) Delete(context.Context, string) error        { return errOffline }
func (brokenKV) Close() error                                { return nil }
func (brokenKV) Backend() string                             { return "broken" }

func TestPersistenceErrors(t *testing.T) {
	ctx := context.Background()
	s := NewStore(brokenKV{}, "")

	_, err := s.List(ctx)
	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, errOffline)

	_, err = s.Save(ctx, sample, 50)
	assert.True(t, IsPersistence(err))
	assert.True(t, IsPersistence(s.Clear(ctx)))
}

func TestCorruptHistoryIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Put(ctx, DefaultKey, []byte("{not json")))
	_, err := NewStore(kv, "").List(ctx)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "decode", pe.Op)
}
