package corpus

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/postgres"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	c := &Corpus{Name: "novels", Description: "19th c.", Generation: 3, Docs: roaring.BitmapOf(1, 4, 9)}

	require.NoError(t, s.Put(ctx, c, false))
	err := s.Put(ctx, c, false)
	assert.ErrorIs(t, err, apperrors.ErrCorpusExists)
	assert.Equal(t, 409, apperrors.HTTPStatusCode(err))

	got, err := s.Get(ctx, "novels")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 4, 9}, got.Docs.ToArray())
	assert.Equal(t, int64(3), got.Generation)
	assert.Equal(t, "19th c.", got.Description)

	c.Docs = roaring.BitmapOf(2)
	c.Generation = 4
	require.NoError(t, s.Put(ctx, c, true))
	got, err = s.Get(ctx, "novels")
	require.NoError(t, err)
	assert.Equal(t, []uint32{2}, got.Docs.ToArray())

	require.NoError(t, s.Put(ctx, &Corpus{Name: "empty", Generation: 4}, false))
	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "empty", infos[0].Name)
	assert.Equal(t, uint64(0), infos[0].Docs)
	assert.Equal(t, "novels", infos[1].Name)
	assert.Equal(t, uint64(1), infos[1].Docs)

	require.NoError(t, s.Delete(ctx, "novels"))
	_, err = s.Get(ctx, "novels")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "novels"), apperrors.ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, &Corpus{Name: "../etc"}, false), apperrors.ErrInvalidInput)
}

func TestMemStore(t *testing.T) {
	exerciseStore(t, NewMemStore())
}

func TestMemStoreCopiesBitmaps(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	bm := roaring.BitmapOf(1)
	require.NoError(t, s.Put(ctx, &Corpus{Name: "a", Docs: bm}, false))
	bm.Add(2)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	got.Docs.Add(3)

	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, again.Docs.ToArray())
}

func TestFromIDs(t *testing.T) {
	bm, err := FromIDs([]int{3, 0, 3}, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 3}, bm.ToArray())

	_, err = FromIDs([]int{4}, 4)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = FromIDs([]int{-1}, 4)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"a", "novels_1850-1900", "v1.2"} {
		assert.NoError(t, ValidateName(ok), ok)
	}
	for _, bad := range []string{"", "-x", "a/b", "a b", string(make([]byte, 65))} {
		assert.Error(t, ValidateName(bad), bad)
	}
}

func TestPGStore(t *testing.T) {
	db, err := postgres.New(context.Background(), testPostgresConfig())
	if err != nil {
		t.Skipf("skipping postgres test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewPGStore(context.Background(), db)
	require.NoError(t, err)
	_, err = db.DB.Exec(`DELETE FROM corpora`)
	require.NoError(t, err)

	exerciseStore(t, s)
}

func testPostgresConfig() config.PostgresConfig {
	port, err := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	if err != nil {
		port = 5432
	}
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "lexistat_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "lexistat"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
