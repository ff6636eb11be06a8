package rail

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/filelock"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/logger"
)

func newIndex(t *testing.T, docs ...[]string) *textindex.Index {
	t.Helper()
	idx := textindex.NewIndex(
		textindex.FieldSpec{Name: "text", Positions: true, Analyzer: textindex.DefaultAnalyzer()},
		textindex.FieldSpec{Name: "meta", Analyzer: textindex.DefaultAnalyzer()},
	)
	for _, forms := range docs {
		addDoc(t, idx, forms...)
	}
	return idx
}

func addDoc(t *testing.T, idx *textindex.Index, forms ...string) {
	t.Helper()
	_, err := idx.AddAnalyzed(map[string][]textindex.Token{
		"text": textindex.DefaultAnalyzer().Sequence(forms...),
	})
	require.NoError(t, err)
}

func testOptions(t *testing.T) Options {
	return Options{Dir: t.TempDir(), LockTimeout: time.Second, Logger: logger.Discard()}
}

func ids(t *testing.T, idx *textindex.Index, forms ...string) []uint32 {
	t.Helper()
	dict, err := idx.Dictionary("text")
	require.NoError(t, err)
	out := make([]uint32, len(forms))
	for i, form := range forms {
		if form == "" {
			continue
		}
		id, ok := dict.ID(form)
		require.True(t, ok, form)
		out[i] = id
	}
	return out
}

func TestStoreRoundTrip(t *testing.T) {
	docs := [][]string{
		{"the", "cat", "", "sat"},
		{},
		{"dog", "", "cat"},
		{"cat"},
	}
	idx := newIndex(t, docs...)
	require.NoError(t, idx.Delete(3))

	s, err := Open(context.Background(), idx, "text", testOptions(t))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, idx.Generation(), s.Generation())
	assert.Equal(t, 4, s.MaxDoc())
	assert.Equal(t, ids(t, idx, docs[0]...), s.Rail(0))
	assert.Empty(t, s.Rail(1))
	assert.Equal(t, ids(t, idx, docs[2]...), s.Rail(2))
	assert.Equal(t, 0, s.DocLength(3), "deleted documents have no rail")
	assert.Nil(t, s.Rail(99))
}

func TestFileLayout(t *testing.T) {
	idx := newIndex(t, []string{"a1", "b1"}, []string{"c1"})
	opts := testOptions(t)
	require.NoError(t, Build(context.Background(), idx, "text", opts, false))

	data, err := os.ReadFile(filepath.Join(opts.Dir, FileName("text")))
	require.NoError(t, err)
	word := func(i int) uint32 { return binary.LittleEndian.Uint32(data[i*4:]) }

	assert.Equal(t, uint64(idx.Generation()), binary.LittleEndian.Uint64(data))
	assert.Equal(t, uint32(2), word(2))
	assert.Equal(t, []uint32{2, 1}, []uint32{word(3), word(4)})
	// first document starts right after the length table
	assert.Equal(t, []uint32{1, 2, Sentinel, 3, Sentinel}, []uint32{word(5), word(6), word(7), word(8), word(9)})
	assert.Len(t, data, 10*4)
}

func TestBuildIsIdempotent(t *testing.T) {
	idx := newIndex(t, []string{"the", "cat", "", "sat"}, []string{"dog"})
	opts := testOptions(t)
	path := filepath.Join(opts.Dir, FileName("text"))

	require.NoError(t, Build(context.Background(), idx, "text", opts, true))
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, Build(context.Background(), idx, "text", opts, true))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestOpenRebuildsStaleGeneration(t *testing.T) {
	idx := newIndex(t, []string{"cat"})
	opts := testOptions(t)

	s, err := Open(context.Background(), idx, "text", opts)
	require.NoError(t, err)
	oldGen := s.Generation()
	require.NoError(t, s.Close())

	addDoc(t, idx, "dog", "cat")
	s, err = Open(context.Background(), idx, "text", opts)
	require.NoError(t, err)
	defer s.Close()

	assert.Greater(t, s.Generation(), oldGen)
	assert.Equal(t, 2, s.MaxDoc())
	assert.Equal(t, ids(t, idx, "dog", "cat"), s.Rail(1))
}

func TestOpenRebuildsCorruptFile(t *testing.T) {
	idx := newIndex(t, []string{"cat", "sat"})
	opts := testOptions(t)
	require.NoError(t, Build(context.Background(), idx, "text", opts, false))

	path := filepath.Join(opts.Dir, FileName("text"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-4], 0o644))

	s, err := Open(context.Background(), idx, "text", opts)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, ids(t, idx, "cat", "sat"), s.Rail(0))
}

func TestOpenRejectsUnusableFields(t *testing.T) {
	idx := newIndex(t, []string{"cat"})

	_, err := Open(context.Background(), idx, "meta", testOptions(t))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	_, err = Open(context.Background(), idx, "nope", testOptions(t))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestBuildTimesOutOnHeldLock(t *testing.T) {
	idx := newIndex(t, []string{"cat"})
	opts := testOptions(t)
	opts.LockTimeout = 50 * time.Millisecond

	held, err := filelock.Acquire(context.Background(), filepath.Join(opts.Dir, FileName("text"))+".lock", time.Second)
	require.NoError(t, err)
	defer held.Release()

	_, err = Open(context.Background(), idx, "text", opts)
	assert.ErrorIs(t, err, apperrors.ErrBuildTimeout)
}

func TestStoreOutlivesRegistryEviction(t *testing.T) {
	idx := newIndex(t, []string{"cat", "sat"})
	reg := NewRegistry(idx, testOptions(t))
	defer reg.Close()

	s, err := reg.Get(context.Background(), "text")
	require.NoError(t, err)
	reg.Invalidate("text")

	assert.Equal(t, ids(t, idx, "cat", "sat"), s.Rail(0), "holder keeps the mapping alive")
	require.NoError(t, s.Close())
	assert.False(t, s.Retain())
}

// countingSource counts how many times documents are read, i.e. builds.
type countingSource struct {
	*textindex.Index
	reads atomic.Int64
}

func (c *countingSource) Document(field string, docID int, fn func(int, uint32)) (int, error) {
	if docID == 0 {
		c.reads.Add(1)
	}
	return c.Index.Document(field, docID, fn)
}

func TestRegistrySingleFlight(t *testing.T) {
	src := &countingSource{Index: newIndex(t, []string{"cat", "sat"}, []string{"dog"})}
	reg := NewRegistry(src, testOptions(t))
	defer reg.Close()

	var wg sync.WaitGroup
	stores := make([]*Store, 32)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reg.Get(context.Background(), "text")
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), src.reads.Load(), "one build for all concurrent readers")
	for _, s := range stores {
		assert.Same(t, stores[0], s)
		s.Close()
	}
}

func TestRegistryFollowsGeneration(t *testing.T) {
	idx := newIndex(t, []string{"cat"})
	reg := NewRegistry(idx, testOptions(t))
	defer reg.Close()

	first, err := reg.Get(context.Background(), "text")
	require.NoError(t, err)
	defer first.Close()

	addDoc(t, idx, "dog")
	second, err := reg.Get(context.Background(), "text")
	require.NoError(t, err)
	defer second.Close()

	assert.NotSame(t, first, second)
	assert.Equal(t, idx.Generation(), second.Generation())
	assert.Equal(t, 1, first.MaxDoc(), "old holders keep their view")
	assert.Equal(t, 2, second.MaxDoc())
}

func TestRegistryRebuild(t *testing.T) {
	idx := newIndex(t, []string{"cat"})
	src := &countingSource{Index: idx}
	reg := NewRegistry(src, testOptions(t))
	defer reg.Close()

	s, err := reg.Get(context.Background(), "text")
	require.NoError(t, err)
	s.Close()
	s, err = reg.Rebuild(context.Background(), "text")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, int64(2), src.reads.Load())
}

func TestFreqs(t *testing.T) {
	idx := newIndex(t, []string{"cat", "", "cat"}, []string{"dog", "cat"}, []string{"dog"})
	s, err := Open(context.Background(), idx, "text", testOptions(t))
	require.NoError(t, err)
	defer s.Close()
	cat, dog := ids(t, idx, "cat")[0], ids(t, idx, "dog")[0]
	dict, _ := idx.Dictionary("text")

	all, err := s.Freqs(context.Background(), nil, dict.Size())
	require.NoError(t, err)
	assert.Equal(t, int64(3), all[cat])
	assert.Equal(t, int64(2), all[dog])
	assert.Equal(t, int64(0), all[textindex.Hole])

	part, err := s.Freqs(context.Background(), roaring.BitmapOf(1, 2, 40), dict.Size())
	require.NoError(t, err)
	assert.Equal(t, int64(1), part[cat])
	assert.Equal(t, int64(2), part[dog])
}

func TestExpressions(t *testing.T) {
	idx := newIndex(t,
		[]string{"prime", "of", "life", ".", "prime", "of", "life"},
		[]string{"prime", "", "life", "the", "end"},
		[]string{"of", "life", "prime", "minister"},
	)
	s, err := Open(context.Background(), idx, "text", testOptions(t))
	require.NoError(t, err)
	defer s.Close()
	lex, err := idx.Lexicon("text")
	require.NoError(t, err)

	got, err := s.Expressions(context.Background(), nil, lex, lex.IsStop)
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, "prime of life", got[0].Label)
	assert.Equal(t, 2, got[0].Count)
	labels := []string{got[1].Label, got[2].Label, got[3].Label}
	assert.ElementsMatch(t, []string{"life the end", "life prime", "prime minister"}, labels)
}

func TestScanHonoursCancellation(t *testing.T) {
	idx := newIndex(t, []string{"cat"})
	s, err := Open(context.Background(), idx, "text", testOptions(t))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Scan(ctx, nil, func(int, []uint32) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistryWarm(t *testing.T) {
	idx := newIndex(t, []string{"cat", "sat"}, []string{"dog"})
	opts := testOptions(t)
	reg := NewRegistry(idx, opts)
	defer reg.Close()

	err := reg.Warm(context.Background(), 2, "text", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	_, err = os.Stat(filepath.Join(opts.Dir, FileName("text")))
	assert.NoError(t, err)
	require.NoError(t, reg.Warm(context.Background(), 1, "text"))
}
