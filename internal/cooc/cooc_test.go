package cooc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/rail"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/specif"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/logger"
)

type fixture struct {
	t     *testing.T
	idx   *textindex.Index
	store *rail.Store
}

func newFixture(t *testing.T, docs ...string) *fixture {
	t.Helper()
	idx := textindex.NewIndex(textindex.FieldSpec{
		Name: "text", Positions: true, Analyzer: textindex.DefaultAnalyzer(),
	})
	for _, doc := range docs {
		var forms []string
		if doc != "" {
			forms = strings.Split(doc, " ")
			for i, f := range forms {
				if f == "_" {
					forms[i] = ""
				}
			}
		}
		_, err := idx.AddAnalyzed(map[string][]textindex.Token{
			"text": textindex.DefaultAnalyzer().Sequence(forms...),
		})
		require.NoError(t, err)
	}
	return &fixture{t: t, idx: idx}
}

func (f *fixture) open() *rail.Store {
	f.t.Helper()
	s, err := rail.Open(context.Background(), f.idx, "text", rail.Options{
		Dir:         f.t.TempDir(),
		LockTimeout: time.Second,
		Logger:      logger.Discard(),
	})
	require.NoError(f.t, err)
	f.t.Cleanup(func() { s.Close() })
	f.store = s
	return s
}

func (f *fixture) id(form string) uint32 {
	f.t.Helper()
	dict, err := f.idx.Dictionary("text")
	require.NoError(f.t, err)
	id, ok := dict.ID(form)
	require.True(f.t, ok, form)
	return id
}

func (f *fixture) extract(src textindex.Source, pivots []string, w Window, opts Options) (*Counts, error) {
	ids := make([]uint32, len(pivots))
	for i, p := range pivots {
		ids[i] = f.id(p)
	}
	return NewExtractor(src, logger.Discard(), nil).Extract(context.Background(), f.store, ids, w, opts)
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, Window{Left: 0, Right: 1}.Validate())
	assert.NoError(t, Window{Left: 3, Right: 0}.Validate())
	for _, w := range []Window{{0, 0}, {-1, 3}, {2, -1}} {
		assert.ErrorIs(t, w.Validate(), apperrors.ErrInvalidInput, "%+v", w)
	}
}

func TestOverlappingWindowsCountOnce(t *testing.T) {
	f := newFixture(t, "alpha beta pivot gamma pivot delta omega")
	f.open()

	c, err := f.extract(f.idx, []string{"pivot"}, Window{Left: 1, Right: 1}, Options{})
	require.NoError(t, err)

	assert.EqualValues(t, 2, c.Found)
	assert.Equal(t, 1, c.Hits)
	assert.EqualValues(t, 5, c.Part)
	assert.Zero(t, c.Occs[f.id("alpha")])
	assert.EqualValues(t, 1, c.Occs[f.id("beta")])
	assert.EqualValues(t, 1, c.Occs[f.id("gamma")], "gamma sits in both windows")
	assert.EqualValues(t, 1, c.Occs[f.id("delta")])
	assert.EqualValues(t, 2, c.Occs[f.id("pivot")])
	assert.Zero(t, c.Occs[f.id("omega")])
	assert.EqualValues(t, 1, c.Docs[f.id("pivot")])
}

func TestWindowClippedToDocument(t *testing.T) {
	f := newFixture(t, "pivot alpha", "beta pivot")
	f.open()

	c, err := f.extract(f.idx, []string{"pivot"}, Window{Left: 5, Right: 5}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, c.Part)
	assert.EqualValues(t, 2, c.Docs[f.id("pivot")])
	assert.Equal(t, []int32{0, 1}, []int32{c.Cover[f.id("alpha")], c.Cover[f.id("beta")]})
}

func TestHolesAreNotCounted(t *testing.T) {
	f := newFixture(t, "alpha _ pivot _ beta")
	f.open()

	c, err := f.extract(f.idx, []string{"pivot"}, Window{Left: 2, Right: 2}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, c.Part)
	assert.Zero(t, c.Occs[textindex.Hole])
}

func TestNoStopKeepsPivots(t *testing.T) {
	f := newFixture(t, "the word the", "word the")
	f.open()
	noStop := &textindex.TagFilter{NoStop: true}

	c, err := f.extract(f.idx, []string{"word"}, Window{Left: 1, Right: 1}, Options{Tags: noStop})
	require.NoError(t, err)
	assert.Zero(t, c.Occs[f.id("the")])
	assert.EqualValues(t, 2, c.Occs[f.id("word")])

	c, err = f.extract(f.idx, []string{"word"}, Window{Left: 1, Right: 1}, Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, c.Occs[f.id("the")])

	c, err = f.extract(f.idx, []string{"word", "the"}, Window{Left: 1, Right: 1}, Options{Tags: noStop})
	require.NoError(t, err)
	assert.EqualValues(t, 3, c.Occs[f.id("the")], "stop words at pivot positions are counted")
}

func TestTagFilter(t *testing.T) {
	f := newFixture(t, "pivot 42 word 7")
	f.open()

	c, err := f.extract(f.idx, []string{"pivot"}, Window{Left: 0, Right: 3}, Options{Tags: textindex.NewTagFilter(textindex.TagNum)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Occs[f.id("pivot")])
	assert.EqualValues(t, 1, c.Occs[f.id("42")])
	assert.EqualValues(t, 1, c.Occs[f.id("7")])
	assert.Zero(t, c.Occs[f.id("word")])
}

func TestDocumentFilterAndDeletes(t *testing.T) {
	f := newFixture(t, "pivot alpha", "pivot beta", "pivot gamma")
	require.NoError(t, f.idx.Delete(2))
	f.open()

	c, err := f.extract(f.idx, []string{"pivot"}, Window{Left: 0, Right: 1}, Options{Filter: roaring.BitmapOf(1, 2)})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Hits)
	assert.Zero(t, c.Occs[f.id("alpha")])
	assert.EqualValues(t, 1, c.Occs[f.id("beta")])
	assert.Zero(t, c.Occs[f.id("gamma")], "deleted documents are never counted")
}

func TestEdgeClusters(t *testing.T) {
	f := newFixture(t, "alpha pivot beta x1 x2 x3 gamma pivot")
	f.open()
	sink := &recorder{fix: f}

	_, err := f.extract(f.idx, []string{"pivot"}, Window{Left: 1, Right: 1}, Options{Edges: sink})
	require.NoError(t, err)
	assert.Equal(t, []string{"|", "alpha", "pivot", "beta", "|", "gamma", "pivot", "|"}, sink.events)
}

type recorder struct {
	fix    *fixture
	events []string
}

func (r *recorder) Clust(id uint32) {
	lex, _ := r.fix.idx.Lexicon("text")
	r.events = append(r.events, lex.Form(id))
}

func (r *recorder) Declust() { r.events = append(r.events, "|") }

// brokenSource reports postings that the rails do not back.
type brokenSource struct {
	*textindex.Index
	bad uint32
}

func (s brokenSource) Postings(field string, termID uint32) (textindex.PostingList, error) {
	list, err := s.Index.Postings(field, termID)
	if err != nil || termID != s.bad {
		return list, err
	}
	out := append(textindex.PostingList{}, list...)
	out[0] = textindex.Posting{DocID: out[0].DocID}
	out[1].Positions = append([]int{99}, out[1].Positions...)
	return out, nil
}

func TestAnomaliesAreSkipped(t *testing.T) {
	f := newFixture(t, "pivot alpha", "pivot beta", "pivot gamma")
	f.open()
	src := brokenSource{Index: f.idx, bad: f.id("pivot")}

	c, err := f.extract(src, []string{"pivot"}, Window{Left: 0, Right: 1}, Options{})
	require.NoError(t, err)
	require.Len(t, c.Anomalies, 2)
	for _, a := range c.Anomalies {
		assert.ErrorIs(t, a, apperrors.ErrDataConsistency)
	}
	assert.Zero(t, c.Occs[f.id("alpha")])
	assert.EqualValues(t, 1, c.Occs[f.id("beta")])
	assert.EqualValues(t, 1, c.Occs[f.id("gamma")])
	assert.EqualValues(t, 2, c.Found)
}

func TestStaleStoreRejected(t *testing.T) {
	f := newFixture(t, "pivot alpha")
	f.open()
	_, err := f.idx.AddDocument(map[string]string{"text": "pivot beta"})
	require.NoError(t, err)

	_, err = f.extract(f.idx, []string{"pivot"}, Window{Left: 0, Right: 1}, Options{})
	assert.ErrorIs(t, err, apperrors.ErrStaleStore)
}

func TestExtractHonoursCancellation(t *testing.T) {
	f := newFixture(t, "pivot alpha")
	f.open()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(f.idx, logger.Discard(), nil).
		Extract(ctx, f.store, []uint32{f.id("pivot")}, Window{Left: 0, Right: 1}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreCapsAtPivotCount(t *testing.T) {
	f := newFixture(t, "alpha alpha alpha pivot alpha")
	f.open()
	c, err := f.extract(f.idx, []string{"pivot"}, Window{Left: 3, Right: 1}, Options{})
	require.NoError(t, err)
	require.EqualValues(t, 4, c.Occs[f.id("alpha")])

	stats, err := f.idx.Stats(context.Background(), "text")
	require.NoError(t, err)
	scores := c.Score(specif.MIOccs, []uint32{f.id("pivot"), f.id("pivot")}, stats)
	assert.EqualValues(t, 1, scores[f.id("alpha")])
	assert.Zero(t, scores[textindex.Hole])

	spec := c.Specificity(&specif.Count{}, stats)
	assert.EqualValues(t, 4, spec[f.id("alpha")])
}

func BenchmarkExtract(b *testing.B) {
	idx := textindex.NewIndex(textindex.FieldSpec{
		Name: "text", Positions: true, Analyzer: textindex.DefaultAnalyzer(),
	})
	text := strings.Repeat("the quick brown fox jumps over the lazy dog near the river bank. ", 40)
	for i := 0; i < 500; i++ {
		if _, err := idx.AddDocument(map[string]string{"text": text}); err != nil {
			b.Fatal(err)
		}
	}
	store, err := rail.Open(context.Background(), idx, "text", rail.Options{Dir: b.TempDir(), Logger: logger.Discard()})
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	dict, _ := idx.Dictionary("text")
	fox, _ := dict.ID("fox")
	ex := NewExtractor(idx, logger.Discard(), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ex.Extract(context.Background(), store, []uint32{fox}, Window{Left: 5, Right: 5}, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
