package specif

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

func TestNew(t *testing.T) {
	for _, name := range Names() {
		s, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	a, _ := New("bm25")
	b, _ := New("bm25")
	assert.NotSame(t, a, b, "scorers must not be shared between requests")

	_, err := New("tf-idf")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestBM25Reference(t *testing.T) {
	s := NewBM25()
	s.Calibrate(1000, 100)

	idf := s.IDF(30, 10)
	assert.InDelta(t, math.Log(1+90.5/10.5), idf, 1e-12)

	got := s.Score(3, 10)
	want := idf * 3 * 2.2 / (3 + 1.2)
	assert.InDelta(t, want, got, 1e-9)
	assert.InDelta(t, 3.541, got, 0.02)
}

func TestBM25LongerDocumentsScoreLower(t *testing.T) {
	s := NewBM25()
	s.Calibrate(1000, 100)
	s.IDF(30, 10)
	assert.Greater(t, s.Score(3, 5), s.Score(3, 10))
	assert.Greater(t, s.Score(3, 10), s.Score(3, 40))
	assert.Zero(t, s.Score(0, 10))
}

func TestTFIDF(t *testing.T) {
	s := NewTFIDF()
	s.Calibrate(1000, 100)
	idf := s.IDF(30, 10)
	root := 1 + math.Log(101.0/11.0)
	assert.InDelta(t, root*root, idf, 1e-12)
	assert.InDelta(t, idf*(0.2+0.8*3.0/10.0), s.Score(3, 10), 1e-12)
	assert.Zero(t, s.Score(3, 0))
}

func TestChi2(t *testing.T) {
	s := &Chi2{}
	s.Calibrate(1000, 100)
	s.Weight(100, 10)

	// expected 10 occurrences of a term seen 100 times in the whole
	assert.Zero(t, s.Prob(10, 100))
	assert.InDelta(t, 10.0, s.Prob(20, 100), 1e-12)
	assert.InDelta(t, -10.0, s.Prob(0, 100), 1e-12)
	assert.Zero(t, s.Prob(2, 3), "rare terms are not scored")
}

func TestG(t *testing.T) {
	s := &G{}
	s.Calibrate(1000, 100)
	s.Weight(100, 10)

	over := s.Prob(20, 100)
	under := s.Prob(2, 100)
	assert.Greater(t, over, 0.0)
	assert.Less(t, under, 0.0)
	assert.InDelta(t, 0, s.Prob(10, 100), 1e-12)

	want := 2 * (20*math.Log(20.0/10) + 80*math.Log(80.0/90))
	assert.InDelta(t, want, over, 1e-9)
}

func TestHypergeo(t *testing.T) {
	s := &Hypergeo{}
	s.Calibrate(1000, 100)
	s.Weight(100, 10)

	assert.Zero(t, s.Prob(1, 3), "below the minimum count")
	assert.Zero(t, s.Prob(50, 40), "outside the support")

	over := s.Prob(30, 100)
	under := s.Prob(1, 100)
	assert.Greater(t, over, 0.0)
	assert.Less(t, under, 0.0)
	assert.False(t, math.IsInf(s.Prob(100, 100), 0))

	// the mode is barely specific
	assert.Less(t, math.Abs(s.Prob(10, 100)), 1.5)
}

func TestHypergeoMatchesDirectComputation(t *testing.T) {
	s := &Hypergeo{}
	s.Calibrate(20, 1)
	s.Weight(5, 1)
	// P(X=2) for N=20, K=8, n=5: C(8,2)C(12,3)/C(20,5)
	p := 28.0 * 220.0 / 15504.0
	assert.InDelta(t, -math.Log10(p), s.Prob(2, 8), 1e-9)
}

func TestBinomial(t *testing.T) {
	s := &Binomial{}
	s.Calibrate(100, 10)
	s.Weight(10, 1)
	// n=10, p=0.2, k=3: C(10,3)·0.2³·0.8⁷
	want := 120 * math.Pow(0.2, 3) * math.Pow(0.8, 7)
	assert.InDelta(t, want, s.Prob(3, 20), 1e-10)
	assert.InDelta(t, -math.Pow(0.8, 10), s.Prob(0, 20), 1e-10)
	assert.Zero(t, s.Prob(0, 0))
	assert.Zero(t, s.Prob(10, 100))
}

func TestDegenerateInputsNeverLeakNaN(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s, err := New(name)
			require.NoError(t, err)
			s.Calibrate(0, 0)
			s.Weight(0, 0)
			for _, v := range []float64{
				s.IDF(0, 0),
				s.Score(0, 0),
				s.Score(1, 0),
				s.Prob(0, 0),
				s.Prob(5, 0),
			} {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "got %v", v)
			}
		})
	}
}

func TestMI(t *testing.T) {
	tests := []struct {
		mi   MI
		want float64
	}{
		{MIOccs, 10},
		{MIJaccard, 10.0 / 40},
		{MIDice, 20.0 / 50},
		{MIDiceLog, 14 + math.Log2(0.4)},
	}
	for _, tt := range tests {
		t.Run(tt.mi.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.mi.Score(10, 20, 30, 1000), 1e-12)
		})
	}
}

func TestMISigns(t *testing.T) {
	// a and b each cover half the sample
	for _, mi := range []MI{MIChi2, MIG} {
		t.Run(mi.String(), func(t *testing.T) {
			assert.Greater(t, mi.Score(40, 50, 50, 100), 0.0)
			assert.Less(t, mi.Score(10, 50, 50, 100), 0.0)
			assert.InDelta(t, 0, mi.Score(25, 50, 50, 100), 1e-9)
		})
	}
}

func TestPPMI(t *testing.T) {
	assert.Zero(t, MIPPMI.Score(4, 100, 100, 10000), "rare pairs dropped")
	assert.Zero(t, MIPPMI.Score(5, 5000, 5000, 10000), "negative pmi clipped")
	v := MIPPMI.Score(50, 100, 100, 10000)
	assert.Greater(t, v, 0.0)
	assert.LessOrEqual(t, v, 1.0+1e-9)
}

func TestMIDegenerate(t *testing.T) {
	for mi := MIOccs; mi <= MIG; mi++ {
		v := mi.Score(0, 0, 0, 0)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s: %v", mi, v)
	}
}

func TestParseMI(t *testing.T) {
	mi, err := ParseMI(" Dice ")
	require.NoError(t, err)
	assert.Equal(t, MIDice, mi)
	_, err = ParseMI("pmi")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "MI(42)", MI(42).String())
}
