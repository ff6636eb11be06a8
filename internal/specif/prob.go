package specif

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
	"gonum.org/v1/gonum/stat/distuv"
)

// Chi2 is the one-cell chi-square of the part against the whole, signed.
type Chi2 struct{ base }

func (*Chi2) Name() string { return "chi2" }
func (*Chi2) Kind() Kind   { return KindProb }

// Prob with k occurrences in a part of n, K in a whole of N.
func (s *Chi2) Prob(k, K int64) float64 {
	if K < 4 {
		return 0
	}
	e := s.partOccs * float64(K) / s.allOccs
	if e <= 0 || math.IsNaN(e) {
		return 0
	}
	d := float64(k) - e
	return finite(s.sign(float64(k), float64(K)) * d * d / e)
}

// G is the log-likelihood ratio over the two cells "in part" and "outside
// part", signed.
type G struct{ base }

func (*G) Name() string { return "g" }
func (*G) Kind() Kind   { return KindProb }

func (s *G) Prob(k, K int64) float64 {
	if s.allOccs <= 0 || K <= 0 {
		return 0
	}
	o0 := float64(k)
	o1 := float64(K) - o0
	e0 := s.partOccs * float64(K) / s.allOccs
	e1 := (s.allOccs - s.partOccs) * float64(K) / s.allOccs
	sum := xlogxy(o0, e0) + xlogxy(o1, e1)
	return finite(s.sign(o0, float64(K)) * 2 * sum)
}

// xlogxy is o·ln(o/e), taken as 0 when either side is not positive.
func xlogxy(o, e float64) float64 {
	if o <= 0 || e <= 0 {
		return 0
	}
	return o * math.Log(o/e)
}

// Hypergeo is Lafon's specificity: -log10 of the probability of drawing
// exactly k occurrences of a term when the part is a random sample of the
// whole, signed.
type Hypergeo struct{ base }

// hypergeoFloor is the whole-field count a term needs before it is scored.
const hypergeoFloor = 3

func (*Hypergeo) Name() string { return "hypergeo" }
func (*Hypergeo) Kind() Kind   { return KindProb }

func (s *Hypergeo) Prob(k, K int64) float64 {
	if K <= hypergeoFloor {
		return 0
	}
	logP, ok := logHypergeom(s.allOccs, float64(K), s.partOccs, float64(k))
	if !ok {
		return 0
	}
	return finite(s.sign(float64(k), float64(K)) * -logP / math.Ln10)
}

// logHypergeom returns ln P(X=k) for X ~ Hypergeom(N, K, n). ok is false
// when k is outside the support, i.e. P is exactly 0.
func logHypergeom(N, K, n, k float64) (float64, bool) {
	if N <= 0 || K > N || n > N || n < 0 || k < math.Max(0, n+K-N) || k > math.Min(n, K) {
		return 0, false
	}
	logP := combin.LogGeneralizedBinomial(K, k) +
		combin.LogGeneralizedBinomial(N-K, n-k) -
		combin.LogGeneralizedBinomial(N, n)
	return math.Min(logP, 0), true
}

// Binomial is the signed binomial probability of k successes in n draws
// with success rate K/N.
type Binomial struct{ base }

func (*Binomial) Name() string { return "binomial" }
func (*Binomial) Kind() Kind   { return KindProb }

func (s *Binomial) Prob(k, K int64) float64 {
	if s.allOccs <= 0 || s.partOccs <= 0 {
		return 0
	}
	p := float64(K) / s.allOccs
	if p <= 0 || p >= 1 {
		return 0
	}
	dist := distuv.Binomial{N: s.partOccs, P: p}
	return finite(s.sign(float64(k), float64(K)) * dist.Prob(float64(k)))
}
