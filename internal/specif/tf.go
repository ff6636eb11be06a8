package specif

import "math"

// Count scores a term by its raw count.
type Count struct{ base }

func (*Count) Name() string { return "count" }
func (*Count) Kind() Kind   { return KindProb }

func (*Count) Score(match, _ float64) float64 { return match }

func (*Count) Prob(partCount, _ int64) float64 { return float64(partCount) }

// BM25 is Okapi BM25 with the usual k1 and b.
type BM25 struct {
	base
	K1  float64
	B   float64
	idf float64
}

func NewBM25() *BM25 { return &BM25{K1: 1.2, B: 0.75} }

func (*BM25) Name() string { return "bm25" }
func (*BM25) Kind() Kind   { return KindTF }

// IDF is ln(1 + (N-n+0.5)/(n+0.5)) over documents.
func (s *BM25) IDF(formOccs int64, formDocs int) float64 {
	s.base.IDF(formOccs, formDocs)
	n := float64(formDocs)
	s.idf = finite(math.Log(1 + (s.allDocs-n+0.5)/(n+0.5)))
	return s.idf
}

func (s *BM25) Score(f, docLength float64) float64 {
	if f <= 0 || s.docAvg <= 0 {
		return 0
	}
	norm := f + s.K1*(1-s.B+s.B*docLength/s.docAvg)
	return finite(s.idf * f * (s.K1 + 1) / norm)
}

// TFIDF weighs the relative frequency of a term with a squared, smoothed idf.
type TFIDF struct {
	base
	// K is the floor given to any occurrence regardless of document length.
	K   float64
	idf float64
}

func NewTFIDF() *TFIDF { return &TFIDF{K: 0.2} }

func (*TFIDF) Name() string { return "tfidf" }
func (*TFIDF) Kind() Kind   { return KindTF }

// IDF is (1 + ln((N+1)/(n+1)))².
func (s *TFIDF) IDF(formOccs int64, formDocs int) float64 {
	s.base.IDF(formOccs, formDocs)
	root := 1 + math.Log((s.allDocs+1)/(float64(formDocs)+1))
	s.idf = finite(root * root)
	return s.idf
}

func (s *TFIDF) Score(f, docLength float64) float64 {
	if f <= 0 || docLength <= 0 {
		return 0
	}
	return finite(s.idf * (s.K + (1-s.K)*f/docLength))
}
