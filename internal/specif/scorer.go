// Package specif scores how over- or under-represented a term is in a part
// of a field (a corpus, a set of co-occurrence windows) compared with the
// whole field.
//
// Scorers are stateful and cheap: build a fresh one per request with New.
// Every scorer returns 0 rather than NaN or an infinity when its inputs are
// degenerate.
package specif

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// Kind tells which scoring call a scorer answers meaningfully.
type Kind int

const (
	// KindTF scorers weigh a term inside one document: IDF then Score.
	KindTF Kind = iota
	// KindProb scorers compare a part count with a whole count: Prob.
	KindProb
)

// Scorer is the two-phase scoring contract. Calibrate is called once with
// whole-field totals; Weight once with the totals of the part; then, per
// term, IDF with the term's whole-field counts followed by Score or Prob.
type Scorer interface {
	Name() string
	Kind() Kind
	Calibrate(allOccs int64, allDocs int)
	Weight(partOccs int64, partDocs int)
	IDF(formOccs int64, formDocs int) float64
	Score(match, docLength float64) float64
	Prob(partCount, allCount int64) float64
}

type constructor func() Scorer

var registry = map[string]constructor{
	"count":    func() Scorer { return &Count{} },
	"bm25":     func() Scorer { return NewBM25() },
	"tfidf":    func() Scorer { return NewTFIDF() },
	"chi2":     func() Scorer { return &Chi2{} },
	"g":        func() Scorer { return &G{} },
	"hypergeo": func() Scorer { return &Hypergeo{} },
	"binomial": func() Scorer { return &Binomial{} },
}

// New returns a fresh scorer by name.
func New(name string) (Scorer, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scorer %q", apperrors.ErrInvalidInput, name)
	}
	return ctor(), nil
}

// Names lists the registered scorer names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// base holds the totals shared by every scorer and no-op defaults for the
// calls a given kind does not use.
type base struct {
	allOccs  float64
	allDocs  float64
	docAvg   float64
	partOccs float64
	partDocs float64
	formOccs float64
	formDocs float64
}

func (b *base) Calibrate(allOccs int64, allDocs int) {
	b.allOccs = float64(allOccs)
	b.allDocs = float64(allDocs)
	b.docAvg = 0
	if allDocs > 0 {
		b.docAvg = b.allOccs / b.allDocs
	}
}

func (b *base) Weight(partOccs int64, partDocs int) {
	b.partOccs = float64(partOccs)
	b.partDocs = float64(partDocs)
}

func (b *base) IDF(formOccs int64, formDocs int) float64 {
	b.formOccs = float64(formOccs)
	b.formDocs = float64(formDocs)
	return 0
}

func (b *base) Score(match, docLength float64) float64 { return 0 }

func (b *base) Prob(partCount, allCount int64) float64 { return 0 }

// sign is -1 when the part ratio k/n is below the whole ratio K/N.
func (b *base) sign(k, K float64) float64 {
	if b.partOccs <= 0 || b.allOccs <= 0 {
		return 1
	}
	if k/b.partOccs < K/b.allOccs {
		return -1
	}
	return 1
}

// finite maps NaN and infinities to 0.
func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
