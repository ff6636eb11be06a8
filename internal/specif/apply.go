package specif

import "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"

// Apply scores every term of a part against the whole field. part holds the
// per-term counts of the part, partOccs and partDocs its totals.
//
// Probability scorers compare part[t] with the field count of t. Term
// frequency scorers see the part as a single unit of average length
// partOccs/partDocs; use Sum to weigh real documents one by one.
func Apply(s Scorer, part []int64, partOccs int64, partDocs int, stats *textindex.FieldStats) []float64 {
	scores := make([]float64, len(part))
	s.Calibrate(stats.TotalOccs, stats.TotalDocs)
	s.Weight(partOccs, partDocs)
	unit := 0.0
	if partDocs > 0 {
		unit = float64(partOccs) / float64(partDocs)
	}
	for id, k := range part {
		if k == 0 {
			continue
		}
		tid := uint32(id)
		s.IDF(stats.Occurrences(tid), int(stats.DocFreq(tid)))
		if s.Kind() == KindTF {
			scores[id] = s.Score(float64(k), unit)
		} else {
			scores[id] = s.Prob(k, stats.Occurrences(tid))
		}
	}
	return scores
}

// Sum accumulates a term frequency scorer document by document. Add is
// called once per document with the term counts of that document.
type Sum struct {
	s      Scorer
	stats  *textindex.FieldStats
	Scores []float64
}

func NewSum(s Scorer, stats *textindex.FieldStats, partOccs int64, partDocs int) *Sum {
	s.Calibrate(stats.TotalOccs, stats.TotalDocs)
	s.Weight(partOccs, partDocs)
	return &Sum{s: s, stats: stats, Scores: make([]float64, len(stats.Occs))}
}

// Add scores one document of docLength positions.
func (a *Sum) Add(tf map[uint32]int, docLength int) {
	for id, f := range tf {
		if int(id) >= len(a.Scores) {
			continue
		}
		a.s.IDF(a.stats.Occs[id], int(a.stats.DocFreq(id)))
		a.Scores[id] += a.s.Score(float64(f), float64(docLength))
	}
}
