package lexicon

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/specif"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/tracing"
)

// TermsQuery ranks the terms of a field, or of a corpus inside it. The
// scorer measures how specific each term is to the corpus; "count" simply
// ranks by frequency.
type TermsQuery struct {
	Field   string `json:"field"`
	Corpus  string `json:"corpus,omitempty"`
	Scorer  string `json:"scorer"`
	Order   string `json:"order"`
	Limit   int    `json:"limit"`
	Reverse bool   `json:"reverse,omitempty"`
	Tags    string `json:"tags,omitempty"`
}

type TermsResult struct {
	Field      string         `json:"field"`
	Generation int64          `json:"generation"`
	Corpus     string         `json:"corpus,omitempty"`
	Scorer     string         `json:"scorer"`
	Order      string         `json:"order"`
	PartDocs   int            `json:"part_docs"`
	PartOccs   int64          `json:"part_occs"`
	Terms      []ranking.Term `json:"terms"`
}

func (q *TermsQuery) normalize(s *Service) error {
	if q.Scorer == "" {
		q.Scorer = "count"
	}
	if _, err := specif.New(q.Scorer); err != nil {
		return err
	}
	order, err := ranking.ParseOrder(q.Order)
	if err != nil {
		return err
	}
	q.Order = string(order)
	q.Limit = s.limit(q.Limit)
	_, err = textindex.ParseTagFilter(q.Tags)
	return err
}

// Terms counts every term over the selected documents and ranks them.
func (s *Service) Terms(ctx context.Context, q TermsQuery) (*TermsResult, bool, error) {
	if err := q.normalize(s); err != nil {
		return nil, false, err
	}
	var res *TermsResult
	var hit bool
	err := s.run(ctx, "terms", func(ctx context.Context) error {
		return s.withScope(ctx, q.Field, q.Corpus, func(sc *scope) error {
			var err error
			key := cacheKey{Kind: "terms", Field: sc.field, Generation: sc.generation(), Query: q}
			res, hit, err = cached(ctx, s.cache, key, func() (*TermsResult, error) {
				return s.terms(ctx, sc, q)
			})
			return err
		})
	})
	return res, hit, err
}

func (s *Service) terms(ctx context.Context, sc *scope, q TermsQuery) (*TermsResult, error) {
	scorer, _ := specif.New(q.Scorer)
	tags, _ := textindex.ParseTagFilter(q.Tags)
	size := sc.lex.Size()

	ctx, span := tracing.StartSpan(ctx, "count")
	occs := make([]int64, size)
	docs := make([]int32, size)
	cover := make([]int32, size)
	for i := range cover {
		cover[i] = -1
	}
	seen := make([]int32, size)
	var partOccs int64
	var partDocs int
	var sum *specif.Sum
	var tf map[uint32]int
	if scorer.Kind() == specif.KindTF {
		// Weight needs the part totals before the first Add.
		freqs, err := sc.store.Freqs(ctx, sc.filter, size)
		if err != nil {
			span.End()
			return nil, err
		}
		var total int64
		var n int
		for _, f := range freqs {
			total += f
		}
		err = sc.store.Scan(ctx, sc.filter, func(int, []uint32) { n++ })
		if err != nil {
			span.End()
			return nil, err
		}
		sum = specif.NewSum(scorer, sc.stats, total, n)
		tf = make(map[uint32]int)
	}
	err := sc.store.Scan(ctx, sc.filter, func(docID int, ids []uint32) {
		partDocs++
		stamp := int32(partDocs)
		clear(tf)
		for _, id := range ids {
			if id == textindex.Hole || int(id) >= size {
				continue
			}
			occs[id]++
			partOccs++
			if seen[id] != stamp {
				seen[id] = stamp
				docs[id]++
				if cover[id] < 0 {
					cover[id] = int32(docID)
				}
			}
			if tf != nil {
				tf[id]++
			}
		}
		if sum != nil {
			sum.Add(tf, len(ids))
		}
	})
	span.SetAttr("part_docs", partDocs)
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = tracing.StartSpan(ctx, "score")
	var scores []float64
	if sum != nil {
		scores = sum.Scores
	} else {
		scores = specif.Apply(scorer, occs, partOccs, partDocs, sc.stats)
	}
	span.End()

	_, span = tracing.StartSpan(ctx, "rank")
	defer span.End()
	r := ranking.New(sc.lex, sc.stats).WithCounts(occs, docs, cover).WithScores(scores).Filter(tags)
	if err := r.Sort(ranking.Order(q.Order), q.Limit, q.Reverse); err != nil {
		return nil, err
	}
	return &TermsResult{
		Field:      sc.field,
		Generation: sc.generation(),
		Corpus:     sc.corpus,
		Scorer:     scorer.Name(),
		Order:      q.Order,
		PartDocs:   partDocs,
		PartOccs:   partOccs,
		Terms:      r.Terms(),
	}, nil
}
