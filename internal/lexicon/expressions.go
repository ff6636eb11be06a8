package lexicon

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/rail"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/tracing"
)

// ExpressionsQuery lists recurrent multi-word expressions: plain words
// joined by stop words only, such as "state of the art".
type ExpressionsQuery struct {
	Field    string `json:"field"`
	Corpus   string `json:"corpus,omitempty"`
	Limit    int    `json:"limit"`
	MinCount int    `json:"min_count,omitempty"`
}

type ExpressionsResult struct {
	Field       string            `json:"field"`
	Generation  int64             `json:"generation"`
	Corpus      string            `json:"corpus,omitempty"`
	Total       int               `json:"total"`
	Expressions []rail.Expression `json:"expressions"`
}

func (s *Service) Expressions(ctx context.Context, q ExpressionsQuery) (*ExpressionsResult, bool, error) {
	q.Limit = s.limit(q.Limit)
	q.MinCount = max(q.MinCount, 2)
	var res *ExpressionsResult
	var hit bool
	err := s.run(ctx, "expressions", func(ctx context.Context) error {
		return s.withScope(ctx, q.Field, q.Corpus, func(sc *scope) error {
			var err error
			key := cacheKey{Kind: "expressions", Field: sc.field, Generation: sc.generation(), Query: q}
			res, hit, err = cached(ctx, s.cache, key, func() (*ExpressionsResult, error) {
				return s.expressions(ctx, sc, q)
			})
			return err
		})
	})
	return res, hit, err
}

func (s *Service) expressions(ctx context.Context, sc *scope, q ExpressionsQuery) (*ExpressionsResult, error) {
	ctx, span := tracing.StartSpan(ctx, "scan")
	defer span.End()
	all, err := sc.store.Expressions(ctx, sc.filter, sc.lex, sc.lex.IsStop)
	if err != nil {
		return nil, err
	}
	// Sorted by count, so the ones under the threshold form the tail.
	n := len(all)
	for n > 0 && all[n-1].Count < q.MinCount {
		n--
	}
	all = all[:n]
	res := &ExpressionsResult{
		Field:       sc.field,
		Generation:  sc.generation(),
		Corpus:      sc.corpus,
		Total:       len(all),
		Expressions: all[:min(len(all), q.Limit)],
	}
	span.SetAttr("expressions", res.Total)
	return res, nil
}
