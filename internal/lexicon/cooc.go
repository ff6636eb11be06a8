package lexicon

import (
	"context"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/cooc"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/specif"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/tracing"
)

const defaultMI = specif.MIG

// CoocQuery asks for the co-occurrents of one or more pivot forms. MI names a
// pair scorer and Scorer a specificity scorer; they are exclusive, and MI g
// applies when both are empty.
type CoocQuery struct {
	Field   string      `json:"field"`
	Corpus  string      `json:"corpus,omitempty"`
	Query   []string    `json:"query"`
	Window  cooc.Window `json:"window"`
	MI      string      `json:"mi,omitempty"`
	Scorer  string      `json:"scorer,omitempty"`
	Order   string      `json:"order"`
	Limit   int         `json:"limit"`
	Reverse bool        `json:"reverse,omitempty"`
	Tags    string      `json:"tags,omitempty"`
	// Edges also returns the links between co-occurrents found in the same
	// cluster of windows.
	Edges bool `json:"edges,omitempty"`
}

// LabeledEdge is a graph edge with the forms of its ends.
type LabeledEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Count  int64   `json:"count"`
	Score  float64 `json:"score"`
}

type CoocResult struct {
	Field      string         `json:"field"`
	Generation int64          `json:"generation"`
	Corpus     string         `json:"corpus,omitempty"`
	Pivots     []string       `json:"pivots"`
	Unknown    []string       `json:"unknown,omitempty"`
	Window     cooc.Window    `json:"window"`
	Measure    string         `json:"measure"`
	Found      int64          `json:"found"`
	Part       int64          `json:"part"`
	Hits       int            `json:"hits"`
	Anomalies  int            `json:"anomalies,omitempty"`
	Terms      []ranking.Term `json:"terms"`
	Edges      []LabeledEdge  `json:"edges,omitempty"`
}

func (q *CoocQuery) normalize(s *Service) error {
	forms := q.Query[:0:0]
	for _, f := range q.Query {
		if f = strings.TrimSpace(f); f != "" {
			forms = append(forms, f)
		}
	}
	if len(forms) == 0 {
		return apperrors.Invalidf("at least one query form is required")
	}
	q.Query = forms
	if q.Window == (cooc.Window{}) {
		q.Window = cooc.Window{Left: s.cfg.DefaultLeft, Right: s.cfg.DefaultRight}
	}
	if err := q.Window.Validate(); err != nil {
		return err
	}
	switch {
	case q.MI != "" && q.Scorer != "":
		return apperrors.Invalidf("mi and scorer are exclusive")
	case q.Scorer != "":
		if _, err := specif.New(q.Scorer); err != nil {
			return err
		}
	default:
		mi := defaultMI
		if q.MI != "" {
			var err error
			if mi, err = specif.ParseMI(q.MI); err != nil {
				return err
			}
		}
		q.MI = mi.String()
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

// Cooc extracts and ranks the co-occurrents of the query forms.
func (s *Service) Cooc(ctx context.Context, q CoocQuery) (*CoocResult, bool, error) {
	if err := q.normalize(s); err != nil {
		return nil, false, err
	}
	var res *CoocResult
	var hit bool
	err := s.run(ctx, "cooc", func(ctx context.Context) error {
		return s.withScope(ctx, q.Field, q.Corpus, func(sc *scope) error {
			var err error
			key := cacheKey{Kind: "cooc", Field: sc.field, Generation: sc.generation(), Query: q}
			res, hit, err = cached(ctx, s.cache, key, func() (*CoocResult, error) {
				return s.cooc(ctx, sc, q)
			})
			return err
		})
	})
	return res, hit, err
}

func (s *Service) cooc(ctx context.Context, sc *scope, q CoocQuery) (*CoocResult, error) {
	pivots, unknown := sc.resolve(q.Query)
	if len(pivots) == 0 {
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "none of %q occurs in field %s", q.Query, sc.field)
	}
	tags, _ := textindex.ParseTagFilter(q.Tags)

	opts := cooc.Options{Filter: sc.filter, Tags: tags}
	var queue *graph.EdgeQueue
	if q.Edges {
		queue = graph.NewEdgeQueue()
		opts.Edges = queue
	}

	ectx, span := tracing.StartSpan(ctx, "extract")
	span.SetAttr("pivots", len(pivots))
	counts, err := cooc.NewExtractor(sc.src, s.logger, s.metrics).Extract(ectx, sc.store, pivots, q.Window, opts)
	span.End()
	if err != nil {
		return nil, err
	}
	if len(counts.Anomalies) > 0 {
		logger.FromContext(ctx).Warn("co-occurrence extraction skipped inconsistent entries",
			"field", sc.field, "anomalies", len(counts.Anomalies))
	}

	_, span = tracing.StartSpan(ctx, "score")
	var scores []float64
	measure := q.MI
	if q.Scorer != "" {
		scorer, _ := specif.New(q.Scorer)
		scores = counts.Specificity(scorer, sc.stats)
		measure = scorer.Name()
	} else {
		mi, _ := specif.ParseMI(q.MI)
		scores = counts.Score(mi, pivots, sc.stats)
	}
	span.End()

	_, span = tracing.StartSpan(ctx, "rank")
	r := ranking.New(sc.lex, sc.stats).WithCounts(counts.Occs, counts.Docs, counts.Cover).WithScores(scores).Filter(tags)
	err = r.Sort(ranking.Order(q.Order), q.Limit, q.Reverse)
	span.End()
	if err != nil {
		return nil, err
	}

	res := &CoocResult{
		Field:      sc.field,
		Generation: sc.generation(),
		Corpus:     sc.corpus,
		Pivots:     labels(sc.lex, pivots),
		Unknown:    unknown,
		Window:     q.Window,
		Measure:    measure,
		Found:      counts.Found,
		Part:       counts.Part,
		Hits:       counts.Hits,
		Anomalies:  len(counts.Anomalies),
		Terms:      r.Terms(),
	}
	if queue != nil && r.Cardinality() >= 2 {
		m := queue.Matrix(r.IDs())
		res.Edges = labelEdges(sc.lex, m.Edges(q.Limit))
	}
	return res, nil
}

func labels(lex textindex.Lexicon, ids []uint32) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = lex.Form(id)
	}
	return out
}

func labelEdges(lex textindex.Lexicon, edges []graph.Edge) []LabeledEdge {
	out := make([]LabeledEdge, len(edges))
	for i, e := range edges {
		out[i] = LabeledEdge{
			Source: lex.Form(e.Source),
			Target: lex.Form(e.Target),
			Count:  e.Count,
			Score:  e.Score,
		}
	}
	return out
}
