package lexicon

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/cooc"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/specif"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/tracing"
)

// Graph edge selection modes.
const (
	ModeOrphanFree = "orphanfree"
	ModeTop        = "top"
)

// GraphQuery builds a co-occurrence graph over the Nodes most frequent terms.
// Without Query, two nodes are linked each time they occur at most
// Distance positions apart. With Query, they are linked each time they share
// a window around one of the pivots.
type GraphQuery struct {
	Field    string      `json:"field"`
	Corpus   string      `json:"corpus,omitempty"`
	Nodes    int         `json:"nodes"`
	Distance int         `json:"distance,omitempty"`
	Query    []string    `json:"query,omitempty"`
	Window   cooc.Window `json:"window,omitempty"`
	MI       string      `json:"mi,omitempty"`
	Mode     string      `json:"mode"`
	Limit    int         `json:"limit"`
	Tags     string      `json:"tags,omitempty"`
}

type GraphNode struct {
	ID    uint32 `json:"id"`
	Form  string `json:"form"`
	Count int64  `json:"count"`
}

type GraphResult struct {
	Field      string        `json:"field"`
	Generation int64         `json:"generation"`
	Corpus     string        `json:"corpus,omitempty"`
	Mode       string        `json:"mode"`
	Measure    string        `json:"measure"`
	Nodes      []GraphNode   `json:"nodes"`
	Edges      []LabeledEdge `json:"edges"`
}

const defaultDistance = 5

func (q *GraphQuery) normalize(s *Service) error {
	if q.Nodes == 0 {
		q.Nodes = min(50, s.cfg.MaxGraphSize)
	}
	if q.Nodes < 2 || (s.cfg.MaxGraphSize > 0 && q.Nodes > s.cfg.MaxGraphSize) {
		return apperrors.Invalidf("nodes must be in [2, %d], got %d", s.cfg.MaxGraphSize, q.Nodes)
	}
	switch q.Mode = strings.ToLower(q.Mode); q.Mode {
	case "":
		q.Mode = ModeOrphanFree
	case ModeOrphanFree, ModeTop:
	default:
		return apperrors.Invalidf("unknown graph mode %q", q.Mode)
	}
	if q.MI != "" {
		mi, err := specif.ParseMI(q.MI)
		if err != nil {
			return err
		}
		q.MI = mi.String()
	}
	if len(q.Query) > 0 {
		if q.Window == (cooc.Window{}) {
			q.Window = cooc.Window{Left: s.cfg.DefaultLeft, Right: s.cfg.DefaultRight}
		}
		if err := q.Window.Validate(); err != nil {
			return err
		}
		q.Distance = 0
	} else {
		if q.Distance == 0 {
			q.Distance = defaultDistance
		}
		if q.Distance < 1 {
			return apperrors.Invalidf("distance must be at least 1, got %d", q.Distance)
		}
		q.Window = cooc.Window{}
	}
	q.Limit = s.limit(q.Limit)
	_, err := textindex.ParseTagFilter(q.Tags)
	return err
}

// Graph selects nodes, counts their links and returns the chosen edges.
func (s *Service) Graph(ctx context.Context, q GraphQuery) (*GraphResult, bool, error) {
	if err := q.normalize(s); err != nil {
		return nil, false, err
	}
	var res *GraphResult
	var hit bool
	err := s.run(ctx, "graph", func(ctx context.Context) error {
		return s.withScope(ctx, q.Field, q.Corpus, func(sc *scope) error {
			var err error
			key := cacheKey{Kind: "graph", Field: sc.field, Generation: sc.generation(), Query: q}
			res, hit, err = cached(ctx, s.cache, key, func() (*GraphResult, error) {
				return s.graph(ctx, sc, q)
			})
			return err
		})
	})
	return res, hit, err
}

func (s *Service) graph(ctx context.Context, sc *scope, q GraphQuery) (*GraphResult, error) {
	tags, _ := textindex.ParseTagFilter(q.Tags)

	nctx, span := tracing.StartSpan(ctx, "nodes")
	nodes, counts, err := graph.SelectNodes(nctx, sc.store, sc.lex, sc.filter, q.Nodes, tags)
	span.End()
	if err != nil {
		return nil, err
	}
	res := &GraphResult{
		Field:      sc.field,
		Generation: sc.generation(),
		Corpus:     sc.corpus,
		Mode:       q.Mode,
		Measure:    "count",
		Nodes:      make([]GraphNode, len(nodes)),
		Edges:      []LabeledEdge{},
	}
	for i, id := range nodes {
		res.Nodes[i] = GraphNode{ID: id, Form: sc.lex.Form(id), Count: counts[i]}
	}
	if len(nodes) < 2 {
		return res, nil
	}

	ectx, span := tracing.StartSpan(ctx, "edges")
	var m *graph.Matrix
	if len(q.Query) > 0 {
		pivots, _ := sc.resolve(q.Query)
		if len(pivots) == 0 {
			span.End()
			return nil, apperrors.Invalidf("none of %q occurs in field %s", q.Query, sc.field)
		}
		m, err = s.builder.PivotEdges(ectx, sc.store, sc.src, pivots, q.Window, nodes, sc.filter)
	} else {
		m, err = s.builder.Edges(ectx, sc.store, nodes, q.Distance, sc.filter)
	}
	span.End()
	if err != nil {
		return nil, err
	}

	if q.MI != "" {
		// Marginals and N default to the row sums and edge total.
		mi, _ := specif.ParseMI(q.MI)
		m.SetMI(mi)
		res.Measure = mi.String()
	}

	_, span = tracing.StartSpan(ctx, "select")
	var edges []graph.Edge
	if q.Mode == ModeTop {
		edges = m.TopEdges(q.Limit)
	} else {
		edges = m.Edges(q.Limit)
	}
	span.End()
	res.Edges = labelEdges(sc.lex, edges)
	return res, nil
}
