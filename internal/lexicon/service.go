// Package lexicon is the query layer over the statistics core. It resolves a
// field and an optional named corpus into a rail store, a document filter and
// field statistics, runs one of the lexical analyses (term lists,
// co-occurrents, graphs, expressions) and caches the ranked result.
package lexicon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/rail"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/tracing"
)

// staleRetries bounds how often a query restarts when the index moves to a
// new generation underneath it.
const staleRetries = 3

// staleRetry restarts a query only when the generation it pinned was
// replaced under it.
var staleRetry = resilience.RetryConfig{
	MaxAttempts:  staleRetries,
	InitialDelay: 5 * time.Millisecond,
	MaxDelay:     50 * time.Millisecond,
	Retryable:    func(err error) bool { return errors.Is(err, apperrors.ErrStaleStore) },
}

// Options configures a Service. Corpora defaults to an in-memory store and a
// nil Cache disables result caching.
type Options struct {
	Query       config.QueryConfig
	Parallelism int
	Corpora     corpus.Store
	Cache       *Cache
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Service answers lexical queries against the current text index.
type Service struct {
	rails   *rail.Registry
	builder *graph.Builder
	corpora corpus.Store
	cache   *Cache
	cfg     config.QueryConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewService(rails *rail.Registry, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Corpora == nil {
		opts.Corpora = corpus.NewMemStore()
	}
	log := opts.Logger.With("component", "lexicon")
	return &Service{
		rails:   rails,
		builder: graph.NewBuilder(log, opts.Parallelism),
		corpora: opts.Corpora,
		cache:   opts.Cache,
		cfg:     opts.Query,
		logger:  log,
		metrics: opts.Metrics,
	}
}

// scope is everything one query reads, pinned to a single generation.
type scope struct {
	field  string
	src    textindex.Source
	store  *rail.Store
	lex    textindex.Lexicon
	dict   *textindex.Dictionary
	stats  *textindex.FieldStats
	filter *roaring.Bitmap
	corpus string
}

func (sc *scope) generation() int64 { return sc.store.Generation() }

func (sc *scope) close() { sc.store.Close() }

// open pins field to the current generation and loads the corpus filter.
func (s *Service) open(ctx context.Context, field, corpusName string) (*scope, error) {
	ctx, span := tracing.StartSpan(ctx, "open")
	defer span.End()
	span.SetAttr("field", field)

	if field == "" {
		return nil, apperrors.Invalidf("field is required")
	}
	for attempt := 0; ; attempt++ {
		src := s.rails.Source()
		lex, err := src.Lexicon(field)
		if err != nil {
			return nil, fieldError(field, err)
		}
		dict, err := src.Dictionary(field)
		if err != nil {
			return nil, fieldError(field, err)
		}
		store, err := s.rails.Get(ctx, field)
		if err != nil {
			return nil, fmt.Errorf("loading rail for %s: %w", field, err)
		}
		if store.Generation() != src.Generation() {
			store.Close()
			if attempt+1 >= staleRetries {
				return nil, fmt.Errorf("%w: field %s keeps changing", apperrors.ErrStaleStore, field)
			}
			continue
		}
		stats, err := src.Stats(ctx, field)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("field statistics for %s: %w", field, err)
		}
		sc := &scope{field: field, src: src, store: store, lex: lex, dict: dict, stats: stats}
		if corpusName != "" {
			c, err := s.corpora.Get(ctx, corpusName)
			if err != nil {
				store.Close()
				return nil, err
			}
			if c.Generation != src.Generation() {
				logger.FromContext(ctx).Debug("corpus defined against another generation",
					"corpus", corpusName,
					"corpus_generation", c.Generation,
					"generation", src.Generation(),
				)
			}
			sc.filter, sc.corpus = c.Docs, corpusName
		}
		span.SetAttr("generation", store.Generation())
		return sc, nil
	}
}

// withScope runs fn on a fresh scope, starting over when extraction reports
// that the index moved on.
func (s *Service) withScope(ctx context.Context, field, corpusName string, fn func(*scope) error) error {
	return resilience.Retry(ctx, "query "+field, staleRetry, func(ctx context.Context, _ int) error {
		sc, err := s.open(ctx, field, corpusName)
		if err != nil {
			return err
		}
		defer sc.close()
		return fn(sc)
	})
}

func fieldError(field string, err error) error {
	if errors.Is(err, apperrors.ErrConfiguration) {
		return apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "field %q: %v", field, err)
	}
	return err
}

// resolve maps query forms to term ids. Forms are tried verbatim, then
// lowercased; the ones found nowhere are returned separately.
func (sc *scope) resolve(forms []string) (ids []uint32, unknown []string) {
	for _, form := range forms {
		form = strings.TrimSpace(form)
		if form == "" {
			continue
		}
		id, ok := sc.dict.ID(form)
		if !ok {
			id, ok = sc.dict.ID(strings.ToLower(form))
		}
		if !ok || int(id) >= sc.lex.Size() {
			unknown = append(unknown, form)
			continue
		}
		ids = append(ids, id)
	}
	return ids, unknown
}

// limit clamps a requested result size to the configured bounds.
func (s *Service) limit(n int) int {
	switch {
	case n < 1:
		return s.cfg.DefaultLimit
	case s.cfg.MaxResults > 0 && n > s.cfg.MaxResults:
		return s.cfg.MaxResults
	}
	return n
}

// run times a query of one kind, records its outcome and logs its span tree.
func (s *Service) run(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx = logger.With(ctx, "query", kind)
	ctx, span := tracing.StartSpan(ctx, kind)
	err := resilience.WithTimeout(ctx, s.cfg.Timeout, kind+" query", fn)
	span.End()

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrTimeout):
		outcome = "timeout"
		err = apperrors.Newf(apperrors.ErrTimeout, http.StatusServiceUnavailable, "%v", err)
	case apperrors.HTTPStatusCode(err) < http.StatusInternalServerError:
		outcome = "rejected"
	default:
		outcome = "error"
	}
	s.metrics.Query(kind, outcome, time.Since(start))
	span.Log(logger.FromContext(ctx))
	return err
}

// Rebuild rewrites the rail of field, drops cached results and returns the
// generation now served.
func (s *Service) Rebuild(ctx context.Context, field string) (int64, error) {
	if _, err := s.rails.Source().Lexicon(field); err != nil {
		return 0, fieldError(field, err)
	}
	store, err := s.rails.Rebuild(ctx, field)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	s.dropCached(ctx, "rail rebuilt")
	logger.FromContext(ctx).Info("rail rebuilt", "field", field, "generation", store.Generation())
	return store.Generation(), nil
}

// Generation is the generation of the text index currently served.
func (s *Service) Generation() int64 {
	return s.rails.Source().Generation()
}

// CorpusRequest defines a named corpus from explicit document ids.
type CorpusRequest struct {
	Docs        []int  `json:"docs"`
	Description string `json:"description,omitempty"`
	Replace     bool   `json:"replace,omitempty"`
}

func (s *Service) PutCorpus(ctx context.Context, name string, req CorpusRequest) (corpus.Info, error) {
	if err := corpus.ValidateName(name); err != nil {
		return corpus.Info{}, err
	}
	src := s.rails.Source()
	docs, err := corpus.FromIDs(req.Docs, src.MaxDoc())
	if err != nil {
		return corpus.Info{}, err
	}
	c := &corpus.Corpus{
		Name:        name,
		Description: req.Description,
		Generation:  src.Generation(),
		Docs:        docs,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.corpora.Put(ctx, c, req.Replace); err != nil {
		return corpus.Info{}, err
	}
	if req.Replace {
		s.dropCached(ctx, "corpus replaced")
	}
	return c.Info(), nil
}

func (s *Service) GetCorpus(ctx context.Context, name string) (*corpus.Corpus, error) {
	return s.corpora.Get(ctx, name)
}

func (s *Service) DeleteCorpus(ctx context.Context, name string) error {
	if err := s.corpora.Delete(ctx, name); err != nil {
		return err
	}
	s.dropCached(ctx, "corpus deleted")
	return nil
}

// dropCached flushes the result cache; results keyed by corpus name would
// otherwise outlive the corpus they were computed on.
func (s *Service) dropCached(ctx context.Context, reason string) {
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.FromContext(ctx).Warn("cache invalidation failed", "reason", reason, "error", err)
	}
}

func (s *Service) ListCorpora(ctx context.Context) ([]corpus.Info, error) {
	return s.corpora.List(ctx)
}
