package lexicon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/cooc"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/logger"
)

// maxCorpusBody bounds the JSON body of a corpus definition.
const maxCorpusBody = 32 << 20

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: slog.Default().With("component", "lexicon-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/fields/{field}/terms", h.Terms)
	mux.HandleFunc("GET /api/v1/fields/{field}/cooc", h.Cooc)
	mux.HandleFunc("GET /api/v1/fields/{field}/graph", h.Graph)
	mux.HandleFunc("GET /api/v1/fields/{field}/expressions", h.Expressions)
	mux.HandleFunc("GET /api/v1/corpora", h.ListCorpora)
	mux.HandleFunc("PUT /api/v1/corpora/{name}", h.PutCorpus)
	mux.HandleFunc("GET /api/v1/corpora/{name}", h.GetCorpus)
	mux.HandleFunc("DELETE /api/v1/corpora/{name}", h.DeleteCorpus)
	mux.HandleFunc("POST /api/v1/rails/{field}/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Terms(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	q := TermsQuery{
		Field:   r.PathValue("field"),
		Corpus:  p.str("corpus"),
		Scorer:  p.str("scorer"),
		Order:   p.str("order"),
		Limit:   p.num("limit", 0),
		Reverse: p.flag("reverse"),
		Tags:    p.tags(),
	}
	if p.err != nil {
		h.writeErr(w, r, p.err)
		return
	}
	start := time.Now()
	res, hit, err := h.svc.Terms(r.Context(), q)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.completed(r, "terms", hit, len(res.Terms), start)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Cooc(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	q := CoocQuery{
		Field:   r.PathValue("field"),
		Corpus:  p.str("corpus"),
		Query:   p.list("q"),
		Window:  cooc.Window{Left: p.num("left", 0), Right: p.num("right", 0)},
		MI:      p.str("mi"),
		Scorer:  p.str("scorer"),
		Order:   p.str("order"),
		Limit:   p.num("limit", 0),
		Reverse: p.flag("reverse"),
		Tags:    p.tags(),
		Edges:   p.flag("edges"),
	}
	if p.err != nil {
		h.writeErr(w, r, p.err)
		return
	}
	start := time.Now()
	res, hit, err := h.svc.Cooc(r.Context(), q)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.completed(r, "cooc", hit, len(res.Terms), start)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	q := GraphQuery{
		Field:    r.PathValue("field"),
		Corpus:   p.str("corpus"),
		Nodes:    p.num("nodes", 0),
		Distance: p.num("distance", 0),
		Query:    p.list("q"),
		Window:   cooc.Window{Left: p.num("left", 0), Right: p.num("right", 0)},
		MI:       p.str("mi"),
		Mode:     p.str("mode"),
		Limit:    p.num("limit", 0),
		Tags:     p.tags(),
	}
	if p.err != nil {
		h.writeErr(w, r, p.err)
		return
	}
	start := time.Now()
	res, hit, err := h.svc.Graph(r.Context(), q)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.completed(r, "graph", hit, len(res.Edges), start)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Expressions(w http.ResponseWriter, r *http.Request) {
	p := params{r: r}
	q := ExpressionsQuery{
		Field:    r.PathValue("field"),
		Corpus:   p.str("corpus"),
		Limit:    p.num("limit", 0),
		MinCount: p.num("min_count", 0),
	}
	if p.err != nil {
		h.writeErr(w, r, p.err)
		return
	}
	start := time.Now()
	res, hit, err := h.svc.Expressions(r.Context(), q)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.completed(r, "expressions", hit, len(res.Expressions), start)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListCorpora(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.ListCorpora(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"corpora": infos})
}

func (h *Handler) PutCorpus(w http.ResponseWriter, r *http.Request) {
	var req CorpusRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCorpusBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeErr(w, r, apperrors.Invalidf("corpus body: %v", err))
		return
	}
	info, err := h.svc.PutCorpus(r.Context(), r.PathValue("name"), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	status := http.StatusCreated
	if req.Replace {
		status = http.StatusOK
	}
	h.writeJSON(w, status, info)
}

func (h *Handler) GetCorpus(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCorpus(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	docs := c.Docs.ToArray()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"corpus": c.Info(),
		"docs":   docs,
	})
}

func (h *Handler) DeleteCorpus(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCorpus(r.Context(), r.PathValue("name")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")
	gen, err := h.svc.Rebuild(r.Context(), field)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"field": field, "generation": gen})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.svc.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.svc.cache.Invalidate(r.Context()); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) completed(r *http.Request, kind string, hit bool, returned int, start time.Time) {
	logger.FromContext(r.Context()).Info("query completed",
		"kind", kind,
		"field", r.PathValue("field"),
		"returned", returned,
		"cache_hit", hit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeErr maps err to its status. Server-side failures are logged and
// reported without detail.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		h.writeError(w, status, http.StatusText(status))
		return
	}
	h.writeError(w, status, err.Error())
}

// params reads query parameters, keeping the first conversion error.
type params struct {
	r   *http.Request
	err error
}

func (p *params) str(name string) string {
	return strings.TrimSpace(p.r.URL.Query().Get(name))
}

// list accepts both repeated parameters and comma separated values.
func (p *params) list(name string) []string {
	var out []string
	for _, v := range p.r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (p *params) num(name string, def int) int {
	v := p.str(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		if p.err == nil {
			p.err = apperrors.Invalidf("%s must be a non-negative integer, got %q", name, v)
		}
		return def
	}
	return n
}

func (p *params) flag(name string) bool {
	v := p.str(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		if p.err == nil {
			p.err = apperrors.Invalidf("%s must be a boolean, got %q", name, v)
		}
		return false
	}
	return b
}

// tags merges the tags parameter with the nostop shorthand.
func (p *params) tags() string {
	tags := p.str("tags")
	if p.flag("nostop") {
		tags = strings.Trim(fmt.Sprintf("%s,nostop", tags), ",")
	}
	return tags
}
