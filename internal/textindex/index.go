package textindex

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// FieldSpec declares one indexed field.
type FieldSpec struct {
	Name      string
	Positions bool
	Analyzer  Analyzer
}

type fieldIndex struct {
	spec     FieldSpec
	dict     *Dictionary
	postings map[uint32]PostingList
	// docs[d][pos] is the term id at pos, Hole where nothing was indexed.
	docs [][]uint32
}

// Index is an in-memory positional index implementing Source. Documents are
// numbered in insertion order and never renumbered; deletes only flip
// liveness.
type Index struct {
	mu         sync.RWMutex
	fields     map[string]*fieldIndex
	order      []string
	maxDoc     int
	deleted    *roaring.Bitmap
	generation int64

	statsMu sync.Mutex
	stats   map[string]*FieldStats
	flight  singleflight.Group
	logger  *slog.Logger
}

var _ Source = (*Index)(nil)

func NewIndex(specs ...FieldSpec) *Index {
	idx := &Index{
		fields:  make(map[string]*fieldIndex, len(specs)),
		deleted: roaring.New(),
		stats:   make(map[string]*FieldStats),
		logger:  slog.Default().With("component", "textindex"),
	}
	for _, spec := range specs {
		idx.addField(spec)
	}
	return idx
}

func (idx *Index) addField(spec FieldSpec) *fieldIndex {
	f := &fieldIndex{
		spec:     spec,
		dict:     NewDictionary(),
		postings: make(map[uint32]PostingList),
	}
	idx.fields[spec.Name] = f
	idx.order = append(idx.order, spec.Name)
	return f
}

// Fields returns field names in declaration order.
func (idx *Index) Fields() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.order...)
}

// AddDocument analyzes each field value and indexes the result as one new
// document. Fields missing from doc are indexed empty.
func (idx *Index) AddDocument(doc map[string]string) (int, error) {
	analyzed := make(map[string][]Token, len(doc))
	idx.mu.RLock()
	for name, text := range doc {
		f, ok := idx.fields[name]
		if !ok {
			idx.mu.RUnlock()
			return 0, fmt.Errorf("%w: unknown field %q", apperrors.ErrInvalidInput, name)
		}
		analyzed[name] = f.spec.Analyzer.Tokenize(text)
	}
	idx.mu.RUnlock()
	return idx.AddAnalyzed(analyzed)
}

// AddAnalyzed indexes pre-tokenized fields as one new document.
func (idx *Index) AddAnalyzed(doc map[string][]Token) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for name, tokens := range doc {
		if _, ok := idx.fields[name]; !ok {
			return 0, fmt.Errorf("%w: unknown field %q", apperrors.ErrInvalidInput, name)
		}
		for _, tok := range tokens {
			if tok.Position < 0 {
				return 0, fmt.Errorf("%w: negative position %d in field %q", apperrors.ErrInvalidInput, tok.Position, name)
			}
			if tok.Form == "" {
				return 0, fmt.Errorf("%w: empty form in field %q", apperrors.ErrInvalidInput, name)
			}
		}
	}

	docID := idx.maxDoc
	for _, name := range idx.order {
		f := idx.fields[name]
		tokens := doc[name]
		length := 0
		for _, tok := range tokens {
			length = max(length, tok.Position+1)
		}
		rail := make([]uint32, length)
		for _, tok := range tokens {
			rail[tok.Position] = f.dict.Add(tok.Form, tok.Tag, tok.Locution)
		}
		f.indexRail(docID, rail)
	}
	idx.maxDoc++
	idx.generation++
	return docID, nil
}

// indexRail appends docID to the postings of every term found in rail.
func (f *fieldIndex) indexRail(docID int, rail []uint32) {
	terms := make(map[uint32]*Posting)
	order := make([]uint32, 0)
	for pos, id := range rail {
		if id == Hole {
			continue
		}
		p, ok := terms[id]
		if !ok {
			p = &Posting{DocID: docID, Positions: make([]int, 0, 4)}
			terms[id] = p
			order = append(order, id)
		}
		p.Frequency++
		p.Positions = append(p.Positions, pos)
	}
	for _, id := range order {
		p := *terms[id]
		if !f.spec.Positions {
			p.Positions = nil
		}
		f.postings[id] = append(f.postings[id], p)
	}
	f.docs = append(f.docs, rail)
}

// Delete marks a document as no longer live.
func (idx *Index) Delete(docID int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if docID < 0 || docID >= idx.maxDoc {
		return fmt.Errorf("%w: document %d", apperrors.ErrNotFound, docID)
	}
	if idx.deleted.CheckedAdd(uint32(docID)) {
		idx.generation++
	}
	return nil
}

func (idx *Index) Generation() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.generation
}

func (idx *Index) MaxDoc() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.maxDoc
}

func (idx *Index) Live(docID int) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return docID >= 0 && docID < idx.maxDoc && !idx.deleted.Contains(uint32(docID))
}

// LiveDocs returns a bitmap of every live document.
func (idx *Index) LiveDocs() *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	live := roaring.New()
	live.AddRange(0, uint64(idx.maxDoc))
	live.AndNot(idx.deleted)
	return live
}

func (idx *Index) field(name string) (*fieldIndex, error) {
	f, ok := idx.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", apperrors.ErrConfiguration, name)
	}
	return f, nil
}

func (idx *Index) positional(name string) (*fieldIndex, error) {
	f, err := idx.field(name)
	if err != nil {
		return nil, err
	}
	if !f.spec.Positions {
		return nil, fmt.Errorf("%w: field %q is indexed without positions", apperrors.ErrConfiguration, name)
	}
	return f, nil
}

func (idx *Index) Dictionary(field string) (*Dictionary, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	f, err := idx.field(field)
	if err != nil {
		return nil, err
	}
	return f.dict, nil
}

func (idx *Index) Lexicon(field string) (Lexicon, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	f, err := idx.positional(field)
	if err != nil {
		return Lexicon{}, err
	}
	return f.dict.Lexicon(), nil
}

func (idx *Index) Document(field string, docID int, fn func(pos int, termID uint32)) (int, error) {
	idx.mu.RLock()
	f, err := idx.positional(field)
	if err == nil && (docID < 0 || docID >= len(f.docs)) {
		err = fmt.Errorf("%w: document %d", apperrors.ErrNotFound, docID)
	}
	var rail []uint32
	if err == nil {
		rail = f.docs[docID]
	}
	idx.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	for pos, id := range rail {
		if id != Hole {
			fn(pos, id)
		}
	}
	return len(rail), nil
}

func (idx *Index) Postings(field string, termID uint32) (PostingList, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	f, err := idx.field(field)
	if err != nil {
		return nil, err
	}
	return f.postings[termID], nil
}

// Stats returns live-document counts for field, computed at most once per
// generation no matter how many callers ask concurrently.
func (idx *Index) Stats(ctx context.Context, field string) (*FieldStats, error) {
	gen := idx.Generation()
	idx.statsMu.Lock()
	cached := idx.stats[field]
	idx.statsMu.Unlock()
	if cached != nil && cached.Generation == gen {
		return cached, nil
	}

	key := field + "@" + strconv.FormatInt(gen, 10)
	ch := idx.flight.DoChan(key, func() (any, error) {
		idx.statsMu.Lock()
		cached := idx.stats[field]
		idx.statsMu.Unlock()
		if cached != nil && cached.Generation == gen {
			return cached, nil
		}
		stats, err := idx.computeStats(field)
		if err != nil {
			return nil, err
		}
		idx.statsMu.Lock()
		if prev := idx.stats[field]; prev == nil || prev.Generation < stats.Generation {
			idx.stats[field] = stats
		}
		idx.statsMu.Unlock()
		return stats, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*FieldStats), nil
	}
}

func (idx *Index) computeStats(field string) (*FieldStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	f, err := idx.field(field)
	if err != nil {
		return nil, err
	}
	size := f.dict.Size()
	stats := &FieldStats{
		Generation: idx.generation,
		Occs:       make([]int64, size),
		Docs:       make([]int32, size),
	}
	for id, list := range f.postings {
		for _, p := range list {
			if idx.deleted.Contains(uint32(p.DocID)) {
				continue
			}
			stats.Occs[id] += int64(p.Frequency)
			stats.Docs[id]++
			stats.TotalOccs += int64(p.Frequency)
		}
		stats.MaxOccs = max(stats.MaxOccs, stats.Occs[id])
	}
	for docID, rail := range f.docs {
		if len(rail) > 0 && !idx.deleted.Contains(uint32(docID)) {
			stats.TotalDocs++
		}
	}
	idx.logger.Debug("field stats computed",
		"field", field,
		"generation", stats.Generation,
		"terms", size,
		"occs", stats.TotalOccs,
	)
	return stats, nil
}
