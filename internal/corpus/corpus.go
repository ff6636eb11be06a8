// Package corpus persists named document subsets. A corpus is a roaring bitmap
// of document ids taken against one index generation; queries use it as the
// filter that restricts counting to those documents.
package corpus

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// Corpus is a named set of documents.
type Corpus struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Generation  int64           `json:"generation"`
	Docs        *roaring.Bitmap `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Cardinality is the number of documents in the corpus.
func (c *Corpus) Cardinality() uint64 {
	if c.Docs == nil {
		return 0
	}
	return c.Docs.GetCardinality()
}

// Info is the listing view of a corpus, without its documents.
type Info struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Generation  int64     `json:"generation"`
	Docs        uint64    `json:"docs"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c *Corpus) Info() Info {
	return Info{
		Name:        c.Name,
		Description: c.Description,
		Generation:  c.Generation,
		Docs:        c.Cardinality(),
		CreatedAt:   c.CreatedAt,
	}
}

// Store persists corpora. Put fails with ErrCorpusExists when the name is
// taken and replace is false; Get and Delete fail with ErrNotFound.
type Store interface {
	Put(ctx context.Context, c *Corpus, replace bool) error
	Get(ctx context.Context, name string) (*Corpus, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Info, error)
}

// ValidateName rejects names that cannot appear in a URL path segment.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return apperrors.Invalidf("corpus name %q must match %s", name, validName.String())
	}
	return nil
}

func notFound(name string) error {
	return apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "corpus %q", name)
}

func exists(name string) error {
	return apperrors.Newf(apperrors.ErrCorpusExists, http.StatusConflict, "corpus %q", name)
}

// MemStore keeps corpora in process memory. It backs the service when
// Postgres is disabled.
type MemStore struct {
	mu      sync.RWMutex
	corpora map[string]*Corpus
}

func NewMemStore() *MemStore {
	return &MemStore{corpora: make(map[string]*Corpus)}
}

func (m *MemStore) Put(_ context.Context, c *Corpus, replace bool) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.corpora[c.Name]; ok && !replace {
		return exists(c.Name)
	}
	cp := *c
	if cp.Docs == nil {
		cp.Docs = roaring.New()
	} else {
		cp.Docs = c.Docs.Clone()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.corpora[c.Name] = &cp
	return nil
}

func (m *MemStore) Get(_ context.Context, name string) (*Corpus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.corpora[name]
	if !ok {
		return nil, notFound(name)
	}
	cp := *c
	cp.Docs = c.Docs.Clone()
	return &cp, nil
}

func (m *MemStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.corpora[name]; !ok {
		return notFound(name)
	}
	delete(m.corpora, name)
	return nil
}

func (m *MemStore) List(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.corpora))
	for _, c := range m.corpora {
		infos = append(infos, c.Info())
	}
	m.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// FromIDs builds a bitmap from document ids, rejecting ids outside
// [0, maxDoc).
func FromIDs(ids []int, maxDoc int) (*roaring.Bitmap, error) {
	bm := roaring.New()
	for _, id := range ids {
		if id < 0 || id >= maxDoc {
			return nil, apperrors.Invalidf("document %d out of range [0, %d)", id, maxDoc)
		}
		bm.Add(uint32(id))
	}
	return bm, nil
}

func encode(bm *roaring.Bitmap) ([]byte, error) {
	bm.RunOptimize()
	b, err := bm.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("encoding corpus bitmap: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if err := bm.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("decoding corpus bitmap: %w", err)
	}
	return bm, nil
}
