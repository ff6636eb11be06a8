package rail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/mmap"
)

// Options locate rail files and bound the wait for a concurrent builder.
type Options struct {
	Dir         string
	LockTimeout time.Duration
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.LockTimeout <= 0 {
		o.LockTimeout = 2 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "rail")
	}
	return o
}

// Store is a memory-mapped rail file. It is immutable: every accessor is safe
// for concurrent use without locking. A Store is reference counted; the
// mapping is released when the last holder calls Close.
type Store struct {
	field      string
	path       string
	generation int64
	offsets    []int
	lengths    []int32
	ints       []uint32
	file       *mmap.File
	refs       atomic.Int64
}

// Open returns the rail store for field, building or rebuilding the file
// first when it is missing, unreadable, or stamped with another generation
// than src currently has.
func Open(ctx context.Context, src textindex.Source, field string, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	if _, err := src.Lexicon(field); err != nil {
		return nil, err
	}
	path := filepath.Join(opts.Dir, FileName(field))

	for attempt := 0; attempt < 3; attempt++ {
		s, err := load(field, path, src.Generation())
		if err == nil {
			opts.Metrics.RailLoad(field, "mapped")
			return s, nil
		}
		switch {
		case errors.Is(err, os.ErrNotExist):
			opts.Logger.Info("rail missing, building", "field", field)
		case errors.Is(err, apperrors.ErrStaleStore):
			opts.Logger.Info("rail stale, rebuilding", "field", field, "reason", err.Error())
		case errors.Is(err, apperrors.ErrDataConsistency):
			opts.Logger.Warn("rail unreadable, rebuilding", "field", field, "error", err)
		default:
			return nil, err
		}
		if err := Build(ctx, src, field, opts, errors.Is(err, apperrors.ErrDataConsistency)); err != nil {
			return nil, err
		}
		opts.Metrics.RailLoad(field, "rebuilt")
	}
	return nil, fmt.Errorf("%w: rail for %s kept changing while loading", apperrors.ErrStaleStore, field)
}

// load maps path and indexes its documents with one pass over the length
// table. It fails with ErrStaleStore when the stamp is not want.
func load(field, path string, want int64) (*Store, error) {
	f, err := mmap.Open(path)
	if err != nil {
		if errors.Is(err, mmap.ErrEmpty) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrDataConsistency, err)
		}
		return nil, err
	}
	s, err := index(field, path, f, want)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.AdviseSequential()
	s.refs.Store(1)
	return s, nil
}

func index(field, path string, f *mmap.File, want int64) (*Store, error) {
	data := f.Data
	if len(data) < headerInts*4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: rail %s has invalid size %d", apperrors.ErrDataConsistency, path, len(data))
	}
	gen := readGeneration(data)
	if gen != want {
		return nil, fmt.Errorf("%w: file generation %d, index generation %d", apperrors.ErrStaleStore, gen, want)
	}
	ints := asInts(data)
	maxDoc := int(ints[2])
	if headerInts+maxDoc > len(ints) {
		return nil, fmt.Errorf("%w: rail %s header claims %d documents", apperrors.ErrDataConsistency, path, maxDoc)
	}
	s := &Store{
		field:      field,
		path:       path,
		generation: gen,
		offsets:    make([]int, maxDoc),
		lengths:    make([]int32, maxDoc),
		ints:       ints,
		file:       f,
	}
	pos := headerInts + maxDoc
	for docID := 0; docID < maxDoc; docID++ {
		length := int32(ints[headerInts+docID])
		if length < 0 || pos+int(length) >= len(ints) || ints[pos+int(length)] != Sentinel {
			return nil, fmt.Errorf("%w: rail %s document %d is not terminated", apperrors.ErrDataConsistency, path, docID)
		}
		s.offsets[docID] = pos
		s.lengths[docID] = length
		pos += int(length) + 1
	}
	if pos != len(ints) {
		return nil, fmt.Errorf("%w: rail %s has %d trailing slots", apperrors.ErrDataConsistency, path, len(ints)-pos)
	}
	return s, nil
}

func (s *Store) Field() string     { return s.field }
func (s *Store) Generation() int64 { return s.generation }
func (s *Store) MaxDoc() int       { return len(s.offsets) }

// Rail returns the term ids of docID by position, holes as 0. The slice
// aliases the mapping and must not be modified or used after Close.
func (s *Store) Rail(docID int) []uint32 {
	if docID < 0 || docID >= len(s.offsets) {
		return nil
	}
	off := s.offsets[docID]
	return s.ints[off : off+int(s.lengths[docID]) : off+int(s.lengths[docID])]
}

// DocLength is the number of positions of docID, holes included. Deleted
// documents have length 0.
func (s *Store) DocLength(docID int) int {
	if docID < 0 || docID >= len(s.lengths) {
		return 0
	}
	return int(s.lengths[docID])
}

// Retain adds a reference. It fails once the store has been fully closed.
func (s *Store) Retain() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Close drops one reference and unmaps the file when none remain.
func (s *Store) Close() error {
	if s.refs.Add(-1) != 0 {
		return nil
	}
	s.ints = nil
	return s.file.Close()
}
