package textindex

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// Snapshot is a point-in-time copy of an Index, complete enough to rebuild
// it with the same term ids and the same generation.
type Snapshot struct {
	Generation int64
	MaxDoc     int
	Deleted    *roaring.Bitmap
	Fields     []FieldSnapshot
}

type FieldSnapshot struct {
	Name      string     `json:"name"`
	Positions bool       `json:"positions"`
	Forms     []string   `json:"forms"`
	Tags      []Tag      `json:"tags"`
	Locutions []bool     `json:"locutions"`
	Docs      [][]uint32 `json:"docs"`
}

func (idx *Index) Snapshot() *Snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	snap := &Snapshot{
		Generation: idx.generation,
		MaxDoc:     idx.maxDoc,
		Deleted:    idx.deleted.Clone(),
	}
	for _, name := range idx.order {
		f := idx.fields[name]
		lex := f.dict.Lexicon()
		snap.Fields = append(snap.Fields, FieldSnapshot{
			Name:      name,
			Positions: f.spec.Positions,
			Forms:     lex.Forms,
			Tags:      lex.Tags,
			Locutions: lex.Locutions,
			Docs:      f.docs,
		})
	}
	return snap
}

// Restore rebuilds an Index from snap. Fields use the default analyzer
// unless an override with the same name is given. It stops with the context
// error once ctx is done.
func Restore(ctx context.Context, snap *Snapshot, overrides ...FieldSpec) (*Index, error) {
	analyzers := make(map[string]Analyzer, len(overrides))
	for _, spec := range overrides {
		analyzers[spec.Name] = spec.Analyzer
	}
	idx := NewIndex()
	for _, fs := range snap.Fields {
		if len(fs.Forms) == 0 || len(fs.Tags) != len(fs.Forms) || len(fs.Locutions) != len(fs.Forms) {
			return nil, fmt.Errorf("%w: field %q dictionary is malformed", apperrors.ErrDataConsistency, fs.Name)
		}
		if len(fs.Docs) != snap.MaxDoc {
			return nil, fmt.Errorf("%w: field %q has %d documents, want %d",
				apperrors.ErrDataConsistency, fs.Name, len(fs.Docs), snap.MaxDoc)
		}
		analyzer, ok := analyzers[fs.Name]
		if !ok {
			analyzer = DefaultAnalyzer()
		}
		f := idx.addField(FieldSpec{Name: fs.Name, Positions: fs.Positions, Analyzer: analyzer})
		for id := 1; id < len(fs.Forms); id++ {
			if got := f.dict.Add(fs.Forms[id], fs.Tags[id], fs.Locutions[id]); got != uint32(id) {
				return nil, fmt.Errorf("%w: field %q repeats form %q",
					apperrors.ErrDataConsistency, fs.Name, fs.Forms[id])
			}
		}
		for docID, rail := range fs.Docs {
			if docID%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			for _, id := range rail {
				if int(id) >= len(fs.Forms) {
					return nil, fmt.Errorf("%w: field %q document %d references term %d",
						apperrors.ErrDataConsistency, fs.Name, docID, id)
				}
			}
			f.indexRail(docID, rail)
		}
	}
	idx.maxDoc = snap.MaxDoc
	idx.generation = snap.Generation
	if snap.Deleted != nil {
		idx.deleted = snap.Deleted.Clone()
	}
	return idx, nil
}
