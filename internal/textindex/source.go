package textindex

import "context"

// Source is what the statistics core needs from a text index. Document ids
// are dense in [0, MaxDoc). Generation changes whenever documents are added
// or deleted; anything derived from a Source is keyed by it.
type Source interface {
	Generation() int64
	MaxDoc() int
	Live(docID int) bool
	// Lexicon fails with ErrConfiguration for unknown fields and for fields
	// indexed without positions.
	Lexicon(field string) (Lexicon, error)
	// Dictionary resolves forms to term ids, with the same errors as Lexicon.
	Dictionary(field string) (*Dictionary, error)
	// Document calls fn for each indexed position of docID in ascending
	// order and returns the field length in positions, holes included.
	Document(field string, docID int, fn func(pos int, termID uint32)) (int, error)
	Postings(field string, termID uint32) (PostingList, error)
	Stats(ctx context.Context, field string) (*FieldStats, error)
}
