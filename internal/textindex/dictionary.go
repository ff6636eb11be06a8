package textindex

import "sync"

// Hole is the term id of a position with no indexed token.
const Hole uint32 = 0

// Dictionary assigns dense term ids to forms for one field. Id 0 is reserved
// for the hole. Entries are append-only, so a Lexicon taken at any moment
// stays valid while the dictionary keeps growing.
type Dictionary struct {
	mu   sync.RWMutex
	ids  map[string]uint32
	view Lexicon
}

func NewDictionary() *Dictionary {
	return &Dictionary{
		ids: make(map[string]uint32),
		view: Lexicon{
			Forms:     []string{""},
			Tags:      []Tag{TagUnknown},
			Locutions: []bool{false},
		},
	}
}

// Add returns the id of form, registering it with tag on first sight.
func (d *Dictionary) Add(form string, tag Tag, locution bool) uint32 {
	d.mu.RLock()
	id, ok := d.ids[form]
	d.mu.RUnlock()
	if ok {
		return id
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.ids[form]; ok {
		return id
	}
	id = uint32(len(d.view.Forms))
	d.ids[form] = id
	d.view.Forms = append(d.view.Forms, form)
	d.view.Tags = append(d.view.Tags, tag)
	d.view.Locutions = append(d.view.Locutions, locution)
	return id
}

func (d *Dictionary) ID(form string) (uint32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.ids[form]
	return id, ok
}

// IDs resolves forms to ids, silently skipping unknown forms.
func (d *Dictionary) IDs(forms ...string) []uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]uint32, 0, len(forms))
	for _, form := range forms {
		if id, ok := d.ids[form]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (d *Dictionary) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.view.Forms)
}

// Lexicon returns a read-only view of every term registered so far.
func (d *Dictionary) Lexicon() Lexicon {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.view
}

// Lexicon is an immutable view of a dictionary indexed by term id.
type Lexicon struct {
	Forms     []string
	Tags      []Tag
	Locutions []bool
}

func (l Lexicon) Size() int { return len(l.Forms) }

func (l Lexicon) Form(id uint32) string {
	if int(id) >= len(l.Forms) {
		return ""
	}
	return l.Forms[id]
}

func (l Lexicon) Tag(id uint32) Tag {
	if int(id) >= len(l.Tags) {
		return TagUnknown
	}
	return l.Tags[id]
}

func (l Lexicon) IsStop(id uint32) bool        { return l.Tag(id) == TagStop }
func (l Lexicon) IsPunctuation(id uint32) bool { return l.Tag(id) == TagPunct }

func (l Lexicon) IsLocution(id uint32) bool {
	return int(id) < len(l.Locutions) && l.Locutions[id]
}
