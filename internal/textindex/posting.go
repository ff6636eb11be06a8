package textindex

// Posting lists the positions of one term in one document.
type Posting struct {
	DocID     int   `json:"d"`
	Frequency int   `json:"f"`
	Positions []int `json:"p"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

// FieldStats are whole-index counts for a field, computed over live
// documents only. Occs and Docs are indexed by term id.
type FieldStats struct {
	Generation int64
	Occs       []int64
	Docs       []int32
	TotalOccs  int64
	TotalDocs  int
	// MaxOccs is the largest Occs value, used to size score ranges.
	MaxOccs int64
}

// Occurrences returns the field-wide count for id, or 0 when out of range.
func (s *FieldStats) Occurrences(id uint32) int64 {
	if int(id) >= len(s.Occs) {
		return 0
	}
	return s.Occs[id]
}

func (s *FieldStats) DocFreq(id uint32) int32 {
	if int(id) >= len(s.Docs) {
		return 0
	}
	return s.Docs[id]
}
