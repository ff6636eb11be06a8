package cooc

import apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"

// Window is the context kept around each pivot occurrence: Left positions
// before it and Right positions after it.
type Window struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

func (w Window) Validate() error {
	if w.Left < 0 || w.Right < 0 || w.Left+w.Right < 1 {
		return apperrors.Invalidf("left=%d right=%d is not enough context to extract co-occurrences", w.Left, w.Right)
	}
	return nil
}

// span returns the positions [from, to) covered around pos in a document of
// length n.
func (w Window) span(pos, n int) (from, to int) {
	return max(0, pos-w.Left), min(n, pos+w.Right+1)
}
