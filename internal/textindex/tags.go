package textindex

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// Tag is the coarse lexical category the tokenizer assigns to a form.
type Tag uint8

const (
	TagUnknown Tag = iota
	TagWord
	TagName
	TagNum
	TagStop
	TagPunct
	numTags
)

var tagNames = [...]string{
	TagUnknown: "unknown",
	TagWord:    "word",
	TagName:    "name",
	TagNum:     "num",
	TagStop:    "stop",
	TagPunct:   "punct",
}

func (t Tag) String() string {
	if t < numTags {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// ParseTag is the inverse of Tag.String.
func ParseTag(s string) (Tag, error) {
	for i, name := range tagNames {
		if name == s {
			return Tag(i), nil
		}
	}
	return TagUnknown, fmt.Errorf("%w: unknown tag %q", apperrors.ErrInvalidInput, s)
}

// TagFilter selects co-occurrents by tag. The zero value accepts every tag.
// NoStop additionally drops stop words and OnlyLocutions keeps multi-word
// forms only; both are evaluated against the dictionary, not the tag set.
type TagFilter struct {
	mask          uint32
	NoStop        bool
	OnlyLocutions bool
}

func NewTagFilter(tags ...Tag) *TagFilter {
	f := &TagFilter{}
	for _, t := range tags {
		f.mask |= 1 << t
	}
	return f
}

// Accept reports whether a form with this tag passes the tag set.
func (f *TagFilter) Accept(t Tag) bool {
	if f == nil || f.mask == 0 {
		return true
	}
	return f.mask&(1<<t) != 0
}

// Admits applies the whole filter, flags included, to a term of lex.
func (f *TagFilter) Admits(lex Lexicon, id uint32) bool {
	if f == nil {
		return true
	}
	switch {
	case f.OnlyLocutions && !lex.IsLocution(id):
		return false
	case f.NoStop && lex.IsStop(id):
		return false
	}
	return f.Accept(lex.Tag(id))
}

// Restricts reports whether the filter can reject anything at all.
func (f *TagFilter) Restricts() bool {
	return f != nil && (f.mask != 0 || f.NoStop || f.OnlyLocutions)
}

// ParseTagFilter reads a comma separated list such as "word,name,nostop".
// The pseudo tags "nostop" and "locutions" set the matching flags.
func ParseTagFilter(s string) (*TagFilter, error) {
	f := NewTagFilter()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		switch part {
		case "":
		case "nostop":
			f.NoStop = true
		case "locutions":
			f.OnlyLocutions = true
		default:
			t, err := ParseTag(part)
			if err != nil {
				return nil, err
			}
			f.mask |= 1 << t
		}
	}
	return f, nil
}
