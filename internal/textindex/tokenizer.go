package textindex

import (
	"strings"
	"unicode"
)

var defaultStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {}, "she": {},
	"her": {}, "his": {}, "him": {}, "we": {}, "you": {}, "our": {},
}

var defaultLocutions = map[string]struct{}{
	"of course": {}, "as well": {}, "so that": {}, "in fact": {},
	"at least": {}, "even though": {}, "rather than": {}, "such as": {},
}

// Token is one indexed form and its position in the field. Positions are
// dense except where a word was too short to index, which leaves a hole.
type Token struct {
	Form     string
	Position int
	Tag      Tag
	Locution bool
}

// Analyzer turns field text into positioned, tagged tokens. Stop words and
// punctuation are kept and tagged so later stages can filter them.
type Analyzer struct {
	// Stem applies the suffix stemmer to plain words.
	Stem bool
	// MinLength is the shortest word indexed; shorter words become holes.
	MinLength int
	StopWords map[string]struct{}
	// Locutions lists two-word forms merged into a single token.
	Locutions map[string]struct{}
}

func DefaultAnalyzer() Analyzer {
	return Analyzer{
		MinLength: 2,
		StopWords: defaultStopWords,
		Locutions: defaultLocutions,
	}
}

// Tokenize runs the default analyzer.
func Tokenize(text string) []Token {
	return DefaultAnalyzer().Tokenize(text)
}

type rawWord struct {
	text      string
	punct     bool
	capital   bool
	sentStart bool
}

func (a Analyzer) Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for i := 0; i < len(words); i++ {
		w := words[i]
		if w.punct {
			tokens = append(tokens, Token{Form: w.text, Position: pos, Tag: TagPunct})
			pos++
			continue
		}
		lower := strings.ToLower(w.text)
		if i+1 < len(words) && !words[i+1].punct && a.Locutions != nil {
			pair := lower + " " + strings.ToLower(words[i+1].text)
			if _, ok := a.Locutions[pair]; ok {
				tokens = append(tokens, Token{Form: pair, Position: pos, Tag: TagStop, Locution: true})
				pos++
				i++
				continue
			}
		}
		if len([]rune(lower)) < a.MinLength {
			pos++
			continue
		}
		tok := Token{Form: lower, Position: pos, Tag: TagWord}
		switch {
		case isNumber(lower):
			tok.Tag = TagNum
		case a.isStop(lower):
			tok.Tag = TagStop
		case w.capital && !w.sentStart:
			tok.Tag = TagName
		case a.Stem:
			tok.Form = stem(lower)
		}
		tokens = append(tokens, tok)
		pos++
	}
	return tokens
}

func (a Analyzer) isStop(word string) bool {
	stops := a.StopWords
	if stops == nil {
		stops = defaultStopWords
	}
	_, ok := stops[word]
	return ok
}

// split cuts text into words and sentence punctuation. Any other symbol is a
// plain separator.
func split(text string) []rawWord {
	var (
		words     []rawWord
		b         strings.Builder
		sentStart = true
	)
	flush := func() {
		if b.Len() == 0 {
			return
		}
		s := b.String()
		first := []rune(s)[0]
		words = append(words, rawWord{text: s, capital: unicode.IsUpper(first), sentStart: sentStart})
		sentStart = false
		b.Reset()
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case isPunct(r):
			flush()
			words = append(words, rawWord{text: string(r), punct: true})
			if r == '.' || r == '!' || r == '?' {
				sentStart = true
			}
		default:
			flush()
		}
	}
	flush()
	return words
}

func isPunct(r rune) bool {
	return strings.ContainsRune(".,;:!?", r)
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	suffixes := []struct {
		suffix      string
		replacement string
		minLen      int
	}{
		{"ational", "ate", 2},
		{"tional", "tion", 2},
		{"encies", "ence", 2},
		{"ances", "ance", 2},
		{"ments", "ment", 2},
		{"izing", "ize", 2},
		{"ating", "ate", 2},
		{"iness", "y", 2},
		{"ously", "ous", 2},
		{"ively", "ive", 2},
		{"eness", "ene", 2},
		{"tion", "t", 3},
		{"sion", "s", 3},
		{"ying", "y", 2},
		{"ies", "y", 2},
		{"ing", "", 3},
		{"ers", "er", 2},
		{"ed", "", 3},
		{"ly", "", 3},
		{"es", "", 3},
		{"ss", "ss", 2},
		{"s", "", 3},
	}
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}

// Sequence lays pre-split forms out at consecutive positions, tagging them
// the way Tokenize would. An empty form leaves a hole.
func (a Analyzer) Sequence(forms ...string) []Token {
	tokens := make([]Token, 0, len(forms))
	for pos, form := range forms {
		if form == "" {
			continue
		}
		tok := Token{Form: form, Position: pos, Tag: TagWord}
		switch {
		case len(form) == 1 && isPunct([]rune(form)[0]):
			tok.Tag = TagPunct
		case isNumber(form):
			tok.Tag = TagNum
		case a.isStop(form):
			tok.Tag = TagStop
		}
		if _, ok := a.Locutions[form]; ok {
			tok.Tag, tok.Locution = TagStop, true
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
