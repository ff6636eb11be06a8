package textindex

import (
	"context"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog.",
	"medium": `Lexical statistics count how often words occur and with which other words.
        A concordance lists every occurrence of a pivot within a window of context.
        Specificity scores compare the frequency of a word in a part of the corpus
        with its frequency in the whole, so that characteristic vocabulary stands out.`,
	"long": strings.Repeat(`Cooccurrence networks join words that appear close together. Each edge
        weighs how strongly two forms attract each other, measured with log-likelihood
        or pointwise mutual information. Paris and London, New York and Boston, state of
        the art and point of view are typical fixed expressions found in such corpora. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	a := DefaultAnalyzer()
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = a.Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	a := DefaultAnalyzer()
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = a.Tokenize(text)
		}
	})
}

func BenchmarkAddDocument(b *testing.B) {
	idx := NewIndex(FieldSpec{Name: "text", Positions: true, Analyzer: DefaultAnalyzer()})
	doc := map[string]string{"text": sampleTexts["medium"]}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.AddDocument(doc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSnapshotRestore(b *testing.B) {
	idx := NewIndex(FieldSpec{Name: "text", Positions: true, Analyzer: DefaultAnalyzer()})
	for i := 0; i < 200; i++ {
		if _, err := idx.AddDocument(map[string]string{"text": sampleTexts["long"]}); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Restore(context.Background(), idx.Snapshot()); err != nil {
			b.Fatal(err)
		}
	}
}
