package segment

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

func buildIndex(t *testing.T) *textindex.Index {
	t.Helper()
	idx := textindex.NewIndex(textindex.FieldSpec{Name: "text", Positions: true, Analyzer: textindex.DefaultAnalyzer()})
	for _, text := range []string{"The cat sat on the mat.", "A dog sat, of course.", "Cats and dogs"} {
		_, err := idx.AddDocument(map[string]string{"text": text})
		require.NoError(t, err)
	}
	require.NoError(t, idx.Delete(2))
	return idx
}

func TestWriteReadRestoresIndex(t *testing.T) {
	idx := buildIndex(t)
	path := filepath.Join(t.TempDir(), "snap", "index.snap")

	require.NoError(t, Write(path, idx.Snapshot()))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, idx.Generation(), h.Generation)
	assert.Equal(t, uint32(3), h.MaxDoc)

	snap, err := Read(path)
	require.NoError(t, err)
	restored, err := textindex.Restore(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, idx.Generation(), restored.Generation())
	assert.False(t, restored.Live(2))
	want, _ := idx.Lexicon("text")
	got, err := restored.Lexicon("text")
	require.NoError(t, err)
	assert.Equal(t, want.Forms, got.Forms)
	assert.Equal(t, want.Tags, got.Tags)
}

func TestReadDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snap")
	require.NoError(t, Write(path, buildIndex(t).Snapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[HeaderSize+2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Read(path)
	assert.ErrorIs(t, err, apperrors.ErrDataConsistency)
}

func TestReadRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snap")
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize), 0o644))

	_, err := Read(path)
	assert.ErrorIs(t, err, apperrors.ErrDataConsistency)
}

func TestReadRejectsBadSectionLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snap")
	require.NoError(t, Write(path, buildIndex(t).Snapshot()))
	good, err := ReadHeader(path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	size := int64(len(data))

	tests := map[string]func(h *Header){
		"negative fields offset":  func(h *Header) { h.FieldsOffset, h.FieldsSize = -8, 4 },
		"negative fields size":    func(h *Header) { h.FieldsSize = -1 },
		"negative deleted offset": func(h *Header) { h.DeletedOffset = -16 },
		"negative deleted size":   func(h *Header) { h.DeletedSize = -3 },
		"fields inside header":    func(h *Header) { h.FieldsOffset = 8 },
		"fields past end":         func(h *Header) { h.FieldsSize = size },
		"huge fields size":        func(h *Header) { h.FieldsSize = math.MaxInt64 },
		"deleted overlaps fields": func(h *Header) { h.DeletedOffset = h.FieldsOffset },
		"deleted past end":        func(h *Header) { h.DeletedOffset = size },
		"huge deleted size":       func(h *Header) { h.DeletedSize = math.MaxInt64 - 1 },
	}
	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			h := good
			corrupt(&h)
			bad := append(h.encode(), data[HeaderSize:]...)
			p := filepath.Join(t.TempDir(), "bad.snap")
			require.NoError(t, os.WriteFile(p, bad, 0o644))

			var readErr error
			require.NotPanics(t, func() { _, readErr = Read(p) })
			assert.ErrorIs(t, readErr, apperrors.ErrDataConsistency)
		})
	}
}

func TestCheckLayoutAcceptsWrittenFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snap")
	require.NoError(t, Write(path, buildIndex(t).Snapshot()))
	h, err := ReadHeader(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NoError(t, h.checkLayout(info.Size()))
	assert.Error(t, h.checkLayout(info.Size()-1))
}
