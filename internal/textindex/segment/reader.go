package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// ReadHeader returns only the header, which is enough to learn the
// generation of a snapshot without loading it.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()
	b := make([]byte, HeaderSize)
	if _, err := f.ReadAt(b, 0); err != nil {
		return Header{}, fmt.Errorf("reading snapshot header: %w", err)
	}
	h := decodeHeader(b)
	if h.Magic != MagicBytes {
		return Header{}, fmt.Errorf("%w: bad magic bytes %x in %s", apperrors.ErrDataConsistency, h.Magic, path)
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported snapshot version %d", apperrors.ErrDataConsistency, h.Version)
	}
	return h, nil
}

// Read loads and verifies a snapshot file.
func Read(path string) (*textindex.Snapshot, error) {
	h, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	if err := h.checkLayout(int64(len(data))); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", apperrors.ErrDataConsistency, path, err)
	}
	end := h.DeletedOffset + h.DeletedSize
	fieldsData := data[h.FieldsOffset : h.FieldsOffset+h.FieldsSize]
	deletedData := data[h.DeletedOffset:end]

	crc := crc32.NewIEEE()
	crc.Write(fieldsData)
	crc.Write(deletedData)
	if want := binary.LittleEndian.Uint32(data[end : end+4]); crc.Sum32() != want {
		return nil, fmt.Errorf("%w: snapshot %s checksum mismatch", apperrors.ErrDataConsistency, path)
	}

	var fields []textindex.FieldSnapshot
	if err := json.Unmarshal(fieldsData, &fields); err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}
	deleted := roaring.New()
	if len(deletedData) > 0 {
		if err := deleted.UnmarshalBinary(deletedData); err != nil {
			return nil, fmt.Errorf("parsing deleted documents: %w", err)
		}
	}
	return &textindex.Snapshot{
		Generation: h.Generation,
		MaxDoc:     int(h.MaxDoc),
		Deleted:    deleted,
		Fields:     fields,
	}, nil
}

// checkLayout verifies that the sections the header points at follow one
// another inside a file of size bytes: header, fields, deleted, footer.
// Sizes are compared by subtraction so corrupt values cannot overflow.
func (h Header) checkLayout(size int64) error {
	switch {
	case h.FieldsOffset < 0 || h.FieldsSize < 0 || h.DeletedOffset < 0 || h.DeletedSize < 0:
		return fmt.Errorf("negative section offset or size")
	case h.FieldsOffset < int64(HeaderSize):
		return fmt.Errorf("fields section at %d overlaps the header", h.FieldsOffset)
	case size < int64(HeaderSize+FooterSize) || h.FieldsOffset > size-int64(FooterSize):
		return fmt.Errorf("file is truncated")
	case h.FieldsSize > size-int64(FooterSize)-h.FieldsOffset:
		return fmt.Errorf("fields section runs past the end of the file")
	case h.DeletedOffset < h.FieldsOffset+h.FieldsSize:
		return fmt.Errorf("deleted section at %d overlaps the fields section", h.DeletedOffset)
	case h.DeletedOffset > size-int64(FooterSize) || h.DeletedSize > size-int64(FooterSize)-h.DeletedOffset:
		return fmt.Errorf("deleted section runs past the end of the file")
	}
	return nil
}
