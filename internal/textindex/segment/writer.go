// Package segment persists text-index snapshots as single files so a service
// can restart on exactly the same term ids and generation.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
)

// MagicBytes identifies a valid snapshot file ("LXSN").
const (
	MagicBytes    uint32 = 0x4C58534E
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 8
)

// Header is the 64-byte header written at the start of every snapshot.
type Header struct {
	Magic         uint32
	Version       uint32
	FieldCount    uint32
	MaxDoc        uint32
	Generation    int64
	CreatedAt     int64
	FieldsOffset  int64
	FieldsSize    int64
	DeletedOffset int64
	DeletedSize   int64
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.FieldCount)
	binary.LittleEndian.PutUint32(b[12:16], h.MaxDoc)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.Generation))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.FieldsOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.FieldsSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DeletedOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DeletedSize))
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:         binary.LittleEndian.Uint32(b[0:4]),
		Version:       binary.LittleEndian.Uint32(b[4:8]),
		FieldCount:    binary.LittleEndian.Uint32(b[8:12]),
		MaxDoc:        binary.LittleEndian.Uint32(b[12:16]),
		Generation:    int64(binary.LittleEndian.Uint64(b[16:24])),
		CreatedAt:     int64(binary.LittleEndian.Uint64(b[24:32])),
		FieldsOffset:  int64(binary.LittleEndian.Uint64(b[32:40])),
		FieldsSize:    int64(binary.LittleEndian.Uint64(b[40:48])),
		DeletedOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		DeletedSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

// Write atomically replaces the snapshot at path. It writes to a .tmp file
// first and renames on success.
func Write(path string, snap *textindex.Snapshot) error {
	fieldsData, err := json.Marshal(snap.Fields)
	if err != nil {
		return fmt.Errorf("marshaling fields: %w", err)
	}
	var deletedData []byte
	if snap.Deleted != nil {
		if deletedData, err = snap.Deleted.ToBytes(); err != nil {
			return fmt.Errorf("serializing deleted documents: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()

	header := Header{
		Magic:         MagicBytes,
		Version:       FormatVersion,
		FieldCount:    uint32(len(snap.Fields)),
		MaxDoc:        uint32(snap.MaxDoc),
		Generation:    snap.Generation,
		CreatedAt:     time.Now().Unix(),
		FieldsOffset:  int64(HeaderSize),
		FieldsSize:    int64(len(fieldsData)),
		DeletedOffset: int64(HeaderSize + len(fieldsData)),
		DeletedSize:   int64(len(deletedData)),
	}
	if _, err := f.Write(header.encode()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(fieldsData); err != nil {
		return fmt.Errorf("writing fields: %w", err)
	}
	if _, err := f.Write(deletedData); err != nil {
		return fmt.Errorf("writing deleted documents: %w", err)
	}
	crc := crc32.NewIEEE()
	crc.Write(fieldsData)
	crc.Write(deletedData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}
