// Package rail stores every document of a field as a flat array of term ids
// by position, so windowed statistics can be computed without going back to
// the text index.
//
// File layout, all integers little-endian:
//
//	int64  generation
//	int32  document count n
//	n × int32  document lengths in positions
//	per document: length × int32 term id, then int32 -1
//
// Term id 0 marks a hole. The -1 sentinel separates documents so a scan can
// never run from one document into the next.
package rail

import (
	"encoding/binary"
	"unsafe"
)

const (
	// Sentinel terminates each document's run of term ids.
	Sentinel uint32 = 0xFFFFFFFF

	generationSize = 8
	// headerInts is the number of int32 slots before the length table:
	// two for the generation and one for the document count.
	headerInts = 3
)

// FileName is the rail file for a field inside a data directory.
func FileName(field string) string {
	return field + ".rail"
}

var hostLittleEndian = func() bool {
	var probe uint16 = 1
	return *(*byte)(unsafe.Pointer(&probe)) == 1
}()

// asInts views data as little-endian uint32 slots. On little-endian hosts the
// view aliases data; elsewhere it is a decoded copy.
func asInts(data []byte) []uint32 {
	n := len(data) / 4
	if n == 0 {
		return nil
	}
	if hostLittleEndian {
		return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), n)
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

func readGeneration(data []byte) int64 {
	return int64(binary.LittleEndian.Uint64(data[:generationSize]))
}
