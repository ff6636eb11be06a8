package rail

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/filelock"
)

// Build writes the rail file for field from src, replacing any previous
// file atomically. Writers are serialized by an exclusive lock on a sibling
// lock file; when force is false and the file already carries the current
// generation once the lock is held, nothing is written.
func Build(ctx context.Context, src textindex.Source, field string, opts Options, force bool) error {
	opts = opts.withDefaults()
	if _, err := src.Lexicon(field); err != nil {
		return err
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return fmt.Errorf("creating rail directory: %w", err)
	}
	path := filepath.Join(opts.Dir, FileName(field))

	lock, err := filelock.Acquire(ctx, path+".lock", opts.LockTimeout)
	if err != nil {
		status := "error"
		if errors.Is(err, apperrors.ErrBuildTimeout) {
			status = "timeout"
		}
		opts.Metrics.RailBuild(field, status, 0)
		return fmt.Errorf("building rail for %s: %w", field, err)
	}
	defer lock.Release()

	// Read the generation before the document count: a document added in
	// between is then written under the older stamp and rebuilt later,
	// never silently missing under the newer one.
	gen := src.Generation()
	if !force {
		if stored, err := storedGeneration(path); err == nil && stored == gen {
			opts.Logger.Debug("rail already current", "field", field, "generation", gen)
			return nil
		}
	}

	start := time.Now()
	docs, positions, err := write(ctx, src, field, path, gen)
	if err != nil {
		opts.Metrics.RailBuild(field, "error", 0)
		return fmt.Errorf("building rail for %s: %w", field, err)
	}
	elapsed := time.Since(start)
	opts.Metrics.RailBuild(field, "ok", elapsed)
	opts.Logger.Info("rail built",
		"field", field,
		"generation", gen,
		"docs", docs,
		"positions", positions,
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

func storedGeneration(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	b := make([]byte, generationSize)
	if _, err := f.ReadAt(b, 0); err != nil {
		return 0, err
	}
	return readGeneration(b), nil
}

func write(ctx context.Context, src textindex.Source, field, path string, gen int64) (int, int64, error) {
	maxDoc := src.MaxDoc()
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, 0, fmt.Errorf("creating temp rail file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	headerSize := int64(headerInts+maxDoc) * 4
	if _, err := f.Seek(headerSize, 0); err != nil {
		return 0, 0, fmt.Errorf("seeking past header: %w", err)
	}
	w := bufio.NewWriterSize(f, 1<<16)
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(header[0:8], uint64(gen))
	binary.LittleEndian.PutUint32(header[8:12], uint32(maxDoc))

	var (
		rail      []uint32
		word      [4]byte
		positions int64
	)
	for docID := 0; docID < maxDoc; docID++ {
		if docID%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, 0, err
			}
		}
		rail = rail[:0]
		length := 0
		if src.Live(docID) {
			length, err = src.Document(field, docID, func(pos int, id uint32) {
				for len(rail) < pos {
					rail = append(rail, textindex.Hole)
				}
				rail = append(rail, id)
			})
			if err != nil {
				return 0, 0, fmt.Errorf("reading document %d: %w", docID, err)
			}
		}
		for len(rail) < length {
			rail = append(rail, textindex.Hole)
		}
		rail = rail[:length]
		binary.LittleEndian.PutUint32(header[(headerInts+docID)*4:], uint32(length))
		for _, id := range rail {
			binary.LittleEndian.PutUint32(word[:], id)
			w.Write(word[:])
		}
		binary.LittleEndian.PutUint32(word[:], Sentinel)
		if _, err := w.Write(word[:]); err != nil {
			return 0, 0, fmt.Errorf("writing document %d: %w", docID, err)
		}
		positions += int64(length)
	}
	if err := w.Flush(); err != nil {
		return 0, 0, fmt.Errorf("flushing rail payload: %w", err)
	}
	if _, err := f.WriteAt(header, 0); err != nil {
		return 0, 0, fmt.Errorf("writing rail header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, 0, fmt.Errorf("syncing rail file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, 0, fmt.Errorf("closing rail file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, 0, fmt.Errorf("renaming rail file: %w", err)
	}
	return maxDoc, positions, nil
}
