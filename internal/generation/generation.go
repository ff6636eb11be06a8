// Package generation announces and applies new text-index generations. The
// indexer publishes an Event once a snapshot file is in place; every query
// replica consumes it, loads the snapshot and swaps it under its rail
// registry.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex/segment"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/kafka"
)

// Event announces that the snapshot at Snapshot holds Generation.
type Event struct {
	Generation int64     `json:"generation"`
	Snapshot   string    `json:"snapshot"`
	Fields     []string  `json:"fields,omitempty"`
	At         time.Time `json:"at"`
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Publisher struct {
	producer EventPublisher
	logger   *slog.Logger
}

func NewPublisher(producer EventPublisher) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "generation-publisher"),
	}
}

// Announce publishes the generation stored in the snapshot file at path.
func (p *Publisher) Announce(ctx context.Context, path string, fields []string) (Event, error) {
	h, err := segment.ReadHeader(path)
	if err != nil {
		return Event{}, err
	}
	ev := Event{
		Generation: h.Generation,
		Snapshot:   path,
		Fields:     fields,
		At:         time.Now().UTC(),
	}
	err = p.producer.Publish(ctx, kafka.Event{
		Key:   strconv.FormatInt(ev.Generation, 10),
		Value: ev,
	})
	if err != nil {
		return Event{}, fmt.Errorf("announcing generation %d: %w", ev.Generation, err)
	}
	p.logger.Info("generation announced", "generation", ev.Generation, "snapshot", path)
	return ev, nil
}

// LoadSnapshot reads a snapshot file into a fresh in-memory index.
func LoadSnapshot(ctx context.Context, path string, specs ...textindex.FieldSpec) (*textindex.Index, error) {
	snap, err := segment.Read(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := textindex.Restore(ctx, snap, specs...)
	if err != nil {
		return nil, fmt.Errorf("restoring snapshot %s: %w", path, err)
	}
	return idx, nil
}
