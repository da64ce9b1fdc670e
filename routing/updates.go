package routing

import (
	"errors"
	"fmt"
	"sync"

	"ilpswitch/ilp"
)

// Update is a single replication delta from a route-discovery peer. A nil
// Route withdraws the prefix.
type Update struct {
	Epoch  uint64
	Prefix ilp.Address
	Route  *Route
}

// Batch is a contiguous range of updates covering epochs [FromEpoch,
// ToEpoch). The producing peer numbers its deltas; a gap means this node
// missed advertisements and must resynchronize.
type Batch struct {
	FromEpoch uint64
	ToEpoch   uint64
	Updates   []Update
}

// ErrEpochGap indicates the batch does not continue from the epoch this node
// last applied; the caller must request a full resynchronization.
var ErrEpochGap = errors.New("routing: update batch leaves an epoch gap")

// UpdateLog ingests replication deltas into a Table, tracking the epoch
// high-water mark so gaps are detected instead of silently applied.
type UpdateLog struct {
	mu    sync.Mutex
	table *Table
	epoch uint64
}

// NewUpdateLog wraps table for delta ingestion starting at epoch zero.
func NewUpdateLog(table *Table) *UpdateLog {
	return &UpdateLog{table: table}
}

// Epoch returns the next epoch this log expects.
func (l *UpdateLog) Epoch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

// Apply ingests a batch. Batches that start beyond the current epoch fail
// with ErrEpochGap and leave the table untouched; batches that end at or
// before the current epoch are stale and ignored.
func (l *UpdateLog) Apply(batch Batch) error {
	if batch.ToEpoch < batch.FromEpoch {
		return fmt.Errorf("routing: malformed batch: to epoch %d before from epoch %d", batch.ToEpoch, batch.FromEpoch)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if batch.FromEpoch > l.epoch {
		return fmt.Errorf("%w: have %d, batch starts at %d", ErrEpochGap, l.epoch, batch.FromEpoch)
	}
	if batch.ToEpoch <= l.epoch {
		return nil
	}
	for _, update := range batch.Updates {
		if update.Epoch < l.epoch {
			continue
		}
		if update.Route == nil {
			l.table.RemoveRoute(update.Prefix)
			continue
		}
		l.table.AddRoute(update.Route)
	}
	l.epoch = batch.ToEpoch
	return nil
}

// Resync clears the table and rewinds the epoch so the peer can replay its
// full table from scratch.
func (l *UpdateLog) Resync() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.table.Reset()
	l.epoch = 0
}
