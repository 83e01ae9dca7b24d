package replica

import (
	"encoding/json"
	"fmt"

	"github.com/danmuck/netsync/internal/delta"
)

// Tracker diffs an authoritative state value against the snapshot of the previous tick.
// It reads the source but never writes it.
type Tracker struct {
	source   any
	snapshot any
	ticks    uint64
}

// NewTracker takes the initial snapshot of source, which must encode as a JSON object.
func NewTracker(source any) (*Tracker, error) {
	snap, err := delta.Clone(source)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.(map[string]any); !ok {
		return nil, fmt.Errorf("replica: tracker source: %w", delta.ErrNotObject)
	}
	return &Tracker{source: source, snapshot: snap}, nil
}

// Next snapshots the source, diffs it against the previous snapshot and makes the
// fresh copy the baseline for the following call. On error the baseline is kept.
func (t *Tracker) Next() (delta.Delta, bool, error) {
	fresh, err := delta.Clone(t.source)
	if err != nil {
		return nil, false, err
	}
	d, changed, err := delta.Compute(t.snapshot, fresh)
	if err != nil {
		return nil, false, err
	}
	t.snapshot = fresh
	t.ticks++
	return d, changed, nil
}

// Baseline serializes the current snapshot.
func (t *Tracker) Baseline() (json.RawMessage, error) {
	return json.Marshal(t.snapshot)
}

// Ticks returns how many times Next completed.
func (t *Tracker) Ticks() uint64 {
	return t.ticks
}
