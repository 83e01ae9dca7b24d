package replica

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danmuck/netsync/internal/delta"
)

var (
	ErrNotSynced = errors.New("replica: mirror has not received fullstate")
	ErrDesynced  = errors.New("replica: diff did not apply, mirror needs fullstate")
)

// Status is the follower mirror state machine position.
type Status int

const (
	StatusUninitialized Status = iota
	StatusSynced
)

func (s Status) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	default:
		return "uninitialized"
	}
}

// Mirror is the follower copy of the authoritative state. The map handed to
// NewMirror is the one mutated for the lifetime of the mirror.
type Mirror struct {
	state     map[string]any
	status    Status
	version   uint64
	discarded uint64
}

func NewMirror(state map[string]any) *Mirror {
	if state == nil {
		state = make(map[string]any)
	}
	return &Mirror{state: state}
}

func (m *Mirror) State() map[string]any {
	return m.state
}

func (m *Mirror) Status() Status {
	return m.status
}

// Version counts every successfully applied fullstate or diff.
func (m *Mirror) Version() uint64 {
	return m.version
}

// Discarded counts diffs dropped because no fullstate had been applied yet.
func (m *Mirror) Discarded() uint64 {
	return m.discarded
}

// SetFull replaces the mirror contents key for key and marks it synced.
func (m *Mirror) SetFull(raw json.RawMessage) error {
	obj, err := delta.DecodeObject(raw)
	if err != nil {
		return err
	}
	delta.Replace(m.state, obj)
	m.status = StatusSynced
	m.version++
	return nil
}

// Patch applies d. Diffs arriving before the first fullstate are dropped with
// ErrNotSynced. A diff that fails to apply leaves the contents untouched and
// returns the mirror to uninitialized, so later diffs are dropped until the next
// fullstate.
func (m *Mirror) Patch(d delta.Delta) error {
	if m.status != StatusSynced {
		m.discarded++
		return ErrNotSynced
	}
	if err := delta.Apply(m.state, d); err != nil {
		m.status = StatusUninitialized
		return fmt.Errorf("%w: %w", ErrDesynced, err)
	}
	m.version++
	return nil
}

// Reset returns the mirror to uninitialized, keeping its last contents readable.
func (m *Mirror) Reset() {
	m.status = StatusUninitialized
}
