package replica

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/netsync/internal/delta"
	"github.com/danmuck/netsync/internal/testutil/testlog"
)

type tableState struct {
	Count   int            `json:"count"`
	Players []string       `json:"players"`
	Seats   map[string]int `json:"seats"`
}

func TestTrackerNoMutationProducesNoChange(t *testing.T) {
	testlog.Start(t)

	state := &tableState{Count: 0, Players: []string{"alice"}}
	tr, err := NewTracker(state)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	for i := 0; i < 5; i++ {
		d, changed, err := tr.Next()
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if changed || len(d) != 0 {
			t.Fatalf("tick %d: expected no change, got %s", i, d)
		}
	}
	if tr.Ticks() != 5 {
		t.Fatalf("unexpected tick count: %d", tr.Ticks())
	}
}

func TestTrackerDiffsAreChainwise(t *testing.T) {
	testlog.Start(t)

	state := map[string]any{"count": 0}
	tr, err := NewTracker(state)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	state["count"] = 1
	d, changed, err := tr.Next()
	if err != nil || !changed {
		t.Fatalf("expected diff, changed=%v err=%v", changed, err)
	}
	if string(d) != `[{"op":"replace","path":"/count","value":1}]` {
		t.Fatalf("unexpected diff: %s", d)
	}

	_, changed, err = tr.Next()
	if err != nil || changed {
		t.Fatalf("second tick should compare against first tick, changed=%v err=%v", changed, err)
	}

	state["count"] = 2
	d, _, _ = tr.Next()
	if string(d) != `[{"op":"replace","path":"/count","value":2}]` {
		t.Fatalf("unexpected diff: %s", d)
	}
}

func TestTrackerRejectsNonObjectSource(t *testing.T) {
	testlog.Start(t)

	if _, err := NewTracker([]int{1, 2}); !errors.Is(err, delta.ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}

func TestTrackerSourceIsNeverMutated(t *testing.T) {
	testlog.Start(t)

	state := &tableState{Count: 3, Seats: map[string]int{"alice": 1}}
	tr, err := NewTracker(state)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	state.Seats["bob"] = 2
	if _, _, err := tr.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if state.Count != 3 || len(state.Seats) != 2 {
		t.Fatalf("source mutated: %+v", state)
	}
}

func TestMirrorStateMachine(t *testing.T) {
	testlog.Start(t)

	local := map[string]any{"leftover": true}
	m := NewMirror(local)
	if m.Status() != StatusUninitialized {
		t.Fatalf("unexpected initial status: %s", m.Status())
	}

	err := m.Patch(delta.Delta(`[{"op":"add","path":"/count","value":9}]`))
	if !errors.Is(err, ErrNotSynced) {
		t.Fatalf("expected ErrNotSynced, got %v", err)
	}
	if m.Discarded() != 1 || m.Version() != 0 {
		t.Fatalf("unexpected counters discarded=%d version=%d", m.Discarded(), m.Version())
	}

	if err := m.SetFull([]byte(`{"count":0}`)); err != nil {
		t.Fatalf("set full: %v", err)
	}
	if m.Status() != StatusSynced {
		t.Fatalf("expected synced, got %s", m.Status())
	}
	if _, ok := local["leftover"]; ok {
		t.Fatalf("fullstate must clear existing keys: %v", local)
	}
	if local["count"] != float64(0) {
		t.Fatalf("unexpected mirror: %v", local)
	}

	if err := m.Patch(delta.Delta(`[{"op":"replace","path":"/count","value":1}]`)); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if local["count"] != float64(1) {
		t.Fatalf("patch not visible through original reference: %v", local)
	}

	m.Reset()
	if m.Status() != StatusUninitialized || local["count"] != float64(1) {
		t.Fatalf("reset must keep contents: status=%s state=%v", m.Status(), local)
	}
	if err := m.SetFull([]byte(`{"count":5,"fresh":"yes"}`)); err != nil {
		t.Fatalf("second fullstate: %v", err)
	}
	if local["count"] != float64(5) || local["fresh"] != "yes" || m.Version() != 3 {
		t.Fatalf("second fullstate must win: %v version=%d", local, m.Version())
	}
}

func TestMirrorRejectsNonObjectFullState(t *testing.T) {
	testlog.Start(t)

	m := NewMirror(nil)
	if err := m.SetFull([]byte(`[1]`)); !errors.Is(err, delta.ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
	if m.Status() != StatusUninitialized {
		t.Fatalf("failed fullstate must not sync the mirror")
	}
}

func TestLateJoinerConverges(t *testing.T) {
	testlog.Start(t)

	state := &tableState{Seats: map[string]int{}}
	tr, err := NewTracker(state)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	early := NewMirror(nil)
	base, _ := tr.Baseline()
	if err := early.SetFull(base); err != nil {
		t.Fatalf("early fullstate: %v", err)
	}

	var late *Mirror
	names := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	for tick, name := range names {
		state.Count++
		state.Players = append(state.Players, name)
		state.Seats[name] = tick
		if tick%2 == 1 {
			delete(state.Seats, names[tick-1])
		}

		d, changed, err := tr.Next()
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if changed {
			if err := early.Patch(d); err != nil {
				t.Fatalf("tick %d early patch: %v", tick, err)
			}
			if late != nil {
				if err := late.Patch(d); err != nil {
					t.Fatalf("tick %d late patch: %v", tick, err)
				}
			}
		}
		if tick == 2 {
			late = NewMirror(nil)
			base, _ := tr.Baseline()
			if err := late.SetFull(base); err != nil {
				t.Fatalf("late fullstate: %v", err)
			}
		}

		want, _ := delta.Clone(state)
		if !reflect.DeepEqual(early.State(), want) {
			t.Fatalf("tick %d early mirror=%v want %v", tick, early.State(), want)
		}
		if late != nil && !reflect.DeepEqual(late.State(), want) {
			t.Fatalf("tick %d late mirror=%v want %v", tick, late.State(), want)
		}
	}
}

func TestMirrorFailedDiffRequiresFullState(t *testing.T) {
	testlog.Start(t)

	local := map[string]any{}
	m := NewMirror(local)
	if err := m.SetFull([]byte(`{"n":1}`)); err != nil {
		t.Fatalf("set full: %v", err)
	}

	err := m.Patch(delta.Delta(`[{"op":"replace","path":"/n","value":2},{"op":"remove","path":"/missing"}]`))
	if !errors.Is(err, ErrDesynced) {
		t.Fatalf("expected ErrDesynced, got %v", err)
	}
	if m.Status() != StatusUninitialized || local["n"] != float64(1) {
		t.Fatalf("failed diff must desync and keep contents: status=%s state=%v", m.Status(), local)
	}

	err = m.Patch(delta.Delta(`[{"op":"replace","path":"/n","value":3}]`))
	if !errors.Is(err, ErrNotSynced) || local["n"] != float64(1) {
		t.Fatalf("diffs after a failure must be dropped, err=%v state=%v", err, local)
	}

	if err := m.SetFull([]byte(`{"n":3}`)); err != nil || m.Status() != StatusSynced {
		t.Fatalf("fullstate must resync, err=%v status=%s", err, m.Status())
	}
}

func TestMirrorFollowsEmptyKeyedState(t *testing.T) {
	testlog.Start(t)

	state := map[string]any{"": map[string]any{"x": 1}, "n": 1}
	tr, err := NewTracker(state)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	m := NewMirror(nil)
	base, _ := tr.Baseline()
	if err := m.SetFull(base); err != nil {
		t.Fatalf("fullstate: %v", err)
	}

	steps := []func(){
		func() { state[""].(map[string]any)["x"] = 2; state["n"] = 2 },
		func() { state[""].(map[string]any)[""] = []any{"a", "b"} },
		func() { state["n"] = 3 },
		func() { delete(state, "") },
		func() { state[""] = "back" },
	}
	for i, step := range steps {
		step()
		d, changed, err := tr.Next()
		if err != nil || !changed {
			t.Fatalf("step %d: changed=%v err=%v", i, changed, err)
		}
		if err := m.Patch(d); err != nil {
			t.Fatalf("step %d patch %s: %v", i, d, err)
		}
		want, _ := delta.Clone(state)
		if !reflect.DeepEqual(m.State(), want) {
			t.Fatalf("step %d: mirror=%v want %v", i, m.State(), want)
		}
	}
}
