package delta

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/netsync/internal/testutil/testlog"
	"github.com/go-playground/assert/v2"
)

func mustClone(t *testing.T, v any) any {
	t.Helper()
	out, err := Clone(v)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	return out
}

func TestComputeNoChange(t *testing.T) {
	testlog.Start(t)

	state := map[string]any{"count": 0, "players": []any{"a", "b"}}
	d, changed, err := Compute(mustClone(t, state), mustClone(t, state))
	assert.Equal(t, err, nil)
	assert.Equal(t, changed, false)
	assert.Equal(t, len(d), 0)
}

func TestComputeApplyRoundTrip(t *testing.T) {
	testlog.Start(t)

	type mutation struct {
		name   string
		mutate func(map[string]any)
	}
	mutations := []mutation{
		{"scalar", func(s map[string]any) { s["count"] = 1 }},
		{"add key", func(s map[string]any) { s["winner"] = "alice" }},
		{"remove key", func(s map[string]any) { delete(s, "round") }},
		{"nested", func(s map[string]any) { s["table"].(map[string]any)["pot"] = 250 }},
		{"append", func(s map[string]any) { s["players"] = append(s["players"].([]any), "carol") }},
		{"shrink", func(s map[string]any) { s["players"] = []any{"bob"} }},
		{"type change", func(s map[string]any) { s["round"] = map[string]any{"n": 2} }},
		{"empty key nested", func(s map[string]any) { s[""].(map[string]any)["x"] = 2 }},
		{"empty key dropped", func(s map[string]any) { delete(s, "") }},
		{"empty key deep", func(s map[string]any) { s[""].(map[string]any)[""] = []any{"a"} }},
		{"escaped key", func(s map[string]any) { s["a/b~c"] = true }},
	}

	for _, m := range mutations {
		base := func() map[string]any {
			return map[string]any{
				"count":   0,
				"round":   "flop",
				"players": []any{"alice", "bob"},
				"table":   map[string]any{"pot": 100, "blinds": []any{5, 10}},
				"":        map[string]any{"x": 1},
			}
		}
		source := base()
		before := mustClone(t, source)
		m.mutate(source)
		after := mustClone(t, source)

		d, changed, err := Compute(before, after)
		if err != nil || !changed {
			t.Fatalf("%s: compute changed=%v err=%v", m.name, changed, err)
		}

		mirror := before.(map[string]any)
		if err := Apply(mirror, d); err != nil {
			t.Fatalf("%s: apply: %v", m.name, err)
		}
		if !reflect.DeepEqual(mirror, after) {
			t.Fatalf("%s: mirror=%v want %v", m.name, mirror, after)
		}
	}
}

func TestApplyResolvesPointers(t *testing.T) {
	testlog.Start(t)

	mirror := map[string]any{
		"":     map[string]any{"x": float64(1)},
		"a/b":  float64(1),
		"list": []any{"a", "c"},
	}
	err := Apply(mirror, Delta(`[
		{"op":"test","path":"//x","value":1},
		{"op":"replace","path":"//x","value":2},
		{"op":"add","path":"/list/1","value":"b"},
		{"op":"add","path":"/list/-","value":"d"},
		{"op":"copy","from":"/list","path":"/copy"},
		{"op":"move","from":"/a~1b","path":"/moved"},
		{"op":"remove","path":"/list/0"}
	]`))
	assert.Equal(t, err, nil)
	want := map[string]any{
		"":      map[string]any{"x": float64(2)},
		"moved": float64(1),
		"list":  []any{"b", "c", "d"},
		"copy":  []any{"a", "b", "c", "d"},
	}
	if !reflect.DeepEqual(mirror, want) {
		t.Fatalf("mirror=%v want %v", mirror, want)
	}

	err = Apply(mirror, Delta(`[{"op":"test","path":"//x","value":3}]`))
	assert.Equal(t, errors.Is(err, ErrTestFailed), true)
	err = Apply(mirror, Delta(`[{"op":"replace","path":"/list/7","value":0}]`))
	assert.Equal(t, errors.Is(err, ErrPathNotFound), true)
	err = Apply(mirror, Delta(`[{"op":"replace","path":"","value":[1]}]`))
	assert.Equal(t, errors.Is(err, ErrNotObject), true)
	assert.Equal(t, mirror["moved"], float64(1))
}

func TestApplyKeepsMapIdentity(t *testing.T) {
	testlog.Start(t)

	mirror := map[string]any{"count": float64(0)}
	alias := mirror
	err := Apply(mirror, Delta(`[{"op":"replace","path":"/count","value":1},{"op":"add","path":"/x","value":true}]`))
	assert.Equal(t, err, nil)
	assert.Equal(t, alias["count"], float64(1))
	assert.Equal(t, alias["x"], true)
}

func TestApplyFailureLeavesTargetUntouched(t *testing.T) {
	testlog.Start(t)

	mirror := map[string]any{"count": float64(0)}
	err := Apply(mirror, Delta(`[{"op":"remove","path":"/missing"}]`))
	if err == nil {
		t.Fatalf("expected apply error")
	}
	assert.Equal(t, mirror["count"], float64(0))
	assert.Equal(t, len(mirror), 1)

	if _, err := DecodeObject([]byte(`[1]`)); !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
	assert.Equal(t, errors.Is(Apply(nil, Delta(`[]`)), ErrNilTarget), true)
}

func TestCloneIsIndependent(t *testing.T) {
	testlog.Start(t)

	src := map[string]any{"nested": map[string]any{"v": 1}}
	cp := mustClone(t, src).(map[string]any)
	src["nested"].(map[string]any)["v"] = 2
	assert.Equal(t, cp["nested"].(map[string]any)["v"], float64(1))
}

func TestReplaceClearsStaleKeys(t *testing.T) {
	testlog.Start(t)

	target := map[string]any{"stale": 1, "count": 3}
	Replace(target, map[string]any{"count": 0})
	raw, _ := json.Marshal(target)
	assert.Equal(t, string(raw), `{"count":0}`)
}
