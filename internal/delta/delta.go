// Package delta computes and applies structural differences between JSON documents.
//
// A Delta is an RFC 6902 JSON Patch. Compute produces one from two values that
// encode as JSON; Apply mutates a map in place so holders of the map observe the
// result without rebinding.
package delta

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/wI2L/jsondiff"
)

var (
	ErrNotObject = errors.New("delta: document is not a json object")
	ErrNilTarget = errors.New("delta: nil target")
)

// Delta is an opaque patch document. Only this package interprets its contents.
type Delta = json.RawMessage

// Clone returns a structurally independent copy of v built from its JSON form.
// Objects become map[string]any, arrays []any and numbers float64.
func Clone(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("delta: clone encode: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("delta: clone decode: %w", err)
	}
	return out, nil
}

// Compute returns the patch turning before into after. changed is false when the
// two values have identical JSON representations.
func Compute(before, after any) (d Delta, changed bool, err error) {
	patch, err := jsondiff.Compare(before, after)
	if err != nil {
		return nil, false, fmt.Errorf("delta: compare: %w", err)
	}
	if len(patch) == 0 {
		return nil, false, nil
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, false, fmt.Errorf("delta: encode patch: %w", err)
	}
	return raw, true, nil
}

// Apply patches target in place. On error target is left untouched.
// Pointers are resolved locally; an empty object key ("//x") is addressable.
func Apply(target map[string]any, d Delta) error {
	if target == nil {
		return ErrNilTarget
	}
	patch, err := jsonpatch.DecodePatch(d)
	if err != nil {
		return fmt.Errorf("delta: decode patch: %w", err)
	}
	doc, err := Clone(target)
	if err != nil {
		return fmt.Errorf("delta: copy target: %w", err)
	}
	for i, op := range patch {
		if doc, err = applyOperation(doc, op); err != nil {
			return fmt.Errorf("delta: apply patch op %d: %w", i, err)
		}
	}
	next, ok := doc.(map[string]any)
	if !ok {
		return ErrNotObject
	}
	Replace(target, next)
	return nil
}

// Replace clears target's own keys and assigns every key of src.
func Replace(target, src map[string]any) {
	clear(target)
	for k, v := range src {
		target[k] = v
	}
}

// DecodeObject decodes raw into a fresh map, rejecting non-object documents.
func DecodeObject(raw []byte) (map[string]any, error) {
	return decodeObject(raw)
}

func decodeObject(raw []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("delta: decode document: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}
