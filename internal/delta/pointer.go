package delta

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

var (
	ErrInvalidPointer = errors.New("delta: invalid json pointer")
	ErrPathNotFound   = errors.New("delta: path not found")
	ErrTestFailed     = errors.New("delta: test operation failed")
)

// parsePointer splits an RFC 6901 pointer into unescaped reference tokens.
// The empty pointer addresses the whole document. Empty tokens are valid keys.
func parsePointer(ptr string) ([]string, error) {
	if ptr == "" {
		return nil, nil
	}
	if !strings.HasPrefix(ptr, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPointer, ptr)
	}
	parts := strings.Split(ptr[1:], "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
	}
	return parts, nil
}

func arrayIndex(token string, n int, allowEnd bool) (int, error) {
	if allowEnd && token == "-" {
		return n, nil
	}
	i, err := strconv.Atoi(token)
	if err != nil || i < 0 || strconv.Itoa(i) != token {
		return 0, fmt.Errorf("%w: array index %q", ErrInvalidPointer, token)
	}
	limit := n - 1
	if allowEnd {
		limit = n
	}
	if i > limit {
		return 0, fmt.Errorf("%w: index %d out of range", ErrPathNotFound, i)
	}
	return i, nil
}

func child(node any, token string) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		v, ok := n[token]
		if !ok {
			return nil, fmt.Errorf("%w: key %q", ErrPathNotFound, token)
		}
		return v, nil
	case []any:
		i, err := arrayIndex(token, len(n), false)
		if err != nil {
			return nil, err
		}
		return n[i], nil
	default:
		return nil, fmt.Errorf("%w: %q is not a container", ErrPathNotFound, token)
	}
}

func lookup(doc any, tokens []string) (any, error) {
	node := doc
	for _, tok := range tokens {
		next, err := child(node, tok)
		if err != nil {
			return nil, err
		}
		node = next
	}
	return node, nil
}

// edit applies leaf to the container addressed by tokens minus the last token
// and stores the possibly reallocated container back into its parent.
func edit(node any, tokens []string, leaf func(container any, token string) (any, error)) (any, error) {
	if len(tokens) == 1 {
		return leaf(node, tokens[0])
	}
	next, err := child(node, tokens[0])
	if err != nil {
		return nil, err
	}
	updated, err := edit(next, tokens[1:], leaf)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case map[string]any:
		n[tokens[0]] = updated
	case []any:
		i, _ := arrayIndex(tokens[0], len(n), false)
		n[i] = updated
	}
	return node, nil
}

func addValue(doc any, tokens []string, value any) (any, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	return edit(doc, tokens, func(container any, token string) (any, error) {
		switch n := container.(type) {
		case map[string]any:
			n[token] = value
			return n, nil
		case []any:
			i, err := arrayIndex(token, len(n), true)
			if err != nil {
				return nil, err
			}
			n = append(n, nil)
			copy(n[i+1:], n[i:])
			n[i] = value
			return n, nil
		default:
			return nil, fmt.Errorf("%w: add into non-container at %q", ErrPathNotFound, token)
		}
	})
}

func removeValue(doc any, tokens []string) (any, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: cannot remove the document root", ErrInvalidPointer)
	}
	return edit(doc, tokens, func(container any, token string) (any, error) {
		switch n := container.(type) {
		case map[string]any:
			if _, ok := n[token]; !ok {
				return nil, fmt.Errorf("%w: key %q", ErrPathNotFound, token)
			}
			delete(n, token)
			return n, nil
		case []any:
			i, err := arrayIndex(token, len(n), false)
			if err != nil {
				return nil, err
			}
			return append(n[:i], n[i+1:]...), nil
		default:
			return nil, fmt.Errorf("%w: remove from non-container at %q", ErrPathNotFound, token)
		}
	})
}

func replaceValue(doc any, tokens []string, value any) (any, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	return edit(doc, tokens, func(container any, token string) (any, error) {
		switch n := container.(type) {
		case map[string]any:
			if _, ok := n[token]; !ok {
				return nil, fmt.Errorf("%w: key %q", ErrPathNotFound, token)
			}
			n[token] = value
			return n, nil
		case []any:
			i, err := arrayIndex(token, len(n), false)
			if err != nil {
				return nil, err
			}
			n[i] = value
			return n, nil
		default:
			return nil, fmt.Errorf("%w: replace in non-container at %q", ErrPathNotFound, token)
		}
	})
}

func pointerOf(op jsonpatch.Operation, from bool) ([]string, error) {
	var (
		ptr string
		err error
	)
	if from {
		ptr, err = op.From()
	} else {
		ptr, err = op.Path()
	}
	if err != nil {
		return nil, fmt.Errorf("delta: %s operation: %w", op.Kind(), err)
	}
	return parsePointer(ptr)
}

// applyOperation runs one RFC 6902 operation against a decoded document.
func applyOperation(doc any, op jsonpatch.Operation) (any, error) {
	path, err := pointerOf(op, false)
	if err != nil {
		return nil, err
	}
	switch op.Kind() {
	case "add", "replace", "test":
		value, err := op.ValueInterface()
		if err != nil {
			return nil, fmt.Errorf("delta: %s value: %w", op.Kind(), err)
		}
		switch op.Kind() {
		case "add":
			return addValue(doc, path, value)
		case "replace":
			return replaceValue(doc, path, value)
		}
		current, err := lookup(doc, path)
		if err != nil {
			return nil, err
		}
		if !reflect.DeepEqual(current, value) {
			return nil, fmt.Errorf("%w: %s", ErrTestFailed, strings.Join(path, "/"))
		}
		return doc, nil
	case "remove":
		return removeValue(doc, path)
	case "move", "copy":
		from, err := pointerOf(op, true)
		if err != nil {
			return nil, err
		}
		value, err := lookup(doc, from)
		if err != nil {
			return nil, err
		}
		if op.Kind() == "copy" {
			if value, err = Clone(value); err != nil {
				return nil, err
			}
			return addValue(doc, path, value)
		}
		if doc, err = removeValue(doc, from); err != nil {
			return nil, err
		}
		return addValue(doc, path, value)
	default:
		return nil, fmt.Errorf("delta: unsupported operation %q", op.Kind())
	}
}
