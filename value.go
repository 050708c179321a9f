package taskgraph

import (
	"fmt"
	"os"
	"reflect"

	"github.com/phargogh/taskgraph/internal/core/domain"
)

// Value is a task argument tree: a scalar, an ordered sequence, a
// string-keyed mapping, or a filesystem path. Path values contribute their
// file's stat to the fingerprint rather than the path string itself.
type Value = domain.Value

// Scalar builds a literal leaf from its string form.
func Scalar(literal string) Value {
	return domain.ScalarValue{Literal: literal}
}

// Int builds a scalar leaf from an integer.
func Int(v int64) Value {
	return domain.ScalarValue{Literal: fmt.Sprintf("%d", v)}
}

// Seq builds an ordered sequence. Order is significant to the fingerprint.
func Seq(items ...Value) Value {
	return domain.SeqValue{Items: items}
}

// Map builds a string-keyed mapping. Key order is irrelevant to the
// fingerprint.
func Map(items map[string]Value) Value {
	return domain.MapValue{Items: items}
}

// Path builds a filesystem-path leaf.
func Path(path string) Value {
	return domain.PathValue{Path: path}
}

// maxAutoPathLen mirrors the OS path length ceiling: a longer string is
// definitely not a path and is never handed to os.Stat.
const maxAutoPathLen = 4096

// Auto converts an arbitrary Go value into a Value tree using the
// heuristic the typed constructors make explicit: strings naming an
// existing filesystem entry become Path leaves, other scalars contribute
// their literal string form, slices and arrays become sequences, and maps
// become string-keyed mappings. Use it for untyped argument bags; prefer
// the typed constructors when the intent is known, since Auto's
// path-promotion depends on what happens to exist on disk at submission
// time.
func Auto(v any) Value {
	if v == nil {
		return nil
	}
	if val, ok := v.(Value); ok {
		return val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		s := rv.String()
		if looksLikePath(s) {
			return domain.PathValue{Path: s}
		}
		return domain.ScalarValue{Literal: s}
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = Auto(rv.Index(i).Interface())
		}
		return domain.SeqValue{Items: items}
	case reflect.Map:
		items := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			items[fmt.Sprint(iter.Key().Interface())] = Auto(iter.Value().Interface())
		}
		return domain.MapValue{Items: items}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Auto(rv.Elem().Interface())
	default:
		return domain.ScalarValue{Literal: fmt.Sprint(v)}
	}
}

func looksLikePath(s string) bool {
	if s == "" || len(s) > maxAutoPathLen {
		return false
	}
	_, err := os.Stat(s)
	return err == nil
}
