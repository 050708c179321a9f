package domain

// Value is a closed, statically typed stand-in for the dynamically typed
// argument trees that task submissions are built from: a scalar, an ordered
// sequence, a string-keyed mapping, or a filesystem path. It is a sum type
// closed by an unexported marker method, so only the four Value kinds in
// this file satisfy it.
//
// Path values are special: the Fingerprinter contributes their FileStat
// record (sorted by path) instead of their literal string form, so a task
// that merely references a file re-runs only when that file's stat changes,
// never when the path string itself is rewritten to an equivalent form.
type Value interface {
	isValue()
}

// ScalarValue is a literal leaf: a number, a bool, or any other value whose
// string form alone determines its contribution to a fingerprint.
type ScalarValue struct {
	Literal string
}

func (ScalarValue) isValue() {}

// SeqValue is an ordered sequence of Values. Order is significant.
type SeqValue struct {
	Items []Value
}

func (SeqValue) isValue() {}

// MapValue is a string-keyed mapping of Values. Keys are sorted before they
// contribute to a fingerprint, so map construction order is irrelevant.
type MapValue struct {
	Items map[string]Value
}

func (MapValue) isValue() {}

// PathValue names a filesystem location. Its fingerprint contribution comes
// from FileStat, not from the Path string itself.
type PathValue struct {
	Path string
}

func (PathValue) isValue() {}
