package contract

import (
	"io"
	"reflect"
	"strings"
)

type TypeKind int

const (
	// KindNoContent marks responses without an entity.
	KindNoContent TypeKind = iota + 1
	// KindStream hands the open body to the caller.
	KindStream
	// KindText decodes the body as a string.
	KindText
	// KindValue decodes the body into a Go value.
	KindValue
)

func (k TypeKind) String() string {
	switch k {
	case KindNoContent:
		return "no-content"
	case KindStream:
		return "stream"
	case KindText:
		return "text"
	case KindValue:
		return "value"
	}
	return "invalid"
}

// Type describes the result of a response definition. Value types carry an
// element type and a container depth, so ListOf(TypeOf[Pet]()) resolves to
// []Pet without reflecting over generic parameters at decode time.
type Type struct {
	kind  TypeKind
	elem  reflect.Type
	depth int
}

var (
	textType   = reflect.TypeOf("")
	streamType = reflect.TypeOf((*io.ReadCloser)(nil)).Elem()
)

func NoContent() Type {
	return Type{kind: KindNoContent}
}

func Stream() Type {
	return Type{kind: KindStream}
}

func Text() Type {
	return Type{kind: KindText}
}

// TypeOf returns the value descriptor for T.
func TypeOf[T any]() Type {
	return ValueType(reflect.TypeOf((*T)(nil)).Elem())
}

// ValueType returns the value descriptor for t. A nil t decodes into any.
func ValueType(t reflect.Type) Type {
	if t == nil {
		t = reflect.TypeOf((*any)(nil)).Elem()
	}
	return Type{kind: KindValue, elem: t}
}

// ListOf wraps t in one more list level. Only value types can be wrapped;
// other kinds are returned unchanged.
func ListOf(t Type) Type {
	if t.kind != KindValue {
		return t
	}
	t.depth++
	return t
}

func (t Type) Kind() TypeKind {
	return t.kind
}

// Elem returns the innermost element type of a value descriptor.
func (t Type) Elem() reflect.Type {
	return t.elem
}

// Depth is the number of list containers around Elem.
func (t Type) Depth() int {
	return t.depth
}

func (t Type) IsZero() bool {
	return t.kind == 0
}

// GoType resolves the descriptor to the Go type a decoded entity has.
func (t Type) GoType() reflect.Type {
	switch t.kind {
	case KindText:
		return textType
	case KindStream:
		return streamType
	case KindValue:
		rt := t.elem
		for range t.depth {
			rt = reflect.SliceOf(rt)
		}
		return rt
	}
	return nil
}

// New allocates a pointer to a zero value of GoType, ready for decoding.
// It returns the invalid reflect.Value for NoContent.
func (t Type) New() reflect.Value {
	rt := t.GoType()
	if rt == nil {
		return reflect.Value{}
	}
	return reflect.New(rt)
}

func (t Type) String() string {
	switch t.kind {
	case KindValue:
		return strings.Repeat("[]", t.depth) + t.elem.String()
	case 0:
		return "<unset>"
	}
	return t.kind.String()
}
