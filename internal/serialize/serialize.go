// Package serialize turns parameter values into wire strings using the
// OpenAPI "simple" and "form" styles.
package serialize

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/schema"
)

var encoder = schema.NewEncoder()

// Primitive returns the canonical text of a single value. Nil and nil
// pointers serialize to the empty string; times use RFC 3339.
func Primitive(v any) string {
	for {
		if IsNil(v) {
			return ""
		}
		switch x := v.(type) {
		case string:
			return x
		case []byte:
			return string(x)
		case time.Time:
			return x.Format(time.RFC3339Nano)
		case encoding.TextMarshaler:
			if b, err := x.MarshalText(); err == nil {
				return string(b)
			}
		case fmt.Stringer:
			return x.String()
		}

		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Pointer, reflect.Interface:
			v = rv.Elem().Interface()
			continue
		case reflect.String:
			return rv.String()
		case reflect.Bool:
			return strconv.FormatBool(rv.Bool())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return strconv.FormatInt(rv.Int(), 10)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return strconv.FormatUint(rv.Uint(), 10)
		case reflect.Float32:
			return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
		case reflect.Float64:
			return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
		}
		return fmt.Sprint(v)
	}
}

// Simple joins collection elements with commas after dropping nils.
// Non-collections serialize primitively.
func Simple(v any) string {
	elems, ok := collection(v)
	if !ok {
		return Primitive(v)
	}
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		parts = append(parts, Primitive(e))
	}
	return strings.Join(parts, ",")
}

// Form calls emit once per collection element, once per struct field, or
// once for any other non-nil value. Nil values emit nothing.
func Form(name string, v any, emit func(name, value string)) {
	if IsNil(v) {
		return
	}
	if elems, ok := collection(v); ok {
		for _, e := range elems {
			emit(name, Primitive(e))
		}
		return
	}
	if fields, ok := explode(v); ok {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, value := range fields[k] {
				emit(k, value)
			}
		}
		return
	}
	emit(name, Primitive(v))
}

// IsNil reports whether v is nil or a nil pointer, slice, map, interface,
// channel or func.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// collection returns the non-nil elements of a slice or array. Byte slices
// are scalars.
func collection(v any) ([]any, bool) {
	if IsNil(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	elems := make([]any, 0, rv.Len())
	for i := range rv.Len() {
		e := rv.Index(i).Interface()
		if IsNil(e) {
			continue
		}
		elems = append(elems, e)
	}
	return elems, true
}

// explode flattens a struct into its fields. Names, "-" and omitempty
// follow gorilla/schema; nested structs are flattened. Every field is reduced
// to strings first, so nil pointers emit nothing and the encoder only sees
// strings, string slices and structs of those. Types with their own text
// form are not exploded.
func explode(v any) (fields map[string][]string, ok bool) {
	if textual(v) {
		return nil, false
	}
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			fields, ok = nil, true
		}
	}()
	dst := make(map[string][]string)
	_ = encoder.Encode(flatten(rv).Interface(), dst)
	return dst, true
}

// flatten builds a struct of the same field names and tags whose values are
// strings, string slices or flattened structs. Unexported, nil and
// unsupported fields are left out.
func flatten(rv reflect.Value) reflect.Value {
	t := rv.Type()
	var fields []reflect.StructField
	var values []reflect.Value

	add := func(sf reflect.StructField, val reflect.Value) {
		fields = append(fields, reflect.StructField{Name: sf.Name, Type: val.Type(), Tag: sf.Tag})
		values = append(values, val)
	}

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, omitEmpty := schemaTag(sf)
		if name == "-" {
			continue
		}
		orig := rv.Field(i).Interface()
		fv := indirect(rv.Field(i))
		if !fv.IsValid() || (omitEmpty && fv.IsZero()) {
			continue
		}

		switch {
		case textual(orig) || textual(fv.Interface()):
			add(sf, reflect.ValueOf(Primitive(orig)))
		case fv.Kind() == reflect.Struct:
			add(sf, flatten(fv))
		case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8:
			add(sf, reflect.ValueOf(Primitive(fv.Interface())))
		case fv.Kind() == reflect.Slice || fv.Kind() == reflect.Array:
			elems, _ := collection(fv.Interface())
			strs := make([]string, 0, len(elems))
			for _, e := range elems {
				strs = append(strs, Primitive(e))
			}
			add(sf, reflect.ValueOf(strs))
		case fv.Kind() == reflect.Map, fv.Kind() == reflect.Chan, fv.Kind() == reflect.Func,
			fv.Kind() == reflect.UnsafePointer, fv.Kind() == reflect.Complex64, fv.Kind() == reflect.Complex128:
		default:
			add(sf, reflect.ValueOf(Primitive(fv.Interface())))
		}
	}

	out := reflect.New(reflect.StructOf(fields)).Elem()
	for i, val := range values {
		out.Field(i).Set(val)
	}
	return out
}

func schemaTag(sf reflect.StructField) (name string, omitEmpty bool) {
	name, opts, _ := strings.Cut(sf.Tag.Get("schema"), ",")
	for _, o := range strings.Split(opts, ",") {
		if o == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

// indirect follows pointers and interfaces. A nil along the way yields the
// zero Value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func textual(v any) bool {
	switch v.(type) {
	case time.Time, *time.Time, encoding.TextMarshaler, fmt.Stringer:
		return true
	}
	return false
}
