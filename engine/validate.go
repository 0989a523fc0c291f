package engine

import (
	"fmt"
	"reflect"

	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/internal/serialize"
)

// check rejects an invocation with missing required values before anything
// is sent. All missing items are reported together.
func (e *Engine) check(op *contract.Operation) error {
	var missing []string
	for _, p := range op.Parameters() {
		if p.Required && serialize.IsNil(p.Value) {
			missing = append(missing, fmt.Sprintf("%s parameter %q", p.In, p.Name))
		}
	}

	body := op.Body()
	if body != nil && body.Required && !body.IsForm() && serialize.IsNil(body.Entity) {
		missing = append(missing, "request body")
	}

	if len(missing) > 0 {
		return &ValidationError{Operation: op.Description(), Missing: missing}
	}

	if e.validate == nil || body == nil {
		return nil
	}
	if body.IsForm() {
		for _, part := range body.Parts {
			if part.Kind != contract.PartComplex || !isStruct(part.Value) {
				continue
			}
			if err := e.validate.Struct(part.Value); err != nil {
				return &ValidationError{Operation: op.Description(), Err: fmt.Errorf("part %q: %w", part.Name, err)}
			}
		}
		return nil
	}
	if isStruct(body.Entity) {
		if err := e.validate.Struct(body.Entity); err != nil {
			return &ValidationError{Operation: op.Description(), Err: err}
		}
	}
	return nil
}

func isStruct(v any) bool {
	if serialize.IsNil(v) {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct
}
