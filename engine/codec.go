package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kolah/courier/contract"
)

// Codec encodes request entities and decodes JSON response bodies into the
// Go type a response definition declares.
type Codec interface {
	Encode(v any, mediaType string) ([]byte, error)
	Decode(data []byte, t contract.Type) (any, error)
}

// JSONCodec is the default Codec, backed by encoding/json.
type JSONCodec struct{}

func (JSONCodec) Encode(v any, _ string) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, t contract.Type) (any, error) {
	ptr := t.New()
	if !ptr.IsValid() {
		return nil, errors.New("type has no value representation")
	}
	if t.Kind() == contract.KindStream {
		return nil, fmt.Errorf("cannot decode into %s", t)
	}
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}
