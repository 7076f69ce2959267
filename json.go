package linkml

import (
	"errors"
	"reflect"
)

func init() {
	DefaultMarshaler()
	DefaultUnmarshaler()
}

// Marshal encodes data using the currently configured Marshaler (the
// standard library's encoding/json by default, overridable via
// SetMarshaler) — the same pluggable-codec shape schema.LoadSchema's
// own JSON parsing stays independent of.
func Marshal(data any) ([]byte, error) {
	return marshaler(data)
}

// Unmarshal decodes data into dst using the currently configured
// Unmarshaler.
func Unmarshal(data []byte, dst any) error {
	if reflect.ValueOf(dst).Kind() != reflect.Ptr {
		return errors.New("dst is not pointer type")
	}
	return unmarshaler(data, dst)
}
