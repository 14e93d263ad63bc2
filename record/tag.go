package record

import (
	"fmt"
	"reflect"

	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

// ReadCompound decodes little-endian NBT data holding a compound tag.
func ReadCompound(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := nbt.UnmarshalEncoding(data, &m, nbt.LittleEndian); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

// WriteCompound encodes a compound tag as little-endian NBT.
func WriteCompound(tag map[string]any) ([]byte, error) {
	data, err := nbt.MarshalEncoding(tag, nbt.LittleEndian)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	return data, nil
}

// field looks up a required tag of type T in a compound.
func field[T any](tag map[string]any, name string) (T, error) {
	var zero T
	v, ok := tag[name]
	if !ok {
		return zero, &DecodeError{Path: name, Err: errMissing}
	}
	t, ok := v.(T)
	if !ok {
		return zero, &DecodeError{Path: name, Err: fmt.Errorf("expected %T, got %T", zero, v)}
	}
	return t, nil
}

// byteArray returns b as a fixed size byte array, which the NBT encoder
// writes as a TAG_ByteArray rather than a list of bytes.
func byteArray(b []byte) any {
	v := reflect.New(reflect.ArrayOf(len(b), reflect.TypeOf(byte(0)))).Elem()
	for i, x := range b {
		v.Index(i).SetUint(uint64(x))
	}
	return v.Interface()
}

// bytesOf returns the contents of a decoded TAG_ByteArray.
func bytesOf(v any) ([]byte, bool) {
	if b, ok := v.([]byte); ok {
		return b, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Array || rv.Type().Elem().Kind() != reflect.Uint8 {
		return nil, false
	}
	b := make([]byte, rv.Len())
	for i := range b {
		b[i] = byte(rv.Index(i).Uint())
	}
	return b, true
}
