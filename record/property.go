package record

import (
	"errors"
	"fmt"
	"reflect"
)

// Value is a dynamic property value. It is one of Bool, Float, Double, String
// or Vector3.
//
// Values are stored without a type marker. DecodeValue tries the variants in
// that exact order and the first one matching the tag wins; the order is part
// of the format and must not change.
type Value interface {
	value()
}

// Bool is a boolean property, stored as a TAG_Byte holding 0 or 1.
type Bool bool

// Float is a 32-bit float property. Worlds written before 1.20.40 store
// numbers this way.
type Float float32

// Double is a 64-bit float property.
type Double float64

// String is a string property.
type String string

// Vector3 is a vector property, stored as a list of three TAG_Float.
type Vector3 [3]float32

func (Bool) value()    {}
func (Float) value()   {}
func (Double) value()  {}
func (String) value()  {}
func (Vector3) value() {}

// Properties holds the properties set by a single owner, keyed by name.
type Properties map[string]Value

// DynamicProperties holds Properties keyed by owner. The owner is usually the
// UUID of the behaviour pack that set them.
type DynamicProperties map[string]Properties

// valueDecoders are tried in order by DecodeValue.
var valueDecoders = []func(tag any) (Value, bool){
	decodeBool,
	decodeFloat,
	decodeDouble,
	decodeString,
	decodeVector3,
}

// DecodeValue decodes a single dynamic property value.
func DecodeValue(tag any) (Value, error) {
	for _, dec := range valueDecoders {
		if v, ok := dec(tag); ok {
			return v, nil
		}
	}
	return nil, &DecodeError{Err: fmt.Errorf("%T does not match any dynamic property type", tag)}
}

// EncodeValue returns the tag representation of v. A nil Value cannot be
// encoded.
func EncodeValue(v Value) (any, error) {
	switch v := v.(type) {
	case Bool:
		if v {
			return uint8(1), nil
		}
		return uint8(0), nil
	case Float:
		return float32(v), nil
	case Double:
		return float64(v), nil
	case String:
		return string(v), nil
	case Vector3:
		return []float32{v[0], v[1], v[2]}, nil
	}
	return nil, &EncodeError{Err: fmt.Errorf("unknown dynamic property value %T", v)}
}

func decodeBool(tag any) (Value, bool) {
	switch v := tag.(type) {
	case uint8:
		return Bool(v != 0), true
	case int8:
		return Bool(v != 0), true
	case bool:
		return Bool(v), true
	}
	return nil, false
}

func decodeFloat(tag any) (Value, bool) {
	v, ok := tag.(float32)
	return Float(v), ok
}

func decodeDouble(tag any) (Value, bool) {
	v, ok := tag.(float64)
	return Double(v), ok
}

func decodeString(tag any) (Value, bool) {
	v, ok := tag.(string)
	return String(v), ok
}

func decodeVector3(tag any) (Value, bool) {
	rv := reflect.ValueOf(tag)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Len() != 3 {
		return nil, false
	}
	var vec Vector3
	for i := range vec {
		f, ok := rv.Index(i).Interface().(float32)
		if !ok {
			return nil, false
		}
		vec[i] = f
	}
	return vec, true
}

// DecodeDynamicProperties decodes a compound of compounds into a
// DynamicProperties table.
func DecodeDynamicProperties(tag any) (DynamicProperties, error) {
	root, ok := tag.(map[string]any)
	if !ok {
		return nil, &DecodeError{Err: fmt.Errorf("expected compound, got %T", tag)}
	}
	props := make(DynamicProperties, len(root))
	for owner, v := range root {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &DecodeError{Path: owner, Err: fmt.Errorf("expected compound, got %T", v)}
		}
		p := make(Properties, len(m))
		for name, raw := range m {
			val, err := DecodeValue(raw)
			if err != nil {
				return nil, joinPath(owner+"."+name, err)
			}
			p[name] = val
		}
		props[owner] = p
	}
	return props, nil
}

// EncodeDynamicProperties returns the tag representation of props.
func EncodeDynamicProperties(props DynamicProperties) (map[string]any, error) {
	root := make(map[string]any, len(props))
	for owner, p := range props {
		m := make(map[string]any, len(p))
		for name, v := range p {
			tag, err := EncodeValue(v)
			if err != nil {
				return nil, &EncodeError{Path: owner + "." + name, Err: errors.Unwrap(err)}
			}
			m[name] = tag
		}
		root[owner] = m
	}
	return root, nil
}
