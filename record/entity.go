package record

import (
	"bytes"
	"errors"
)

// dynamicPropertiesTag is the name under which an entity stores its dynamic
// properties.
const dynamicPropertiesTag = "DynamicProperties"

// Entity is an entity record: the key it is stored under paired with its NBT
// compound. The key is the entity's identity on disk and is never parsed.
type Entity struct {
	key []byte
	// NBT holds the full entity data. It may be modified freely and is
	// written back by the store on an explicit put.
	NBT map[string]any
}

// NewEntity returns an Entity stored under key with the data passed.
func NewEntity(key []byte, nbt map[string]any) *Entity {
	if nbt == nil {
		nbt = make(map[string]any)
	}
	return &Entity{key: bytes.Clone(key), NBT: nbt}
}

// DecodeEntity decodes little-endian NBT data stored under key.
func DecodeEntity(key, data []byte) (*Entity, error) {
	m, err := ReadCompound(data)
	if err != nil {
		return nil, err
	}
	return NewEntity(key, m), nil
}

// Key returns the key the entity is stored under.
func (e *Entity) Key() []byte {
	return bytes.Clone(e.key)
}

// Encode returns the entity data as little-endian NBT.
func (e *Entity) Encode() ([]byte, error) {
	return WriteCompound(e.NBT)
}

// DynamicProperties decodes the properties nested in the entity. ok is false
// if the entity has none. An error is returned if they are present but
// malformed.
func (e *Entity) DynamicProperties() (props DynamicProperties, ok bool, err error) {
	tag, ok := e.NBT[dynamicPropertiesTag]
	if !ok {
		return nil, false, nil
	}
	props, err = DecodeDynamicProperties(tag)
	if err != nil {
		return nil, true, joinPath(dynamicPropertiesTag, err)
	}
	return props, true, nil
}

// SetDynamicProperties replaces the properties nested in the entity. The
// entity is left unchanged if props cannot be encoded.
func (e *Entity) SetDynamicProperties(props DynamicProperties) error {
	tag, err := EncodeDynamicProperties(props)
	if err != nil {
		var eerr *EncodeError
		if errors.As(err, &eerr) {
			return &EncodeError{Path: dynamicPropertiesTag + "." + eerr.Path, Err: eerr.Err}
		}
		return err
	}
	e.NBT[dynamicPropertiesTag] = tag
	return nil
}

// UniqueID returns the entity's UniqueID tag, if set.
func (e *Entity) UniqueID() (int64, bool) {
	id, ok := e.NBT["UniqueID"].(int64)
	return id, ok
}

// Identifier returns the entity type, such as minecraft:player, if set.
func (e *Entity) Identifier() (string, bool) {
	id, ok := e.NBT["identifier"].(string)
	return id, ok
}
