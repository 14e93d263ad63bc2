package record

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/df-mc/dragonfly/server/world/mcdb/leveldat"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

// levelNameTag is the only tag a level.dat is required to hold.
const levelNameTag = "LevelName"

// levelHeaderSize is the size of the version and length fields.
const levelHeaderSize = 8

// LevelHeader is the contents of a level.dat file: a format version followed
// by a compound holding the world settings.
type LevelHeader struct {
	Version int32
	// NBT holds every tag of the file, including LevelName.
	NBT map[string]any
}

// NewLevelHeader returns a LevelHeader with only a level name set.
func NewLevelHeader(version int32, name string) *LevelHeader {
	return &LevelHeader{Version: version, NBT: map[string]any{levelNameTag: name}}
}

// DecodeLevelHeader decodes the contents of a level.dat file.
//
// The length field is skipped without being checked against the data that
// follows; the compound is read from whatever remains.
func DecodeLevelHeader(data []byte) (*LevelHeader, error) {
	if len(data) < levelHeaderSize {
		return nil, &DecodeError{Err: fmt.Errorf("level.dat header needs %d bytes, got %d", levelHeaderSize, len(data))}
	}
	h := &LevelHeader{Version: int32(binary.LittleEndian.Uint32(data))}

	dec := nbt.NewDecoderWithEncoding(bytes.NewReader(data[levelHeaderSize:]), nbt.LittleEndian)
	if err := dec.Decode(&h.NBT); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if _, err := field[string](h.NBT, levelNameTag); err != nil {
		return nil, err
	}
	return h, nil
}

// Encode returns the level.dat representation of h. The length field is
// always computed from the encoded compound.
func (h *LevelHeader) Encode() ([]byte, error) {
	if _, ok := h.NBT[levelNameTag].(string); !ok {
		return nil, &EncodeError{Path: levelNameTag, Err: fmt.Errorf("expected string, got %T", h.NBT[levelNameTag])}
	}
	buf := bytes.NewBuffer(make([]byte, levelHeaderSize, 1024))
	if err := nbt.NewEncoderWithEncoding(buf, nbt.LittleEndian).Encode(h.NBT); err != nil {
		return nil, &EncodeError{Err: err}
	}
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data, uint32(h.Version))
	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)-levelHeaderSize))
	return data, nil
}

// LevelName returns the name of the world.
func (h *LevelHeader) LevelName() string {
	name, _ := h.NBT[levelNameTag].(string)
	return name
}

// SetLevelName changes the name of the world.
func (h *LevelHeader) SetLevelName(name string) {
	if h.NBT == nil {
		h.NBT = make(map[string]any)
	}
	h.NBT[levelNameTag] = name
}

// Data decodes the header into the typed level.dat settings used by
// dragonfly. Tags unknown to leveldat.Data are ignored.
func (h *LevelHeader) Data() (*leveldat.Data, error) {
	raw, err := WriteCompound(h.NBT)
	if err != nil {
		return nil, err
	}
	var d leveldat.Data
	if err := nbt.UnmarshalEncoding(raw, &d, nbt.LittleEndian); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &d, nil
}
