package record

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

const (
	// DefaultMapWidth and DefaultMapHeight are the pixel size of a map item.
	DefaultMapWidth  = 128
	DefaultMapHeight = 128
	// UnsetMapID marks a map without an id or without a parent.
	UnsetMapID int64 = -1
)

// ErrMapSize is returned when a colour buffer or size does not fit a map.
var ErrMapSize = errors.New("invalid map size")

// Map is a rendered map tile, stored under map_<id>.
//
// The colour buffer holds width*height RGBA pixels, row by row. The size and
// the buffer can only be changed together so that they always agree.
type Map struct {
	Dimension uint8
	// FullyExplored, Locked and UnlimitedTracking are flags stored as a
	// TAG_Byte. Any non-zero value is set; the stored value is kept as is.
	FullyExplored     uint8
	Locked            uint8
	Scale             uint8
	UnlimitedTracking uint8
	XCenter, ZCenter  int32
	ID                int64
	ParentID          int64

	width, height int16
	colors        []byte
}

// NewMap returns an empty 128x128 map with the id passed and no parent.
func NewMap(id int64) *Map {
	return &Map{
		ID:       id,
		ParentID: UnsetMapID,
		width:    DefaultMapWidth,
		height:   DefaultMapHeight,
		colors:   make([]byte, DefaultMapWidth*DefaultMapHeight*4),
	}
}

// Width returns the width of the map in pixels.
func (m *Map) Width() int16 { return m.width }

// Height returns the height of the map in pixels.
func (m *Map) Height() int16 { return m.height }

// Colors returns a copy of the RGBA colour buffer.
func (m *Map) Colors() []byte {
	c := make([]byte, len(m.colors))
	copy(c, m.colors)
	return c
}

// SetColors replaces the colour buffer. It must hold exactly width*height*4
// bytes.
func (m *Map) SetColors(c []byte) error {
	if want := int(m.width) * int(m.height) * 4; len(c) != want {
		return fmt.Errorf("%w: %d colour bytes for %dx%d map, want %d", ErrMapSize, len(c), m.width, m.height, want)
	}
	m.colors = make([]byte, len(c))
	copy(m.colors, c)
	return nil
}

// Resize changes the size of the map and clears all pixels.
func (m *Map) Resize(width, height int16) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrMapSize, width, height)
	}
	m.width, m.height = width, height
	m.colors = make([]byte, int(width)*int(height)*4)
	return nil
}

// Pixel returns the colour at x, z. Positions outside the map are
// transparent.
func (m *Map) Pixel(x, z int) color.RGBA {
	if x < 0 || z < 0 || x >= int(m.width) || z >= int(m.height) {
		return color.RGBA{}
	}
	i := (z*int(m.width) + x) * 4
	return color.RGBA{R: m.colors[i], G: m.colors[i+1], B: m.colors[i+2], A: m.colors[i+3]}
}

// SetPixel sets the colour at x, z. Positions outside the map are ignored.
func (m *Map) SetPixel(x, z int, c color.RGBA) {
	if x < 0 || z < 0 || x >= int(m.width) || z >= int(m.height) {
		return
	}
	i := (z*int(m.width) + x) * 4
	m.colors[i], m.colors[i+1], m.colors[i+2], m.colors[i+3] = c.R, c.G, c.B, c.A
}

// IsEmpty reports whether every colour byte is zero.
func (m *Map) IsEmpty() bool {
	for _, b := range m.colors {
		if b != 0 {
			return false
		}
	}
	return true
}

// Image returns the map as an RGBA image.
func (m *Map) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(m.width), int(m.height)))
	copy(img.Pix, m.colors)
	return img
}

// EncodePNG writes the map to w as a PNG image.
func (m *Map) EncodePNG(w io.Writer) error {
	return png.Encode(w, m.Image())
}

// DecodeMap decodes a map compound. Tags not part of a map are ignored.
func DecodeMap(tag map[string]any) (*Map, error) {
	var (
		m   Map
		err error
	)
	if m.Dimension, err = field[uint8](tag, "dimension"); err != nil {
		return nil, err
	}
	if m.FullyExplored, err = field[uint8](tag, "fullyExplored"); err != nil {
		return nil, err
	}
	if m.Locked, err = field[uint8](tag, "mapLocked"); err != nil {
		return nil, err
	}
	if m.Scale, err = field[uint8](tag, "scale"); err != nil {
		return nil, err
	}
	if m.UnlimitedTracking, err = field[uint8](tag, "unlimitedTracking"); err != nil {
		return nil, err
	}
	if m.height, err = field[int16](tag, "height"); err != nil {
		return nil, err
	}
	if m.width, err = field[int16](tag, "width"); err != nil {
		return nil, err
	}
	if m.XCenter, err = field[int32](tag, "xCenter"); err != nil {
		return nil, err
	}
	if m.ZCenter, err = field[int32](tag, "zCenter"); err != nil {
		return nil, err
	}
	if m.ID, err = field[int64](tag, "mapId"); err != nil {
		return nil, err
	}
	if m.ParentID, err = field[int64](tag, "parentMapId"); err != nil {
		return nil, err
	}

	raw, ok := tag["colors"]
	if !ok {
		return nil, &DecodeError{Path: "colors", Err: errMissing}
	}
	colors, ok := bytesOf(raw)
	if !ok {
		return nil, &DecodeError{Path: "colors", Err: fmt.Errorf("expected byte array, got %T", raw)}
	}
	if m.width <= 0 || m.height <= 0 {
		return nil, &DecodeError{Path: "width", Err: fmt.Errorf("%w: %dx%d", ErrMapSize, m.width, m.height)}
	}
	if err := m.SetColors(colors); err != nil {
		return nil, &DecodeError{Path: "colors", Err: err}
	}
	return &m, nil
}

// Tag returns the compound representation of the map.
func (m *Map) Tag() map[string]any {
	return map[string]any{
		"dimension":         m.Dimension,
		"fullyExplored":     m.FullyExplored,
		"mapLocked":         m.Locked,
		"scale":             m.Scale,
		"unlimitedTracking": m.UnlimitedTracking,
		"height":            m.height,
		"width":             m.width,
		"xCenter":           m.XCenter,
		"zCenter":           m.ZCenter,
		"mapId":             m.ID,
		"parentMapId":       m.ParentID,
		"colors":            byteArray(m.colors),
	}
}

// Encode returns the map as little-endian NBT.
func (m *Map) Encode() ([]byte, error) {
	return WriteCompound(m.Tag())
}
