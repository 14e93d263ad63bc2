package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// ID identifies a block compression strategy. The engine stores it in the
// trailer of every table block, so the values are fixed by the save format.
type ID uint8

const (
	// None stores blocks as-is.
	None ID = 0
	// Snappy is the upstream LevelDB block compression.
	Snappy ID = 1
	// Zlib is zlib-wrapped deflate, used by older Bedrock worlds.
	Zlib ID = 2
	// RawDeflate is headerless deflate, written by current Bedrock versions.
	RawDeflate ID = 4
)

// MaxLevel is the highest accepted compression level. It maps to the best
// compression the deflate implementation offers.
const MaxLevel = 10

// String returns a readable name for the codec id.
func (id ID) String() string {
	switch id {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case Zlib:
		return "zlib"
	case RawDeflate:
		return "raw-deflate"
	}
	return fmt.Sprintf("codec(%d)", uint8(id))
}

// ErrInvalidLevel is returned by NewRegistry for a level outside 0-MaxLevel.
var ErrInvalidLevel = errors.New("compression level out of range")

// CompressionError is returned when a block cannot be decompressed. Err holds
// the diagnostic of the underlying inflater.
type CompressionError struct {
	Codec ID
	Err   error
}

// Error implements the error interface.
func (e *CompressionError) Error() string {
	return fmt.Sprintf("decompress %v block: %v", e.Codec, e.Err)
}

// Unwrap returns the underlying inflate error.
func (e *CompressionError) Unwrap() error {
	return e.Err
}

// UnknownCodecError is returned when a block references a codec id that has
// no strategy registered.
type UnknownCodecError struct {
	Codec ID
}

// Error implements the error interface.
func (e *UnknownCodecError) Error() string {
	return fmt.Sprintf("no compression strategy registered for id %d", uint8(e.Codec))
}

// Codec compresses and decompresses single blocks.
type Codec interface {
	// Encode compresses block. Compression of arbitrary bytes cannot fail.
	Encode(block []byte) []byte
	// Decode decompresses block, returning an error if it is truncated or
	// otherwise corrupt.
	Decode(block []byte) ([]byte, error)
}

// Registry maps codec ids to strategies. A Registry is created per store and
// passed to it at open time, so stores with different levels can coexist.
type Registry struct {
	codecs    map[ID]Codec
	preferred ID
	level     int
}

// NewRegistry returns a Registry holding the none, snappy, zlib and raw
// deflate strategies, the deflate ones compressing at level. preferred is the
// id used for newly written blocks and must be one of the registered ids.
func NewRegistry(level int, preferred ID) (*Registry, error) {
	if level < 0 || level > MaxLevel {
		return nil, fmt.Errorf("%w: %d (want 0-%d)", ErrInvalidLevel, level, MaxLevel)
	}
	r := &Registry{
		codecs: map[ID]Codec{
			None:       noneCodec{},
			Snappy:     snappyCodec{},
			Zlib:       newZlibCodec(level),
			RawDeflate: newDeflateCodec(level),
		},
		preferred: preferred,
		level:     level,
	}
	if _, ok := r.codecs[preferred]; !ok {
		return nil, &UnknownCodecError{Codec: preferred}
	}
	return r, nil
}

// Codec returns the strategy registered under id.
func (r *Registry) Codec(id ID) (Codec, error) {
	c, ok := r.codecs[id]
	if !ok {
		return nil, &UnknownCodecError{Codec: id}
	}
	return c, nil
}

// Encode compresses block with the strategy registered under id.
func (r *Registry) Encode(id ID, block []byte) ([]byte, error) {
	c, err := r.Codec(id)
	if err != nil {
		return nil, err
	}
	return c.Encode(block), nil
}

// Decode decompresses block with the strategy registered under id.
func (r *Registry) Decode(id ID, block []byte) ([]byte, error) {
	c, err := r.Codec(id)
	if err != nil {
		return nil, err
	}
	return c.Decode(block)
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.codecs))
	for id := range r.codecs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Preferred returns the id used for new blocks.
func (r *Registry) Preferred() ID {
	return r.preferred
}

// Level returns the configured compression level.
func (r *Registry) Level() int {
	return r.level
}

// flateLevel converts a 0-10 level to a deflate level.
func flateLevel(level int) int {
	if level > flate.BestCompression {
		return flate.BestCompression
	}
	return level
}

type noneCodec struct{}

func (noneCodec) Encode(block []byte) []byte { return block }

func (noneCodec) Decode(block []byte) ([]byte, error) { return block, nil }

type snappyCodec struct{}

func (snappyCodec) Encode(block []byte) []byte {
	return snappy.Encode(nil, block)
}

func (snappyCodec) Decode(block []byte) ([]byte, error) {
	decoded, err := snappy.Decode(nil, block)
	if err != nil {
		return nil, &CompressionError{Codec: Snappy, Err: err}
	}
	return decoded, nil
}

// zlibCodec pools zlib writers compressing at level.
type zlibCodec struct {
	level int
	pool  sync.Pool
}

func newZlibCodec(level int) *zlibCodec {
	c := &zlibCodec{level: flateLevel(level)}
	c.pool.New = func() any {
		w, _ := zlib.NewWriterLevel(nil, c.level)
		return w
	}
	return c
}

func (c *zlibCodec) Encode(block []byte) []byte {
	var buf bytes.Buffer
	w := c.pool.Get().(*zlib.Writer)
	defer c.pool.Put(w)
	w.Reset(&buf)
	// Writes into a bytes.Buffer only fail on allocation failure.
	_, _ = w.Write(block)
	_ = w.Close()
	return buf.Bytes()
}

func (c *zlibCodec) Decode(block []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(block))
	if err != nil {
		return nil, &CompressionError{Codec: Zlib, Err: err}
	}
	defer r.Close()
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, &CompressionError{Codec: Zlib, Err: err}
	}
	return decoded, nil
}

type deflateCodec struct {
	level int
	pool  sync.Pool
}

func newDeflateCodec(level int) *deflateCodec {
	c := &deflateCodec{level: flateLevel(level)}
	c.pool.New = func() any {
		w, _ := flate.NewWriter(nil, c.level)
		return w
	}
	return c
}

func (c *deflateCodec) Encode(block []byte) []byte {
	var buf bytes.Buffer
	w := c.pool.Get().(*flate.Writer)
	defer c.pool.Put(w)
	w.Reset(&buf)
	_, _ = w.Write(block)
	_ = w.Close()
	return buf.Bytes()
}

func (c *deflateCodec) Decode(block []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(block))
	defer r.Close()
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, &CompressionError{Codec: RawDeflate, Err: err}
	}
	return decoded, nil
}
