package bedrockdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/Lapis256/bedrockdb/compression"
)

const (
	// tableMagic ends every table file.
	tableMagic uint64 = 0xdb4775248b80fb57
	// footerLen is the size of the fixed footer of a table file.
	footerLen = 48
	// blockTrailerLen is the size of the codec id and checksum following a block.
	blockTrailerLen = 5
	// crcMaskDelta is added to rotated checksums stored in tables.
	crcMaskDelta = 0xa282ead8
	// internalKeyLen is the size of the sequence and kind suffix of keys
	// stored in tables.
	internalKeyLen = 8
)

// Kinds of table and journal entries.
const (
	kindDelete = 0
	kindValue  = 1
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// errBadMagic is returned for files that do not end in the table magic.
var errBadMagic = errors.New("bad table magic")

// blockHandle locates a block within a table file.
type blockHandle struct {
	offset, length uint64
}

// blockEntry is a single key/value pair of a block with its key prefix
// restored.
type blockEntry struct {
	key, value []byte
}

// readFooter returns the metaindex and index handles of a table file.
func readFooter(data []byte) (meta, index blockHandle, err error) {
	if len(data) < footerLen {
		return meta, index, fmt.Errorf("table of %d bytes is shorter than its footer", len(data))
	}
	footer := data[len(data)-footerLen:]
	if binary.LittleEndian.Uint64(footer[footerLen-8:]) != tableMagic {
		return meta, index, errBadMagic
	}
	meta, n, err := readHandle(footer)
	if err != nil {
		return meta, index, fmt.Errorf("metaindex handle: %w", err)
	}
	index, _, err = readHandle(footer[n:])
	if err != nil {
		return meta, index, fmt.Errorf("index handle: %w", err)
	}
	return meta, index, nil
}

// readHandle reads a varint encoded block handle from b, returning the number
// of bytes it took up.
func readHandle(b []byte) (blockHandle, int, error) {
	offset, n := binary.Uvarint(b)
	if n <= 0 {
		return blockHandle{}, 0, errors.New("bad block offset")
	}
	length, m := binary.Uvarint(b[n:])
	if m <= 0 {
		return blockHandle{}, 0, errors.New("bad block length")
	}
	return blockHandle{offset: offset, length: length}, n + m, nil
}

// readBlock checks the checksum of the block at h and decodes it with the
// codec named by its trailer. Decoded blocks are counted by codec id in
// counts if it is non-nil.
func readBlock(data []byte, h blockHandle, reg *compression.Registry, counts map[compression.ID]int) ([]byte, error) {
	size := uint64(len(data))
	if h.offset > size || h.length > size-h.offset || size-h.offset-h.length < blockTrailerLen {
		return nil, fmt.Errorf("block %d+%d exceeds table of %d bytes", h.offset, h.length, size)
	}
	end := h.offset + h.length
	raw, id := data[h.offset:end], data[end]
	want := binary.LittleEndian.Uint32(data[end+1:])
	if got := maskCRC(crc32.Update(crc32.Checksum(raw, castagnoli), castagnoli, []byte{id})); got != want {
		return nil, fmt.Errorf("checksum mismatch: got %#x, want %#x", got, want)
	}
	block, err := reg.Decode(compression.ID(id), raw)
	if err != nil {
		return nil, err
	}
	if counts != nil {
		counts[compression.ID(id)]++
	}
	return block, nil
}

// maskCRC returns the masked form of a checksum stored in tables.
func maskCRC(c uint32) uint32 {
	return (c>>15 | c<<17) + crcMaskDelta
}

// blockEntries returns the entries of a decoded block in order.
func blockEntries(block []byte) ([]blockEntry, error) {
	if len(block) < 4 {
		return nil, errors.New("block too short for restart count")
	}
	restarts := uint64(binary.LittleEndian.Uint32(block[len(block)-4:]))
	if restarts > uint64(len(block)-4)/4 {
		return nil, fmt.Errorf("%d restart points do not fit block of %d bytes", restarts, len(block))
	}
	rest := block[:len(block)-4-int(restarts)*4]

	var (
		entries []blockEntry
		prev    []byte
	)
	for len(rest) > 0 {
		var fields [3]uint64
		for i := range fields {
			v, n := binary.Uvarint(rest)
			if n <= 0 {
				return nil, errors.New("bad entry header")
			}
			fields[i], rest = v, rest[n:]
		}
		shared, nonShared, valueLen := fields[0], fields[1], fields[2]
		if shared > uint64(len(prev)) {
			return nil, fmt.Errorf("entry shares %d bytes of a %d byte key", shared, len(prev))
		}
		if nonShared > uint64(len(rest)) || valueLen > uint64(len(rest))-nonShared {
			return nil, errors.New("entry exceeds block")
		}
		key := make([]byte, 0, shared+nonShared)
		key = append(key, prev[:shared]...)
		key = append(key, rest[:nonShared]...)
		entries = append(entries, blockEntry{key: key, value: rest[nonShared : nonShared+valueLen]})
		prev, rest = key, rest[nonShared+valueLen:]
	}
	return entries, nil
}

// indexHandles returns the block handles held as values of an index block.
func indexHandles(block []byte) ([]blockHandle, error) {
	entries, err := blockEntries(block)
	if err != nil {
		return nil, err
	}
	handles := make([]blockHandle, 0, len(entries))
	for _, e := range entries {
		h, _, err := readHandle(e.value)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// splitInternalKey splits a table key into the user key, sequence number and
// entry kind.
func splitInternalKey(key []byte) (ukey []byte, seq uint64, kind byte, err error) {
	if len(key) < internalKeyLen {
		return nil, 0, 0, fmt.Errorf("table key of %d bytes has no sequence", len(key))
	}
	n := len(key) - internalKeyLen
	num := binary.LittleEndian.Uint64(key[n:])
	kind = byte(num)
	if kind > kindValue {
		return nil, 0, 0, fmt.Errorf("unknown entry kind %d", kind)
	}
	return key[:n], num >> 8, kind, nil
}
