package bedrockdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Lapis256/bedrockdb/compression"
	"github.com/df-mc/goleveldb/leveldb/journal"
)

// Tags of the records held in a manifest.
const (
	recComparer       = 1
	recJournalNum     = 2
	recNextFileNum    = 3
	recSeqNum         = 4
	recCompPtr        = 5
	recDelTable       = 6
	recAddTable       = 7
	recPrevJournalNum = 9
)

// batchHeaderLen is the size of the sequence and count preceding the records
// of a journal batch.
const batchHeaderLen = 12

// fileEntry is the newest version of a key found in the database files.
type fileEntry struct {
	seq     uint64
	deleted bool
	value   []byte
}

// fileView holds the newest version of every key under a prefix, read
// directly from the live tables and journals of a database. Table blocks are
// decoded with a compression.Registry, so blocks written with codecs the
// engine does not know are still readable.
type fileView map[string]fileEntry

// loadFileView reads all keys starting with prefix from the database in dir.
func loadFileView(dir string, reg *compression.Registry, prefix []byte) (fileView, error) {
	m, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	v := make(fileView)
	for _, num := range m.liveTables() {
		if err := v.readTable(tablePath(dir, num), reg, prefix); err != nil {
			return nil, fmt.Errorf("table %06d: %w", num, err)
		}
	}
	logs, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return nil, err
	}
	for _, path := range logs {
		num, err := strconv.ParseUint(strings.TrimSuffix(filepath.Base(path), ".log"), 10, 64)
		if err != nil || !m.liveJournal(num) {
			continue
		}
		if err := v.readJournal(path, prefix); err != nil {
			return nil, fmt.Errorf("journal %06d: %w", num, err)
		}
	}
	return v, nil
}

// add records a version of ukey unless a newer one is already known.
func (v fileView) add(ukey []byte, seq uint64, deleted bool, value []byte) {
	if e, ok := v[string(ukey)]; ok && e.seq >= seq {
		return
	}
	v[string(ukey)] = fileEntry{seq: seq, deleted: deleted, value: bytes.Clone(value)}
}

// get returns the value stored under key.
func (v fileView) get(key []byte) ([]byte, error) {
	e, ok := v[string(key)]
	if !ok || e.deleted {
		return nil, &NotFoundError{Key: key}
	}
	return e.value, nil
}

// cursor returns a cursor over the keys of v ordered after the key passed. A
// nil key starts at the first key.
func (v fileView) cursor(after []byte) *viewCursor {
	keys := make([]string, 0, len(v))
	for k, e := range v {
		if e.deleted || (after != nil && k <= string(after)) {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return &viewCursor{view: v, keys: keys, i: -1}
}

// readTable adds the entries under prefix held by the table file at path.
func (v fileView) readTable(path string, reg *compression.Registry, prefix []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, index, err := readFooter(data)
	if err != nil {
		return err
	}
	indexBlock, err := readBlock(data, index, reg, nil)
	if err != nil {
		return fmt.Errorf("index block: %w", err)
	}
	blocks, err := blockEntries(indexBlock)
	if err != nil {
		return fmt.Errorf("index block: %w", err)
	}
	for i, b := range blocks {
		// A separator is not less than any key of its block, and every key
		// of a block is greater than the separator before it.
		if bytes.Compare(separatorKey(b.key), prefix) < 0 {
			continue
		}
		if i > 0 {
			prev := separatorKey(blocks[i-1].key)
			if bytes.Compare(prev, prefix) > 0 && !bytes.HasPrefix(prev, prefix) {
				break
			}
		}
		h, _, err := readHandle(b.value)
		if err != nil {
			return fmt.Errorf("index block: %w", err)
		}
		block, err := readBlock(data, h, reg, nil)
		if err != nil {
			return fmt.Errorf("data block at %d: %w", h.offset, err)
		}
		entries, err := blockEntries(block)
		if err != nil {
			return fmt.Errorf("data block at %d: %w", h.offset, err)
		}
		for _, e := range entries {
			ukey, seq, kind, err := splitInternalKey(e.key)
			if err != nil {
				return fmt.Errorf("data block at %d: %w", h.offset, err)
			}
			if bytes.HasPrefix(ukey, prefix) {
				v.add(ukey, seq, kind == kindDelete, e.value)
			}
		}
	}
	return nil
}

// readJournal adds the entries under prefix written to the journal at path.
// A torn record at the end of the journal ends it.
func (v fileView) readJournal(path string, prefix []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := journal.NewReader(f, nil, false, true)
	for {
		rec, err := r.Next()
		if err != nil {
			return nil
		}
		data, err := io.ReadAll(rec)
		if err != nil {
			return nil
		}
		if err := v.readBatch(data, prefix); err != nil {
			return err
		}
	}
}

// readBatch adds the entries under prefix of a single journal batch.
func (v fileView) readBatch(data []byte, prefix []byte) error {
	if len(data) < batchHeaderLen {
		return fmt.Errorf("batch of %d bytes has no header", len(data))
	}
	seq := binary.LittleEndian.Uint64(data)
	n := binary.LittleEndian.Uint32(data[8:])
	data = data[batchHeaderLen:]
	for i := uint32(0); i < n; i++ {
		if len(data) == 0 {
			return fmt.Errorf("batch holds %d of %d records", i, n)
		}
		kind := data[0]
		key, rest, err := readLengthPrefixed(data[1:])
		if err != nil {
			return err
		}
		var value []byte
		switch kind {
		case kindValue:
			if value, rest, err = readLengthPrefixed(rest); err != nil {
				return err
			}
		case kindDelete:
		default:
			return fmt.Errorf("unknown batch record kind %d", kind)
		}
		if bytes.HasPrefix(key, prefix) {
			v.add(key, seq+uint64(i), kind == kindDelete, value)
		}
		data = rest
	}
	return nil
}

// viewCursor iterates over the keys of a fileView in order.
type viewCursor struct {
	view fileView
	keys []string
	i    int
}

func (c *viewCursor) Next() bool {
	if c.i >= len(c.keys) {
		return false
	}
	c.i++
	return c.i < len(c.keys)
}

func (c *viewCursor) Key() []byte {
	return []byte(c.keys[c.i])
}

func (c *viewCursor) Value() []byte {
	return c.view[c.keys[c.i]].value
}

func (c *viewCursor) Error() error { return nil }

func (c *viewCursor) Release() {
	c.keys, c.i = nil, 0
}

// manifest is the set of files a database consists of, as recorded in its
// MANIFEST file.
type manifest struct {
	tables      map[uint64]struct{}
	journal     uint64
	prevJournal uint64
}

// readManifest reads the manifest named by the CURRENT file in dir.
func readManifest(dir string) (*manifest, error) {
	current, err := os.ReadFile(filepath.Join(dir, "CURRENT"))
	if err != nil {
		return nil, fmt.Errorf("read CURRENT: %w", err)
	}
	name := strings.TrimSpace(string(current))
	if !strings.HasPrefix(name, "MANIFEST-") || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("CURRENT names %q, not a manifest", name)
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m := &manifest{tables: make(map[uint64]struct{})}
	r := journal.NewReader(f, nil, false, true)
	for {
		// A torn record ends the manifest, as it does for the engine.
		rec, err := r.Next()
		if err != nil {
			return m, nil
		}
		data, err := io.ReadAll(rec)
		if err != nil {
			return m, nil
		}
		if err := m.apply(data); err != nil {
			return nil, fmt.Errorf("%v: %w", name, err)
		}
	}
}

// apply applies a single manifest record to m.
func (m *manifest) apply(rec []byte) error {
	for len(rec) > 0 {
		tag, rest, err := readUvarint(rec)
		if err != nil {
			return err
		}
		var num uint64
		switch tag {
		case recComparer:
			_, rest, err = readLengthPrefixed(rest)
		case recJournalNum:
			m.journal, rest, err = readUvarint(rest)
		case recPrevJournalNum:
			m.prevJournal, rest, err = readUvarint(rest)
		case recNextFileNum, recSeqNum:
			_, rest, err = readUvarint(rest)
		case recCompPtr:
			if _, rest, err = readUvarint(rest); err == nil {
				_, rest, err = readLengthPrefixed(rest)
			}
		case recDelTable:
			if _, rest, err = readUvarint(rest); err == nil {
				num, rest, err = readUvarint(rest)
				delete(m.tables, num)
			}
		case recAddTable:
			// Level, number and size, followed by the smallest and largest key.
			if _, rest, err = readUvarint(rest); err == nil {
				num, rest, err = readUvarint(rest)
			}
			if err == nil {
				_, rest, err = readUvarint(rest)
			}
			if err == nil {
				_, rest, err = readLengthPrefixed(rest)
			}
			if err == nil {
				_, rest, err = readLengthPrefixed(rest)
			}
			if err == nil {
				m.tables[num] = struct{}{}
			}
		default:
			return fmt.Errorf("unknown manifest record tag %d", tag)
		}
		if err != nil {
			return fmt.Errorf("manifest record tag %d: %w", tag, err)
		}
		rec = rest
	}
	return nil
}

// liveTables returns the numbers of all tables in the manifest, in order.
func (m *manifest) liveTables() []uint64 {
	nums := make([]uint64, 0, len(m.tables))
	for num := range m.tables {
		nums = append(nums, num)
	}
	slices.Sort(nums)
	return nums
}

// liveJournal reports whether the journal with the number passed may hold
// writes not yet in a table.
func (m *manifest) liveJournal(num uint64) bool {
	return num >= m.journal || (m.prevJournal != 0 && num == m.prevJournal)
}

// tablePath returns the path of the table file with the number passed. Older
// databases name tables .sst.
func tablePath(dir string, num uint64) string {
	path := filepath.Join(dir, fmt.Sprintf("%06d.ldb", num))
	if _, err := os.Stat(path); err != nil {
		if sst := filepath.Join(dir, fmt.Sprintf("%06d.sst", num)); fileExists(sst) {
			return sst
		}
	}
	return path
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// separatorKey returns the user key part of an index block separator.
func separatorKey(key []byte) []byte {
	if len(key) < internalKeyLen {
		return key
	}
	return key[:len(key)-internalKeyLen]
}

func readUvarint(b []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, errors.New("bad varint")
	}
	return v, b[n:], nil
}

// readLengthPrefixed reads a varint length followed by that many bytes.
func readLengthPrefixed(b []byte) ([]byte, []byte, error) {
	n, rest, err := readUvarint(b)
	if err != nil {
		return nil, nil, err
	}
	if n > uint64(len(rest)) {
		return nil, nil, fmt.Errorf("%d byte field exceeds %d remaining bytes", n, len(rest))
	}
	return rest[:n], rest[n:], nil
}
