package bedrockdb

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lapis256/bedrockdb/compression"
	"github.com/df-mc/goleveldb/leveldb"
	lerrors "github.com/df-mc/goleveldb/leveldb/errors"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/df-mc/goleveldb/leveldb/util"
)

// engine is the subset of a key-value store used by DB. Put only stages a
// write; it becomes visible and durable on the next Flush.
type engine interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Flush() error
	Scan(prefix []byte) cursor
	Close() error
}

// cursor iterates over key/value pairs in key order. Key and Value are only
// valid until the next call to Next.
type cursor interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// levelDB implements engine on top of goleveldb. goleveldb only reads blocks
// stored uncompressed, as snappy or as raw deflate. Reads that hit a block it
// rejects are served from the table files directly, decoding every block with
// reg.
type levelDB struct {
	ldb   *leveldb.DB
	batch *leveldb.Batch
	dir   string
	reg   *compression.Registry
	log   *slog.Logger
}

// openLevelDB opens an existing database at path. The database is never
// created if missing.
func openLevelDB(path string, reg *compression.Registry, o *Options) (*levelDB, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{
		ErrorIfMissing: true,
		Compression:    engineCompression(reg.Preferred(), reg.Level(), o.Log),
		BlockSize:      o.BlockSize,
		ReadOnly:       o.ReadOnly,
		Strict:         opt.DefaultStrict,
	})
	if err != nil {
		return nil, err
	}
	return &levelDB{
		ldb:   ldb,
		batch: new(leveldb.Batch),
		dir:   path,
		reg:   reg,
		log:   o.Log,
	}, nil
}

// engineCompression maps a codec id and level to the block compression
// goleveldb writes new tables with. goleveldb deflates at a fixed level of its
// own, so levels 1-10 only affect blocks encoded through the registry. Level
// 0 disables compression of the deflate codecs.
func engineCompression(id compression.ID, level int, log *slog.Logger) opt.Compression {
	switch id {
	case compression.None:
		return opt.NoCompression
	case compression.Snappy:
		return opt.SnappyCompression
	}
	if level == 0 {
		return opt.NoCompression
	}
	if id == compression.Zlib {
		log.Debug("engine writes zlib blocks as raw deflate", "codec", id)
	}
	return opt.FlateCompression
}

// isCorrupted reports whether err is goleveldb rejecting the contents of a
// file, such as a block with a codec id it does not know.
func isCorrupted(err error) bool {
	var cerr *lerrors.ErrCorrupted
	return errors.As(err, &cerr) || lerrors.IsCorrupted(err)
}

func (l *levelDB) Get(key []byte) ([]byte, error) {
	v, err := l.ldb.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, &NotFoundError{Key: key}
	}
	if err != nil && isCorrupted(err) {
		l.log.Debug("engine read failed, reading table files", "key", key, "error", err)
		view, verr := loadFileView(l.dir, l.reg, key)
		if verr != nil {
			return nil, verr
		}
		return view.get(key)
	}
	return v, err
}

func (l *levelDB) Put(key, value []byte) error {
	l.batch.Put(key, value)
	return nil
}

// Flush writes all staged puts and syncs them to disk. The staged puts are
// dropped even if the write fails.
func (l *levelDB) Flush() error {
	if l.batch.Len() == 0 {
		return nil
	}
	defer l.batch.Reset()
	if err := l.ldb.Write(l.batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (l *levelDB) Scan(prefix []byte) cursor {
	return &recoveringCursor{
		cursor: l.ldb.NewIterator(util.BytesPrefix(prefix), nil),
		l:      l,
		prefix: prefix,
	}
}

func (l *levelDB) Close() error {
	return l.ldb.Close()
}

// recoveringCursor reads from a goleveldb iterator until it stops on a block
// goleveldb cannot read. The remaining keys are then read from the table
// files.
type recoveringCursor struct {
	cursor
	l         *levelDB
	prefix    []byte
	last      []byte
	recovered bool
	err       error
}

func (c *recoveringCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if c.cursor.Next() {
		c.last = append(c.last[:0], c.cursor.Key()...)
		return true
	}
	err := c.cursor.Error()
	if err == nil || c.recovered || !isCorrupted(err) {
		return false
	}
	c.recovered = true
	c.l.log.Debug("engine scan failed, reading table files", "prefix", c.prefix, "error", err)
	view, err := loadFileView(c.l.dir, c.l.reg, c.prefix)
	if err != nil {
		c.err = err
		return false
	}
	var after []byte
	if c.last != nil {
		after = bytes.Clone(c.last)
	}
	c.cursor.Release()
	c.cursor = view.cursor(after)
	return c.Next()
}

func (c *recoveringCursor) Error() error {
	if c.err != nil {
		return c.err
	}
	return c.cursor.Error()
}
