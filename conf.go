package bedrockdb

import (
	"log/slog"
	"path/filepath"

	"github.com/Lapis256/bedrockdb/compression"
)

// FlushPolicy specifies how failures of the flush that follows every put are
// handled.
type FlushPolicy int

const (
	// FlushBestEffort logs a failed flush and reports the put as successful.
	FlushBestEffort FlushPolicy = iota
	// FlushStrict returns a failed flush as the error of the put.
	FlushStrict
)

// String returns the name of the policy.
func (p FlushPolicy) String() string {
	if p == FlushStrict {
		return "strict"
	}
	return "best-effort"
}

// Options holds configuration options for a world database.
type Options struct {
	// CompressionLevel is the deflate level used for zlib and raw deflate
	// blocks encoded through the registry. It must be between 0 and 10.
	// Defaults to 10, the level the game uses. The engine writes its own
	// blocks uncompressed at level 0 and at a fixed deflate level otherwise.
	CompressionLevel int

	// Compression is the codec id used for newly written table blocks. Blocks
	// already on disk are read with whatever codec they were written with.
	// Defaults to compression.RawDeflate.
	Compression compression.ID

	// BlockSize is the approximate size of uncompressed table blocks.
	// Defaults to 16KB.
	BlockSize int

	// ReadOnly opens the database without write access. Puts fail.
	ReadOnly bool

	// Flush selects how failed flushes after a put are reported. Defaults to
	// FlushBestEffort.
	Flush FlushPolicy

	// Log is the Logger to use for debug messages and errors.
	// If nil, defaults to slog.Default().
	Log *slog.Logger
}

// DefaultOptions returns the options matching the game's own settings.
func DefaultOptions() *Options {
	return &Options{
		CompressionLevel: compression.MaxLevel,
		Compression:      compression.RawDeflate,
		BlockSize:        16 * 1024,
		Flush:            FlushBestEffort,
		Log:              slog.Default(),
	}
}

// StrictOptions returns DefaultOptions with failed flushes reported to the
// caller.
func StrictOptions() *Options {
	o := DefaultOptions()
	o.Flush = FlushStrict
	return o
}

// Config holds configuration for opening a world.
type Config struct {
	Options *Options
}

// Open returns a DB for the world directory passed. The returned error is
// only non-nil if the configuration is invalid; a database that cannot be
// opened leaves the DB in the unopened state instead.
func (conf Config) Open(dir string) (*DB, error) {
	if conf.Options == nil {
		conf.Options = DefaultOptions()
	}
	o := *conf.Options
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.BlockSize <= 0 {
		o.BlockSize = 16 * 1024
	}
	o.Log = o.Log.With("provider", "bedrockdb")
	conf.Options = &o

	return newDB(conf, dir)
}

// dbPath returns the path to the LevelDB directory of a world.
func dbPath(dir string) string {
	return filepath.Join(dir, "db")
}

// levelDatPath returns the path to the level.dat of a world.
func levelDatPath(dir string) string {
	return filepath.Join(dir, "level.dat")
}

// levelNamePath returns the path to the levelname.txt of a world.
func levelNamePath(dir string) string {
	return filepath.Join(dir, "levelname.txt")
}
