package bedrockdb

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Lapis256/bedrockdb/compression"
	"github.com/Lapis256/bedrockdb/record"
	"github.com/google/uuid"
)

// ErrReadOnly is returned by writes to a DB opened with Options.ReadOnly.
var ErrReadOnly = errors.New("world database is read-only")

// State is the state of the database handle of a DB.
type State int

const (
	// StateUnopened is the state of a DB whose database could not be opened.
	StateUnopened State = iota
	// StateOpen is the state of a DB ready for record operations.
	StateOpen
	// StateClosed is the state of a DB after Close.
	StateClosed
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DB provides typed access to the records of a Bedrock world.
//
// A DB is not safe for concurrent use. Callers sharing one between goroutines
// must serialise access themselves.
type DB struct {
	conf  Config
	dir   string
	reg   *compression.Registry
	log   *slog.Logger
	state State
	eng   engine
}

// Open opens the world in dir using default options.
func Open(dir string) (*DB, error) {
	var conf Config
	return conf.Open(dir)
}

// newDB creates a new DB instance and attempts to open its database.
func newDB(conf Config, dir string) (*DB, error) {
	reg, err := compression.NewRegistry(conf.Options.CompressionLevel, conf.Options.Compression)
	if err != nil {
		return nil, fmt.Errorf("open world: %w", err)
	}
	db := &DB{
		conf: conf,
		dir:  dir,
		reg:  reg,
		log:  conf.Options.Log,
	}

	eng, err := openLevelDB(dbPath(dir), reg, conf.Options)
	if err != nil {
		db.log.Warn("world database unavailable, continuing unopened", "dir", dir, "error", err)
		return db, nil
	}
	db.eng, db.state = eng, StateOpen
	return db, nil
}

// State returns the state of the database handle.
func (db *DB) State() State {
	return db.state
}

// Dir returns the world directory.
func (db *DB) Dir() string {
	return db.dir
}

// Registry returns the compression codecs the database was opened with.
func (db *DB) Registry() *compression.Registry {
	return db.reg
}

// engine returns the database handle if it is open.
func (db *DB) engine() (engine, error) {
	if db.state != StateOpen {
		return nil, ErrStoreClosed
	}
	return db.eng, nil
}

// getCompound reads and decodes the record stored under key.
func (db *DB) getCompound(key []byte) (map[string]any, error) {
	e, err := db.engine()
	if err != nil {
		return nil, err
	}
	data, err := e.Get(key)
	if err != nil {
		return nil, err
	}
	tag, err := record.ReadCompound(data)
	if err != nil {
		return nil, &KeyError{Key: key, Err: err}
	}
	return tag, nil
}

// putCompound encodes tag and stores it under key, flushing the write.
func (db *DB) putCompound(key []byte, tag map[string]any) error {
	e, err := db.engine()
	if err != nil {
		return err
	}
	if db.conf.Options.ReadOnly {
		return ErrReadOnly
	}
	data, err := record.WriteCompound(tag)
	if err != nil {
		return &KeyError{Key: key, Err: err}
	}
	if err := e.Put(key, data); err != nil {
		return &KeyError{Key: key, Err: err}
	}
	if err := e.Flush(); err != nil {
		if db.conf.Options.Flush == FlushStrict {
			return &KeyError{Key: key, Err: err}
		}
		db.log.Warn("flush after put failed", "key", fmt.Sprintf("%q", key), "error", err)
	}
	return nil
}

// LevelHeader reads the level.dat of the world. It does not need the
// database to be open.
func (db *DB) LevelHeader() (*record.LevelHeader, error) {
	data, err := os.ReadFile(levelDatPath(db.dir))
	if err != nil {
		return nil, fmt.Errorf("read level.dat: %w", err)
	}
	return record.DecodeLevelHeader(data)
}

// SaveLevelHeader writes h to the level.dat of the world and its name to
// levelname.txt.
func (db *DB) SaveLevelHeader(h *record.LevelHeader) error {
	if db.conf.Options.ReadOnly {
		return ErrReadOnly
	}
	data, err := h.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(levelDatPath(db.dir), data, 0666); err != nil {
		return fmt.Errorf("write level.dat: %w", err)
	}
	if err := os.WriteFile(levelNamePath(db.dir), []byte(h.LevelName()), 0644); err != nil {
		return fmt.Errorf("write levelname.txt: %w", err)
	}
	return nil
}

// DynamicProperties reads the world's dynamic property table.
func (db *DB) DynamicProperties() (record.DynamicProperties, error) {
	key := FixedKey(KeyDynamicProperties)
	tag, err := db.getCompound(key)
	if err != nil {
		return nil, err
	}
	props, err := record.DecodeDynamicProperties(tag)
	if err != nil {
		return nil, &KeyError{Key: key, Err: err}
	}
	return props, nil
}

// PutDynamicProperties replaces the world's dynamic property table.
func (db *DB) PutDynamicProperties(props record.DynamicProperties) error {
	key := FixedKey(KeyDynamicProperties)
	tag, err := record.EncodeDynamicProperties(props)
	if err != nil {
		return &KeyError{Key: key, Err: err}
	}
	return db.putCompound(key, tag)
}

// Entity reads the entity stored under key.
func (db *DB) Entity(key []byte) (*record.Entity, error) {
	tag, err := db.getCompound(key)
	if err != nil {
		return nil, err
	}
	return record.NewEntity(key, tag), nil
}

// PutEntity writes e back under its own key.
func (db *DB) PutEntity(e *record.Entity) error {
	key := e.Key()
	if len(key) == 0 {
		return errors.New("put entity: entity has no key")
	}
	return db.putCompound(key, e.NBT)
}

// LocalPlayer reads the player of a single player world.
func (db *DB) LocalPlayer() (*record.Entity, error) {
	return db.Entity(FixedKey(KeyLocalPlayer))
}

// PutLocalPlayer writes e as the player of a single player world, regardless
// of the key e was read from.
func (db *DB) PutLocalPlayer(e *record.Entity) error {
	return db.putCompound(FixedKey(KeyLocalPlayer), e.NBT)
}

// NewEntityIterator returns an Iterator over all actors of the world.
func (db *DB) NewEntityIterator() (*Iterator[*record.Entity], error) {
	e, err := db.engine()
	if err != nil {
		return nil, err
	}
	return newIterator(e, FamilyActor, record.DecodeEntity), nil
}

// Entities reads all actors of the world. A single malformed actor fails the
// whole call.
func (db *DB) Entities() ([]*record.Entity, error) {
	iter, err := db.NewEntityIterator()
	if err != nil {
		return nil, err
	}
	return collect(iter)
}

// Player reads the server player with the UUID passed.
func (db *DB) Player(id uuid.UUID) (*record.Entity, error) {
	return db.Entity(PlayerKey(id))
}

// Players reads all server players of the world, keyed by UUID.
func (db *DB) Players() (map[uuid.UUID]*record.Entity, error) {
	e, err := db.engine()
	if err != nil {
		return nil, err
	}
	type player struct {
		id     uuid.UUID
		entity *record.Entity
	}
	iter := newIterator(e, FamilyPlayer, func(key, value []byte) (player, error) {
		suffix, _ := FamilyPlayer.Suffix(key)
		id, err := uuid.ParseBytes(suffix)
		if err != nil {
			return player{}, fmt.Errorf("parse player uuid: %w", err)
		}
		ent, err := record.DecodeEntity(key, value)
		return player{id: id, entity: ent}, err
	})
	all, err := collect(iter)
	if err != nil {
		return nil, err
	}
	players := make(map[uuid.UUID]*record.Entity, len(all))
	for _, p := range all {
		players[p.id] = p.entity
	}
	return players, nil
}

// decodeMap decodes the map stored under key.
func decodeMap(key, value []byte) (*record.Map, error) {
	tag, err := record.ReadCompound(value)
	if err != nil {
		return nil, err
	}
	return record.DecodeMap(tag)
}

// Map reads the map with the id passed.
func (db *DB) Map(id int64) (*record.Map, error) {
	key := MapKey(id)
	tag, err := db.getCompound(key)
	if err != nil {
		return nil, err
	}
	m, err := record.DecodeMap(tag)
	if err != nil {
		return nil, &KeyError{Key: key, Err: err}
	}
	return m, nil
}

// PutMap writes m under the key derived from its id.
func (db *DB) PutMap(m *record.Map) error {
	return db.putCompound(MapKey(m.ID), m.Tag())
}

// NewMapIterator returns an Iterator over all maps of the world.
func (db *DB) NewMapIterator() (*Iterator[*record.Map], error) {
	e, err := db.engine()
	if err != nil {
		return nil, err
	}
	return newIterator(e, FamilyMap, decodeMap), nil
}

// Maps reads all maps of the world. A single malformed map fails the whole
// call.
func (db *DB) Maps() ([]*record.Map, error) {
	iter, err := db.NewMapIterator()
	if err != nil {
		return nil, err
	}
	return collect(iter)
}

// Verify checks the table files of the world database. It works whether or
// not the database could be opened.
func (db *DB) Verify() (*VerifyReport, error) {
	return VerifyTables(dbPath(db.dir), db.reg)
}

// Close flushes and closes the database. Failures are logged, not returned,
// and closing more than once is a no-op.
func (db *DB) Close() error {
	if db.state == StateOpen {
		if err := db.eng.Flush(); err != nil {
			db.log.Warn("close: flush", "error", err)
		}
		if err := db.eng.Close(); err != nil {
			db.log.Warn("close: close database", "error", err)
		}
		db.eng = nil
	}
	db.state = StateClosed
	return nil
}
