package bedrockdb

import (
	"bytes"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lapis256/bedrockdb/compression"
	"github.com/Lapis256/bedrockdb/record"
	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testOptions returns the default options with logging discarded.
func testOptions() *Options {
	o := DefaultOptions()
	o.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	return o
}

// newTestWorld creates a world directory whose database holds records.
func newTestWorld(t testing.TB, records map[string][]byte) string {
	dir := t.TempDir()
	ldb, err := leveldb.OpenFile(dbPath(dir), &opt.Options{Compression: opt.NoCompression})
	require.NoError(t, err)
	for k, v := range records {
		require.NoError(t, ldb.Put([]byte(k), v, nil))
	}
	require.NoError(t, ldb.Close())
	return dir
}

// openTestWorld opens dir with o and closes it when the test ends.
func openTestWorld(t testing.TB, dir string, o *Options) *DB {
	db, err := Config{Options: o}.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustCompound(t testing.TB, tag map[string]any) []byte {
	data, err := record.WriteCompound(tag)
	require.NoError(t, err)
	return data
}

func mustMap(t testing.TB, id int64) []byte {
	data, err := record.NewMap(id).Encode()
	require.NoError(t, err)
	return data
}

func TestOpenMissingDatabase(t *testing.T) {
	db := openTestWorld(t, t.TempDir(), testOptions())
	require.Equal(t, StateUnopened, db.State())

	_, err := db.DynamicProperties()
	require.ErrorIs(t, err, ErrStoreClosed)
	_, err = db.Entities()
	require.ErrorIs(t, err, ErrStoreClosed)
	_, err = db.Maps()
	require.ErrorIs(t, err, ErrStoreClosed)
	_, err = db.LocalPlayer()
	require.ErrorIs(t, err, ErrStoreClosed)
	require.ErrorIs(t, db.PutMap(record.NewMap(1)), ErrStoreClosed)

	require.NoError(t, db.Close())
	require.Equal(t, StateClosed, db.State())
}

func TestOpenMissingDatabaseIsNotCreated(t *testing.T) {
	dir := t.TempDir()
	openTestWorld(t, dir, testOptions())
	_, err := os.Stat(dbPath(dir))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOpenInvalidOptions(t *testing.T) {
	o := testOptions()
	o.CompressionLevel = 11
	_, err := Config{Options: o}.Open(t.TempDir())
	require.ErrorIs(t, err, compression.ErrInvalidLevel)

	o = testOptions()
	o.Compression = compression.ID(3)
	_, err = Config{Options: o}.Open(t.TempDir())
	var unknown *compression.UnknownCodecError
	require.True(t, errors.As(err, &unknown))
}

func TestOpenDefaultsOptions(t *testing.T) {
	db, err := Config{}.Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	require.Equal(t, compression.MaxLevel, db.Registry().Level())
	require.Equal(t, compression.RawDeflate, db.Registry().Preferred())
}

func TestEntities(t *testing.T) {
	dir := newTestWorld(t, map[string][]byte{
		"actorprefix\x02": mustCompound(t, map[string]any{"identifier": "minecraft:pig"}),
		"actorprefix\x01": mustCompound(t, map[string]any{"identifier": "minecraft:cow"}),
		"map_7":           mustMap(t, 7),
		"~local_player":   mustCompound(t, map[string]any{"identifier": "minecraft:player"}),
	})
	db := openTestWorld(t, dir, testOptions())
	require.Equal(t, StateOpen, db.State())

	entities, err := db.Entities()
	require.NoError(t, err)
	require.Len(t, entities, 2)
	require.Equal(t, []byte("actorprefix\x01"), entities[0].Key())
	require.Equal(t, []byte("actorprefix\x02"), entities[1].Key())
	id, ok := entities[0].Identifier()
	require.True(t, ok)
	require.Equal(t, "minecraft:cow", id)

	maps, err := db.Maps()
	require.NoError(t, err)
	require.Len(t, maps, 1)
	require.Equal(t, int64(7), maps[0].ID)
}

func TestEntitiesEmpty(t *testing.T) {
	dir := newTestWorld(t, map[string][]byte{"map_7": mustMap(t, 7)})
	db := openTestWorld(t, dir, testOptions())

	entities, err := db.Entities()
	require.NoError(t, err)
	require.Empty(t, entities)
}

func TestEntitiesMalformed(t *testing.T) {
	dir := newTestWorld(t, map[string][]byte{
		"actorprefix\x01": mustCompound(t, map[string]any{"identifier": "minecraft:cow"}),
		"actorprefix\x03": {0xff, 0x00, 0x01},
	})
	db := openTestWorld(t, dir, testOptions())

	entities, err := db.Entities()
	require.Nil(t, entities)
	var kerr *KeyError
	require.True(t, errors.As(err, &kerr))
	require.Equal(t, []byte("actorprefix\x03"), kerr.Key)
	var derr *record.DecodeError
	require.True(t, errors.As(err, &derr))
}

func TestEntityIterator(t *testing.T) {
	dir := newTestWorld(t, map[string][]byte{
		"actorprefix\x01": mustCompound(t, map[string]any{"identifier": "minecraft:cow"}),
		"actorprefix\x02": {0xff},
	})
	db := openTestWorld(t, dir, testOptions())

	iter, err := db.NewEntityIterator()
	require.NoError(t, err)
	defer iter.Release()

	require.True(t, iter.Next())
	require.Equal(t, []byte("actorprefix\x01"), iter.Key())
	require.NotNil(t, iter.Value())
	require.False(t, iter.Next())
	require.Error(t, iter.Error())
	require.False(t, iter.Next())
}

func TestMapsMalformed(t *testing.T) {
	dir := newTestWorld(t, map[string][]byte{
		"map_7": mustMap(t, 7),
		"map_8": mustCompound(t, map[string]any{"mapId": int64(8)}),
	})
	db := openTestWorld(t, dir, testOptions())

	_, err := db.Maps()
	var kerr *KeyError
	require.True(t, errors.As(err, &kerr))
	require.Equal(t, []byte("map_8"), kerr.Key)
	var derr *record.DecodeError
	require.True(t, errors.As(err, &derr))
	require.Equal(t, "dimension", derr.Path)
}

func TestMapRoundTrip(t *testing.T) {
	db := openTestWorld(t, newTestWorld(t, nil), testOptions())

	m := record.NewMap(-12)
	m.Scale, m.XCenter, m.ZCenter, m.Locked = 2, 64, -64, 1
	m.SetPixel(3, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	require.NoError(t, db.PutMap(m))

	got, err := db.Map(-12)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestMapNotFound(t *testing.T) {
	db := openTestWorld(t, newTestWorld(t, nil), testOptions())

	_, err := db.Map(99)
	require.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, []byte("map_99"), nf.Key)
}

func TestDynamicPropertiesRoundTrip(t *testing.T) {
	db := openTestWorld(t, newTestWorld(t, nil), testOptions())

	_, err := db.DynamicProperties()
	require.ErrorIs(t, err, ErrNotFound)

	props := record.DynamicProperties{
		"b1a7c3a4-0000-4000-8000-000000000001": record.Properties{
			"enabled": record.Bool(true),
			"speed":   record.Double(1.5),
			"name":    record.String("spawn"),
			"origin":  record.Vector3{1, 64, -1},
		},
	}
	require.NoError(t, db.PutDynamicProperties(props))

	got, err := db.DynamicProperties()
	require.NoError(t, err)
	require.Equal(t, props, got)
}

func TestPutDynamicPropertiesNilValue(t *testing.T) {
	db := openTestWorld(t, newTestWorld(t, nil), testOptions())

	err := db.PutDynamicProperties(record.DynamicProperties{"o": record.Properties{"k": nil}})
	var kerr *KeyError
	require.True(t, errors.As(err, &kerr))
	require.Equal(t, FixedKey(KeyDynamicProperties), kerr.Key)
	var eerr *record.EncodeError
	require.True(t, errors.As(err, &eerr))
	require.Equal(t, "o.k", eerr.Path)

	_, err = db.DynamicProperties()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutLocalPlayerUsesFixedKey(t *testing.T) {
	dir := newTestWorld(t, map[string][]byte{
		"actorprefix\x01": mustCompound(t, map[string]any{"identifier": "minecraft:cow"}),
	})
	db := openTestWorld(t, dir, testOptions())

	e, err := db.Entity([]byte("actorprefix\x01"))
	require.NoError(t, err)
	e.NBT["Health"] = float32(8)
	require.NoError(t, db.PutLocalPlayer(e))

	player, err := db.LocalPlayer()
	require.NoError(t, err)
	require.Equal(t, []byte("~local_player"), player.Key())
	require.Equal(t, float32(8), player.NBT["Health"])

	orig, err := db.Entity([]byte("actorprefix\x01"))
	require.NoError(t, err)
	require.NotContains(t, orig.NBT, "Health")
}

func TestPutEntity(t *testing.T) {
	db := openTestWorld(t, newTestWorld(t, nil), testOptions())

	e := record.NewEntity([]byte("actorprefix\x05"), map[string]any{
		"identifier": "minecraft:sheep",
		"UniqueID":   int64(5),
	})
	require.NoError(t, db.PutEntity(e))

	got, err := db.Entity([]byte("actorprefix\x05"))
	require.NoError(t, err)
	id, ok := got.UniqueID()
	require.True(t, ok)
	require.Equal(t, int64(5), id)

	require.Error(t, db.PutEntity(record.NewEntity(nil, nil)))
}

func TestPlayers(t *testing.T) {
	db := openTestWorld(t, newTestWorld(t, nil), testOptions())

	id := uuid.MustParse("0f9d5c0c-7d1a-4f3e-a9a1-5d6f0c1e2b3a")
	require.NoError(t, db.PutEntity(record.NewEntity(PlayerKey(id), map[string]any{
		"identifier": "minecraft:player",
	})))

	players, err := db.Players()
	require.NoError(t, err)
	require.Len(t, players, 1)
	require.Contains(t, players, id)

	p, err := db.Player(id)
	require.NoError(t, err)
	require.Equal(t, PlayerKey(id), p.Key())
}

func TestPlayersBadUUID(t *testing.T) {
	dir := newTestWorld(t, map[string][]byte{
		"player_server_not-a-uuid": mustCompound(t, map[string]any{}),
	})
	db := openTestWorld(t, dir, testOptions())

	_, err := db.Players()
	var kerr *KeyError
	require.True(t, errors.As(err, &kerr))
	require.Equal(t, []byte("player_server_not-a-uuid"), kerr.Key)
}

// failingFlush is an engine whose flushes always fail, dropping staged puts.
type failingFlush struct {
	*levelDB
	err error
}

func (f *failingFlush) Flush() error {
	f.batch.Reset()
	return f.err
}

func withFailingFlush(t *testing.T, db *DB) error {
	ldb, ok := db.eng.(*levelDB)
	require.True(t, ok)
	err := errors.New("disk full")
	db.eng = &failingFlush{levelDB: ldb, err: err}
	return err
}

func TestFlushBestEffort(t *testing.T) {
	var logs bytes.Buffer
	o := testOptions()
	o.Log = slog.New(slog.NewTextHandler(&logs, nil))
	db := openTestWorld(t, newTestWorld(t, nil), o)
	withFailingFlush(t, db)

	require.NoError(t, db.PutMap(record.NewMap(1)))
	require.Contains(t, logs.String(), "flush after put failed")
	require.Contains(t, logs.String(), "disk full")

	_, err := db.Map(1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFlushStrict(t *testing.T) {
	o := StrictOptions()
	o.Log = testOptions().Log
	db := openTestWorld(t, newTestWorld(t, nil), o)
	flushErr := withFailingFlush(t, db)

	err := db.PutMap(record.NewMap(1))
	require.ErrorIs(t, err, flushErr)
	var kerr *KeyError
	require.True(t, errors.As(err, &kerr))
	require.Equal(t, []byte("map_1"), kerr.Key)
}

func TestReadOnly(t *testing.T) {
	dir := newTestWorld(t, map[string][]byte{"map_7": mustMap(t, 7)})
	o := testOptions()
	o.ReadOnly = true
	db := openTestWorld(t, dir, o)

	_, err := db.Map(7)
	require.NoError(t, err)
	require.ErrorIs(t, db.PutMap(record.NewMap(8)), ErrReadOnly)
	require.ErrorIs(t, db.SaveLevelHeader(record.NewLevelHeader(10, "World")), ErrReadOnly)
}

func TestClose(t *testing.T) {
	dir := newTestWorld(t, nil)
	db := openTestWorld(t, dir, testOptions())
	require.NoError(t, db.PutMap(record.NewMap(3)))

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
	require.Equal(t, StateClosed, db.State())
	_, err := db.Map(3)
	require.ErrorIs(t, err, ErrStoreClosed)

	db = openTestWorld(t, dir, testOptions())
	m, err := db.Map(3)
	require.NoError(t, err)
	require.Equal(t, record.NewMap(3), m)
}

func TestLevelHeader(t *testing.T) {
	dir := t.TempDir()
	db := openTestWorld(t, dir, testOptions())

	_, err := db.LevelHeader()
	require.ErrorIs(t, err, os.ErrNotExist)

	h := record.NewLevelHeader(10, "My World")
	h.NBT["GameType"] = int32(1)
	require.NoError(t, db.SaveLevelHeader(h))

	name, err := os.ReadFile(filepath.Join(dir, "levelname.txt"))
	require.NoError(t, err)
	require.Equal(t, "My World", string(name))

	got, err := db.LevelHeader()
	require.NoError(t, err)
	require.Equal(t, int32(10), got.Version)
	require.Equal(t, "My World", got.LevelName())
	require.Equal(t, int32(1), got.NBT["GameType"])

	data, err := got.Data()
	require.NoError(t, err)
	require.Equal(t, "My World", data.LevelName)
}
