package bedrockdb

import (
	"bytes"
	"strconv"

	"github.com/google/uuid"
)

// Keys of records stored exactly once per world.
const (
	KeyDynamicProperties = "DynamicProperties"
	KeyLocalPlayer       = "~local_player"
)

// Family is a key prefix shared by a class of records. The rest of a key in a
// family identifies a single record.
type Family string

const (
	// FamilyActor holds actors. The suffix is an opaque id assigned by the
	// game and is never parsed.
	FamilyActor Family = "actorprefix"
	// FamilyMap holds map tiles. The suffix is the decimal map id.
	FamilyMap Family = "map_"
	// FamilyPlayer holds players that joined a server hosting the world. The
	// suffix is the player's UUID in string form.
	FamilyPlayer Family = "player_server_"
)

// FixedKey returns the key of a record stored exactly once per world, such as
// KeyLocalPlayer.
func FixedKey(name string) []byte {
	return []byte(name)
}

// PrefixedKey returns the key of the record identified by id in family f.
func PrefixedKey(f Family, id []byte) []byte {
	key := make([]byte, 0, len(f)+len(id))
	key = append(key, f...)
	return append(key, id...)
}

// Prefix returns the prefix that a scan over all records of f uses.
func (f Family) Prefix() []byte {
	return []byte(f)
}

// Suffix returns the part of key following the family prefix. ok is false if
// key is not part of f.
func (f Family) Suffix(key []byte) (suffix []byte, ok bool) {
	if !bytes.HasPrefix(key, []byte(f)) {
		return nil, false
	}
	return key[len(f):], true
}

// MapKey returns the key of the map with the id passed.
func MapKey(id int64) []byte {
	return PrefixedKey(FamilyMap, strconv.AppendInt(nil, id, 10))
}

// PlayerKey returns the key of the server player with the UUID passed.
func PlayerKey(id uuid.UUID) []byte {
	return PrefixedKey(FamilyPlayer, []byte(id.String()))
}
