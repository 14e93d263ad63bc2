package bedrockdb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestFixedKey(t *testing.T) {
	require.Equal(t, []byte("~local_player"), FixedKey(KeyLocalPlayer))
	require.Equal(t, []byte("DynamicProperties"), FixedKey(KeyDynamicProperties))
}

func TestMapKey(t *testing.T) {
	require.Equal(t, []byte("map_7"), MapKey(7))
	require.Equal(t, []byte("map_-4294967296"), MapKey(-4294967296))
	require.Equal(t, []byte("map_0"), MapKey(0))
}

func TestPlayerKey(t *testing.T) {
	id := uuid.MustParse("a2b8d1a4-5b1e-4b0e-9e43-2f3a7e6a3c10")
	require.Equal(t, []byte("player_server_a2b8d1a4-5b1e-4b0e-9e43-2f3a7e6a3c10"), PlayerKey(id))
}

func TestFamilySuffix(t *testing.T) {
	key := PrefixedKey(FamilyActor, []byte{0, 0, 0, 1, 0, 0, 0, 2})
	require.Equal(t, []byte("actorprefix\x00\x00\x00\x01\x00\x00\x00\x02"), key)

	suffix, ok := FamilyActor.Suffix(key)
	require.True(t, ok)
	require.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2}, suffix)

	_, ok = FamilyMap.Suffix(key)
	require.False(t, ok)

	suffix, ok = FamilyMap.Suffix(MapKey(12))
	require.True(t, ok)
	require.Equal(t, []byte("12"), suffix)
}

func TestPrefixedKeyDoesNotAlias(t *testing.T) {
	id := []byte{1, 2}
	key := PrefixedKey(FamilyActor, id)
	id[0] = 9
	require.Equal(t, []byte("actorprefix\x01\x02"), key)
}
