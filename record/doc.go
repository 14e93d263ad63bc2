// Package record converts between little-endian NBT tag trees and the typed
// records stored in a Bedrock world: the dynamic property table, entities,
// map tiles and the level.dat header.
//
// Tag trees are handled as map[string]any, the representation produced by
// the gophertunnel NBT decoder. The package performs no I/O besides the byte
// level encoding of those trees, and never touches the key-value store.
package record
