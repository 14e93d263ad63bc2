// Package compression implements the block compression strategies used by
// Bedrock world databases.
//
// LevelDB records a one byte codec id in the trailer of every table block.
// Upstream LevelDB only knows 0 (none) and 1 (snappy); Bedrock adds 2
// (zlib-wrapped deflate) and 4 (raw deflate). A Registry resolves those ids to
// strategies and is passed explicitly to every store that needs one:
//
//	reg, err := compression.NewRegistry(10, compression.RawDeflate)
//	if err != nil {
//		// The level was outside 0-10.
//	}
//	block, err := reg.Decode(compression.Zlib, data)
package compression
