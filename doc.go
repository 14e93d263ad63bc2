// Package bedrockdb implements typed access to the records of a Minecraft
// Bedrock world save.
//
// A world directory holds a level.dat header and a LevelDB database in db/.
// The DB type opens that database together with the world and exposes the
// records kept in it: the world dynamic property table, the local player,
// remote players, actors and rendered maps. Keys follow the conventions of
// the game, so worlds written by this package can be loaded by Minecraft and
// vice versa.
//
// Opening a world never fails because of the database: if db/ is missing or
// cannot be opened, the DB stays unopened, LevelHeader still works and every
// record operation returns ErrStoreClosed.
//
//	db, err := bedrockdb.Open("worlds/Bedrock level")
//	if err != nil {
//		// Invalid configuration.
//	}
//	defer db.Close()
//	maps, err := db.Maps()
package bedrockdb
