// Package syncstore keeps a client-side mirror of the user registry.
//
// The mirror is fed from two directions that run concurrently:
//
//   - pull: the REST list endpoint, polled on an interval and merged with
//     ApplySnapshot (last write wins per id)
//   - push: relay events from the broadcast hub, merged with ApplyEvent
//
// A relay event for a known id changes only that user's mood. An event for
// an unknown id inserts a new user at the front. Messages whose type is not
// "simuser" are rejected with ErrUnrecognizedMessage and never touch state.
//
// Simulated users arrive only by push and are never stored in the registry,
// so ApplySnapshot keeps them even though the snapshot does not list them.
//
// Basic usage:
//
//	client := syncstore.NewAPIClient("http://localhost:3000")
//	store := syncstore.New(client)
//	syncer := syncstore.NewSyncer(store, syncstore.SyncerConfig{
//	    HubURL: "ws://localhost:9006/sim/publish",
//	})
//	err := syncer.Run(ctx)
package syncstore
