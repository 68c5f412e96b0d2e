// Package websocket implements the broadcast hub: a websocket server that
// pushes every relay event from the feed aggregator to all live-view clients.
//
// The hub is a feed.Publisher. Publish hands the event to a single-worker
// queue and returns at once; when the queue is full the event is dropped and
// ErrQueueFull is returned, so the aggregator never blocks on slow clients.
//
// The worker serializes each event once and writes the text frame to every
// client that is open and not already busy writing, each from its own
// goroutine with a write deadline. Clients that are still handshaking, closed
// or mid-write are skipped. There is no per-client backlog and no replay:
// a client sees the events broadcast while it was ready.
//
// Client lifecycle:
//
//	connecting -> open -> closed
//
// A client turns closed on a read error, a write error, a close frame or hub
// shutdown. Its reader goroutine removes it from the client set. Frames sent
// by clients are read only to notice the close; their content is ignored.
//
// The hub listens on its own port by default (":9006/sim/publish"). A hub
// built with Mounted set serves only through ServeHTTP, which lets tests and
// other muxes host it.
package websocket
