// Package feed implements the feed aggregator: it subscribes to every
// configured upstream simulation endpoint, decodes each SimUser payload,
// translates the numeric mood into its label and hands a relay Event to a
// Publisher (the broadcast hub).
//
// # Endpoints
//
// Endpoint URLs select the transport by scheme:
//
//	tcp://127.0.0.1:9000       ZeroMQ SUB
//	ipc:///tmp/moodsim.sock    ZeroMQ SUB
//	inproc://moodsim           ZeroMQ SUB
//	nats://127.0.0.1:4222/sim  NATS subject "sim" (no path subscribes to ">")
//
// All ZeroMQ endpoints are dialed by one SUB socket with an empty topic
// filter. Each NATS server gets its own connection. Every source writes into
// one inbound channel, so events are emitted in arrival order.
//
// # Framing
//
// A ZeroMQ message may carry several frames; the last frame is the payload.
// Messages without frames are counted as malformed. Payloads that do not
// decode are logged, counted and skipped.
//
// # Failure policy
//
// Run returns nil when its context is cancelled. Any transport failure
// (dial error, receive error, NATS connection lost) ends Run with an error
// classified fatal. The aggregator does not reconnect; the process exits and
// its supervisor restarts it.
package feed
