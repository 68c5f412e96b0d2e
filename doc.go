// Package moodzy is a live mood registry and relay.
//
// It keeps an in-memory registry of users (name, mood, and whether the user
// is real or simulated) behind a REST API. Separately, it relays mood
// changes published by upstream simulation feeds to every connected
// live-view client.
//
// # Architecture
//
// The two halves share a record schema but never write into each other:
//
//	┌──────────────────────┐        ┌──────────────────────┐
//	│  upstream feeds      │        │  REST clients        │
//	│  ZeroMQ PUB / NATS   │        │  (moodwatch, web UI) │
//	└──────────┬───────────┘        └──────────┬───────────┘
//	           │ SimUser protobuf              │ JSON
//	┌──────────▼───────────┐        ┌──────────▼───────────┐
//	│  input/feed          │        │  gateway/http        │
//	│  decode, translate   │        │  gin, validation     │
//	└──────────┬───────────┘        └──────────┬───────────┘
//	           │ feed.Event                    │
//	┌──────────▼───────────┐        ┌──────────▼───────────┐
//	│  output/websocket    │        │  registry            │
//	│  broadcast hub       │        │  id → encoded record │
//	└──────────┬───────────┘        └──────────────────────┘
//	           │ text frames
//	┌──────────▼───────────┐
//	│  syncstore           │  merges push events with REST snapshots
//	└──────────────────────┘
//
// Relay events never touch the registry. A simulated user shown in a live
// view has no registry entry, and the client sync store keeps such users
// across snapshots.
//
// # Packages
//
// Core:
//   - codec: protobuf wire encoding of UserRecord and SimUser
//   - idalloc: random ids that are never issued twice
//   - registry: the user store
//   - input/feed: the feed aggregator
//   - output/websocket: the broadcast hub
//   - gateway/http: the REST gateway
//   - syncstore: the client-side mirror and its REST client
//
// Infrastructure:
//   - component: lifecycle and discovery contract for long-running parts
//   - health: health aggregation served on /health
//   - metric: Prometheus registry and /metrics server
//   - natsclient: NATS connection management for nats:// feed endpoints
//   - config: layered file and environment configuration
//   - errors: transient, invalid and fatal error classification
//   - pkg/retry, pkg/timestamp, pkg/worker, pkg/security, pkg/tlsutil
//
// Commands:
//   - cmd/moodzy: the server
//   - cmd/moodsim: a simulator that publishes SimUser payloads
//   - cmd/moodwatch: a terminal client built on syncstore
//
// # Running
//
//	moodsim --endpoints tcp://127.0.0.1:9000,tcp://127.0.0.1:9001 &
//	moodzy --config moodzy.yaml
//	moodwatch --add "Ada:curious"
//
// A feed transport failure is fatal: moodzy stops every component and exits
// non-zero, leaving restarts to the supervisor.
//
// # Persistence
//
// None. The registry, the issued-id set and the relay are memory resident
// and start empty on every restart.
package moodzy
