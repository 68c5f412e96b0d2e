// Package natsclient manages a core NATS connection for moodzy's optional
// NATS feed endpoints.
//
// The client tracks connection status, logs connection events through slog,
// reports status to the core metrics and opens a simple circuit breaker
// after repeated failed connects:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMaxReconnects(10),
//	    natsclient.WithConnectionLostCallback(func(err error) {
//	        fatal <- err
//	    }),
//	)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Subscribe(ctx, "moods.>", func(ctx context.Context, data []byte) {
//	    // one message, one payload
//	})
//
// The connection-lost callback fires only when the connection closes
// without Close being called, which is how callers learn that reconnects
// were exhausted.
//
// TestClient starts a throwaway NATS server with testcontainers for
// integration tests.
package natsclient
