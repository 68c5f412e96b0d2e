package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/stretchr/testify/require"
)

// StartPub binds a ZeroMQ publisher on a random local port and returns it
// with its tcp:// endpoint. The socket is closed when the test ends.
func StartPub(t testing.TB) (zmq4.Socket, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	pub := zmq4.NewPub(ctx)
	t.Cleanup(func() {
		_ = pub.Close()
		cancel()
	})
	require.NoError(t, pub.Listen("tcp://127.0.0.1:0"))
	return pub, "tcp://" + pub.Addr().String()
}

// PublishUntil resends msg every 20ms until rec sees an item, covering the
// window before a subscription reaches the publisher.
func PublishUntil[T any](t testing.TB, pub zmq4.Socket, msg zmq4.Msg, rec *Recorder[T]) T {
	t.Helper()
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		require.NoError(t, pub.Send(msg))
		select {
		case v := <-rec.C():
			return v
		case <-ticker.C:
		case <-deadline:
			t.Fatal("nothing recorded within 5s")
		}
	}
}
