package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TSherpa10/moodzy/pkg/timestamp"
)

// DiscardLogger drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LocalAddr turns a wildcard listen address such as "[::]:4321" into
// "127.0.0.1:4321".
func LocalAddr(t testing.TB, addr string) string {
	t.Helper()
	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	return net.JoinHostPort("127.0.0.1", port)
}

// SequentialIDs yields prefix1, prefix2, ...
func SequentialIDs(prefix string) func() (string, error) {
	var n atomic.Int64
	return func() (string, error) {
		return fmt.Sprintf("%s%d", prefix, n.Add(1)), nil
	}
}

// StepClock reads start+1, start+2, ... one millisecond further per call.
func StepClock(start int64) timestamp.ClockFunc {
	now := atomic.Int64{}
	now.Store(start)
	return func() int64 {
		return now.Add(1)
	}
}
