// Package retry provides exponential backoff with optional jitter.
//
// Presets:
//
//   - DefaultConfig(): 3 attempts, 100ms-5s
//   - Quick(): 10 attempts, 50ms-1s, for startup probes
//   - Persistent(): 30 attempts, 200ms-10s
//
// Usage:
//
//	users, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() ([]codec.UserObject, error) {
//	    return api.ListUsers(ctx)
//	})
//
// Wrap an error with NonRetryable to stop immediately, e.g. on a 4xx response.
// Cancelling ctx stops the loop during an attempt or a backoff sleep.
package retry
