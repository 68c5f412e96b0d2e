// Package errors provides standardized error handling for moodzy components.
//
// # Classification
//
// Errors fall into three classes:
//
//   - Transient: timeouts, refused connections, temporary unavailability (retry)
//   - Invalid: malformed payloads, validation failures, unknown ids (do not retry)
//   - Fatal: broken transports and bad configuration (stop the process)
//
// Classification first looks for a *ClassifiedError in the chain, then for
// known sentinel values, and finally (transient only) for well-known message
// fragments from the network stack.
//
// # Wrapping
//
// All wrapping follows "component.method: action failed: %w":
//
//	if err := sub.Dial(endpoint); err != nil {
//	    return errors.WrapFatal(err, "feed", "Start", "dial "+endpoint)
//	}
//
// # Validation
//
// Input validation reports every failing constraint at once through
// *ValidationError, which matches ErrValidation under errors.Is:
//
//	verr := errors.NewValidationError()
//	if name == "" {
//	    verr.Add("name", "min", "name must not be empty")
//	}
//	return verr.OrNil()
//
// # Retry
//
// RetryConfig bridges classification to pkg/retry. RetryConfig.Do retries
// only transient failures:
//
//	err := errors.DefaultRetryConfig().Do(ctx, func() error {
//	    return client.ping(ctx)
//	})
package errors
