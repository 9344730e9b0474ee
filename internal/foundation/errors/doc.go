// Package errors provides the classified error primitives used across depotwatch.
//
// Every failure that leaves a package boundary carries an ErrorCategory, an
// ErrorSeverity and a RetryStrategy. The tracking core itself never fails on
// well-formed input; classified errors originate at the fetch and store
// boundaries and are surfaced unchanged by the tracker.
//
// Example usage:
//
//	err := errors.MalformedStateError("stored record does not parse").
//		WithCause(jsonErr).
//		WithContext("identifier", id).
//		Build()
//
// The CLI and HTTP adapters turn classified errors into exit codes and
// status codes respectively.
package errors
