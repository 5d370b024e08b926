package store

import "github.com/adwatch/adwatch/errors"

// Sentinel errors for the store's caller-visible failure taxonomy.
// Use these with errors.Is(); wrap them with errors.Wrap() to add context
// while preserving the type. Transient SQLite contention never surfaces:
// the transaction wrapper retries it internally.
var (
	// ErrDataArgument indicates a caller-supplied argument was rejected,
	// e.g. a duplicate nickname or an unknown ad query id
	ErrDataArgument = errors.New("invalid argument")

	// ErrNotFound indicates no row matched a lookup
	ErrNotFound = errors.New("not found")

	// ErrUnknownSession indicates no client matches the supplied session id
	ErrUnknownSession = errors.New("unknown session")
)

// IsDataArgument checks if an error is or wraps ErrDataArgument
func IsDataArgument(err error) bool {
	return err != nil && errors.Is(err, ErrDataArgument)
}

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}
