package fulfillment

import "errors"

var (
	// ErrAuthFailed indicates invalid credentials against the marketplace or a shipping backend.
	// It is fatal: no further orders are processed in the run.
	ErrAuthFailed = errors.New("fulfillment: authentication failed")

	// ErrConfigInvalid indicates missing or unknown reference data (shop, warehouse,
	// sender, credentials). It stops the process before any dispatch begins.
	ErrConfigInvalid = errors.New("fulfillment: invalid configuration")

	// ErrPersistence indicates the dispatch ledger could not be read or written.
	ErrPersistence = errors.New("fulfillment: ledger persistence failed")

	// ErrEmptyOrderGroup is returned when consolidating a group without tasks.
	ErrEmptyOrderGroup = errors.New("fulfillment: order group has no tasks")
)

// IsFatal reports whether err must abort all remaining work in a run,
// as opposed to a per-order failure that leaves sibling orders unaffected.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrConfigInvalid) ||
		errors.Is(err, ErrPersistence)
}
