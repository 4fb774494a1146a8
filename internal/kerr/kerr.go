// Package kerr defines the sentinel error kinds shared across the storage
// engine. Call sites wrap these with fmt.Errorf("...: %w", kerr.X) and
// callers unwrap with errors.Is.
package kerr

import "errors"

var (
	// Io covers host-file read/write/size/truncate failures.
	Io = errors.New("kestrel: io error")

	// Corrupt covers magic mismatch, bad block size, child-count
	// violations, unequal leaf depth, and free-list cycles.
	Corrupt = errors.New("kestrel: corrupt index")

	// InvalidState covers mutation outside a transaction, double commit,
	// and operations on a closed file or tree.
	InvalidState = errors.New("kestrel: invalid state")

	// UnknownType covers a registry resolve failure during deserialization.
	UnknownType = errors.New("kestrel: unknown serializable type")

	// NotFound covers a B-tree or registry lookup miss.
	NotFound = errors.New("kestrel: not found")

	// AlreadyExists covers Insert colliding with a key already present.
	// Distinct from InvalidState: this is an expected outcome callers are
	// meant to check for, not a programming error.
	AlreadyExists = errors.New("kestrel: already exists")

	// OutOfSpace covers the host filesystem refusing to grow the file.
	OutOfSpace = errors.New("kestrel: out of space")

	// TimedOut covers a blocking concurrency primitive expiring.
	TimedOut = errors.New("kestrel: timed out")
)
