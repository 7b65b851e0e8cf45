// Package filelock defines the cross-process advisory locking contract
// shared by the three lock implementations (soft, ternary, redis-backed):
// a mode (shared/exclusive), acquired against a target path that need not
// yet exist, held until Release.
package filelock

import (
	"context"
	"time"
)

// Mode is a lock's access mode.
type Mode string

const (
	// Shared is a reader lock: compatible with other shared locks.
	Shared Mode = "r"
	// Exclusive is a writer lock: incompatible with any other lock.
	Exclusive Mode = "w"
)

// Handle represents a held lock. Release must be called exactly once.
type Handle interface {
	Release() error
}

// Lock acquires and releases an advisory lock on a target file or
// directory that may not yet exist on disk.
type Lock interface {
	// Acquire blocks until the lock is obtained, ctx is done, or the
	// lock's configured timeout elapses, whichever happens first.
	Acquire(ctx context.Context) (Handle, error)
}

// Options tunes the busy-wait behavior common to all three
// implementations.
type Options struct {
	// Timeout bounds the total wait; zero means wait indefinitely.
	Timeout time.Duration
	// SecondTraversalWait is how long to wait before re-checking for a
	// conflicting lock created concurrently with this one.
	SecondTraversalWait time.Duration
	// UseSecondTraversal enables that re-check. Disabling it trades
	// safety under simultaneous acquisition for lower latency, useful
	// for high-frequency chunk-level locking. The redis backend ignores
	// this field and always re-checks, since spec.md §9 forbids removing
	// the wait for the KV-backed lock regardless of configuration.
	UseSecondTraversal bool
	// IsDir locks a directory path rather than a file path, changing how
	// the lock file name is derived from the target.
	IsDir bool
}
