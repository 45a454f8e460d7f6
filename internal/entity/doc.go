// Package entity holds the lifecycle contract shared by every persisted
// resource: identity, version, create and modify timestamps, optimistic
// concurrency, field validation and pagination.
//
// Versioned updates are compare-and-swap. The UPDATE carries the version the
// caller read; when no row matches, the row is re-checked to tell a missing
// entity (ErrNotFound) from a stale write (ErrConflict).
package entity
