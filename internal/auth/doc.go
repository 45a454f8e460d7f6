// Package auth provides identity, role membership and authorisation for the
// area core.
//
// Authorisation is resource-scoped: every role holds, per resource type, a
// bitmask of granted actions (save, update, remove, find, find_all and the
// resource's composite actions). A user's effective mask for a resource is
// the OR of the masks of all their roles. Admin principals bypass the check.
//
//   - Argon2id password hashing
//   - HS256 JWT access tokens carrying the principal
//   - Registration with one-time activation codes (SQLite or Redis)
//   - The reserved "RegisteredUser" role, seeded at startup and assigned on
//     activation
//
// Ownership of the target entity (area → project → user) is checked by the
// domain services after the Guard has allowed the action.
package auth
