// Package area is the hierarchical resource store: areas nested inside a
// project, the devices placed in them and the background image each area
// can carry.
//
// Every operation authorises against the Area resource first and then checks
// that the caller owns the project the area lives in. Structural changes
// (subtree removal, view-type reset) run inside one transaction so readers
// never see a half-applied change, and every entity write is a
// compare-and-swap on entityVersion.
//
// Lifecycle events (saved, updated, removed, device_added, ...) are fanned out
// to registered Listeners after the write commits.
package area
