/*
Package types defines the core data structures used throughout LocalPaste.

It holds the domain entities (Paste, PasteMeta, Folder), the partial-update
request shape, the persisted IndexState marker that governs derived-table
trust, and the shared error kinds used by the store, the transaction
coordinator, and the HTTP layer.

The pastes table is canonical: if a paste exists there, it exists. PasteMeta
and the recency index are projections that may lag behind canonical but are
never allowed to make a reader return wrong data; readers consult IndexState
and fall back to canonical scans when it is not clean.

All entities are serialized to the store with the fixed binary codec in
pkg/kv; the JSON tags exist for the HTTP surface only.
*/
package types
