/*
Package kv is the ordered key/value façade over bbolt.

It exposes named logical tables over one database file. Every mutating call
is a single-table atomic write transaction; aborted transactions leave no
partial state visible to readers, iteration observes a consistent snapshot,
and Flush is a durability point. The façade deliberately does not provide
multi-table atomicity — cross-table flows are coordinated by pkg/txn with
compensating actions.

Open acquires the process owner lock (pkg/lock) before any table handle is
created, and the returned Store carries both the owner-lock guard and the
folder transaction mutex so that sharing the database with a second
subsystem in the same process preserves pointer identity of both.

The codec in this package is the stable binary serialization for all stored
values: big-endian, length-prefixed, no embedded version field. Legacy paste
rows (written before the manual-language flag existed) decode through the
fallback path and are upgraded in memory.
*/
package kv
