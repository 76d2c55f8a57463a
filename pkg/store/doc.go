/*
Package store implements the paste and folder stores over the kv façade.

The pastes table is canonical. Two derived tables — pastes_meta (content-free
projections) and pastes_by_updated (a recency index whose keys sort
most-recently-updated first) — accelerate listing and search. Their trust is
governed by three persisted markers in pastes_meta_state: a schema version,
an in-progress mutation counter, and a sticky fault flag.

Every write that maintains the derived indexes brackets itself in a mutation
guard. If a derived write fails after the canonical commit, the guard flips
the fault flag instead of surfacing the error: readers notice via Usable()
and fall back to canonical scans, so no reader ever sees wrong data, only
slower reads. Reconcile wipes and rebuilds the derived tables from canonical
and resets the markers.

FolderStore maintains the materialized paste_count field, adjusted only by
UpdateCount and overwritten only by SetCount during the startup recount (both
called exclusively by the transaction coordinator), and the folders_deleting
marker table consulted by create/move flows so pastes are
never bound to a folder that is being torn down.
*/
package store
