/*
Package editor implements the virtualized text editor core.

It is a synchronous reducer over normalized commands — no async control
flow. The pieces:

  - Buffer: line-chunked text with cached prefix sums, char-indexed
    addressing and a monotonic revision. Every mutation yields an EditDelta
    describing the minimal affected line span.
  - WrapLayout: per-line wrap measurements under a geometry key plus a
    prefix-sum array mapping visual rows to (line, row-in-line) in O(log n).
    Deltas splice the affected span; a geometry mismatch forces a rebuild.
  - CommandsFromEvents: the platform-aware input reducer and the single
    place with OS branching. Word movement is Alt on macOS and Ctrl
    elsewhere; on non-mac the command and Ctrl modifiers share a bit, so
    the reducer never early-exits on "command".
  - Editor: cursor, selection, preferred column with wrap-boundary
    affinity, render-cap clamping, IME composition, and undo/redo with
    intent-based coalescing.
  - HighlightWorker: a single background goroutine consuming owned request
    snapshots, coalescing backlog to the latest, with a per-line cache
    keyed by content hash and start-of-line parser state. The main thread
    debounces submissions and applies renders only when paste, language,
    theme, revision and length all still match.

Documents of arbitrary length stay interactive: listing and navigation work
in visual-row space, and per-line display is bounded by MaxRenderLineChars,
with cursor positions clamped into the same domain.
*/
package editor
