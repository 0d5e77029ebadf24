// Package l1grid owns Layer 1 (Grid) of the ClinkCode data model: the
// boundary with the external pixel classifier.
//
// Responsibilities: the tag-kind enumeration, the flat aggregate buffer
// layout (presence counters followed by per-cell weighted sums), the
// counter-only presence gate, and binary encoding of captured aggregates.
// Key types: TagType, Layout, Aggregate, Cell, Presence.
//
// Dependency rule: L1 depends only on config. Layout constants must match
// the producer exactly; a mismatch yields zero decodes rather than an
// error.
package l1grid
