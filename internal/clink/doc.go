// Package clink is the root of the ClinkCode marker decoder.
//
// The decoder consumes per-cell aggregate statistics produced by an
// external pixel classifier, plus read access to the raw frame, and emits
// zero or more decoded markers per frame. It is organised as numbered
// layers, each of which may depend only on layers below it:
//
//	l1grid       aggregate buffer layout and presence gate
//	l2tags       corner tag extraction
//	l3pairs      opposite-corner pairing and CW/CCW cross matching
//	l4projection canonical grid to pixel homography
//	l5codes      sampling, diagonal/checksum validation, marker assembly
//
// geom and framebuf are leaf packages used by every layer. pipeline is the
// composition root; storage/sqlite, monitor, capture and synth are adapters
// and tooling that sit outside the layer stack.
package clink
