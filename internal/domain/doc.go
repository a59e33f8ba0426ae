// Package domain contains the core entities and value objects for fahmunge.
//
// This package is the innermost layer of the application. It has no
// dependencies on storage formats, archive codecs or logging, and holds only
// the types the merge and derivation engines reason about.
//
// # Entities
//
//   - [SourceUnit]: one fragment of simulation output, named by a canonical ID
//   - [Frame]: a single trajectory snapshot (coordinates, time, unit cell)
//   - [FrameBlock]: the frames produced by loading one SourceUnit
//   - [LedgerKind]: the naming convention of a store's Ledger container
//   - [FailurePolicy]: what a merge run does when one fragment cannot be loaded
package domain
