// Package ports defines the interfaces that connect the merge and derivation
// engines to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Store]: an append-only trajectory store with an embedded Ledger
//   - [Ledger]: the ordered record of source units merged into a store
//   - [Loader]: materialises the frames of one source unit
//   - [Extractor]: pulls a single member out of a fragment archive
//   - [Logger]: structured logging abstraction
//
// The application layer (internal/app) depends only on these interfaces.
// Adapters under internal/adapters implement them on bbolt, tar and XTC.
package ports
