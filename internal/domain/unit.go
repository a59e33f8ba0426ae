package domain

import "fmt"

// SourceUnit names one fragment of frames not yet known to be merged.
type SourceUnit struct {
	// ID is the canonical identifier recorded in the Ledger. It is compared
	// byte for byte, so it must be produced the same way on every run.
	ID string

	// Path is where the loader finds the fragment (an archive file or a
	// frame directory). For discovered units it equals ID.
	Path string
}

// LedgerKind names the Ledger container of a store. The names follow the
// conventions of the stores FAHMunge has always written, so stores produced
// by earlier runs keep resuming.
type LedgerKind string

const (
	// LedgerFilenames is used by stores merged from results-N.tar.bz2 archives.
	LedgerFilenames LedgerKind = "processed_filenames"

	// LedgerDirectories is used by stores merged from numbered frame directories.
	LedgerDirectories LedgerKind = "processed_directories"

	// LedgerFolders is the legacy directory-store name. It is recognised when
	// reading but never created.
	LedgerFolders LedgerKind = "processed_folders"
)

// RecognizedLedgerKinds lists the Ledger container names in lookup order.
var RecognizedLedgerKinds = []LedgerKind{LedgerFilenames, LedgerDirectories, LedgerFolders}

// Valid returns true if k is one of the recognised container names.
func (k LedgerKind) Valid() bool {
	for _, r := range RecognizedLedgerKinds {
		if k == r {
			return true
		}
	}
	return false
}

// FailurePolicy decides what a merge run does when a fragment cannot be loaded.
type FailurePolicy int

const (
	// Abort stops the run at the first fragment that fails to load.
	Abort FailurePolicy = iota

	// SkipAndContinue logs the failure and moves on. The fragment stays
	// un-ledgered, so the next run retries it.
	SkipAndContinue
)

// String returns the configuration name of the policy.
func (p FailurePolicy) String() string {
	switch p {
	case Abort:
		return "abort"
	case SkipAndContinue:
		return "skip"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy parses "abort" or "skip".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "abort":
		return Abort, nil
	case "skip", "skip-and-continue", "continue":
		return SkipAndContinue, nil
	default:
		return Abort, fmt.Errorf("%w: unknown failure policy %q (want abort or skip)", ErrInvalidConfig, s)
	}
}

// LedgerEntry is one Ledger record: the ID of a merged unit and the span of
// frames [First, First+Count) its block occupies in the store. Entries are
// compared by ID only; the span is bookkeeping.
type LedgerEntry struct {
	ID    string
	First int
	Count int
}

// End returns the frame index just past the entry's span.
func (e LedgerEntry) End() int {
	return e.First + e.Count
}
