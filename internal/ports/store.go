package ports

import (
	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/topology"
)

// Ledger is the persisted, ordered record of source-unit identifiers already
// merged into a store. It only grows. It does not deduplicate: callers gate
// Append with Contains.
type Ledger interface {
	// Kind returns the container name the ledger is stored under.
	Kind() domain.LedgerKind

	// Contains reports whether id has been recorded.
	Contains(id string) (bool, error)

	// Append records id at the end of the ledger. The entry's span covers
	// the frames appended since the previous entry.
	Append(id string) error

	// Len returns the number of recorded entries.
	Len() (int, error)

	// EntriesFrom returns the entries at positions offset and later, in order.
	EntriesFrom(offset int) ([]domain.LedgerEntry, error)

	// End returns the frame index just past the last entry's span, or 0 for
	// an empty ledger. For a consistent store it equals the frame count.
	End() (int, error)
}

// Store is an append-only sequence of frames plus a topology and a Ledger.
type Store interface {
	// Path returns the location the store was opened from.
	Path() string

	// FrameCount returns the number of frames in the store.
	FrameCount() (int, error)

	// Seek positions the read cursor at the given frame offset.
	Seek(frame int) error

	// ReadRemaining returns every frame from the read cursor to the end.
	ReadRemaining() (domain.FrameBlock, error)

	// Append writes a frame block at the end of the frame sequence.
	Append(block domain.FrameBlock) error

	// Commit appends a frame block and then the given ledger entries as one
	// atomic write. Either all of it is visible afterwards or none of it.
	// The entries' spans must tile the appended frames exactly, starting at
	// the current frame count; otherwise Commit fails with
	// domain.ErrCountMismatch and writes nothing.
	Commit(block domain.FrameBlock, entries ...domain.LedgerEntry) error

	// Ledger returns the store's ledger, or an error wrapping
	// domain.ErrSchemaMismatch if the store has none.
	Ledger() (Ledger, error)

	// Initialize creates the ledger container and sets the topology if the
	// store has not been initialised yet. Calling it again is a no-op.
	Initialize(kind domain.LedgerKind, top *topology.Topology) error

	// Topology returns the stored topology, or nil if none was set.
	Topology() (*topology.Topology, error)

	// Close releases the store's resources.
	Close() error
}

// StoreMode selects how a store is opened.
type StoreMode int

const (
	// ReadMode opens an existing store read-only; a missing path fails with
	// domain.ErrNotFound.
	ReadMode StoreMode = iota

	// AppendMode opens a store for appends, creating it if absent.
	AppendMode
)

// StoreOpener opens stores by path. The bolt adapter's Opener satisfies it.
type StoreOpener interface {
	Open(path string, mode StoreMode) (Store, error)
}
