// Package bolt implements the trajectory store on a single bbolt file.
//
// Layout:
//
//	meta              topology (JSON), natoms, ledger_kind
//	frames            uint64 frame index -> msgpack frame record
//	<ledger kind>     uint64 sequence    -> msgpack {id, first, count}
//	<ledger kind>_index  id              -> uint64 sequence
//
// Every write is one bbolt transaction, so a frame block and the ledger
// entries that name it become visible together or not at all.
package bolt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/ports"
	"github.com/bft-labs/fahmunge/internal/topology"
)

var (
	metaBucket   = []byte("meta")
	framesBucket = []byte("frames")

	keyTopology   = []byte("topology")
	keyNAtoms     = []byte("natoms")
	keyLedgerKind = []byte("ledger_kind")
)

// DefaultLockTimeout bounds how long Open waits for another writer to release
// the store file.
const DefaultLockTimeout = 2 * time.Second

// Opener opens bbolt stores. It satisfies ports.StoreOpener.
type Opener struct {
	// LockTimeout bounds the wait for the file lock. Zero means
	// DefaultLockTimeout.
	LockTimeout time.Duration
}

// NewOpener returns an Opener with the given lock timeout.
func NewOpener(lockTimeout time.Duration) *Opener {
	return &Opener{LockTimeout: lockTimeout}
}

// Open opens the store at path.
func (o *Opener) Open(path string, mode ports.StoreMode) (ports.Store, error) {
	timeout := o.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return Open(path, mode, timeout)
}

// Store is a trajectory store backed by bbolt.
type Store struct {
	path   string
	db     *bolt.DB
	mode   ports.StoreMode
	cursor int
}

var _ ports.Store = (*Store)(nil)

// Open opens or, in append mode, creates the store at path. A store held by
// another writer fails with domain.ErrStoreLocked once timeout elapses.
func Open(path string, mode ports.StoreMode, timeout time.Duration) (*Store, error) {
	if mode == ports.ReadMode {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: store %s", domain.ErrNotFound, path)
			}
			return nil, err
		}
	} else if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	db, err := bolt.Open(path, 0o644, &bolt.Options{
		Timeout:  timeout,
		ReadOnly: mode == ports.ReadMode,
	})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreLocked, path)
		}
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}
	return &Store{path: path, db: db, mode: mode}, nil
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

// Close releases the file lock.
func (s *Store) Close() error { return s.db.Close() }

// FrameCount returns the number of stored frames.
func (s *Store) FrameCount() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = frameCount(tx)
		return nil
	})
	return n, err
}

func frameCount(tx *bolt.Tx) int {
	b := tx.Bucket(framesBucket)
	if b == nil {
		return 0
	}
	k, _ := b.Cursor().Last()
	if k == nil {
		return 0
	}
	return int(btoi(k)) + 1
}

// Seek positions the read cursor at frame.
func (s *Store) Seek(frame int) error {
	n, err := s.FrameCount()
	if err != nil {
		return err
	}
	if frame < 0 || frame > n {
		return fmt.Errorf("seek %s to frame %d: store has %d frames", s.path, frame, n)
	}
	s.cursor = frame
	return nil
}

// ReadRemaining returns the frames from the read cursor to the end and moves
// the cursor past them.
func (s *Store) ReadRemaining() (domain.FrameBlock, error) {
	var block domain.FrameBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		block.NAtoms = natoms(tx)
		b := tx.Bucket(framesBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(itob(uint64(s.cursor))); k != nil; k, v = c.Next() {
			f, err := decodeFrame(v)
			if err != nil {
				return fmt.Errorf("frame %d: %w", btoi(k), err)
			}
			block.Frames = append(block.Frames, f)
		}
		return nil
	})
	if err != nil {
		return domain.FrameBlock{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	s.cursor += block.Len()
	return block, nil
}

func natoms(tx *bolt.Tx) int {
	m := tx.Bucket(metaBucket)
	if m == nil {
		return 0
	}
	v := m.Get(keyNAtoms)
	if len(v) != 8 {
		return 0
	}
	return int(btoi(v))
}

// Append writes block after the last frame without touching the ledger.
func (s *Store) Append(block domain.FrameBlock) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := appendFrames(tx, block)
		return err
	})
}

// Commit writes block and entries in one transaction.
func (s *Store) Commit(block domain.FrameBlock, entries ...domain.LedgerEntry) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		first := frameCount(tx)
		next := first
		for _, e := range entries {
			if e.First != next || e.Count < 0 {
				return fmt.Errorf("%w: entry %q spans [%d, %d), expected start %d",
					domain.ErrCountMismatch, e.ID, e.First, e.End(), next)
			}
			next = e.End()
		}
		if next-first != block.Len() {
			return fmt.Errorf("%w: entries cover %d frames, block has %d",
				domain.ErrCountMismatch, next-first, block.Len())
		}

		kind, ok := ledgerKind(tx)
		if !ok && len(entries) > 0 {
			return fmt.Errorf("%w: no ledger container", domain.ErrSchemaMismatch)
		}
		if _, err := appendFrames(tx, block); err != nil {
			return err
		}
		for _, e := range entries {
			if err := appendEntry(tx, kind, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit to %s: %w", s.path, err)
	}
	return nil
}

func appendFrames(tx *bolt.Tx, block domain.FrameBlock) (int, error) {
	if block.Empty() {
		return frameCount(tx), nil
	}
	if want := natoms(tx); want != 0 && block.NAtoms != want {
		return 0, fmt.Errorf("%w: block has %d atoms, store has %d",
			domain.ErrSchemaMismatch, block.NAtoms, want)
	}
	b, err := tx.CreateBucketIfNotExists(framesBucket)
	if err != nil {
		return 0, err
	}
	if err := setNAtoms(tx, block.NAtoms); err != nil {
		return 0, err
	}
	next := frameCount(tx)
	for i, f := range block.Frames {
		if f.NAtoms() != block.NAtoms {
			return 0, fmt.Errorf("%w: frame %d has %d atoms, block has %d",
				domain.ErrSchemaMismatch, i, f.NAtoms(), block.NAtoms)
		}
		v, err := encodeFrame(f)
		if err != nil {
			return 0, fmt.Errorf("encode frame %d: %w", next, err)
		}
		if err := b.Put(itob(uint64(next)), v); err != nil {
			return 0, err
		}
		next++
	}
	return next, nil
}

func setNAtoms(tx *bolt.Tx, n int) error {
	m, err := tx.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return err
	}
	if m.Get(keyNAtoms) != nil {
		return nil
	}
	return m.Put(keyNAtoms, itob(uint64(n)))
}

// Initialize creates the ledger container of the given kind and records the
// topology, unless the store already has them. A store that already holds
// frames but no recognised ledger fails with domain.ErrSchemaMismatch.
func (s *Store) Initialize(kind domain.LedgerKind, top *topology.Topology) error {
	if !kind.Valid() || kind == domain.LedgerFolders {
		return fmt.Errorf("%w: cannot create ledger %q", domain.ErrSchemaMismatch, kind)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if _, ok := ledgerKind(tx); !ok {
			if frameCount(tx) > 0 {
				return fmt.Errorf("%w: store has frames but no ledger", domain.ErrSchemaMismatch)
			}
			if _, err := tx.CreateBucket([]byte(kind)); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(indexName(kind)); err != nil {
				return err
			}
		}
		m, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if m.Get(keyLedgerKind) == nil {
			existing, _ := ledgerKind(tx)
			if err := m.Put(keyLedgerKind, []byte(existing)); err != nil {
				return err
			}
		}
		if top == nil || m.Get(keyTopology) != nil {
			return nil
		}
		enc, err := top.Encode()
		if err != nil {
			return err
		}
		if err := m.Put(keyTopology, enc); err != nil {
			return err
		}
		if m.Get(keyNAtoms) == nil {
			return m.Put(keyNAtoms, itob(uint64(top.Len())))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("initialize %s: %w", s.path, err)
	}
	return nil
}

// Topology returns the stored topology, or nil if none was recorded.
func (s *Store) Topology() (*topology.Topology, error) {
	var top *topology.Topology
	err := s.db.View(func(tx *bolt.Tx) error {
		m := tx.Bucket(metaBucket)
		if m == nil {
			return nil
		}
		v := m.Get(keyTopology)
		if v == nil {
			return nil
		}
		t, err := topology.Decode(v)
		if err != nil {
			return err
		}
		top = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("topology of %s: %w", s.path, err)
	}
	return top, nil
}

// Ledger returns the store's ledger.
func (s *Store) Ledger() (ports.Ledger, error) {
	var (
		kind domain.LedgerKind
		ok   bool
	)
	if err := s.db.View(func(tx *bolt.Tx) error {
		kind, ok = ledgerKind(tx)
		return nil
	}); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s has none of the ledger containers %v",
			domain.ErrSchemaMismatch, s.path, domain.RecognizedLedgerKinds)
	}
	return &Ledger{db: s.db, kind: kind}, nil
}

// ledgerKind finds the first recognised ledger bucket in tx.
func ledgerKind(tx *bolt.Tx) (domain.LedgerKind, bool) {
	for _, k := range domain.RecognizedLedgerKinds {
		if tx.Bucket([]byte(k)) != nil {
			return k, true
		}
	}
	return "", false
}

// Stats summarises a store.
type Stats struct {
	Path       string
	NAtoms     int
	Frames     int
	LedgerKind domain.LedgerKind
	Entries    int
	SizeBytes  int64
}

// Stats reports the store's frame and ledger counts.
func (s *Store) Stats() (Stats, error) {
	st := Stats{Path: s.path}
	err := s.db.View(func(tx *bolt.Tx) error {
		st.NAtoms = natoms(tx)
		st.Frames = frameCount(tx)
		st.SizeBytes = tx.Size()
		if kind, ok := ledgerKind(tx); ok {
			st.LedgerKind = kind
			st.Entries = entryCount(tx, kind)
		}
		return nil
	})
	return st, err
}
