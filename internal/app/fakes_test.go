package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/ports"
	"github.com/bft-labs/fahmunge/internal/topology"
)

// memStore is an in-memory ports.Store.
type memStore struct {
	path    string
	frames  []domain.Frame
	natoms  int
	kind    domain.LedgerKind
	entries []domain.LedgerEntry
	top     *topology.Topology
	cursor  int
	closed  bool

	// failCommit, when set, is returned by the next Commit.
	failCommit error
}

func (s *memStore) Path() string             { return s.path }
func (s *memStore) FrameCount() (int, error) { return len(s.frames), nil }

func (s *memStore) Close() error {
	s.closed = true
	return nil
}

func (s *memStore) Seek(frame int) error {
	if frame < 0 || frame > len(s.frames) {
		return fmt.Errorf("seek %d out of range", frame)
	}
	s.cursor = frame
	return nil
}

func (s *memStore) ReadRemaining() (domain.FrameBlock, error) {
	out := domain.FrameBlock{NAtoms: s.natoms, Frames: append([]domain.Frame(nil), s.frames[s.cursor:]...)}
	s.cursor = len(s.frames)
	return out, nil
}

func (s *memStore) Append(block domain.FrameBlock) error {
	s.frames = append(s.frames, block.Frames...)
	if s.natoms == 0 {
		s.natoms = block.NAtoms
	}
	return nil
}

func (s *memStore) Commit(block domain.FrameBlock, entries ...domain.LedgerEntry) error {
	if err := s.failCommit; err != nil {
		s.failCommit = nil
		return err
	}
	next := len(s.frames)
	for _, e := range entries {
		if e.First != next {
			return fmt.Errorf("%w: entry %s starts at %d, want %d", domain.ErrCountMismatch, e.ID, e.First, next)
		}
		next = e.End()
	}
	if next-len(s.frames) != block.Len() {
		return domain.ErrCountMismatch
	}
	if err := s.Append(block); err != nil {
		return err
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *memStore) Ledger() (ports.Ledger, error) {
	if s.kind == "" {
		return nil, domain.ErrSchemaMismatch
	}
	return memLedger{s}, nil
}

func (s *memStore) Initialize(kind domain.LedgerKind, top *topology.Topology) error {
	if s.kind == "" {
		s.kind = kind
	}
	if s.top == nil {
		s.top = top
		if s.natoms == 0 {
			s.natoms = top.Len()
		}
	}
	return nil
}

func (s *memStore) Topology() (*topology.Topology, error) { return s.top, nil }

type memLedger struct{ s *memStore }

func (l memLedger) Kind() domain.LedgerKind { return l.s.kind }

func (l memLedger) Contains(id string) (bool, error) {
	for _, e := range l.s.entries {
		if e.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (l memLedger) Append(id string) error {
	end, _ := l.End()
	l.s.entries = append(l.s.entries, domain.LedgerEntry{ID: id, First: end, Count: len(l.s.frames) - end})
	return nil
}

func (l memLedger) Len() (int, error) { return len(l.s.entries), nil }

func (l memLedger) EntriesFrom(offset int) ([]domain.LedgerEntry, error) {
	return append([]domain.LedgerEntry(nil), l.s.entries[offset:]...), nil
}

func (l memLedger) End() (int, error) {
	if len(l.s.entries) == 0 {
		return 0, nil
	}
	return l.s.entries[len(l.s.entries)-1].End(), nil
}

// memOpener hands out memStores by path.
type memOpener struct {
	stores map[string]*memStore
}

func newMemOpener() *memOpener {
	return &memOpener{stores: map[string]*memStore{}}
}

func (o *memOpener) Open(path string, mode ports.StoreMode) (ports.Store, error) {
	s, ok := o.stores[path]
	if !ok {
		if mode == ports.ReadMode {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		s = &memStore{path: path}
		o.stores[path] = s
	}
	s.closed = false
	s.cursor = 0
	return s, nil
}

// blockLoader serves fixed blocks by unit ID.
type blockLoader struct {
	blocks map[string]domain.FrameBlock
	errs   map[string]error
	calls  []string
}

func (l *blockLoader) Load(_ context.Context, unit domain.SourceUnit, _ *topology.Topology) (domain.FrameBlock, error) {
	l.calls = append(l.calls, unit.ID)
	if err := l.errs[unit.ID]; err != nil {
		return domain.FrameBlock{}, err
	}
	b, ok := l.blocks[unit.ID]
	if !ok {
		return domain.FrameBlock{}, errors.New("no such unit")
	}
	return b, nil
}

type recordingObserver struct {
	merged, skipped, failed int
	derivedFrames           int
}

func (o *recordingObserver) OnUnitMerged(domain.SourceUnit, int, time.Duration) { o.merged++ }
func (o *recordingObserver) OnUnitSkipped(domain.SourceUnit)                   { o.skipped++ }
func (o *recordingObserver) OnUnitFailed(domain.SourceUnit, error)             { o.failed++ }
func (o *recordingObserver) OnDerived(frames, _ int)                           { o.derivedFrames += frames }
