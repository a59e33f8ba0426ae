package bolt

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/ports"
)

// Ledger is the bbolt-backed ledger of a Store.
type Ledger struct {
	db   *bolt.DB
	kind domain.LedgerKind
}

var _ ports.Ledger = (*Ledger)(nil)

func indexName(kind domain.LedgerKind) []byte {
	return []byte(string(kind) + "_index")
}

// Kind returns the ledger's container name.
func (l *Ledger) Kind() domain.LedgerKind { return l.kind }

// Contains reports whether id has been recorded.
func (l *Ledger) Contains(id string) (bool, error) {
	var found bool
	err := l.db.View(func(tx *bolt.Tx) error {
		if idx := tx.Bucket(indexName(l.kind)); idx != nil {
			found = idx.Get([]byte(id)) != nil
			return nil
		}
		// Stores without an index bucket are scanned.
		return forEachEntry(tx, l.kind, 0, func(e domain.LedgerEntry) bool {
			found = e.ID == id
			return !found
		})
	})
	return found, err
}

// Append records id with a span covering the frames appended since the
// previous entry.
func (l *Ledger) Append(id string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		start, err := lastEnd(tx, l.kind)
		if err != nil {
			return err
		}
		return appendEntry(tx, l.kind, domain.LedgerEntry{
			ID:    id,
			First: start,
			Count: frameCount(tx) - start,
		})
	})
}

// Len returns the number of entries.
func (l *Ledger) Len() (int, error) {
	var n int
	err := l.db.View(func(tx *bolt.Tx) error {
		n = entryCount(tx, l.kind)
		return nil
	})
	return n, err
}

// EntriesFrom returns entries at positions offset and later.
func (l *Ledger) EntriesFrom(offset int) ([]domain.LedgerEntry, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative ledger offset %d", offset)
	}
	var out []domain.LedgerEntry
	err := l.db.View(func(tx *bolt.Tx) error {
		return forEachEntry(tx, l.kind, offset, func(e domain.LedgerEntry) bool {
			out = append(out, e)
			return true
		})
	})
	return out, err
}

// End returns the frame index just past the last entry's span.
func (l *Ledger) End() (int, error) {
	var end int
	err := l.db.View(func(tx *bolt.Tx) error {
		var err error
		end, err = lastEnd(tx, l.kind)
		return err
	})
	return end, err
}

func entryCount(tx *bolt.Tx, kind domain.LedgerKind) int {
	b := tx.Bucket([]byte(kind))
	if b == nil {
		return 0
	}
	k, _ := b.Cursor().Last()
	if k == nil {
		return 0
	}
	return int(btoi(k)) + 1
}

func lastEnd(tx *bolt.Tx, kind domain.LedgerKind) (int, error) {
	b := tx.Bucket([]byte(kind))
	if b == nil {
		return 0, nil
	}
	k, v := b.Cursor().Last()
	if v == nil {
		return 0, nil
	}
	var rec ledgerRecord
	if err := msgpack.Unmarshal(v, &rec); err != nil {
		return 0, fmt.Errorf("ledger entry %d: %w", btoi(k), err)
	}
	return int(rec.First + rec.Count), nil
}

func appendEntry(tx *bolt.Tx, kind domain.LedgerKind, e domain.LedgerEntry) error {
	b := tx.Bucket([]byte(kind))
	if b == nil {
		return fmt.Errorf("%w: no ledger container %q", domain.ErrSchemaMismatch, kind)
	}
	seq := uint64(entryCount(tx, kind))
	v, err := msgpack.Marshal(&ledgerRecord{ID: e.ID, First: uint64(e.First), Count: uint64(e.Count)})
	if err != nil {
		return err
	}
	if err := b.Put(itob(seq), v); err != nil {
		return err
	}
	idx, err := tx.CreateBucketIfNotExists(indexName(kind))
	if err != nil {
		return err
	}
	if idx.Get([]byte(e.ID)) != nil {
		// the first position of a repeated id wins
		return nil
	}
	return idx.Put([]byte(e.ID), itob(seq))
}

func forEachEntry(tx *bolt.Tx, kind domain.LedgerKind, offset int, fn func(domain.LedgerEntry) bool) error {
	b := tx.Bucket([]byte(kind))
	if b == nil {
		return nil
	}
	c := b.Cursor()
	for k, v := c.Seek(itob(uint64(offset))); k != nil; k, v = c.Next() {
		var rec ledgerRecord
		if err := msgpack.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("ledger entry %d: %w", btoi(k), err)
		}
		if !fn(domain.LedgerEntry{ID: rec.ID, First: int(rec.First), Count: int(rec.Count)}) {
			return nil
		}
	}
	return nil
}
