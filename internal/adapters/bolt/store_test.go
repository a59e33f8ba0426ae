package bolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/fixtures"
	"github.com/bft-labs/fahmunge/internal/ports"
)

func openAppend(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, ports.AppendMode, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenReadMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.fahdb"), ports.ReadMode, time.Second)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "traj.fahdb")
	s := openAppend(t, path)
	n, err := s.FrameCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSecondWriterIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj.fahdb")
	openAppend(t, path)

	_, err := Open(path, ports.AppendMode, 50*time.Millisecond)
	assert.ErrorIs(t, err, domain.ErrStoreLocked)
}

func TestLedgerBeforeInitialize(t *testing.T) {
	s := openAppend(t, filepath.Join(t.TempDir(), "traj.fahdb"))
	_, err := s.Ledger()
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestInitializeIsIdempotent(t *testing.T) {
	s := openAppend(t, filepath.Join(t.TempDir(), "traj.fahdb"))
	top := fixtures.Topology(4)

	require.NoError(t, s.Initialize(domain.LedgerFilenames, top))
	require.NoError(t, s.Initialize(domain.LedgerDirectories, fixtures.Topology(7)))

	l, err := s.Ledger()
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerFilenames, l.Kind())

	got, err := s.Topology()
	require.NoError(t, err)
	assert.Equal(t, 4, got.Len())
}

func TestInitializeRejectsLegacyKind(t *testing.T) {
	s := openAppend(t, filepath.Join(t.TempDir(), "traj.fahdb"))
	err := s.Initialize(domain.LedgerFolders, fixtures.Topology(1))
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestInitializeWithFramesButNoLedger(t *testing.T) {
	s := openAppend(t, filepath.Join(t.TempDir(), "traj.fahdb"))
	require.NoError(t, s.Append(fixtures.Block(2, 3, 0)))

	err := s.Initialize(domain.LedgerFilenames, fixtures.Topology(2))
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestCommitAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj.fahdb")
	s := openAppend(t, path)
	require.NoError(t, s.Initialize(domain.LedgerFilenames, fixtures.Topology(3)))

	require.NoError(t, s.Commit(fixtures.Block(3, 10, 0), domain.LedgerEntry{ID: "results-0", First: 0, Count: 10}))
	require.NoError(t, s.Commit(fixtures.Block(3, 5, 10), domain.LedgerEntry{ID: "results-1", First: 10, Count: 5}))

	n, err := s.FrameCount()
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	l, err := s.Ledger()
	require.NoError(t, err)
	ok, err := l.Contains("results-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Contains("results-2")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := l.EntriesFrom(1)
	require.NoError(t, err)
	assert.Equal(t, []domain.LedgerEntry{{ID: "results-1", First: 10, Count: 5}}, entries)

	end, err := l.End()
	require.NoError(t, err)
	assert.Equal(t, 15, end)

	require.NoError(t, s.Seek(12))
	block, err := s.ReadRemaining()
	require.NoError(t, err)
	assert.Equal(t, 3, block.NAtoms)
	require.Equal(t, 3, block.Len())
	assert.Equal(t, fixtures.Block(3, 3, 12).Frames, block.Frames)
	require.NoError(t, s.Close())

	r, err := Open(path, ports.ReadMode, time.Second)
	require.NoError(t, err)
	defer r.Close()
	st, err := r.Stats()
	require.NoError(t, err)
	assert.Equal(t, 15, st.Frames)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 3, st.NAtoms)
	assert.Equal(t, domain.LedgerFilenames, st.LedgerKind)
}

func TestCommitRejectsMisalignedSpans(t *testing.T) {
	s := openAppend(t, filepath.Join(t.TempDir(), "traj.fahdb"))
	require.NoError(t, s.Initialize(domain.LedgerFilenames, fixtures.Topology(2)))

	err := s.Commit(fixtures.Block(2, 4, 0), domain.LedgerEntry{ID: "a", First: 0, Count: 3})
	assert.ErrorIs(t, err, domain.ErrCountMismatch)
	err = s.Commit(fixtures.Block(2, 4, 0), domain.LedgerEntry{ID: "a", First: 1, Count: 4})
	assert.ErrorIs(t, err, domain.ErrCountMismatch)

	n, err := s.FrameCount()
	require.NoError(t, err)
	assert.Zero(t, n, "a rejected commit writes nothing")
}

func TestCommitRejectsWrongAtomCount(t *testing.T) {
	s := openAppend(t, filepath.Join(t.TempDir(), "traj.fahdb"))
	require.NoError(t, s.Initialize(domain.LedgerFilenames, fixtures.Topology(2)))

	err := s.Commit(fixtures.Block(5, 1, 0), domain.LedgerEntry{ID: "a", Count: 1})
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)

	l, err := s.Ledger()
	require.NoError(t, err)
	n, err := l.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommitMultipleEntries(t *testing.T) {
	s := openAppend(t, filepath.Join(t.TempDir(), "traj.fahdb"))
	require.NoError(t, s.Initialize(domain.LedgerDirectories, fixtures.Topology(1)))

	require.NoError(t, s.Commit(fixtures.Block(1, 6, 0),
		domain.LedgerEntry{ID: "0", First: 0, Count: 2},
		domain.LedgerEntry{ID: "1", First: 2, Count: 4},
	))
	l, err := s.Ledger()
	require.NoError(t, err)
	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLedgerAppendSpansNewFrames(t *testing.T) {
	s := openAppend(t, filepath.Join(t.TempDir(), "traj.fahdb"))
	require.NoError(t, s.Initialize(domain.LedgerFilenames, fixtures.Topology(1)))
	l, err := s.Ledger()
	require.NoError(t, err)

	require.NoError(t, s.Append(fixtures.Block(1, 4, 0)))
	require.NoError(t, l.Append("first"))
	require.NoError(t, s.Append(fixtures.Block(1, 2, 4)))
	require.NoError(t, l.Append("second"))

	entries, err := l.EntriesFrom(0)
	require.NoError(t, err)
	assert.Equal(t, []domain.LedgerEntry{
		{ID: "first", First: 0, Count: 4},
		{ID: "second", First: 4, Count: 2},
	}, entries)
}

func TestLedgerEndReportsCorruptEntry(t *testing.T) {
	s := openAppend(t, filepath.Join(t.TempDir(), "traj.fahdb"))
	require.NoError(t, s.Initialize(domain.LedgerFilenames, fixtures.Topology(1)))
	require.NoError(t, s.Commit(fixtures.Block(1, 3, 0), domain.LedgerEntry{ID: "a", Count: 3}))
	require.NoError(t, s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(domain.LedgerFilenames)).Put(itob(0), []byte{0xc1})
	}))

	l, err := s.Ledger()
	require.NoError(t, err)
	_, err = l.End()
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCountMismatch)
	assert.ErrorContains(t, err, "ledger entry 0")

	assert.Error(t, l.Append("b"))
}

func TestLegacyFoldersLedgerIsRecognised(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.fahdb")
	db, err := bolt.Open(path, 0o644, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucket([]byte(domain.LedgerFolders))
		return err
	}))
	require.NoError(t, db.Close())

	s := openAppend(t, path)
	require.NoError(t, s.Initialize(domain.LedgerDirectories, fixtures.Topology(1)))
	l, err := s.Ledger()
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerFolders, l.Kind())

	require.NoError(t, s.Commit(fixtures.Block(1, 2, 0), domain.LedgerEntry{ID: "0", Count: 2}))
	ok, err := l.Contains("0")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReadModeRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traj.fahdb")
	s := openAppend(t, path)
	require.NoError(t, s.Initialize(domain.LedgerFilenames, fixtures.Topology(1)))
	require.NoError(t, s.Close())

	r, err := Open(path, ports.ReadMode, time.Second)
	require.NoError(t, err)
	defer r.Close()
	assert.Error(t, r.Append(fixtures.Block(1, 1, 0)))
}

func TestFrameRecordRoundTripsOptionalFields(t *testing.T) {
	f := fixtures.Block(2, 1, 7).Frames[0]
	f.Velocities = []float32{1, 2, 3, 4, 5, 6}
	f.Energies = &domain.Energies{Kinetic: 1, Potential: -2, Temperature: 300, AlchemicalLambda: 0.5}

	enc, err := encodeFrame(f)
	require.NoError(t, err)
	got, err := decodeFrame(enc)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}
