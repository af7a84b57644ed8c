package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/errs"
	"github.com/axiomproject/axiom/internal/testutil"
	"github.com/axiomproject/axiom/ledger"
	"github.com/axiomproject/axiom/storage"
)

// failingBatchDB wraps a MemDB but makes every batch Write() fail, so tests
// can exercise the errs.Storage wiring without a real broken LevelDB file.
type failingBatchDB struct {
	*testutil.MemDB
}

func (d failingBatchDB) NewBatch() storage.Batch {
	return failingBatch{inner: d.MemDB.NewBatch()}
}

type failingBatch struct {
	inner storage.Batch
}

func (b failingBatch) Set(key, value []byte) { b.inner.Set(key, value) }
func (b failingBatch) Delete(key []byte)     { b.inner.Delete(key) }
func (b failingBatch) Reset()                { b.inner.Reset() }
func (b failingBatch) Write() error          { return errors.New("simulated disk failure") }

func TestBlockStoreCommitBlockWrapsWriteFailureAsFatalStorage(t *testing.T) {
	db := failingBatchDB{testutil.NewMemDB()}
	facts := storage.NewFactStore(db)
	blocks := storage.NewBlockStore(db, facts)

	b := ledger.NewBlock(1, ledger.GenesisHash, "node-a", nil, 1000)
	b.Hash = b.ComputeHash()
	b.Signature = "00"

	err := blocks.CommitBlock(b, nil)
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, errs.KindStorage, e.Kind)
	require.True(t, e.Fatal, "a broken chain tail is a fatal invariant violation")
}

func TestFactStorePutWrapsWriteFailureAsNonFatalStorage(t *testing.T) {
	db := failingBatchDB{testutil.NewMemDB()}
	facts := storage.NewFactStore(db)

	f, err := ledger.NewFact(1, "disk write will fail", nil, nil)
	require.NoError(t, err)

	err = facts.Put(f)
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, errs.KindStorage, e.Kind)
	require.False(t, e.Fatal, "a lone fact write is retryable, unlike a block commit")
}

func TestNewLevelDBWrapsOpenFailureAsFatalStorage(t *testing.T) {
	// Opening a LevelDB "directory" that is actually a regular file forces
	// leveldb.OpenFile to fail without needing to corrupt a real database.
	path := filepath.Join(t.TempDir(), "not-a-directory")
	require.NoError(t, os.WriteFile(path, []byte("not a leveldb directory"), 0644))

	_, err := storage.NewLevelDB(path)
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, errs.KindStorage, e.Kind)
	require.True(t, e.Fatal)
}
