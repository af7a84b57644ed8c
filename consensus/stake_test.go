package consensus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/consensus"
	"github.com/axiomproject/axiom/internal/testutil"
	"github.com/axiomproject/axiom/storage"
)

func TestStakeLedgerDepositAccumulates(t *testing.T) {
	validators := storage.NewValidatorStore(testutil.NewMemDB())
	ledger := consensus.NewStakeLedger(validators, nil)

	rec, err := ledger.Deposit("fp-a", 10)
	require.NoError(t, err)
	require.Equal(t, int64(10), rec.Stake)

	rec, err = ledger.Deposit("fp-a", 5)
	require.NoError(t, err)
	require.Equal(t, int64(15), rec.Stake)

	stake, err := ledger.Stake("fp-a")
	require.NoError(t, err)
	require.Equal(t, int64(15), stake)
}

func TestStakeLedgerRejectsNonPositiveDeposit(t *testing.T) {
	validators := storage.NewValidatorStore(testutil.NewMemDB())
	ledger := consensus.NewStakeLedger(validators, nil)

	_, err := ledger.Deposit("fp-a", 0)
	require.Error(t, err)
	_, err = ledger.Deposit("fp-a", -1)
	require.Error(t, err)
}
