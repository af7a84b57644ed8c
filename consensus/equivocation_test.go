package consensus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/consensus"
	"github.com/axiomproject/axiom/internal/testutil"
)

func TestSigningGuardReserveIsMonotonic(t *testing.T) {
	guard := consensus.NewSigningGuard(testutil.NewMemDB())

	last, err := guard.LastSignedHeight()
	require.NoError(t, err)
	require.Equal(t, int64(0), last)

	require.NoError(t, guard.Reserve(5))
	last, err = guard.LastSignedHeight()
	require.NoError(t, err)
	require.Equal(t, int64(5), last)

	require.Error(t, guard.Reserve(5), "refuses to re-reserve the same height")
	require.Error(t, guard.Reserve(3), "refuses to reserve a lower height")
	require.NoError(t, guard.Reserve(6))
}
