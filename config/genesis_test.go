package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/config"
	"github.com/axiomproject/axiom/internal/testutil"
	"github.com/axiomproject/axiom/storage"
)

func TestSeedValidatorsPopulatesStore(t *testing.T) {
	validators := storage.NewValidatorStore(testutil.NewMemDB())

	err := config.SeedValidators(validators, []config.GenesisStake{
		{Fingerprint: "fp-a", Stake: 10},
		{Fingerprint: "fp-b", Stake: 20},
	})
	require.NoError(t, err)

	active, err := validators.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 2)
}
