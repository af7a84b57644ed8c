package config

import (
	"github.com/axiomproject/axiom/storage"
)

// GenesisStake seeds a validator's initial stake at chain start. Fingerprint
// is the SHA-256 hex fingerprint identity.PublicKey.Fingerprint produces.
type GenesisStake struct {
	Fingerprint string `mapstructure:"fingerprint"`
	Stake       int64  `mapstructure:"stake"`
}

// SeedValidators writes the initial validator stake table into validators.
// Called once on first startup (an empty validator store), before the
// chain's consensus loop runs. cmd/node seeds its own fingerprint with stake
// 1 whenever no active validator exists, whether or not --shared-keys is set.
func SeedValidators(validators *storage.ValidatorStore, stakes []GenesisStake) error {
	for _, s := range stakes {
		if err := validators.Put(&storage.ValidatorRecord{
			PublicKeyFingerprint: s.Fingerprint,
			Stake:                s.Stake,
		}); err != nil {
			return err
		}
	}
	return nil
}
