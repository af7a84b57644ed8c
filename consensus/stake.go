package consensus

import (
	"fmt"

	"github.com/axiomproject/axiom/events"
	"github.com/axiomproject/axiom/storage"
)

// StakeLedger manages validator stake deposits. It is the Axiom-domain
// analog of a token balance ledger: get-check-mutate-set-emit, just applied
// to voting weight instead of spendable balance.
type StakeLedger struct {
	validators *storage.ValidatorStore
	emitter    *events.Emitter
}

// NewStakeLedger returns a ledger backed by validators.
func NewStakeLedger(validators *storage.ValidatorStore, emitter *events.Emitter) *StakeLedger {
	return &StakeLedger{validators: validators, emitter: emitter}
}

// Deposit increases fingerprint's stake by amount, activating it as a
// validator the first time its stake becomes positive.
func (l *StakeLedger) Deposit(fingerprint string, amount int64) (*storage.ValidatorRecord, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("stake deposit must be > 0")
	}
	rec, err := l.validators.Get(fingerprint)
	if err != nil {
		return nil, err
	}
	rec.PublicKeyFingerprint = fingerprint
	rec.Stake += amount
	if err := l.validators.Put(rec); err != nil {
		return nil, err
	}
	if l.emitter != nil {
		l.emitter.Emit(events.Event{
			Type: events.EventValidatorStaked,
			Data: map[string]any{"fingerprint": fingerprint, "stake": rec.Stake},
		})
	}
	return rec, nil
}

// Stake returns fingerprint's current stake (0 if never staked).
func (l *StakeLedger) Stake(fingerprint string) (int64, error) {
	rec, err := l.validators.Get(fingerprint)
	if err != nil {
		return 0, err
	}
	return rec.Stake, nil
}
