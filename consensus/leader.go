// Package consensus implements the slotted, stake-weighted leader-rotation
// loop: every node independently computes the leader for a height/slot pair
// and either proposes or waits, with no inter-node coordination message.
package consensus

import (
	"encoding/binary"
	"fmt"

	"github.com/axiomproject/axiom/identity"
	"github.com/axiomproject/axiom/storage"
)

// SlotDuration is the width of one consensus slot.
const SlotDuration = 30 // seconds

// Slot returns the slot number for wallSeconds.
func Slot(wallSeconds int64) int64 {
	return wallSeconds / SlotDuration
}

// ValidatorLister supplies the active stake table, sorted ascending by
// fingerprint (storage.ValidatorStore.ListActive already returns this order).
type ValidatorLister interface {
	ListActive() ([]*storage.ValidatorRecord, error)
}

// SelectLeader implements the leader-selection rule of spec.md §4.E:
// weighted prefix sum over active stake, selector derived from
// SHA-256(previous_hash || slot) mod total stake.
func SelectLeader(validators ValidatorLister, previousHash string, slot int64) (string, error) {
	active, err := validators.ListActive()
	if err != nil {
		return "", fmt.Errorf("list active validators: %w", err)
	}
	if len(active) == 0 {
		return "", fmt.Errorf("no active validators")
	}

	var total int64
	prefix := make([]int64, len(active))
	for i, v := range active {
		total += v.Stake
		prefix[i] = total
	}
	if total <= 0 {
		return "", fmt.Errorf("total active stake is zero")
	}

	selector := selectorFor(previousHash, slot, total)
	for i, cumulative := range prefix {
		if cumulative > selector {
			return active[i].PublicKeyFingerprint, nil
		}
	}
	// Unreachable when total > 0: the last prefix entry equals total, and
	// selector < total by construction of the modulo below.
	return active[len(active)-1].PublicKeyFingerprint, nil
}

// selectorFor computes H(previous_hash || slot) mod total.
func selectorFor(previousHash string, slot int64, total int64) int64 {
	var slotBuf [8]byte
	binary.BigEndian.PutUint64(slotBuf[:], uint64(slot))
	digest := identity.HashBytes(append([]byte(previousHash), slotBuf[:]...))

	// Reduce the 32-byte digest to a non-negative int64 before the modulo,
	// using the first 8 bytes as a big-endian unsigned integer.
	var n uint64
	for i := 0; i < 8 && i < len(digest); i++ {
		n = n<<8 | uint64(digest[i])
	}
	return int64(n % uint64(total))
}
