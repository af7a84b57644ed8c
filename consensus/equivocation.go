package consensus

import (
	"encoding/binary"
	"fmt"

	"github.com/axiomproject/axiom/storage"
)

var keyLastSignedHeight = []byte("consensus:last_signed_height")

// SigningGuard enforces the single-vote rule: a validator signs at most one
// proposal per height. last_signed_height is persisted before the signature
// is produced, so a crash between persisting and broadcasting can never
// result in two signed proposals for the same height after restart.
type SigningGuard struct {
	db storage.DB
}

// NewSigningGuard returns a guard backed by db.
func NewSigningGuard(db storage.DB) *SigningGuard {
	return &SigningGuard{db: db}
}

// LastSignedHeight returns the last height this validator signed, or 0 if none.
func (g *SigningGuard) LastSignedHeight() (int64, error) {
	data, err := g.db.Get(keyLastSignedHeight)
	if err != nil {
		if err == storage.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

// Reserve persists height as the last signed height, failing if height is
// not strictly greater than the previously reserved one. Call this before
// signing, not after, so the reservation is durable even if the process
// dies before the signature is produced.
func (g *SigningGuard) Reserve(height int64) error {
	last, err := g.LastSignedHeight()
	if err != nil {
		return err
	}
	if height <= last {
		return fmt.Errorf("refusing to sign height %d: already signed through %d", height, last)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(height))
	return g.db.Set(keyLastSignedHeight, buf[:])
}
