package identity

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/axiomproject/axiom/errs"
)

// Sign signs the SHA-256 digest of data with RSA-PSS and returns a
// hex-encoded signature.
func Sign(priv PrivateKey, data []byte) (string, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, priv.key, crypto.SHA256, digest[:], nil)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks a hex-encoded RSA-PSS signature against data using pub.
// Every failure is a CryptoError (spec.md §7): the caller drops the
// offending message and penalizes the sender's reputation instead of
// treating this as a local fault.
func Verify(pub PublicKey, data []byte, sigHex string) error {
	if pub.IsZero() {
		return errs.Crypto("verify", fmt.Errorf("empty public key"))
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return errs.Crypto("invalid signature hex", err)
	}
	digest := sha256.Sum256(data)
	if err := rsa.VerifyPSS(pub.key, crypto.SHA256, digest[:], sig, nil); err != nil {
		return errs.Crypto("signature verification failed", err)
	}
	return nil
}
