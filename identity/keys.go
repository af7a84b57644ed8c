package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
)

// keyBits is the modulus size mandated for every node identity.
const keyBits = 2048

// PrivateKey wraps an RSA-2048 private key.
type PrivateKey struct {
	key *rsa.PrivateKey
}

// PublicKey wraps an RSA-2048 public key.
type PublicKey struct {
	key *rsa.PublicKey
}

// GenerateKeyPair generates a new RSA-2048 key pair.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return PrivateKey{}, PublicKey{}, fmt.Errorf("generate rsa key: %w", err)
	}
	return PrivateKey{key: key}, PublicKey{key: &key.PublicKey}, nil
}

// Public derives the public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey{key: &priv.key.PublicKey}
}

// Raw exposes the underlying *rsa.PrivateKey for signing.
func (priv PrivateKey) Raw() *rsa.PrivateKey { return priv.key }

// IsZero reports whether priv holds no key material.
func (priv PrivateKey) IsZero() bool { return priv.key == nil }

// Raw exposes the underlying *rsa.PublicKey for verification.
func (pub PublicKey) Raw() *rsa.PublicKey { return pub.key }

// IsZero reports whether pub holds no key material.
func (pub PublicKey) IsZero() bool { return pub.key == nil }

// DER returns the PKIX DER encoding of the public key.
func (pub PublicKey) DER() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub.key)
}

// Fingerprint returns the stable SHA-256 hex fingerprint of the public key:
// SHA-256(DER(pubkey)). This is the identifier used as ValidatorRecord's
// public_key_fingerprint, as Block.proposer, and as the PeerStore key.
func (pub PublicKey) Fingerprint() string {
	der, err := pub.DER()
	if err != nil {
		// MarshalPKIXPublicKey only fails for malformed keys, which cannot
		// occur for a key produced by GenerateKeyPair or PubKeyFromDER.
		return ""
	}
	return Hash(der)
}

// Hex is an alias of Fingerprint kept for call sites that think in terms of
// a hex-encoded identifier rather than "a fingerprint".
func (pub PublicKey) Hex() string { return pub.Fingerprint() }

// EncodePrivatePEM PKCS#1-encodes priv as a PEM block.
func EncodePrivatePEM(priv PrivateKey) []byte {
	der := x509.MarshalPKCS1PrivateKey(priv.key)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}

// DecodePrivatePEM parses a PKCS#1 PEM-encoded RSA private key.
func DecodePrivatePEM(data []byte) (PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return PrivateKey{}, fmt.Errorf("invalid PEM data")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("parse rsa private key: %w", err)
	}
	return PrivateKey{key: key}, nil
}

// SavePrivatePEM writes priv to path as a PKCS#1 PEM file with 0600 permissions.
func SavePrivatePEM(path string, priv PrivateKey) error {
	return os.WriteFile(path, EncodePrivatePEM(priv), 0600)
}

// LoadPrivatePEM reads and decodes a PKCS#1 PEM private key from path.
func LoadPrivatePEM(path string) (PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PrivateKey{}, err
	}
	return DecodePrivatePEM(data)
}

// PubKeyFromDER decodes a PKIX DER-encoded public key.
func PubKeyFromDER(der []byte) (PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return PublicKey{}, fmt.Errorf("parse pkix public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return PublicKey{}, fmt.Errorf("not an rsa public key")
	}
	return PublicKey{key: rsaPub}, nil
}

// PubKeyFromDERHex decodes a hex-encoded PKIX DER public key, the format
// PeerRecord.PublicKey and PEER_LIST entries carry keys in.
func PubKeyFromDERHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	return PubKeyFromDER(b)
}

// DERHex returns the hex-encoded PKIX DER public key.
func (pub PublicKey) DERHex() (string, error) {
	der, err := pub.DER()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(der), nil
}
