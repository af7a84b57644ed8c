package identity_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/identity"
)

func TestGenerateKeyPairFingerprintRoundTrips(t *testing.T) {
	priv, pub, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	require.False(t, priv.IsZero())
	require.False(t, pub.IsZero())
	require.Equal(t, pub.Fingerprint(), priv.Public().Fingerprint())
	require.Len(t, pub.Fingerprint(), 64, "SHA-256 hex digest is 64 chars")
}

func TestPrivatePEMRoundTrip(t *testing.T) {
	priv, pub, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "identity.pem")
	require.NoError(t, identity.SavePrivatePEM(path, priv))

	loaded, err := identity.LoadPrivatePEM(path)
	require.NoError(t, err)
	require.Equal(t, pub.Fingerprint(), loaded.Public().Fingerprint())
}

func TestPubKeyDERHexRoundTrip(t *testing.T) {
	_, pub, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	hex, err := pub.DERHex()
	require.NoError(t, err)

	decoded, err := identity.PubKeyFromDERHex(hex)
	require.NoError(t, err)
	require.Equal(t, pub.Fingerprint(), decoded.Fingerprint())
}

func TestPubKeyFromDERHexRejectsGarbage(t *testing.T) {
	_, err := identity.PubKeyFromDERHex("not-hex!!")
	require.Error(t, err)
}
