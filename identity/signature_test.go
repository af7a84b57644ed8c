package identity_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/errs"
	"github.com/axiomproject/axiom/identity"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, pub, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	data := []byte("a fact about the world")
	sig, err := identity.Sign(priv, data)
	require.NoError(t, err)
	require.NoError(t, identity.Verify(pub, data, sig))
}

func TestVerifyRejectsTamperedData(t *testing.T) {
	priv, pub, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	sig, err := identity.Sign(priv, []byte("original"))
	require.NoError(t, err)
	require.Error(t, identity.Verify(pub, []byte("tampered"), sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, _, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	_, otherPub, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	sig, err := identity.Sign(priv, []byte("data"))
	require.NoError(t, err)
	require.Error(t, identity.Verify(otherPub, []byte("data"), sig))
}

func TestVerifyRejectsZeroKey(t *testing.T) {
	require.Error(t, identity.Verify(identity.PublicKey{}, []byte("data"), "00"))
}

func TestVerifyFailuresAreTypedAsCrypto(t *testing.T) {
	priv, _, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	_, otherPub, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	sig, err := identity.Sign(priv, []byte("data"))
	require.NoError(t, err)

	err = identity.Verify(otherPub, []byte("data"), sig)
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, errs.KindCrypto, e.Kind)
	require.False(t, e.Fatal)
}
