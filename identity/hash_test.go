package identity_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/identity"
)

func TestHashIsDeterministicAndHex(t *testing.T) {
	a := identity.Hash([]byte("hello"))
	b := identity.Hash([]byte("hello"))
	require.Equal(t, a, b)
	require.Len(t, a, 64)
	require.NotEqual(t, a, identity.Hash([]byte("world")))
}

func TestHashBytesMatchesHash(t *testing.T) {
	data := []byte("matching")
	require.Equal(t, identity.Hash(data), hex.EncodeToString(identity.HashBytes(data)))
}
