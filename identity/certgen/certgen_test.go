package certgen_test

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/identity/certgen"
)

func TestGenerateAllWritesFingerprintNamedNodeFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, certgen.GenerateAll(dir, "node-fingerprint-abc", nil))

	for _, name := range []string{"ca.crt", "ca.key", "node-fingerprint-abc.crt", "node-fingerprint-abc.key"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s to exist", name)
		require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestGenerateAllNodeCertIsSignedByCA(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, certgen.GenerateAll(dir, "node-1", nil))

	caPEM, err := os.ReadFile(filepath.Join(dir, "ca.crt"))
	require.NoError(t, err)
	caBlock, _ := pem.Decode(caPEM)
	require.NotNil(t, caBlock)
	caCert, err := x509.ParseCertificate(caBlock.Bytes)
	require.NoError(t, err)

	nodePEM, err := os.ReadFile(filepath.Join(dir, "node-1.crt"))
	require.NoError(t, err)
	nodeBlock, _ := pem.Decode(nodePEM)
	require.NotNil(t, nodeBlock)
	nodeCert, err := x509.ParseCertificate(nodeBlock.Bytes)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(caCert)
	_, err = nodeCert.Verify(x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	})
	require.NoError(t, err)
	require.Equal(t, "node-1", nodeCert.Subject.CommonName)
}

func TestGenerateAllIncludesExtraSANs(t *testing.T) {
	dir := t.TempDir()
	opts := &certgen.Options{ExtraDNS: []string{"node.example.internal"}}
	require.NoError(t, certgen.GenerateAll(dir, "node-2", opts))

	nodePEM, err := os.ReadFile(filepath.Join(dir, "node-2.crt"))
	require.NoError(t, err)
	block, _ := pem.Decode(nodePEM)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)

	require.Contains(t, cert.DNSNames, "node.example.internal")
	require.Contains(t, cert.DNSNames, "localhost")
}
