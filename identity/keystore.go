package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

type keystoreFile struct {
	Fingerprint string `json:"fingerprint"`
	Salt        string `json:"salt"`
	Nonce       string `json:"nonce"`
	CipherText  string `json:"cipher_text"`
}

// SaveEncrypted encrypts priv with password and writes it to path.
// Key derivation is PBKDF2-HMAC-SHA256 with 210,000 rounds.
func SaveEncrypted(path, password string, priv PrivateKey) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	key := deriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	cipherText := gcm.Seal(nil, nonce, EncodePrivatePEM(priv), nil)

	ks := keystoreFile{
		Fingerprint: priv.Public().Fingerprint(),
		Salt:        hex.EncodeToString(salt),
		Nonce:       hex.EncodeToString(nonce),
		CipherText:  hex.EncodeToString(cipherText),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadEncrypted decrypts the keystore at path using password.
func LoadEncrypted(path, password string) (PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PrivateKey{}, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return PrivateKey{}, err
	}
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return PrivateKey{}, err
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return PrivateKey{}, err
	}
	cipherText, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return PrivateKey{}, err
	}

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return PrivateKey{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return PrivateKey{}, err
	}
	pemBytes, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return PrivateKey{}, errors.New("wrong password or corrupted keystore")
	}
	return DecodePrivatePEM(pemBytes)
}

// IsEncrypted reports whether the file at path looks like a keystoreFile
// (JSON) rather than a raw PEM identity file.
func IsEncrypted(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var ks keystoreFile
	return json.Unmarshal(data, &ks) == nil && ks.CipherText != ""
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, 210_000, 32, sha256.New)
}
