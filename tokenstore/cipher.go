package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// sealer encrypts tokens at rest with AES-GCM. The key is derived from a secret which
// does not live next to the data.
type sealer struct {
	key256 []byte
}

func newSealer(secret string) sealer {
	hash := sha256.Sum256([]byte(secret))
	return sealer{key256: hash[:]}
}

func (s sealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key256)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// encrypt returns "hex(nonce) hex(ciphertext)".
func (s sealer) encrypt(token string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encrypt: read nonce: %w", err)
	}
	return hex.EncodeToString(nonce) + " " + hex.EncodeToString(gcm.Seal(nil, nonce, []byte(token), nil)), nil
}

func (s sealer) decrypt(nonceAndEncToken string) (string, error) {
	nonce, encToken, ok := strings.Cut(nonceAndEncToken, " ")
	if !ok {
		return "", fmt.Errorf("decrypt: malformed ciphertext")
	}
	nonceBytes, err := hex.DecodeString(nonce)
	if err != nil {
		return "", fmt.Errorf("decrypt nonce: failed to decode hex: %s", err)
	}
	ciphertext, err := hex.DecodeString(encToken)
	if err != nil {
		return "", fmt.Errorf("decrypt token: failed to decode hex: %s", err)
	}
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	if len(nonceBytes) != gcm.NonceSize() {
		return "", fmt.Errorf("decrypt nonce: got %d bytes want %d", len(nonceBytes), gcm.NonceSize())
	}
	token, err := gcm.Open(nil, nonceBytes, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(token), nil
}

// hashKey names an entry without revealing it.
func hashKey(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
