package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keySize   = 32
	delimiter = ":"
)

// Error is returned for any envelope that cannot be opened. Callers treat it
// as an invalid code, never as a server fault.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "challenge cipher: " + e.Reason }

// ChallengeCipher encrypts OTP values for at-rest storage with AES-256-CBC.
// The key is immutable after construction; the IV is drawn per Encrypt call.
type ChallengeCipher struct {
	block stdcipher.Block
}

// New builds a cipher from a raw 32-byte key.
func New(key []byte) (*ChallengeCipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("challenge cipher key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}
	return &ChallengeCipher{block: block}, nil
}

// NewFromHex builds a cipher from a hex-encoded key as stored in configuration.
func NewFromHex(hexKey string) (*ChallengeCipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode challenge cipher key: %w", err)
	}
	return New(key)
}

// GenerateKey returns a fresh random key, hex-encoded.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Encrypt returns the envelope hex(iv) + ":" + hex(ciphertext).
func (c *ChallengeCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	stdcipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + delimiter + hex.EncodeToString(out), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (c *ChallengeCipher) Decrypt(envelope string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(envelope, delimiter)
	if !ok {
		return "", &Error{Reason: "missing delimiter"}
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", &Error{Reason: "malformed iv"}
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", &Error{Reason: "malformed ciphertext"}
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", &Error{Reason: "ciphertext is not a whole number of blocks"}
	}
	out := make([]byte, len(ct))
	stdcipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ct)
	plain, err := unpad(out)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// pad applies PKCS#7 padding.
func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, &Error{Reason: "bad padding"}
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, &Error{Reason: "bad padding"}
		}
	}
	return b[:len(b)-n], nil
}
