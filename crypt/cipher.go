package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is 96 bits for every algorithm this package supports, per the
// AEAD standard and the payload envelope's fixed iv length.
const NonceSize = 12

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case Aes128Gcm, Aes256Gcm:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("crypt: aes key: %w", err)
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("crypt: unsupported algorithm %q", alg)
	}
}
