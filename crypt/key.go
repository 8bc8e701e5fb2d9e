// Package crypt implements encryption at rest: key lifecycle management
// and envelope encrypt/decrypt of message payloads and structured fields.
//
// Unlike a placeholder transform, Encrypt/Decrypt here perform real AEAD
// encryption (AES-128-GCM, AES-256-GCM via stdlib crypto/aes+crypto/cipher,
// and ChaCha20-Poly1305 via golang.org/x/crypto/chacha20poly1305), so that
// decrypt(encrypt(x)) == x is a genuine round-trip rather than an identity
// stub.
package crypt

import (
	"time"
)

// Algorithm names the AEAD cipher used for a key.
type Algorithm string

const (
	Aes128Gcm        Algorithm = "Aes128Gcm"
	Aes256Gcm        Algorithm = "Aes256Gcm"
	ChaCha20Poly1305 Algorithm = "ChaCha20Poly1305"
)

// KeySize returns the raw key material length the algorithm requires.
func (a Algorithm) KeySize() int {
	switch a {
	case Aes128Gcm:
		return 16
	case Aes256Gcm:
		return 32
	case ChaCha20Poly1305:
		return 32
	default:
		return 0
	}
}

// KeyStatus tracks a key through its rotation lifecycle. Exactly one key
// is Active at a time; a key moved to PendingRotation remains decryptable
// until it is explicitly Disabled.
type KeyStatus int

const (
	Active KeyStatus = iota
	PendingRotation
	Disabled
	Destroyed
)

func (s KeyStatus) String() string {
	switch s {
	case Active:
		return "Active"
	case PendingRotation:
		return "PendingRotation"
	case Disabled:
		return "Disabled"
	case Destroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// Key is an encryption key's non-secret metadata; its raw material is
// held only by the KeyProvider and never embedded here.
type Key struct {
	Id        string
	Algorithm Algorithm
	Status    KeyStatus
	CreatedAt time.Time
	ExpiresAt *time.Time
	Version   int
}

// EncryptedData is the self-describing envelope produced by Encrypt: the
// key used and the IV travel with the ciphertext so Decrypt can locate
// the right key and reproduce the AEAD nonce.
type EncryptedData struct {
	Ciphertext []byte
	KeyId      string
	Algorithm  Algorithm
	Iv         []byte
	AuthTag    []byte // nil when the AEAD suite appends the tag to Ciphertext
}
