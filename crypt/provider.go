package crypt

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/vqmcore/queuecore/errs"
)

// KeyProvider owns raw key material and performs the actual AEAD seal/open.
// The core only ever holds a provider-issued reference (Key.Id), never raw
// bytes, so a KMS-backed provider can keep material outside process memory
// entirely.
type KeyProvider interface {
	// GenerateMaterial creates and stores new key material for alg,
	// returning a provider reference to use as the Key's id.
	GenerateMaterial(ctx context.Context, alg Algorithm) (ref string, err error)
	// Destroy discards material for ref; subsequent Seal/Open calls for it fail.
	Destroy(ctx context.Context, ref string) error
	Seal(ctx context.Context, ref string, alg Algorithm, nonce, plaintext, aad []byte) ([]byte, error)
	Open(ctx context.Context, ref string, alg Algorithm, nonce, ciphertext, aad []byte) ([]byte, error)
}

// LocalProvider holds raw key material in process memory. Intended for
// development and testing; production deployments should supply a
// KMS/vault-backed KeyProvider instead.
type LocalProvider struct {
	mu       sync.RWMutex
	material map[string][]byte
	seq      int
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{material: make(map[string][]byte)}
}

func (p *LocalProvider) GenerateMaterial(_ context.Context, alg Algorithm) (string, error) {
	size := alg.KeySize()
	if size == 0 {
		return "", fmt.Errorf("crypt: unsupported algorithm %q", alg)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypt: generating key material: %w", err)
	}
	p.mu.Lock()
	p.seq++
	ref := fmt.Sprintf("local-%d", p.seq)
	p.material[ref] = buf
	p.mu.Unlock()
	return ref, nil
}

func (p *LocalProvider) Destroy(_ context.Context, ref string) error {
	p.mu.Lock()
	delete(p.material, ref)
	p.mu.Unlock()
	return nil
}

func (p *LocalProvider) lookup(ref string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.material[ref]
	if !ok {
		return nil, errs.ErrKeyNotFound
	}
	return m, nil
}

func (p *LocalProvider) Seal(_ context.Context, ref string, alg Algorithm, nonce, plaintext, aad []byte) ([]byte, error) {
	material, err := p.lookup(ref)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(alg, material)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func (p *LocalProvider) Open(_ context.Context, ref string, alg Algorithm, nonce, ciphertext, aad []byte) ([]byte, error) {
	material, err := p.lookup(ref)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(alg, material)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errs.ErrAuthFailed
	}
	return plaintext, nil
}
