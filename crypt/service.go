package crypt

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/vqmcore/queuecore/errs"
	"github.com/vqmcore/queuecore/ports"
)

// EncryptionService owns key lifecycle and performs envelope encrypt/
// decrypt of payloads. Readers (Encrypt, Decrypt, ListKeys) proceed
// concurrently; lifecycle mutations (GenerateKey, SetActive, Rotate,
// Disable, Destroy) take an exclusive lock, matching the concurrency
// model's store-level read/write split.
type EncryptionService struct {
	mu       sync.RWMutex
	store    ports.KeyStore
	provider KeyProvider
	active   *Key // cached; nil until a key is made Active
}

func NewEncryptionService(store ports.KeyStore, provider KeyProvider) *EncryptionService {
	return &EncryptionService{store: store, provider: provider}
}

func toMetadata(k Key) ports.KeyMetadata {
	return ports.KeyMetadata{
		Id:        k.Id,
		Algorithm: string(k.Algorithm),
		Status:    ports.KeyStatus(k.Status),
		CreatedAt: k.CreatedAt,
		ExpiresAt: k.ExpiresAt,
		Version:   k.Version,
	}
}

func fromMetadata(m ports.KeyMetadata) Key {
	return Key{
		Id:        m.Id,
		Algorithm: Algorithm(m.Algorithm),
		Status:    KeyStatus(m.Status),
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
		Version:   m.Version,
	}
}

// GenerateKey creates a new key via the provider and records its metadata.
// The very first key generated becomes Active automatically; subsequent
// keys are generated PendingRotation and require an explicit SetActive or
// Rotate to take effect.
func (s *EncryptionService) GenerateKey(ctx context.Context, alg Algorithm) (Key, error) {
	ref, err := s.provider.GenerateMaterial(ctx, alg)
	if err != nil {
		return Key{}, errs.Wrap(errs.KindEncryptionFailed, "generating key material", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := PendingRotation
	if s.active == nil {
		status = Active
	}
	key := Key{
		Id:        ref,
		Algorithm: alg,
		Status:    status,
		CreatedAt: time.Now(),
		Version:   1,
	}
	if err := s.store.Put(ctx, ref, toMetadata(key), nil); err != nil {
		return Key{}, errs.Wrap(errs.KindEncryptionFailed, "persisting key metadata", err)
	}
	if status == Active {
		s.active = &key
	}
	return key, nil
}

// SetActive promotes id to Active, demoting the prior active key (if any
// and different) to PendingRotation.
func (s *EncryptionService) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setActiveLocked(ctx, id)
}

func (s *EncryptionService) setActiveLocked(ctx context.Context, id string) error {
	_, meta, found, err := s.store.Get(ctx, id)
	if err != nil {
		return errs.Wrap(errs.KindEncryptionFailed, "looking up key", err)
	}
	if !found {
		return errs.ErrKeyNotFound
	}
	if s.active != nil && s.active.Id != id {
		if err := s.store.SetStatus(ctx, s.active.Id, ports.KeyStatusPendingRotation); err != nil {
			return errs.Wrap(errs.KindEncryptionFailed, "demoting prior active key", err)
		}
	}
	if err := s.store.SetStatus(ctx, id, ports.KeyStatusActive); err != nil {
		return errs.Wrap(errs.KindEncryptionFailed, "activating key", err)
	}
	key := fromMetadata(meta)
	key.Status = Active
	s.active = &key
	return nil
}

// Rotate generates a new key of alg, marks the prior active key
// PendingRotation, and promotes the new key to Active.
func (s *EncryptionService) Rotate(ctx context.Context, alg Algorithm) (Key, error) {
	ref, err := s.provider.GenerateMaterial(ctx, alg)
	if err != nil {
		return Key{}, errs.Wrap(errs.KindEncryptionFailed, "generating key material", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{Id: ref, Algorithm: alg, Status: PendingRotation, CreatedAt: time.Now(), Version: 1}
	if s.active != nil {
		key.Version = s.active.Version + 1
	}
	if err := s.store.Put(ctx, ref, toMetadata(key), nil); err != nil {
		return Key{}, errs.Wrap(errs.KindEncryptionFailed, "persisting key metadata", err)
	}
	if err := s.setActiveLocked(ctx, ref); err != nil {
		return Key{}, err
	}
	return *s.active, nil
}

// Disable transitions a PendingRotation key out of decryptable service;
// it is never called on the current Active key.
func (s *EncryptionService) Disable(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.Id == id {
		return errs.New(errs.KindInvalidState, "cannot disable the active key")
	}
	if err := s.store.SetStatus(ctx, id, ports.KeyStatusDisabled); err != nil {
		return errs.Wrap(errs.KindEncryptionFailed, "disabling key", err)
	}
	return nil
}

// Destroy permanently discards a key's material; Decrypt for ciphertexts
// under this key subsequently fails with KeyNotFound.
func (s *EncryptionService) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.Id == id {
		return errs.New(errs.KindInvalidState, "cannot destroy the active key")
	}
	if err := s.provider.Destroy(ctx, id); err != nil {
		return errs.Wrap(errs.KindEncryptionFailed, "destroying key material", err)
	}
	if err := s.store.SetStatus(ctx, id, ports.KeyStatusDestroyed); err != nil {
		return errs.Wrap(errs.KindEncryptionFailed, "marking key destroyed", err)
	}
	return nil
}

func (s *EncryptionService) ListKeys(ctx context.Context) ([]Key, error) {
	metas, err := s.store.List(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncryptionFailed, "listing keys", err)
	}
	out := make([]Key, len(metas))
	for i, m := range metas {
		out[i] = fromMetadata(m)
	}
	return out, nil
}

// Encrypt seals plaintext under the current active key.
func (s *EncryptionService) Encrypt(ctx context.Context, plaintext []byte) (EncryptedData, error) {
	s.mu.RLock()
	active := s.active
	s.mu.RUnlock()
	if active == nil {
		return EncryptedData{}, errs.New(errs.KindEncryptionFailed, "no active encryption key")
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedData{}, errs.Wrap(errs.KindEncryptionFailed, "generating iv", err)
	}
	ciphertext, err := s.provider.Seal(ctx, active.Id, active.Algorithm, nonce, plaintext, nil)
	if err != nil {
		return EncryptedData{}, errs.Wrap(errs.KindEncryptionFailed, "sealing payload", err)
	}
	return EncryptedData{
		Ciphertext: ciphertext,
		KeyId:      active.Id,
		Algorithm:  active.Algorithm,
		Iv:         nonce,
	}, nil
}

// Decrypt opens data using the key it names, which may be Active or
// PendingRotation — a Disabled or Destroyed key is rejected, since
// Disable is the transition that marks a key no longer decryptable.
func (s *EncryptionService) Decrypt(ctx context.Context, data EncryptedData) ([]byte, error) {
	_, meta, found, err := s.store.Get(ctx, data.KeyId)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncryptionFailed, "looking up key", err)
	}
	status := ports.KeyStatus(meta.Status)
	if !found || status == ports.KeyStatusDisabled || status == ports.KeyStatusDestroyed {
		return nil, errs.ErrKeyNotFound
	}
	plaintext, err := s.provider.Open(ctx, data.KeyId, data.Algorithm, data.Iv, data.Ciphertext, nil)
	if err != nil {
		return nil, errs.ErrAuthFailed
	}
	return plaintext, nil
}

// ReEncrypt decrypts under data's original key and re-encrypts under the
// current active key, used to migrate ciphertext off a rotated-out key.
func (s *EncryptionService) ReEncrypt(ctx context.Context, data EncryptedData) (EncryptedData, error) {
	plaintext, err := s.Decrypt(ctx, data)
	if err != nil {
		return EncryptedData{}, err
	}
	return s.Encrypt(ctx, plaintext)
}
