package crypt

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/vqmcore/queuecore/errs"
)

const encryptedFieldSuffix = "_field_encrypted"

// FieldEncryptor encrypts designated fields of a structured value in
// place: field "foo" becomes "foo_field_encrypted" holding a
// base64-encoded, JSON-serialized EncryptedData envelope. DecryptFields
// reverses the transform.
type FieldEncryptor struct {
	svc *EncryptionService
}

func NewFieldEncryptor(svc *EncryptionService) *FieldEncryptor {
	return &FieldEncryptor{svc: svc}
}

// envelope is the wire form of EncryptedData stored in a _field_encrypted
// value; EncryptedData itself carries no JSON tags since it is an
// internal type also used for whole-payload encryption.
type envelope struct {
	Ciphertext string `json:"ciphertext"`
	KeyId      string `json:"key_id"`
	Algorithm  string `json:"algorithm"`
	Iv         string `json:"iv"`
}

func encodeEnvelope(d EncryptedData) string {
	e := envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(d.Ciphertext),
		KeyId:      d.KeyId,
		Algorithm:  string(d.Algorithm),
		Iv:         base64.StdEncoding.EncodeToString(d.Iv),
	}
	b, _ := json.Marshal(e)
	return base64.StdEncoding.EncodeToString(b)
}

func decodeEnvelope(s string) (EncryptedData, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return EncryptedData{}, errs.Wrap(errs.KindEncryptionFailed, "decoding field envelope", err)
	}
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return EncryptedData{}, errs.Wrap(errs.KindEncryptionFailed, "parsing field envelope", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(e.Ciphertext)
	if err != nil {
		return EncryptedData{}, errs.Wrap(errs.KindEncryptionFailed, "decoding field ciphertext", err)
	}
	iv, err := base64.StdEncoding.DecodeString(e.Iv)
	if err != nil {
		return EncryptedData{}, errs.Wrap(errs.KindEncryptionFailed, "decoding field iv", err)
	}
	return EncryptedData{
		Ciphertext: ciphertext,
		KeyId:      e.KeyId,
		Algorithm:  Algorithm(e.Algorithm),
		Iv:         iv,
	}, nil
}

// EncryptFields replaces each named field in fields with a
// "<field>_field_encrypted" entry and removes the plaintext key. Fields
// absent from value are skipped.
func (f *FieldEncryptor) EncryptFields(ctx context.Context, value map[string]any, fields []string) error {
	for _, field := range fields {
		raw, ok := value[field]
		if !ok {
			continue
		}
		plaintext, err := json.Marshal(raw)
		if err != nil {
			return errs.Wrap(errs.KindEncryptionFailed, "marshaling field "+field, err)
		}
		data, err := f.svc.Encrypt(ctx, plaintext)
		if err != nil {
			return err
		}
		delete(value, field)
		value[field+encryptedFieldSuffix] = encodeEnvelope(data)
	}
	return nil
}

// DecryptFields reverses EncryptFields: each "<field>_field_encrypted"
// entry is decrypted and restored to "<field>".
func (f *FieldEncryptor) DecryptFields(ctx context.Context, value map[string]any, fields []string) error {
	for _, field := range fields {
		key := field + encryptedFieldSuffix
		raw, ok := value[key]
		if !ok {
			continue
		}
		encoded, ok := raw.(string)
		if !ok {
			return errs.New(errs.KindEncryptionFailed, "field "+key+" is not an encoded envelope")
		}
		data, err := decodeEnvelope(encoded)
		if err != nil {
			return err
		}
		plaintext, err := f.svc.Decrypt(ctx, data)
		if err != nil {
			return err
		}
		var restored any
		if err := json.Unmarshal(plaintext, &restored); err != nil {
			return errs.Wrap(errs.KindEncryptionFailed, "unmarshaling field "+field, err)
		}
		delete(value, key)
		value[field] = restored
	}
	return nil
}
