package vaultcrypto_test

import (
	"bytes"
	"testing"

	"github.com/ladzaretti/codex-switch/internal/vaultcrypto"
)

func TestAEAD_SealOpenRoundTrip(t *testing.T) {
	key, err := vaultcrypto.RandBytes(vaultcrypto.KeySize)
	if err != nil {
		t.Fatalf("rand key: %v", err)
	}

	aead, err := vaultcrypto.NewAEAD(key)
	if err != nil {
		t.Fatalf("new aead: %v", err)
	}

	plaintext := []byte(`{"tokens":{"access_token":"xyz"}}`)

	ciphertext, err := aead.Seal(plaintext, []byte(vaultcrypto.DomainAuth))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := aead.Open(ciphertext, []byte(vaultcrypto.DomainAuth))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestAEAD_OpenFailsOnWrongDomain(t *testing.T) {
	key, _ := vaultcrypto.RandBytes(vaultcrypto.KeySize)
	aead, _ := vaultcrypto.NewAEAD(key)

	ciphertext, err := aead.Seal([]byte("secret"), []byte(vaultcrypto.DomainAuth))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := aead.Open(ciphertext, []byte(vaultcrypto.DomainVerifier)); err == nil {
		t.Error("expected decryption failure with mismatched additional data")
	}
}

func TestAEAD_OpenFailsOnTamperedCiphertext(t *testing.T) {
	key, _ := vaultcrypto.RandBytes(vaultcrypto.KeySize)
	aead, _ := vaultcrypto.NewAEAD(key)

	ciphertext, err := aead.Seal([]byte("secret"), []byte(vaultcrypto.DomainAuth))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := aead.Open(ciphertext, []byte(vaultcrypto.DomainAuth)); err == nil {
		t.Error("expected decryption failure on tampered ciphertext")
	}
}

func TestAEAD_EachSealUsesFreshNonce(t *testing.T) {
	key, _ := vaultcrypto.RandBytes(vaultcrypto.KeySize)
	aead, _ := vaultcrypto.NewAEAD(key)

	a, err := aead.Seal([]byte("same plaintext"), []byte(vaultcrypto.DomainAuth))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	b, err := aead.Seal([]byte("same plaintext"), []byte(vaultcrypto.DomainAuth))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if bytes.Equal(a, b) {
		t.Error("expected distinct ciphertexts for repeated seals of identical plaintext")
	}
}
