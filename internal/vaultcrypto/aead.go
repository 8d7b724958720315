package vaultcrypto

import (
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the length, in bytes, of an XChaCha20-Poly1305 nonce.
const NonceSize = chacha20poly1305.NonceSizeX

// layoutVersion is the first byte of every ciphertext produced by
// [AEAD.Seal], identifying the on-disk framing
// version(1) || nonce(24) || aead_output.
const layoutVersion = 0x01

var (
	ErrNilAEAD           = errors.New("aead is nil")
	ErrUnsupportedLayout = errors.New("unsupported ciphertext layout version")
	ErrCiphertextTooShort = errors.New("ciphertext shorter than the layout header")
)

// AEAD wraps an XChaCha20-Poly1305 cipher and frames ciphertexts with a
// version byte and nonce, so stored blobs are self-describing.
type AEAD struct {
	aead cipher
}

// cipher is the subset of cipher.AEAD this package depends on; kept
// narrow so tests can substitute a fake.
type cipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// NewAEAD constructs an [AEAD] from a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	return &AEAD{aead: aead}, nil
}

// Seal encrypts plaintext under domain-separating additional data (e.g.
// "auth" or "verifier"), generating a fresh random nonce, and returns
// the framed ciphertext version(1) || nonce(24) || aead_output.
func (a *AEAD) Seal(plaintext, additionalData []byte) ([]byte, error) {
	if a == nil || a.aead == nil {
		return nil, ErrNilAEAD
	}

	nonce, err := RandBytes(NonceSize)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+NonceSize+len(plaintext)+chacha20poly1305.Overhead)
	out = append(out, layoutVersion)
	out = append(out, nonce...)
	out = a.aead.Seal(out, nonce, plaintext, additionalData)

	return out, nil
}

// Open decrypts a ciphertext produced by [AEAD.Seal], verifying the
// layout version and the additional data matches.
func (a *AEAD) Open(framed, additionalData []byte) ([]byte, error) {
	if a == nil || a.aead == nil {
		return nil, ErrNilAEAD
	}

	if len(framed) < 1+NonceSize {
		return nil, ErrCiphertextTooShort
	}

	if framed[0] != layoutVersion {
		return nil, ErrUnsupportedLayout
	}

	nonce := framed[1 : 1+NonceSize]
	ciphertext := framed[1+NonceSize:]

	return a.aead.Open(nil, nonce, ciphertext, additionalData)
}

// Domain separation tags used as AEAD additional data, per spec.md §4.1.
const (
	DomainAuth     = "auth"
	DomainVerifier = "verifier"
)
