// Package vaultmgr implements the vault session state machine:
// Uninitialized, Locked and Unlocked, guarding the one in-memory
// derived key that wrap/unwrap operate on.
package vaultmgr

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/ladzaretti/codex-switch/internal/store"
	"github.com/ladzaretti/codex-switch/internal/vaultcrypto"
	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

// State is one of the three vault session states.
type State int

const (
	Uninitialized State = iota
	Locked
	Unlocked
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Locked:
		return "Locked"
	case Unlocked:
		return "Unlocked"
	default:
		return "Unknown"
	}
}

// MinPasswordLen is the minimum accepted master password length,
// enforced by Init and surfaced to callers prompting for one.
const MinPasswordLen = 8

const (
	minPasswordLen = MinPasswordLen

	// verifierPlaintext is the known plaintext encrypted under the
	// derived key at init time; unlock succeeds only if it can be
	// decrypted back out unchanged.
	verifierPlaintext = "codex-switch-verifier-v1"

	maxFailedAttempts = 5
	failedAttemptWindow = time.Minute
)

// Manager owns the vault session state machine and the one in-memory
// derived key, guarded by a RWMutex so wrap/unwrap (key readers) may
// run concurrently with each other but never with init/unlock/lock
// (key writers).
type Manager struct {
	store  *store.Store
	params vaultcrypto.Argon2Params

	mu    sync.RWMutex
	state State
	key   *vaultcrypto.Key
	aead  *vaultcrypto.AEAD

	attemptMu sync.Mutex
	failedAt  []time.Time
}

// New constructs a Manager bound to store s, resolving its initial
// state by checking for an existing vault_meta row.
func New(ctx context.Context, s *store.Store, params vaultcrypto.Argon2Params) (*Manager, error) {
	m := &Manager{store: s, params: params, state: Locked}

	has, err := s.HasVaultMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("check vault meta: %w", err)
	}

	if !has {
		m.state = Uninitialized
	}

	return m, nil
}

// State reports the manager's current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Init derives a new key from password, persists the salt, KDF
// parameters and an encrypted verifier, and transitions to Unlocked.
func (m *Manager) Init(ctx context.Context, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Uninitialized {
		return vaulterrors.New(vaulterrors.StoreError, "vault is already initialized", vaulterrors.ErrAlreadyInitialized)
	}

	if len(password) < minPasswordLen {
		return vaulterrors.New(vaulterrors.BadPassword, "password too short", vaulterrors.ErrWeakPassword)
	}

	salt, err := vaultcrypto.RandBytes(vaultcrypto.SaltSize)
	if err != nil {
		return vaulterrors.New(vaulterrors.CryptoFailed, "generate salt", err)
	}

	kdf := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(salt), vaultcrypto.WithParams(m.params))
	key := kdf.Derive([]byte(password))

	aead, err := vaultcrypto.NewAEAD(key)
	if err != nil {
		return vaulterrors.New(vaulterrors.CryptoFailed, "build aead", err)
	}

	verifierCiphertext, err := aead.Seal([]byte(verifierPlaintext), []byte(vaultcrypto.DomainVerifier))
	if err != nil {
		return vaulterrors.New(vaulterrors.CryptoFailed, "seal verifier", err)
	}

	now := time.Now().UTC()

	if err := m.store.InitVaultMeta(ctx, store.VaultMeta{
		KDFSalt:            salt,
		KDFParams:          kdf.PHC().String(),
		VerifierCiphertext: verifierCiphertext,
		CreatedAt:          now,
		UpdatedAt:          now,
	}); err != nil {
		return vaulterrors.New(vaulterrors.StoreError, "persist vault meta", err)
	}

	m.key = vaultcrypto.NewKey(key)
	m.aead = aead
	m.state = Unlocked

	return nil
}

// Unlock re-derives the key from password and verifies it against the
// stored verifier ciphertext. Rate-limited to maxFailedAttempts per
// failedAttemptWindow.
func (m *Manager) Unlock(ctx context.Context, password string) error {
	if retryAfter, throttled := m.checkThrottle(); throttled {
		return vaulterrors.New(vaulterrors.Throttled, fmt.Sprintf("retry after %s", retryAfter), vaulterrors.ErrThrottled)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Locked {
		return vaulterrors.New(vaulterrors.StoreError, "vault is not locked", nil)
	}

	meta, err := m.store.VaultMeta(ctx)
	if err != nil {
		return vaulterrors.New(vaulterrors.StoreError, "load vault meta", err)
	}

	phc, err := vaultcrypto.DecodeArgon2idPHC(meta.KDFParams)
	if err != nil {
		return vaulterrors.New(vaulterrors.CryptoFailed, "decode kdf params", err)
	}

	kdf := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(meta.KDFSalt), vaultcrypto.WithParams(phc.Argon2Params))
	key := kdf.Derive([]byte(password))

	aead, err := vaultcrypto.NewAEAD(key)
	if err != nil {
		return vaulterrors.New(vaulterrors.CryptoFailed, "build aead", err)
	}

	plaintext, err := aead.Open(meta.VerifierCiphertext, []byte(vaultcrypto.DomainVerifier))
	if err != nil || subtle.ConstantTimeCompare(plaintext, []byte(verifierPlaintext)) != 1 {
		m.recordFailedAttempt()
		return vaulterrors.New(vaulterrors.BadPassword, "incorrect password", vaulterrors.ErrBadPassword)
	}

	m.key = vaultcrypto.NewKey(key)
	m.aead = aead
	m.state = Unlocked

	return nil
}

// Lock zeroizes the in-memory key and transitions to Locked, unless
// the manager is Uninitialized.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Uninitialized {
		return
	}

	m.key.Zeroize()
	m.key = nil
	m.aead = nil
	m.state = Locked
}

// Wrap encrypts plaintext under the current session key. Requires
// Unlocked.
func (m *Manager) Wrap(plaintext []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != Unlocked {
		return nil, vaulterrors.New(vaulterrors.VaultLocked, "vault is locked", vaulterrors.ErrVaultLocked)
	}

	ciphertext, err := m.aead.Seal(plaintext, []byte(vaultcrypto.DomainAuth))
	if err != nil {
		return nil, vaulterrors.New(vaulterrors.CryptoFailed, "encrypt", err)
	}

	return ciphertext, nil
}

// Unwrap decrypts ciphertext under the current session key. Requires
// Unlocked.
func (m *Manager) Unwrap(ciphertext []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != Unlocked {
		return nil, vaulterrors.New(vaulterrors.VaultLocked, "vault is locked", vaulterrors.ErrVaultLocked)
	}

	plaintext, err := m.aead.Open(ciphertext, []byte(vaultcrypto.DomainAuth))
	if err != nil {
		return nil, vaulterrors.New(vaulterrors.CryptoFailed, "decrypt", err)
	}

	return plaintext, nil
}

// SessionKey returns a copy of the current derived key, for callers
// that cache it in the session daemon so later invocations can skip
// re-deriving it from the password. Requires Unlocked.
func (m *Manager) SessionKey() ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != Unlocked {
		return nil, false
	}

	cp := make([]byte, len(m.key.Bytes()))
	copy(cp, m.key.Bytes())

	return cp, true
}

// UnlockWithKey transitions Locked to Unlocked using a previously
// derived key, such as one handed back by the session daemon, instead
// of re-running the Argon2id KDF. key is still verified against the
// stored verifier ciphertext before the manager trusts it.
func (m *Manager) UnlockWithKey(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Locked {
		return vaulterrors.New(vaulterrors.StoreError, "vault is not locked", nil)
	}

	meta, err := m.store.VaultMeta(ctx)
	if err != nil {
		return vaulterrors.New(vaulterrors.StoreError, "load vault meta", err)
	}

	aead, err := vaultcrypto.NewAEAD(key)
	if err != nil {
		return vaulterrors.New(vaulterrors.CryptoFailed, "build aead", err)
	}

	plaintext, err := aead.Open(meta.VerifierCiphertext, []byte(vaultcrypto.DomainVerifier))
	if err != nil || subtle.ConstantTimeCompare(plaintext, []byte(verifierPlaintext)) != 1 {
		return vaulterrors.New(vaulterrors.BadPassword, "session key rejected", vaulterrors.ErrBadPassword)
	}

	m.key = vaultcrypto.NewKey(key)
	m.aead = aead
	m.state = Unlocked

	return nil
}

// checkThrottle reports whether an unlock attempt must be rejected
// outright because maxFailedAttempts have already occurred within
// failedAttemptWindow, and if so the duration until the oldest of
// those attempts ages out of the window.
func (m *Manager) checkThrottle() (time.Duration, bool) {
	m.attemptMu.Lock()
	defer m.attemptMu.Unlock()

	now := time.Now()
	cutoff := now.Add(-failedAttemptWindow)

	kept := m.failedAt[:0]

	for _, t := range m.failedAt {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	m.failedAt = kept

	if len(m.failedAt) < maxFailedAttempts {
		return 0, false
	}

	return m.failedAt[0].Add(failedAttemptWindow).Sub(now), true
}

func (m *Manager) recordFailedAttempt() {
	m.attemptMu.Lock()
	defer m.attemptMu.Unlock()

	m.failedAt = append(m.failedAt, time.Now())
}
