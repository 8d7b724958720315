package vaultcrypto

import (
	"golang.org/x/crypto/argon2"
)

// DefaultArgon2idVersion is the argon2 version byte this package writes
// into every PHC string it produces.
const DefaultArgon2idVersion = 19

// KeySize is the length, in bytes, of keys derived by [Argon2idKDF].
const KeySize = 32

// SaltSize is the length, in bytes, of a freshly generated KDF salt.
const SaltSize = 16

// Argon2Params represents the tunable cost parameters of the Argon2id KDF.
type Argon2Params struct {
	Memory      uint32 // Memory cost in KiB
	Time        uint32 // Time cost (iterations)
	Parallelism uint8  // Parallelism factor (number of threads)
}

// DefaultArgon2Params satisfies spec.md's minimums: memory >= 64 MiB,
// iterations >= 3, parallelism = 1.
//
//nolint:gochecknoglobals
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Time:        3,
	Parallelism: 1,
}

// Argon2idKDF derives keys from a password and a salt using Argon2id.
type Argon2idKDF struct {
	phc Argon2idPHC
}

type Argon2idKDFOpt func(*Argon2idKDF)

// NewArgon2idKDF creates a new [Argon2idKDF] using [DefaultArgon2Params]
// and [DefaultArgon2idVersion], overridable via [Argon2idKDFOpt].
func NewArgon2idKDF(opts ...Argon2idKDFOpt) *Argon2idKDF {
	kdf := &Argon2idKDF{
		phc: Argon2idPHC{
			Argon2Params: DefaultArgon2Params,
			Version:      DefaultArgon2idVersion,
		},
	}

	for _, opt := range opts {
		opt(kdf)
	}

	return kdf
}

// WithSalt sets the salt used for derivation.
func WithSalt(salt []byte) Argon2idKDFOpt {
	return func(kdf *Argon2idKDF) {
		kdf.phc.Salt = salt
	}
}

// WithPHC seeds the KDF's parameters, version and salt from an existing
// [Argon2idPHC], e.g. one decoded from [VaultMeta].
func WithPHC(phc Argon2idPHC) Argon2idKDFOpt {
	return func(kdf *Argon2idKDF) {
		kdf.phc = phc
	}
}

// WithParams overrides the cost parameters.
func WithParams(params Argon2Params) Argon2idKDFOpt {
	return func(kdf *Argon2idKDF) {
		kdf.phc.Argon2Params = params
	}
}

// Derive returns the 32-byte key derived from password under the KDF's
// current salt and parameters.
func (a *Argon2idKDF) Derive(password []byte) []byte {
	p := a.phc.Argon2Params
	return argon2.IDKey(password, a.phc.Salt, p.Time, p.Memory, p.Parallelism, KeySize)
}

// PHC returns the parameters (and salt, if set) as an [Argon2idPHC],
// without a hash component.
func (a *Argon2idKDF) PHC() Argon2idPHC {
	return a.phc
}
