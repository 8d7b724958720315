package vaultcrypto

// Key holds a derived symmetric key in memory and can be zeroized once
// it is no longer needed, e.g. when the vault manager transitions to
// Locked. The zero Key is not usable; construct with [NewKey].
type Key struct {
	b []byte
}

// NewKey takes ownership of b and wraps it as a [Key]. Callers must not
// retain their own reference to b afterward.
func NewKey(b []byte) *Key {
	return &Key{b: b}
}

// Bytes returns the key material. The returned slice aliases the Key's
// internal buffer and must not be retained past a call to [Key.Zeroize].
func (k *Key) Bytes() []byte {
	if k == nil {
		return nil
	}

	return k.b
}

// Zeroize overwrites the key buffer with zeros. Safe to call multiple
// times and on a nil receiver.
func (k *Key) Zeroize() {
	if k == nil {
		return
	}

	for i := range k.b {
		k.b[i] = 0
	}

	k.b = nil
}
