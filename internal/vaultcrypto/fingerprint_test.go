package vaultcrypto_test

import (
	"testing"

	"github.com/ladzaretti/codex-switch/internal/vaultcrypto"
)

func TestFingerprint_StableAcrossKeyOrderAndWhitespace(t *testing.T) {
	a := []byte(`{"tokens":{"access_token":"xyz","refresh_token":"abc"}}`)
	b := []byte(`{  "tokens" : { "refresh_token":"abc" ,"access_token" : "xyz" }  }`)

	fa, err := vaultcrypto.Fingerprint(a)
	if err != nil {
		t.Fatalf("fingerprint a: %v", err)
	}

	fb, err := vaultcrypto.Fingerprint(b)
	if err != nil {
		t.Fatalf("fingerprint b: %v", err)
	}

	if fa != fb {
		t.Errorf("fingerprints differ for structurally equal documents: %q vs %q", fa, fb)
	}

	if len(fa) != 16 {
		t.Errorf("expected 16 hex chars, got %d (%q)", len(fa), fa)
	}
}

func TestFingerprint_DiffersOnContentChange(t *testing.T) {
	a := []byte(`{"tokens":{"access_token":"xyz"}}`)
	b := []byte(`{"tokens":{"access_token":"abc"}}`)

	fa, _ := vaultcrypto.Fingerprint(a)
	fb, _ := vaultcrypto.Fingerprint(b)

	if fa == fb {
		t.Error("expected different fingerprints for different content")
	}
}

func TestFingerprint_RejectsInvalidJSON(t *testing.T) {
	if _, err := vaultcrypto.Fingerprint([]byte("not json")); err == nil {
		t.Error("expected error for invalid json")
	}
}
