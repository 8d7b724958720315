package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ladzaretti/codex-switch/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()

	s, err := store.Open(t.Context(), filepath.Join(dir, "codex-switch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	return s
}

func TestStore_VaultMetaInitAndRead(t *testing.T) {
	s := openTestStore(t)

	ok, err := s.HasVaultMeta(t.Context())
	if err != nil {
		t.Fatalf("has vault meta: %v", err)
	}

	if ok {
		t.Fatal("expected no vault meta before init")
	}

	now := time.Now().UTC().Truncate(time.Second)

	meta := store.VaultMeta{
		KDFSalt:            []byte("0123456789abcdef"),
		KDFParams:          `{"memory":65536,"time":3,"parallelism":1}`,
		VerifierCiphertext: []byte("ciphertext"),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.InitVaultMeta(t.Context(), meta); err != nil {
		t.Fatalf("init vault meta: %v", err)
	}

	got, err := s.VaultMeta(t.Context())
	if err != nil {
		t.Fatalf("read vault meta: %v", err)
	}

	if got.KDFParams != meta.KDFParams {
		t.Errorf("kdf params mismatch: got %q want %q", got.KDFParams, meta.KDFParams)
	}

	if err := s.InitVaultMeta(t.Context(), meta); err == nil {
		t.Error("expected second InitVaultMeta to fail the primary key check")
	}
}

func TestStore_AccountLifecycle(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)

	acc := store.Account{
		ID:              uuid.NewString(),
		Name:            "work",
		Tags:            []string{"primary"},
		AuthCiphertext:  []byte("ciphertext"),
		AuthFingerprint: "deadbeefdeadbeef",
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.InsertAccount(t.Context(), acc); err != nil {
		t.Fatalf("insert account: %v", err)
	}

	got, err := s.AccountByID(t.Context(), acc.ID)
	if err != nil {
		t.Fatalf("account by id: %v", err)
	}

	if got.Name != acc.Name || len(got.Tags) != 1 || got.Tags[0] != "primary" {
		t.Errorf("account mismatch: %+v", got)
	}

	if err := s.UpdateMeta(t.Context(), acc.ID, "renamed", []string{"a", "b"}); err != nil {
		t.Fatalf("update meta: %v", err)
	}

	got, err = s.AccountByID(t.Context(), acc.ID)
	if err != nil {
		t.Fatalf("account by id after update: %v", err)
	}

	if got.Name != "renamed" || len(got.Tags) != 2 {
		t.Errorf("update did not apply: %+v", got)
	}

	all, err := s.ListAccounts(t.Context())
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}

	if len(all) != 1 {
		t.Fatalf("expected 1 account, got %d", len(all))
	}

	if err := s.DeleteAccount(t.Context(), acc.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := s.AccountByID(t.Context(), acc.ID); err == nil {
		t.Error("expected account to be gone after delete")
	}
}

func TestStore_SwitchHistoryAndSnapshots(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)

	a := store.Account{ID: uuid.NewString(), Name: "a", AuthFingerprint: "aaaaaaaaaaaaaaaa", AuthCiphertext: []byte("a"), CreatedAt: now, UpdatedAt: now}
	b := store.Account{ID: uuid.NewString(), Name: "b", AuthFingerprint: "bbbbbbbbbbbbbbbb", AuthCiphertext: []byte("b"), CreatedAt: now, UpdatedAt: now}

	if err := s.InsertAccount(t.Context(), a); err != nil {
		t.Fatalf("insert a: %v", err)
	}

	if err := s.InsertAccount(t.Context(), b); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	tx, err := s.BeginTx(t.Context())
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}

	histID := uuid.NewString()
	fromID := a.ID
	toID := b.ID

	if err := s.InsertHistory(t.Context(), tx, store.SwitchHistory{
		ID:            histID,
		FromAccountID: &fromID,
		ToAccountID:   &toID,
		Result:        store.SwitchSuccess,
		CreatedAt:     now,
	}); err != nil {
		t.Fatalf("insert history: %v", err)
	}

	if err := s.TouchLastUsed(t.Context(), tx, b.ID, now); err != nil {
		t.Fatalf("touch last used: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	h, err := s.HistoryByID(t.Context(), histID)
	if err != nil {
		t.Fatalf("history by id: %v", err)
	}

	if h.Result != store.SwitchSuccess || h.ToAccountID == nil || *h.ToAccountID != b.ID {
		t.Errorf("history row mismatch: %+v", h)
	}

	list, err := s.ListHistory(t.Context(), 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}

	if len(list) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(list))
	}

	remaining := 42.0

	if err := s.InsertSnapshot(t.Context(), store.QuotaSnapshot{
		ID:             uuid.NewString(),
		AccountID:      b.ID,
		CreatedAt:      now,
		Mode:           store.ModePrecise,
		RemainingValue: &remaining,
		QuotaState:     store.StateAvailable,
		Source:         "primary",
		Confidence:     90,
	}); err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}

	latest, err := s.LatestSnapshot(t.Context(), b.ID)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}

	if latest.Mode != store.ModePrecise || latest.Confidence != 90 {
		t.Errorf("latest snapshot mismatch: %+v", latest)
	}
}

func TestStore_DeleteAccountRestrictedByHistoryTarget(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)

	b := store.Account{ID: uuid.NewString(), Name: "b", AuthFingerprint: "cccccccccccccccc", AuthCiphertext: []byte("b"), CreatedAt: now, UpdatedAt: now}
	if err := s.InsertAccount(t.Context(), b); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	tx, err := s.BeginTx(t.Context())
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}

	if err := s.InsertHistory(t.Context(), tx, store.SwitchHistory{
		ID:          uuid.NewString(),
		ToAccountID: &b.ID,
		Result:      store.SwitchSuccess,
		CreatedAt:   now,
	}); err != nil {
		t.Fatalf("insert history: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := s.DeleteAccount(t.Context(), b.ID); err == nil {
		t.Error("expected delete to fail: account is referenced by switch_history.to_account_id")
	}
}
