package switchengine_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ladzaretti/codex-switch/internal/cliadapter"
	"github.com/ladzaretti/codex-switch/internal/store"
	"github.com/ladzaretti/codex-switch/internal/switchengine"
	"github.com/ladzaretti/codex-switch/internal/vaultcrypto"
	"github.com/ladzaretti/codex-switch/internal/vaultmgr"
)

type testEnv struct {
	store  *store.Store
	vault  *vaultmgr.Manager
	engine *switchengine.Engine
	live   string
}

func newTestEnv(t *testing.T) *testEnv {
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

	vault, err := vaultmgr.New(t.Context(), s, vaultcrypto.DefaultArgon2Params)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	if err := vault.Init(t.Context(), "hunter22!"); err != nil {
		t.Fatalf("init vault: %v", err)
	}

	live := filepath.Join(dir, "auth.json")
	snapshots := filepath.Join(dir, "snapshots")

	engine := switchengine.New(s, vault, cliadapter.New(), live, snapshots)

	return &testEnv{store: s, vault: vault, engine: engine, live: live}
}

func (e *testEnv) importAccount(t *testing.T, name, plaintext string) store.Account {
	t.Helper()

	ciphertext, err := e.vault.Wrap([]byte(plaintext))
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	fp, err := vaultcrypto.Fingerprint([]byte(plaintext))
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	now := time.Now().UTC()

	acc := store.Account{
		ID:              uuid.NewString(),
		Name:            name,
		AuthCiphertext:  ciphertext,
		AuthFingerprint: fp,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.store.InsertAccount(t.Context(), acc); err != nil {
		t.Fatalf("insert account: %v", err)
	}

	return acc
}

func TestEngine_SwitchWritesLiveFileAndHistory(t *testing.T) {
	env := newTestEnv(t)

	a := env.importAccount(t, "a", `{"tokens":{"access_token":"aaa"}}`)

	hist, err := env.engine.Switch(t.Context(), a.ID, false)
	if err != nil {
		t.Fatalf("switch: %v", err)
	}

	if hist.Result != store.SwitchSuccess {
		t.Fatalf("expected success, got %+v", hist)
	}

	if hist.ToAccountID == nil || *hist.ToAccountID != a.ID {
		t.Errorf("expected to_account_id %q, got %+v", a.ID, hist.ToAccountID)
	}

	if hist.SnapshotPath != nil {
		t.Errorf("expected no snapshot for empty live file, got %q", *hist.SnapshotPath)
	}

	got, err := os.ReadFile(env.live)
	if err != nil {
		t.Fatalf("read live file: %v", err)
	}

	if string(got) != `{"tokens":{"access_token":"aaa"}}` {
		t.Errorf("live file mismatch: %s", got)
	}
}

func TestEngine_SwitchThenRollbackRestoresPriorAccount(t *testing.T) {
	env := newTestEnv(t)

	a := env.importAccount(t, "a", `{"tokens":{"access_token":"aaa"}}`)
	b := env.importAccount(t, "b", `{"tokens":{"access_token":"bbb"}}`)

	if _, err := env.engine.Switch(t.Context(), a.ID, false); err != nil {
		t.Fatalf("switch to a: %v", err)
	}

	histB, err := env.engine.Switch(t.Context(), b.ID, false)
	if err != nil {
		t.Fatalf("switch to b: %v", err)
	}

	if histB.SnapshotPath == nil {
		t.Fatal("expected a snapshot of a's content before switching to b")
	}

	rolled, err := env.engine.Rollback(t.Context(), histB.ID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if rolled.Result != store.SwitchRolledBack {
		t.Errorf("expected rolled_back, got %s", rolled.Result)
	}

	got, err := os.ReadFile(env.live)
	if err != nil {
		t.Fatalf("read live file: %v", err)
	}

	if string(got) != `{"tokens":{"access_token":"aaa"}}` {
		t.Errorf("expected live file restored to a's content, got %s", got)
	}
}

func TestEngine_ImportCurrentUsesFingerprintNameWhenEmpty(t *testing.T) {
	env := newTestEnv(t)

	if err := os.WriteFile(env.live, []byte(`{"tokens":{"access_token":"ccc"}}`), 0o600); err != nil {
		t.Fatalf("write live file: %v", err)
	}

	acc, err := env.engine.ImportCurrent(t.Context(), "", nil)
	if err != nil {
		t.Fatalf("import current: %v", err)
	}

	if acc.Name == "" || acc.Name[:8] != "Account-" {
		t.Errorf("expected auto-generated account name, got %q", acc.Name)
	}

	got, err := env.store.AccountByID(t.Context(), acc.ID)
	if err != nil {
		t.Fatalf("account by id: %v", err)
	}

	if got.AuthFingerprint != acc.AuthFingerprint {
		t.Errorf("fingerprint mismatch: %+v", got)
	}
}

func TestEngine_ImportFromFileLeavesSourceUntouched(t *testing.T) {
	env := newTestEnv(t)

	srcPath := filepath.Join(t.TempDir(), "other-auth.json")
	content := `{"tokens":{"access_token":"ddd"}}`

	if err := os.WriteFile(srcPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	acc, err := env.engine.ImportFromFile(t.Context(), srcPath, "imported", nil)
	if err != nil {
		t.Fatalf("import from file: %v", err)
	}

	if acc.Name != "imported" {
		t.Errorf("expected name %q, got %q", "imported", acc.Name)
	}

	got, err := os.ReadFile(srcPath)
	if err != nil {
		t.Fatalf("read source file: %v", err)
	}

	if string(got) != content {
		t.Errorf("source file was modified: %s", got)
	}
}

func TestEngine_RollbackFailsWithoutSnapshot(t *testing.T) {
	env := newTestEnv(t)

	a := env.importAccount(t, "a", `{"tokens":{"access_token":"aaa"}}`)

	hist, err := env.engine.Switch(t.Context(), a.ID, false)
	if err != nil {
		t.Fatalf("switch: %v", err)
	}

	if _, err := env.engine.Rollback(t.Context(), hist.ID); err == nil {
		t.Error("expected rollback to fail: first switch has no prior snapshot")
	}
}
