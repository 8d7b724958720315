package sessiond_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ladzaretti/codex-switch/internal/sessiond"
)

func startTestServer(t *testing.T) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "codex-switchd.sock")

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)

		if err := sessiond.Run(ctx, socketPath); err != nil {
			t.Errorf("run: %v", err)
		}
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := sessiond.Dial(socketPath); err == nil {
			return socketPath
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("daemon socket never became ready")

	return ""
}

func TestSessiond_LoginThenGetSessionRoundTrips(t *testing.T) {
	socketPath := startTestServer(t)

	client, err := sessiond.Dial(socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	key := []byte("derived-key-material-32-bytes!!")

	if err := client.Login("/tmp/codex-switch.db", key, time.Minute); err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := client.GetSession("/tmp/codex-switch.db")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	if string(got) != string(key) {
		t.Errorf("expected key %q, got %q", key, got)
	}
}

func TestSessiond_GetSessionAfterLogoutFails(t *testing.T) {
	socketPath := startTestServer(t)

	client, err := sessiond.Dial(socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := client.Login("/tmp/codex-switch.db", []byte("k"), time.Minute); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := client.Logout("/tmp/codex-switch.db"); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := client.GetSession("/tmp/codex-switch.db"); err == nil {
		t.Error("expected get session to fail after logout")
	}
}

func TestSessiond_SessionExpiresAfterDuration(t *testing.T) {
	socketPath := startTestServer(t)

	client, err := sessiond.Dial(socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := client.Login("/tmp/codex-switch.db", []byte("k"), 50*time.Millisecond); err != nil {
		t.Fatalf("login: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	if _, err := client.GetSession("/tmp/codex-switch.db"); err == nil {
		t.Error("expected session to have expired")
	}
}
