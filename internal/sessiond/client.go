package sessiond

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrEmptyDBPath is returned by client calls made with an empty
// database path key.
var ErrEmptyDBPath = errors.New("db path must not be empty")

// ErrNotReachable reports that no daemon is listening at the socket
// path; callers treat this as "no cached session", not a hard error.
var ErrNotReachable = errors.New("session daemon not reachable")

// Client talks to a running Server over its UNIX socket. Every call
// opens and closes its own connection; the daemon is stateless from a
// transport perspective.
type Client struct {
	socketPath string
}

// Dial verifies the socket at path is owned by the current user,
// private, and actually a socket before returning a Client. It does
// not itself connect; connections are made per call.
func Dial(socketPath string) (*Client, error) {
	if err := verifySocketSecure(socketPath, os.Getuid()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReachable, err)
	}

	return &Client{socketPath: socketPath}, nil
}

func verifySocketSecure(path string, uid int) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat socket: %w", err)
	}

	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return errors.New("unexpected file stat type")
	}

	if int(stat.Uid) != uid {
		return fmt.Errorf("unexpected socket owner uid: got %d, want %d", stat.Uid, uid)
	}

	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing to follow symlink: %s", path)
	}

	if fi.Mode().Perm() != SocketPerm {
		return fmt.Errorf("socket file has insecure permissions: %v", fi.Mode().Perm())
	}

	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("file is not a socket: %s", path)
	}

	return nil
}

func (c *Client) call(req request) (response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 2*time.Second)
	if err != nil {
		return response{}, fmt.Errorf("%w: %w", ErrNotReachable, err)
	}
	defer conn.Close()

	if err := writeMessage(conn, req); err != nil {
		return response{}, err
	}

	resp, err := readResponse(bufio.NewReader(conn))
	if err != nil {
		return response{}, err
	}

	if resp.Err != "" {
		return response{}, errors.New(resp.Err)
	}

	return resp, nil
}

// Login caches key under dbPath for duration. key is the already
// Argon2id-derived vault key, never the raw master password.
func (c *Client) Login(dbPath string, key []byte, duration time.Duration) error {
	if dbPath == "" {
		return ErrEmptyDBPath
	}

	_, err := c.call(request{Op: opLogin, DBPath: dbPath, Key: key, DurationMS: duration.Milliseconds()})

	return err
}

// Logout evicts the cached session for dbPath, if any.
func (c *Client) Logout(dbPath string) error {
	if dbPath == "" {
		return ErrEmptyDBPath
	}

	_, err := c.call(request{Op: opLogout, DBPath: dbPath})

	return err
}

// GetSession returns the cached key for dbPath, or an error if no
// session is cached (expired or never logged in).
func (c *Client) GetSession(dbPath string) ([]byte, error) {
	if dbPath == "" {
		return nil, ErrEmptyDBPath
	}

	resp, err := c.call(request{Op: opGetSession, DBPath: dbPath})
	if err != nil {
		return nil, err
	}

	return resp.Key, nil
}
