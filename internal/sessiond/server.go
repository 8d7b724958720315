package sessiond

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// SocketPerm is the file permission mode of the UNIX domain socket.
const SocketPerm = 0o600

// DefaultSocketPath is "/run/user/<uid>/codex-switchd.sock", matching
// the teacher's per-user runtime-directory convention.
func DefaultSocketPath() string {
	return fmt.Sprintf("/run/user/%d/codex-switchd.sock", os.Getuid())
}

// getCred returns the peer credentials of a UNIX socket connection.
func getCred(conn net.Conn) (*unix.Ucred, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("connection is not a *net.UnixConn: got %T", conn)
	}

	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return nil, err
	}

	var (
		ucred    *unix.Ucred
		ucredErr error
	)

	err = rawConn.Control(func(fd uintptr) {
		ucred, ucredErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return nil, err
	}

	if ucredErr != nil {
		return nil, ucredErr
	}

	return ucred, nil
}

// uidCheckingListener only accepts connections from a single allowed
// UID, closing and skipping everything else.
type uidCheckingListener struct {
	net.Listener
	allowedUID int
}

func (l *uidCheckingListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		ucred, err := getCred(conn)
		if err != nil {
			log.Printf("sessiond: uid check failed: %v", err)
			_ = conn.Close()

			continue
		}

		if int(ucred.Uid) != l.allowedUID {
			log.Printf("sessiond: connection from disallowed uid: %d", ucred.Uid)
			_ = conn.Close()

			continue
		}

		return conn, nil
	}
}

type safeMap[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

func newSafeMap[K comparable, V any]() *safeMap[K, V] {
	return &safeMap[K, V]{data: make(map[K]V)}
}

func (m *safeMap[K, V]) store(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
}

func (m *safeMap[K, V]) load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]

	return v, ok
}

func (m *safeMap[K, V]) delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
}

func (m *safeMap[K, V]) rangeAndStopAll(stop func(V)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.data {
		stop(v)
	}
}

// cachedSession holds one unlocked vault's derived key material for a
// bounded duration.
type cachedSession struct {
	key  []byte
	done chan struct{}
}

func newCachedSession(key []byte) *cachedSession {
	return &cachedSession{key: key, done: make(chan struct{})}
}

func (s *cachedSession) expireAfter(d time.Duration, onExpire func()) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.done:
	}

	onExpire()
}

func (s *cachedSession) stop() {
	select {
	case <-s.done:
	default:
		close(s.done)

		for i := range s.key {
			s.key[i] = 0
		}
	}
}

// Server holds one cached session per database path.
type Server struct {
	sessions *safeMap[string, *cachedSession]
}

func newServer() *Server {
	return &Server{sessions: newSafeMap[string, *cachedSession]()}
}

func (s *Server) handleLogin(req request) response {
	if req.DBPath == "" {
		return response{Err: "db_path must not be empty"}
	}

	if old, ok := s.sessions.load(req.DBPath); ok {
		old.stop()
	}

	sess := newCachedSession(req.Key)
	s.sessions.store(req.DBPath, sess)

	duration := time.Duration(req.DurationMS) * time.Millisecond

	go sess.expireAfter(duration, func() {
		if cur, ok := s.sessions.load(req.DBPath); ok && cur == sess {
			s.sessions.delete(req.DBPath)
		}
	})

	return response{OK: true}
}

func (s *Server) handleLogout(req request) response {
	sess, ok := s.sessions.load(req.DBPath)
	if !ok {
		return response{Err: "no session found for db path"}
	}

	sess.stop()
	s.sessions.delete(req.DBPath)

	return response{OK: true}
}

func (s *Server) handleGetSession(req request) response {
	sess, ok := s.sessions.load(req.DBPath)
	if !ok {
		return response{Err: "no session found for db path"}
	}

	return response{OK: true, Key: sess.key}
}

func (s *Server) dispatch(req request) response {
	switch req.Op {
	case opLogin:
		return s.handleLogin(req)
	case opLogout:
		return s.handleLogout(req)
	case opGetSession:
		return s.handleGetSession(req)
	default:
		return response{Err: fmt.Sprintf("unknown op: %q", req.Op)}
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)

	req, err := readRequest(r)
	if err != nil {
		return
	}

	resp := s.dispatch(req)
	if err := writeMessage(conn, resp); err != nil {
		log.Printf("sessiond: write response: %v", err)
	}
}

func (s *Server) stopAll() {
	s.sessions.rangeAndStopAll(func(sess *cachedSession) { sess.stop() })
}

// Run serves the session cache over a UNIX domain socket at
// socketPath until ctx is canceled or an interrupt/SIGTERM signal is
// received. The socket is created with SocketPerm and only accepts
// connections from the current process's UID.
func Run(ctx context.Context, socketPath string) error {
	log.SetPrefix("[codex-switchd] ")

	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("unix socket listen: %w", err)
	}

	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	if err := os.Chmod(socketPath, SocketPerm); err != nil {
		return fmt.Errorf("unix socket chmod: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := newServer()
	lis := &uidCheckingListener{Listener: listener, allowedUID: os.Getuid()}

	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			conn, err := lis.Accept()
			if err != nil {
				log.Printf("sessiond: accept: %v", err)
				return
			}

			go srv.serveConn(conn)
		}
	}()

	<-ctx.Done()

	log.Printf("sessiond: shutting down")

	_ = listener.Close()
	srv.stopAll()

	<-done

	return nil
}
