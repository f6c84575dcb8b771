package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/melih/fleetctl/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type reply struct {
	stdout string
	stderr string
	status uint32
}

// testServer is a minimal SSH server answering "exec" requests.
type testServer struct {
	addr    string
	hostKey ssh.Signer
	keyPath string

	mu       sync.Mutex
	commands []string
}

func (s *testServer) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *testServer) entry() domain.HostEntry {
	host, portStr, _ := net.SplitHostPort(s.addr)
	port, _ := strconv.Atoi(portStr)
	return domain.HostEntry{Name: "test", Host: host, Port: port, Username: "ops", KeyPath: s.keyPath}
}

func newSigner(t *testing.T) (ssh.Signer, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer, priv
}

func startServer(t *testing.T, handle func(cmd string) reply) *testServer {
	t.Helper()

	hostSigner, _ := newSigner(t)
	clientSigner, clientPriv := newSigner(t)

	block, err := ssh.MarshalPrivateKey(clientPriv, "")
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), clientSigner.PublicKey().Marshal()) {
				return nil, nil
			}
			return nil, assert.AnError
		},
	}
	config.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	srv := &testServer{addr: ln.Addr().String(), hostKey: hostSigner, keyPath: keyPath}

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(nc, config, handle)
		}
	}()
	return srv
}

func (s *testServer) serve(nc net.Conn, config *ssh.ServerConfig, handle func(string) reply) {
	conn, chans, reqs, err := ssh.NewServerConn(nc, config)
	if err != nil {
		nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "session" {
			nch.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, requests, err := nch.Accept()
		if err != nil {
			return
		}
		go func() {
			defer ch.Close()
			for req := range requests {
				if req.Type != "exec" {
					req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
					req.Reply(false, nil)
					return
				}
				req.Reply(true, nil)

				s.mu.Lock()
				s.commands = append(s.commands, payload.Command)
				s.mu.Unlock()

				r := handle(payload.Command)
				ch.Write([]byte(r.stdout))
				ch.Stderr().Write([]byte(r.stderr))
				ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{r.status}))
				return
			}
		}()
	}
}

func newTestExecutor(t *testing.T, opts Options) *Executor {
	t.Helper()
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	e, err := NewExecutor(opts)
	require.NoError(t, err)
	return e
}

func TestRunCapturesOutput(t *testing.T) {
	srv := startServer(t, func(cmd string) reply {
		return reply{stdout: "abc123|web|Up 2 minutes|nginx:latest\n"}
	})
	e := newTestExecutor(t, Options{})

	stdout, stderr, err := e.Run(context.Background(), srv.entry(), "docker ps")
	require.NoError(t, err)
	assert.Equal(t, "abc123|web|Up 2 minutes|nginx:latest\n", stdout)
	assert.Empty(t, stderr)
	assert.Equal(t, []string{"docker ps"}, srv.recorded())
}

func TestRunNonZeroExitIsNotTransportFailure(t *testing.T) {
	srv := startServer(t, func(cmd string) reply {
		return reply{stderr: "Error: No such container: ghost\n", status: 1}
	})
	e := newTestExecutor(t, Options{})

	stdout, stderr, err := e.Run(context.Background(), srv.entry(), "docker start ghost")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "Error: No such container: ghost\n", stderr)
}

func TestRunOpensFreshConnectionPerCall(t *testing.T) {
	srv := startServer(t, func(cmd string) reply { return reply{stdout: cmd} })
	e := newTestExecutor(t, Options{})

	for _, cmd := range []string{"one", "two"} {
		out, _, err := e.Run(context.Background(), srv.entry(), cmd)
		require.NoError(t, err)
		assert.Equal(t, cmd, out)
	}
	assert.Equal(t, []string{"one", "two"}, srv.recorded())
}

func TestRunUnreachableHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	e := newTestExecutor(t, Options{})
	srvKey := startServer(t, func(string) reply { return reply{} }).keyPath

	_, _, err = e.Run(context.Background(), domain.HostEntry{
		Host: "127.0.0.1", Port: addr.Port, Username: "ops", KeyPath: srvKey,
	}, "docker ps")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestRunMissingKey(t *testing.T) {
	srv := startServer(t, func(string) reply { return reply{} })
	e := newTestExecutor(t, Options{})

	entry := srv.entry()
	entry.KeyPath = filepath.Join(t.TempDir(), "missing")
	_, _, err := e.Run(context.Background(), entry, "docker ps")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Empty(t, srv.recorded())
}

func TestRunWrongKeyRejected(t *testing.T) {
	srv := startServer(t, func(string) reply { return reply{} })
	other := startServer(t, func(string) reply { return reply{} })
	e := newTestExecutor(t, Options{})

	entry := srv.entry()
	entry.KeyPath = other.keyPath
	_, _, err := e.Run(context.Background(), entry, "docker ps")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestRunHandshakeTimeout(t *testing.T) {
	// Accepts TCP but never speaks SSH.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	stop := make(chan struct{})
	t.Cleanup(func() {
		close(stop)
		ln.Close()
	})
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		<-stop
	}()

	srv := startServer(t, func(string) reply { return reply{} })
	e := newTestExecutor(t, Options{ConnectTimeout: 200 * time.Millisecond})

	addr := ln.Addr().(*net.TCPAddr)
	start := time.Now()
	_, _, err = e.Run(context.Background(), domain.HostEntry{
		Host: "127.0.0.1", Port: addr.Port, Username: "ops", KeyPath: srv.keyPath,
	}, "docker ps")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestKnownHosts(t *testing.T) {
	srv := startServer(t, func(string) reply { return reply{stdout: "ok"} })
	stranger, _ := newSigner(t)

	tests := []struct {
		name    string
		key     ssh.PublicKey
		wantErr bool
	}{
		{name: "matching key", key: srv.hostKey.PublicKey()},
		{name: "mismatched key", key: stranger.PublicKey(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "known_hosts")
			line := knownhosts.Line([]string{knownhosts.Normalize(srv.addr)}, tt.key)
			require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))

			e := newTestExecutor(t, Options{KnownHostsFile: path})
			out, _, err := e.Run(context.Background(), srv.entry(), "docker ps")
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrTransport)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", out)
		})
	}
}

func TestNewExecutorMissingKnownHosts(t *testing.T) {
	_, err := NewExecutor(Options{KnownHostsFile: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}
