// Package remote runs single commands on fleet hosts over SSH.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/melih/fleetctl/internal/core/domain"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultConnectTimeout bounds TCP connect plus SSH handshake.
const DefaultConnectTimeout = 10 * time.Second

// Options configures an Executor.
type Options struct {
	// ConnectTimeout bounds connection setup. Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// KnownHostsFile enables host key verification. When empty, any host
	// key is accepted.
	KnownHostsFile string
	Logger         *slog.Logger
}

// Executor implements ports.CommandRunner. It opens a new connection for
// every command and closes it before returning.
type Executor struct {
	connectTimeout  time.Duration
	hostKeyCallback ssh.HostKeyCallback
	logger          *slog.Logger
}

// NewExecutor builds an executor from opts.
func NewExecutor(opts Options) (*Executor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	var callback ssh.HostKeyCallback
	if opts.KnownHostsFile != "" {
		path, err := homedir.Expand(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("expand known_hosts path: %w", err)
		}
		callback, err = knownhosts.New(path)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
	} else {
		logger.Warn("ssh host key verification disabled, remote host keys are trusted unconditionally")
		callback = ssh.InsecureIgnoreHostKey()
	}

	return &Executor{
		connectTimeout:  timeout,
		hostKeyCallback: callback,
		logger:          logger,
	}, nil
}

// Run executes command on host and returns its captured output. A non-zero
// remote exit status is not an error here; the caller judges the streams.
// Every other failure is wrapped in domain.ErrTransport.
func (e *Executor) Run(ctx context.Context, host domain.HostEntry, command string) (string, string, error) {
	port := host.Port
	if port == 0 {
		port = domain.DefaultSSHPort
	}
	addr := net.JoinHostPort(host.Host, strconv.Itoa(port))

	client, err := e.connect(ctx, host, addr)
	if err != nil {
		return "", "", fmt.Errorf("%w: ssh %s@%s: %w", domain.ErrTransport, host.Username, addr, err)
	}
	defer client.Close()

	// Tear the connection down if the caller gives up mid-command.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-done:
		}
	}()

	session, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("%w: open session on %s: %w", domain.ErrTransport, addr, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	start := time.Now()
	err = session.Run(command)
	var exitErr *ssh.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return stdout.String(), stderr.String(), fmt.Errorf("%w: run on %s: %w", domain.ErrTransport, addr, err)
	}

	e.logger.Debug("remote command finished",
		"host", host.Host,
		"exit_status", exitStatus(exitErr),
		"duration", time.Since(start))
	return stdout.String(), stderr.String(), nil
}

// connect dials and authenticates within the connect timeout.
func (e *Executor) connect(ctx context.Context, host domain.HostEntry, addr string) (*ssh.Client, error) {
	signer, err := loadSigner(host.KeyPath)
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            host.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: e.hostKeyCallback,
		Timeout:         e.connectTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.connectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// The handshake shares the connect budget.
	deadline, _ := dialCtx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func loadSigner(keyPath string) (ssh.Signer, error) {
	path, err := homedir.Expand(keyPath)
	if err != nil {
		return nil, fmt.Errorf("expand key path: %w", err)
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return signer, nil
}

func exitStatus(err *ssh.ExitError) int {
	if err == nil {
		return 0
	}
	return err.ExitStatus()
}
