// Package remote runs block commands on other hosts over SSH.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultTimeout bounds both the connection handshake and each command.
const DefaultTimeout = 10 * time.Second

// Config describes a remote host. It is read from a block's "remote" table.
type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	User string `toml:"user"`

	// KeyFile is a private key. Passphrase decrypts it when set.
	KeyFile    string `toml:"key_file"`
	Passphrase string `toml:"passphrase"`
	Password   string `toml:"password"`
	// UseAgent authenticates with the keys of the agent at $SSH_AUTH_SOCK.
	UseAgent bool `toml:"use_agent"`

	// KnownHosts defaults to ~/.ssh/known_hosts.
	KnownHosts            string `toml:"known_hosts"`
	InsecureIgnoreHostKey bool   `toml:"insecure_ignore_host_key"`

	// Timeout is in seconds.
	Timeout float64 `toml:"timeout"`
}

// Address returns host:port.
func (c Config) Address() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout * float64(time.Second))
}

// Validate checks that c names a host and at least one way to log in.
func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return errors.New("remote: host is required")
	case c.User == "":
		return errors.New("remote: user is required")
	case c.KeyFile == "" && c.Password == "" && !c.UseAgent:
		return errors.New("remote: one of key_file, password or use_agent is required")
	}
	return nil
}

func (c Config) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if c.KeyFile != "" {
		key, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		var signer ssh.Signer
		if c.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(c.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if c.UseAgent {
		socket := os.Getenv("SSH_AUTH_SOCK")
		if socket == "" {
			return nil, errors.New("SSH_AUTH_SOCK not set")
		}
		// The agent is only dialed when the server asks for public keys.
		methods = append(methods, ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			conn, err := net.Dial("unix", socket)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to SSH agent: %w", err)
			}
			defer conn.Close()
			return agent.NewClient(conn).Signers()
		}))
	}
	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}
	return methods, nil
}

func (c Config) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := c.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("known_hosts file not found: %s", path)
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("reading known_hosts: %w", err)
	}
	return cb, nil
}

// ClientConfig builds the ssh client configuration for c.
func (c Config) ClientConfig() (*ssh.ClientConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	auth, err := c.authMethods()
	if err != nil {
		return nil, err
	}
	hostKey, err := c.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.timeout(),
	}, nil
}

// Client is a connection to a remote host. Commands run in their own
// sessions and may be issued concurrently.
type Client struct {
	addr    string
	timeout time.Duration

	mu     sync.RWMutex
	client *ssh.Client
}

// Dial connects to the host described by cfg.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	sshConfig, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	addr := cfg.Address()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		addr:    addr,
		timeout: cfg.timeout(),
		client:  ssh.NewClient(c, chans, reqs),
	}, nil
}

// Run executes cmd on the remote host and returns its standard output. The
// remote command is killed when ctx is done or the timeout elapses.
func (c *Client) Run(ctx context.Context, cmd string) (string, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return "", fmt.Errorf("%s: not connected", c.addr)
	}

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%s: failed to create session: %w", c.addr, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return "", fmt.Errorf("%s: %q: %w: %s", c.addr, cmd, err, msg)
			}
			return "", fmt.Errorf("%s: %q: %w", c.addr, cmd, err)
		}
		return stdout.String(), nil
	case <-timer.C:
		_ = session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("%s: %q timed out after %v", c.addr, cmd, c.timeout)
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// Conn is a lazily dialed Client that reconnects after the connection
// breaks.
type Conn struct {
	cfg Config

	mu     sync.Mutex
	client *Client
}

// New returns a Conn for cfg. Nothing is dialed until the first Run.
func New(cfg Config) *Conn {
	return &Conn{cfg: cfg}
}

// Run executes cmd, dialing first when there is no open connection. A
// failure other than a non-zero exit status drops the connection so the
// next Run dials again.
func (c *Conn) Run(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	client := c.client
	if client == nil {
		var err error
		if client, err = Dial(ctx, c.cfg); err != nil {
			c.mu.Unlock()
			return "", err
		}
		c.client = client
	}
	c.mu.Unlock()

	out, err := client.Run(ctx, cmd)
	var exit *ssh.ExitError
	if err != nil && !errors.As(err, &exit) {
		c.mu.Lock()
		if c.client == client {
			c.client = nil
		}
		c.mu.Unlock()
		_ = client.Close()
	}
	return out, err
}

// Close closes the open connection, if any.
func (c *Conn) Close() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}
