package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ruffel/redeploy"
	"go.uber.org/multierr"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

var _ redeploy.Environment = (*Environment)(nil)

// Environment implements redeploy.Environment for SSH execution.
type Environment struct {
	config       Config
	clientConfig *ssh.ClientConfig
	agentConn    net.Conn

	mu     sync.Mutex
	client *ssh.Client
	closed bool
}

// New validates the configuration and prepares an Environment.
// No connection is made until the first command or upload; call Connect to fail fast.
// Every call dials its own connection unless Config.ReuseConnection is set.
func New(opts ...Option) (*Environment, error) {
	var c Config
	for _, o := range opts {
		o(&c)
	}

	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	clientConfig, err := c.ToClientConfig()
	if err != nil {
		return nil, err
	}

	env := &Environment{
		config:       c,
		clientConfig: clientConfig,
	}

	if c.UseAgent {
		if auth := env.loadAgentAuth(); auth != nil {
			clientConfig.Auth = append(clientConfig.Auth, auth)
		}
	}

	if len(clientConfig.Auth) == 0 {
		return nil, errors.New("configuration error: no usable authentication method")
	}

	return env, nil
}

// NewFromClient wraps an already established client. The Environment takes ownership
// of the client, uses it for every call and closes it on Close; it will not redial.
func NewFromClient(client *ssh.Client, config Config) *Environment {
	config.ReuseConnection = true

	return &Environment{
		config: config.WithDefaults(),
		client: client,
	}
}

// loadAgentAuth connects to the SSH agent. Returns nil if the agent is unavailable.
func (e *Environment) loadAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	conn, err := (&net.Dialer{Timeout: 500 * time.Millisecond}).DialContext(context.Background(), "unix", socket)
	if err != nil {
		return nil
	}

	e.agentConn = conn

	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
}

// Connect checks now that the host is reachable and accepts the credentials. With
// connection reuse the connection is kept for later calls; otherwise it is closed.
func (e *Environment) Connect(ctx context.Context) error {
	_, release, err := e.acquire(ctx)
	if err != nil {
		return err
	}

	release()

	return nil
}

// acquire returns a client for one call and the func that ends its use.
func (e *Environment) acquire(ctx context.Context) (*ssh.Client, func(), error) {
	if e.config.ReuseConnection {
		client, err := e.connect(ctx)
		if err != nil {
			return nil, nil, err
		}

		return client, func() {}, nil
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return nil, nil, redeploy.ErrEnvironmentClosed
	}

	if e.clientConfig == nil {
		return nil, nil, errors.New("no dial configuration available")
	}

	client, err := e.dial(ctx)
	if err != nil {
		return nil, nil, err
	}

	return client, func() { _ = client.Close() }, nil
}

// connect returns the cached client, dialing a new one if there is none.
// Only used with connection reuse.
func (e *Environment) connect(ctx context.Context) (*ssh.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, redeploy.ErrEnvironmentClosed
	}

	if e.client != nil {
		return e.client, nil
	}

	if e.clientConfig == nil {
		return nil, errors.New("connection lost and no dial configuration available")
	}

	client, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}

	e.client = client

	return client, nil
}

func (e *Environment) dial(ctx context.Context) (*ssh.Client, error) {
	addr := e.config.Address()

	conn, err := (&net.Dialer{Timeout: e.config.Timeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ssh at %s: %w", addr, err)
	}

	// Bound the handshake by the same timeout as the dial.
	_ = conn.SetDeadline(time.Now().Add(e.config.Timeout))

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, e.clientConfig)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}

	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// forget drops client from the cache so the next call redials. It is a no-op for
// per-call connections.
func (e *Environment) forget(client *ssh.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == client {
		_ = client.Close()
		e.client = nil
	}
}

// Run executes a command in a new session and waits for it to finish.
// Cancelling ctx kills the remote process and closes the session.
func (e *Environment) Run(ctx context.Context, cmd *redeploy.Command) (*redeploy.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	client, release, err := e.acquire(ctx)
	if err != nil {
		return nil, &redeploy.TransportError{Command: cmd, Err: err}
	}

	defer release()

	session, err := client.NewSession()
	if err != nil {
		// A connection that cannot open sessions is dead; redial next time.
		e.forget(client)

		return nil, &redeploy.TransportError{Command: cmd, Err: fmt.Errorf("failed to create ssh session: %w", err)}
	}

	defer func() { _ = session.Close() }()

	session.Stdout = cmd.Stdout
	session.Stderr = cmd.Stderr

	start := time.Now()

	if err := session.Start(buildFullCommand(cmd, e.config.OS)); err != nil {
		e.forget(client)

		return nil, &redeploy.TransportError{Command: cmd, Err: fmt.Errorf("failed to start remote command: %w", err)}
	}

	finished := make(chan struct{})
	defer close(finished)

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGKILL)
			_ = session.Close()
		case <-finished:
		}
	}()

	waitErr := session.Wait()
	duration := time.Since(start)

	return e.result(ctx, cmd, waitErr, duration)
}

func (e *Environment) result(ctx context.Context, cmd *redeploy.Command, waitErr error, duration time.Duration) (*redeploy.Result, error) {
	if waitErr == nil {
		return &redeploy.Result{Duration: duration}, nil
	}

	if ctx.Err() != nil {
		res := &redeploy.Result{ExitCode: -1, Duration: duration, Error: ctx.Err()}

		return res, &redeploy.TransportError{Command: cmd, Err: ctx.Err()}
	}

	var exitErr *ssh.ExitError
	if errors.As(waitErr, &exitErr) {
		res := &redeploy.Result{ExitCode: exitErr.ExitStatus(), Duration: duration}

		return res, &redeploy.ExitError{Command: cmd, ExitCode: exitErr.ExitStatus(), Cause: waitErr}
	}

	// Session ended without an exit status: connection dropped or remote killed.
	res := &redeploy.Result{ExitCode: 255, Duration: duration, Error: waitErr}

	return res, &redeploy.TransportError{Command: cmd, Err: waitErr}
}

// TargetOS returns the operating system as configured.
func (e *Environment) TargetOS() redeploy.TargetOS {
	return e.config.OS
}

// Close closes the SSH connection and the agent connection, if any.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	var err error

	if e.client != nil {
		err = multierr.Append(err, ignoreClosed(e.client.Close()))
		e.client = nil
	}

	if e.agentConn != nil {
		err = multierr.Append(err, ignoreClosed(e.agentConn.Close()))
	}

	return err
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}
