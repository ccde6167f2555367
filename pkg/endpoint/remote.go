package endpoint

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// RemoteSettings is the connection configuration of a remote endpoint.
type RemoteSettings struct {
	URL string

	// HandshakeTimeout overrides DefaultHandshakeTimeout when positive.
	HandshakeTimeout time.Duration
}

/*
RemoteEndpoint fronts a tool backend that is already running somewhere
else, reachable over MCP HTTP streaming. The gateway owns no process for
it, only the session.
*/
type RemoteEndpoint struct {
	name    string
	config  RemoteSettings
	timeout time.Duration
	client  *Client

	mu     sync.Mutex
	oneOff *Client
}

func NewRemote(name string, config RemoteSettings) *RemoteEndpoint {
	timeout := config.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	return &RemoteEndpoint{
		name:    name,
		config:  config,
		timeout: timeout,
		client:  NewClientWithTimeout(name, timeout),
	}
}

func (e *RemoteEndpoint) Name() string { return e.name }

func (e *RemoteEndpoint) URL() string { return e.config.URL }

// Start opens the streaming session, then lists tools once as a
// connectivity diagnostic. The listing is best-effort: a backend that
// answers the handshake but cannot enumerate tools still counts as
// started.
func (e *RemoteEndpoint) Start(ctx context.Context) error {
	log.Info("starting remote endpoint", "name", e.name, "url", e.config.URL)

	if err := e.client.StartHTTP(ctx, e.config.URL); err != nil {
		return err
	}

	if tools, err := e.client.ListTools(ctx); err != nil {
		log.Warn("connected but failed to list tools", "name", e.name, "error", err)
	} else {
		log.Info("connected to remote endpoint", "name", e.name, "tools", len(tools))
	}

	return nil
}

func (e *RemoteEndpoint) Stop(ctx context.Context) error {
	log.Info("stopping remote endpoint", "name", e.name)

	e.releaseOneOff(ctx)

	if err := e.client.Stop(ctx); err != nil {
		return err
	}

	log.Info("stopped remote endpoint", "name", e.name)
	return nil
}

// Client returns the cached client while its session is live. When the
// cached session has died, an independent client is connected instead,
// leaving the cached one untouched so ad-hoc proxy calls never disturb
// its state. The endpoint holds at most one such client at a time,
// reusing it while its session is live and closing it when the endpoint
// stops.
func (e *RemoteEndpoint) Client(ctx context.Context) (*Client, error) {
	if e.client.IsRunning() {
		return e.client, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.oneOff != nil && e.oneOff.IsRunning() {
		return e.oneOff, nil
	}

	log.Info("creating one-off client for remote endpoint", "name", e.name)
	oneOff := NewClientWithTimeout(e.name, e.timeout)
	if err := oneOff.StartHTTP(ctx, e.config.URL); err != nil {
		return nil, err
	}
	e.oneOff = oneOff
	return oneOff, nil
}

func (e *RemoteEndpoint) releaseOneOff(ctx context.Context) {
	e.mu.Lock()
	oneOff := e.oneOff
	e.oneOff = nil
	e.mu.Unlock()

	if oneOff == nil || !oneOff.IsRunning() {
		return
	}
	if err := oneOff.Stop(ctx); err != nil {
		log.Warn("failed to close one-off client", "name", e.name, "error", err)
	}
}
