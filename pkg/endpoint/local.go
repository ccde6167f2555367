package endpoint

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/toolgate/pkg/errors"
)

// LocalSettings is the launch configuration of a subprocess endpoint.
type LocalSettings struct {
	Command string
	Args    []string
	Env     map[string]string

	// HandshakeTimeout overrides DefaultHandshakeTimeout when positive.
	HandshakeTimeout time.Duration
}

/*
LocalEndpoint runs a tool backend as a child process and drives it over
its standard streams. The subprocess lives exactly as long as the session:
closing the session terminates it.
*/
type LocalEndpoint struct {
	name   string
	config LocalSettings
	client *Client
}

func NewLocal(name string, config LocalSettings) *LocalEndpoint {
	timeout := config.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	return &LocalEndpoint{
		name:   name,
		config: config,
		client: NewClientWithTimeout(name, timeout),
	}
}

func (e *LocalEndpoint) Name() string { return e.name }

// Start spawns the subprocess and completes the handshake. On failure no
// session and no actor exist afterwards.
func (e *LocalEndpoint) Start(ctx context.Context) error {
	log.Info("starting local endpoint", "name", e.name, "command", e.config.Command)

	if err := e.client.StartStdio(ctx, e.config.Command, e.config.Args, e.config.Env); err != nil {
		return err
	}

	log.Info("started local endpoint", "name", e.name)
	return nil
}

// Stop delegates to the session actor; closing the session tears the
// subprocess down.
func (e *LocalEndpoint) Stop(ctx context.Context) error {
	log.Info("stopping local endpoint", "name", e.name)

	if err := e.client.Stop(ctx); err != nil {
		return err
	}

	log.Info("stopped local endpoint", "name", e.name)
	return nil
}

// Client returns the cached client when its session is live.
func (e *LocalEndpoint) Client() (*Client, error) {
	if !e.client.IsRunning() {
		return nil, errors.NotRunning(e.name)
	}
	return e.client, nil
}
