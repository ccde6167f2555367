package endpoint

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/theapemachine/toolgate/pkg/errors"
	"github.com/theapemachine/toolgate/pkg/types"
)

// DefaultHandshakeTimeout bounds the MCP initialize exchange during start.
const DefaultHandshakeTimeout = 30 * time.Second

const clientVersion = "1.0.0"

/*
Client wraps the optional session actor for one endpoint. It is the single
place that answers "is this endpoint's session alive", so start, stop and
routing all agree. A Client without an actor is simply not running.
*/
type Client struct {
	name    string
	timeout time.Duration

	mu    sync.RWMutex
	actor *SessionActor
}

func NewClient(name string) *Client {
	return &Client{name: name, timeout: DefaultHandshakeTimeout}
}

// NewClientWithTimeout overrides the handshake timeout, mainly for tests.
func NewClientWithTimeout(name string, timeout time.Duration) *Client {
	return &Client{name: name, timeout: timeout}
}

func (c *Client) Name() string { return c.name }

// IsRunning reports whether a live session actor is attached.
func (c *Client) IsRunning() bool {
	c.mu.RLock()
	actor := c.actor
	c.mu.RUnlock()
	return actor != nil && actor.State().Running
}

func (c *Client) ensureNotRunning() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.actor != nil {
		if c.actor.State().Running {
			return errors.AlreadyRunning(c.name)
		}
		c.actor = nil
	}
	return nil
}

func (c *Client) adopt(session backendSession) {
	actor := SpawnActor(c.name, session)
	c.mu.Lock()
	c.actor = actor
	c.mu.Unlock()
}

/*
StartStdio spawns the configured command, wires its standard streams as
the MCP transport, and performs the initialize handshake under the client
timeout. Spawn failure and handshake failure both leave the client without
any partial state.
*/
func (c *Client) StartStdio(ctx context.Context, command string, args []string, env map[string]string) error {
	if err := c.ensureNotRunning(); err != nil {
		return err
	}
	log.Info("starting stdio session", "endpoint", c.name, "command", command)

	session, err := mcpclient.NewStdioMCPClient(command, envSlice(env), args...)
	if err != nil {
		log.Error("failed to spawn subprocess", "endpoint", c.name, "error", err)
		return errors.StartFailed(c.name, err)
	}

	if err := c.handshake(ctx, session); err != nil {
		return err
	}

	c.adopt(session)
	log.Debug("stdio session established", "endpoint", c.name)
	return nil
}

/*
StartHTTP opens a streaming MCP session to url and performs the handshake
under the client timeout. URLs ending in /sse use the SSE transport;
everything else uses the streamable HTTP transport.
*/
func (c *Client) StartHTTP(ctx context.Context, url string) error {
	if err := c.ensureNotRunning(); err != nil {
		return err
	}
	log.Info("starting http session", "endpoint", c.name, "url", url)

	session, err := c.connectHTTP(ctx, url)
	if err != nil {
		return err
	}

	if err := c.handshake(ctx, session); err != nil {
		return err
	}

	c.adopt(session)
	log.Debug("http session established", "endpoint", c.name, "url", url)
	return nil
}

func (c *Client) connectHTTP(ctx context.Context, url string) (*mcpclient.Client, error) {
	startCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if strings.HasSuffix(strings.TrimRight(url, "/"), "/sse") {
		sseTransport, err := transport.NewSSE(url)
		if err != nil {
			return nil, errors.StartFailed(c.name, err)
		}
		if err := sseTransport.Start(startCtx); err != nil {
			return nil, c.startErr(startCtx, "connect", err)
		}
		return mcpclient.NewClient(sseTransport), nil
	}

	streamTransport, err := transport.NewStreamableHTTP(url)
	if err != nil {
		return nil, errors.StartFailed(c.name, err)
	}
	if err := streamTransport.Start(startCtx); err != nil {
		return nil, c.startErr(startCtx, "connect", err)
	}
	return mcpclient.NewClient(streamTransport), nil
}

// handshake runs the MCP initialize exchange. On expiry the context cancels
// the in-progress attempt and the caller gets the timeout-typed error, not a
// generic protocol one.
func (c *Client) handshake(ctx context.Context, session *mcpclient.Client) error {
	handshakeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "toolgate",
		Version: clientVersion,
	}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := session.Initialize(handshakeCtx, initRequest); err != nil {
		// Closing a stdio session waits on the subprocess exiting, which
		// for a wedged backend can take far longer than the handshake
		// budget. The caller gets the error now; teardown finishes in the
		// background.
		go func() {
			_ = session.Close()
		}()
		if handshakeCtx.Err() == context.DeadlineExceeded {
			log.Error("handshake timed out", "endpoint", c.name, "timeout", c.timeout)
			return errors.HandshakeTimeout(c.name, c.timeout)
		}
		log.Error("handshake failed", "endpoint", c.name, "error", err)
		return errors.Protocol("handshake", c.name, err)
	}
	return nil
}

func (c *Client) startErr(ctx context.Context, op string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.HandshakeTimeout(c.name, c.timeout)
	}
	return errors.Protocol(op, c.name, err)
}

// ListTools lists the endpoint's tools through the session actor.
func (c *Client) ListTools(ctx context.Context) ([]types.ToolDefinition, error) {
	actor, err := c.runningActor()
	if err != nil {
		return nil, err
	}
	return actor.ListTools(ctx)
}

// CallTool invokes a tool through the session actor.
func (c *Client) CallTool(ctx context.Context, request types.ToolCallRequest) (types.ToolCallResponse, error) {
	actor, err := c.runningActor()
	if err != nil {
		return types.ToolCallResponse{}, err
	}
	return actor.CallTool(ctx, request)
}

// Stop detaches the actor and shuts its session down. The actor is
// detached even when the close fails, so a later start is not blocked by
// a wedged session.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	actor := c.actor
	c.actor = nil
	c.mu.Unlock()

	if actor == nil {
		return errors.NotRunning(c.name)
	}
	return actor.Stop(ctx)
}

func (c *Client) runningActor() (*SessionActor, error) {
	c.mu.RLock()
	actor := c.actor
	c.mu.RUnlock()
	if actor == nil {
		return nil, errors.NotRunning(c.name)
	}
	return actor, nil
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	entries := make([]string, 0, len(env))
	for key, value := range env {
		entries = append(entries, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(entries)
	return entries
}
