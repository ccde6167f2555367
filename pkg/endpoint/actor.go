package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/theapemachine/toolgate/pkg/errors"
	"github.com/theapemachine/toolgate/pkg/types"
)

// requestBuffer bounds the actor queue. Senders block once this many
// operations are pending against one session.
const requestBuffer = 32

/*
backendSession is the live, handshake-established MCP connection owned by
a session actor. *client.Client from mcp-go satisfies it; tests substitute
their own.
*/
type backendSession interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

type sessionState int

const (
	sessionRunning sessionState = iota
	sessionStopped
	sessionFailed
)

// stateCell holds the actor state outside the message queue so status
// checks never wait behind in-flight operations.
type stateCell struct {
	mu     sync.RWMutex
	state  sessionState
	reason string
}

func (cell *stateCell) get() (sessionState, string) {
	cell.mu.RLock()
	defer cell.mu.RUnlock()
	return cell.state, cell.reason
}

func (cell *stateCell) set(state sessionState, reason string) {
	cell.mu.Lock()
	cell.state = state
	cell.reason = reason
	cell.mu.Unlock()
}

type actorOp int

const (
	opListTools actorOp = iota
	opCallTool
	opStop
)

type actorReply struct {
	tools    []types.ToolDefinition
	response types.ToolCallResponse
	err      error
}

type actorRequest struct {
	op   actorOp
	call types.ToolCallRequest
	// reply is buffered so the worker never blocks on a caller that has
	// already walked away.
	reply chan actorReply
}

/*
SessionActor serializes every operation against one backend session
through a single owning goroutine. The session type is not safe for
concurrent callers and the protocol is strictly request/response, so the
queue's FIFO order is also the total order of operations on the wire.
*/
type SessionActor struct {
	name  string
	queue chan actorRequest
	state *stateCell
	done  chan struct{}
}

// SpawnActor takes exclusive ownership of session and starts the worker.
func SpawnActor(name string, session backendSession) *SessionActor {
	actor := &SessionActor{
		name:  name,
		queue: make(chan actorRequest, requestBuffer),
		state: &stateCell{state: sessionRunning},
		done:  make(chan struct{}),
	}
	go actor.run(session)
	return actor
}

func (actor *SessionActor) run(session backendSession) {
	defer close(actor.done)
	defer func() {
		if cause := recover(); cause != nil {
			log.Error("session worker panicked", "endpoint", actor.name, "cause", cause)
			actor.state.set(sessionFailed, fmt.Sprintf("worker panicked: %v", cause))
		}
	}()

	for request := range actor.queue {
		switch request.op {
		case opListTools:
			tools, err := listToolsFromSession(actor.name, session)
			request.reply <- actorReply{tools: tools, err: err}
		case opCallTool:
			response, err := callToolOnSession(actor.name, session, request.call)
			request.reply <- actorReply{response: response, err: err}
		case opStop:
			err := actor.closeSession(session)
			request.reply <- actorReply{err: err}
			return
		}
	}
}

func (actor *SessionActor) closeSession(session backendSession) error {
	if err := session.Close(); err != nil {
		actor.state.set(sessionFailed, err.Error())
		return errors.Protocol("stop", actor.name, err)
	}
	actor.state.set(sessionStopped, "")
	return nil
}

// ActorState is a point-in-time view of the worker state.
type ActorState struct {
	Running bool
	Failed  bool
	Reason  string
}

// State reads the actor state without touching the queue.
func (actor *SessionActor) State() ActorState {
	state, reason := actor.state.get()
	return ActorState{
		Running: state == sessionRunning,
		Failed:  state == sessionFailed,
		Reason:  reason,
	}
}

func (actor *SessionActor) ensureRunning() error {
	switch state, reason := actor.state.get(); state {
	case sessionRunning:
		return nil
	case sessionFailed:
		return errors.RuntimeFailed(actor.name, reason)
	default:
		return errors.NotRunning(actor.name)
	}
}

func (actor *SessionActor) submit(ctx context.Context, op string, request actorRequest) (actorReply, error) {
	if err := actor.ensureRunning(); err != nil {
		return actorReply{}, err
	}

	select {
	case actor.queue <- request:
	case <-actor.done:
		return actorReply{}, actor.failWorkerGone()
	case <-ctx.Done():
		return actorReply{}, errors.Protocol(op, actor.name, ctx.Err())
	}

	// If the caller gives up here, the backend operation still runs to
	// completion in the worker and its reply is discarded. Aborting it
	// mid-flight would leave the session in an ambiguous protocol state.
	select {
	case reply := <-request.reply:
		return reply, reply.err
	case <-actor.done:
		// The reply may have been sent just before the worker exited.
		select {
		case reply := <-request.reply:
			return reply, reply.err
		default:
		}
		return actorReply{}, actor.failWorkerGone()
	case <-ctx.Done():
		return actorReply{}, &errors.ProtocolError{
			Op:      op,
			Name:    actor.name,
			Err:     ctx.Err(),
			Timeout: ctx.Err() == context.DeadlineExceeded,
		}
	}
}

func (actor *SessionActor) failWorkerGone() error {
	switch state, reason := actor.state.get(); state {
	case sessionStopped:
		return errors.NotRunning(actor.name)
	case sessionFailed:
		return errors.RuntimeFailed(actor.name, reason)
	}

	reason := "worker exited unexpectedly"
	actor.state.set(sessionFailed, reason)
	return errors.RuntimeFailed(actor.name, reason)
}

// ListTools walks every page of the backend tool listing in page order.
func (actor *SessionActor) ListTools(ctx context.Context) ([]types.ToolDefinition, error) {
	reply, err := actor.submit(ctx, "list tools", actorRequest{
		op:    opListTools,
		reply: make(chan actorReply, 1),
	})
	if err != nil {
		return nil, err
	}
	return reply.tools, nil
}

// CallTool invokes one tool and maps the backend content into the uniform
// three-way union.
func (actor *SessionActor) CallTool(ctx context.Context, request types.ToolCallRequest) (types.ToolCallResponse, error) {
	reply, err := actor.submit(ctx, "call tool", actorRequest{
		op:    opCallTool,
		call:  request,
		reply: make(chan actorReply, 1),
	})
	if err != nil {
		return types.ToolCallResponse{}, err
	}
	return reply.response, nil
}

// Stop closes the session, waits for the close to finish, and joins the
// worker. Fails when the actor is not running.
func (actor *SessionActor) Stop(ctx context.Context) error {
	if _, err := actor.submit(ctx, "stop", actorRequest{
		op:    opStop,
		reply: make(chan actorReply, 1),
	}); err != nil {
		return err
	}

	select {
	case <-actor.done:
	case <-ctx.Done():
		return errors.Protocol("stop", actor.name, ctx.Err())
	}

	if state := actor.State(); state.Failed {
		return errors.RuntimeFailed(actor.name, state.Reason)
	}
	return nil
}

// Backend operations run under a background context on purpose: a caller
// timing out must never cancel the in-flight exchange.

func listToolsFromSession(name string, session backendSession) ([]types.ToolDefinition, error) {
	var (
		tools  []types.ToolDefinition
		cursor mcp.Cursor
	)

	for {
		request := mcp.ListToolsRequest{}
		request.Params.Cursor = cursor

		result, err := session.ListTools(context.Background(), request)
		if err != nil {
			log.Error("failed to list tools", "endpoint", name, "error", err)
			return nil, errors.Protocol("list tools", name, err)
		}

		for _, tool := range result.Tools {
			tools = append(tools, toolDefinitionFrom(tool))
		}

		cursor = result.NextCursor
		if cursor == "" {
			break
		}
	}

	log.Debug("listed tools", "endpoint", name, "count", len(tools))
	return tools, nil
}

func toolDefinitionFrom(tool mcp.Tool) types.ToolDefinition {
	schema := tool.RawInputSchema
	if schema == nil {
		if encoded, err := json.Marshal(tool.InputSchema); err == nil {
			schema = encoded
		}
	}
	return types.ToolDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: schema,
	}
}

func callToolOnSession(name string, session backendSession, request types.ToolCallRequest) (types.ToolCallResponse, error) {
	arguments, err := request.ArgumentsMap()
	if err != nil {
		return types.ToolCallResponse{}, errors.InvalidRequest("tool arguments: %v", err)
	}

	mcpRequest := mcp.CallToolRequest{}
	mcpRequest.Params.Name = request.Name
	mcpRequest.Params.Arguments = arguments

	result, err := session.CallTool(context.Background(), mcpRequest)
	if err != nil {
		log.Error("failed to call tool", "endpoint", name, "tool", request.Name, "error", err)
		return types.ToolCallResponse{}, errors.Protocol("call tool", name, err)
	}

	response := types.ToolCallResponse{Content: contentFrom(result.Content)}
	if result.IsError {
		flagged := true
		response.IsError = &flagged
	}
	return response, nil
}

// contentFrom maps backend content into the gateway union. Both resource
// sub-kinds collapse to a uri/mimeType reference; unrecognized kinds are
// dropped.
func contentFrom(content []mcp.Content) []types.ToolContent {
	items := make([]types.ToolContent, 0, len(content))
	for _, item := range content {
		switch value := item.(type) {
		case mcp.TextContent:
			items = append(items, types.TextContent(value.Text))
		case mcp.ImageContent:
			items = append(items, types.ImageContent(value.Data, value.MIMEType))
		case mcp.EmbeddedResource:
			switch resource := value.Resource.(type) {
			case mcp.TextResourceContents:
				items = append(items, types.ResourceContent(resource.URI, resource.MIMEType))
			case mcp.BlobResourceContents:
				items = append(items, types.ResourceContent(resource.URI, resource.MIMEType))
			}
		}
	}
	return items
}
