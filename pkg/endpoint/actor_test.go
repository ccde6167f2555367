package endpoint

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/theapemachine/toolgate/pkg/errors"
	"github.com/theapemachine/toolgate/pkg/types"
)

func stderrorsAs(err error, target any) bool { return stderrors.As(err, target) }

type fakeSession struct {
	mu       sync.Mutex
	pages    []mcp.ListToolsResult
	result   *mcp.CallToolResult
	callErr  error
	delay    time.Duration
	panics   bool
	closed   bool
	closeErr error

	inFlight  atomic.Int32
	overlap   atomic.Bool
	toolCalls []string
}

func (s *fakeSession) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	for idx := range s.pages {
		if mcp.Cursor(req.Params.Cursor) == pageCursor(idx) {
			return &s.pages[idx], nil
		}
	}
	return &mcp.ListToolsResult{}, nil
}

func pageCursor(idx int) mcp.Cursor {
	if idx == 0 {
		return ""
	}
	return mcp.Cursor("page-" + string(rune('0'+idx)))
}

func (s *fakeSession) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)

	if s.panics {
		panic("session corrupted")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.toolCalls = append(s.toolCalls, req.Params.Name)
	s.mu.Unlock()

	if s.callErr != nil {
		return nil, s.callErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return &mcp.CallToolResult{Content: []mcp.Content{
		mcp.TextContent{Type: "text", Text: "done"},
	}}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.closeErr
}

func TestActorListTools(t *testing.T) {
	Convey("Given a session advertising tools across two pages", t, func() {
		session := &fakeSession{pages: []mcp.ListToolsResult{
			{
				Tools: []mcp.Tool{
					{Name: "alpha", Description: "first"},
					{Name: "beta"},
				},
				PaginatedResult: mcp.PaginatedResult{NextCursor: pageCursor(1)},
			},
			{
				Tools: []mcp.Tool{
					{Name: "gamma", RawInputSchema: json.RawMessage(`{"type":"object"}`)},
				},
			},
		}}
		actor := SpawnActor("svc", session)

		Convey("When listing tools", func() {
			tools, err := actor.ListTools(context.Background())

			Convey("It should walk every page in order", func() {
				So(err, ShouldBeNil)
				So(len(tools), ShouldEqual, 3)
				So(tools[0].Name, ShouldEqual, "alpha")
				So(tools[0].Description, ShouldEqual, "first")
				So(tools[1].Name, ShouldEqual, "beta")
				So(tools[2].Name, ShouldEqual, "gamma")
				So(string(tools[2].InputSchema), ShouldEqual, `{"type":"object"}`)
			})
		})
	})
}

func TestActorCallTool(t *testing.T) {
	Convey("Given a running actor", t, func() {
		Convey("When the tool returns mixed content", func() {
			session := &fakeSession{result: &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.TextContent{Type: "text", Text: "hello"},
					mcp.ImageContent{Type: "image", Data: "aGk=", MIMEType: "image/png"},
					mcp.EmbeddedResource{
						Type:     "resource",
						Resource: mcp.TextResourceContents{URI: "file:///tmp/a", MIMEType: "text/plain"},
					},
				},
			}}
			actor := SpawnActor("svc", session)

			response, err := actor.CallTool(context.Background(), types.ToolCallRequest{
				Name:      "echo",
				Arguments: json.RawMessage(`{"value":1}`),
			})

			Convey("It should map every content kind", func() {
				So(err, ShouldBeNil)
				So(response.IsError, ShouldBeNil)
				So(len(response.Content), ShouldEqual, 3)
				So(response.Content[0].Kind, ShouldEqual, types.ContentText)
				So(response.Content[0].Text, ShouldEqual, "hello")
				So(response.Content[1].Kind, ShouldEqual, types.ContentImage)
				So(response.Content[1].MimeType, ShouldEqual, "image/png")
				So(response.Content[2].Kind, ShouldEqual, types.ContentResource)
				So(response.Content[2].URI, ShouldEqual, "file:///tmp/a")
			})
		})

		Convey("When the tool flags an error result", func() {
			session := &fakeSession{result: &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "boom"}},
				IsError: true,
			}}
			actor := SpawnActor("svc", session)

			response, err := actor.CallTool(context.Background(), types.ToolCallRequest{Name: "echo"})

			Convey("It should surface the flag, not an error", func() {
				So(err, ShouldBeNil)
				So(response.IsError, ShouldNotBeNil)
				So(*response.IsError, ShouldBeTrue)
			})
		})

		Convey("When the arguments are not a JSON object", func() {
			actor := SpawnActor("svc", &fakeSession{})

			_, err := actor.CallTool(context.Background(), types.ToolCallRequest{
				Name:      "echo",
				Arguments: json.RawMessage(`"not an object"`),
			})

			Convey("It should reject the request", func() {
				var invalid *errors.InvalidRequestError
				So(err, ShouldNotBeNil)
				So(stderrorsAs(err, &invalid), ShouldBeTrue)
			})
		})
	})
}

func TestActorSerializesOperations(t *testing.T) {
	Convey("Given many concurrent callers", t, func() {
		session := &fakeSession{delay: 2 * time.Millisecond}
		actor := SpawnActor("svc", session)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = actor.CallTool(context.Background(), types.ToolCallRequest{Name: "echo"})
			}()
		}
		wg.Wait()

		Convey("The session should never see overlapping operations", func() {
			So(session.overlap.Load(), ShouldBeFalse)
			So(len(session.toolCalls), ShouldEqual, 10)
		})
	})
}

func TestActorStop(t *testing.T) {
	Convey("Given a running actor", t, func() {
		session := &fakeSession{}
		actor := SpawnActor("svc", session)

		Convey("When stopped", func() {
			err := actor.Stop(context.Background())

			Convey("It should close the session and refuse further work", func() {
				So(err, ShouldBeNil)
				So(session.closed, ShouldBeTrue)
				So(actor.State().Running, ShouldBeFalse)

				_, listErr := actor.ListTools(context.Background())
				var notRunning *errors.NotRunningError
				So(stderrorsAs(listErr, &notRunning), ShouldBeTrue)

				stopErr := actor.Stop(context.Background())
				So(stderrorsAs(stopErr, &notRunning), ShouldBeTrue)
			})
		})
	})
}

func TestActorPanicIsSticky(t *testing.T) {
	Convey("Given a session that corrupts its worker", t, func() {
		session := &fakeSession{panics: true}
		actor := SpawnActor("svc", session)

		Convey("When a call triggers the panic", func() {
			_, err := actor.CallTool(context.Background(), types.ToolCallRequest{Name: "echo"})

			Convey("The failure should be reported and stick", func() {
				var failed *errors.RuntimeFailedError
				So(stderrorsAs(err, &failed), ShouldBeTrue)

				state := actor.State()
				So(state.Failed, ShouldBeTrue)
				So(state.Reason, ShouldContainSubstring, "panic")

				_, again := actor.CallTool(context.Background(), types.ToolCallRequest{Name: "echo"})
				So(stderrorsAs(again, &failed), ShouldBeTrue)
			})
		})
	})
}

func TestActorAbandonedCall(t *testing.T) {
	Convey("Given a slow backend operation", t, func() {
		session := &fakeSession{delay: 50 * time.Millisecond}
		actor := SpawnActor("svc", session)

		Convey("When the caller times out before the reply", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			defer cancel()

			_, err := actor.CallTool(ctx, types.ToolCallRequest{Name: "slow"})

			Convey("The backend operation should still run to completion", func() {
				So(errors.IsTimeout(err), ShouldBeTrue)

				time.Sleep(80 * time.Millisecond)
				session.mu.Lock()
				calls := len(session.toolCalls)
				session.mu.Unlock()
				So(calls, ShouldEqual, 1)
				So(actor.State().Running, ShouldBeTrue)
			})
		})
	})
}
