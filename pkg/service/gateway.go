/*
Package service exposes the gateway's HTTP surface: lifecycle control over
the configured endpoints, uniform tool listing and invocation, and the
streaming protocol mounts that front local subprocess backends.
*/
package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/proxy"
	"github.com/google/uuid"

	"github.com/theapemachine/toolgate/pkg/bridge"
	"github.com/theapemachine/toolgate/pkg/config"
	"github.com/theapemachine/toolgate/pkg/endpoint"
	"github.com/theapemachine/toolgate/pkg/routing"
)

/*
Gateway is safe for concurrent use by default because Manager and
PathRouter are.
*/
type Gateway struct {
	app     *fiber.App
	manager *endpoint.Manager
	router  *routing.PathRouter
	bridges map[string]*bridge.Bridge
	timeout time.Duration
	addr    string
}

// NewGateway constructs the HTTP gateway in front of manager. Endpoint
// mounts are derived from whatever is registered at construction time.
func NewGateway(cfg *config.Config, manager *endpoint.Manager) *Gateway {
	gw := &Gateway{
		app: fiber.New(fiber.Config{
			AppName:           "toolgate",
			ServerHeader:      "Toolgate",
			StreamRequestBody: true,
		}),
		manager: manager,
		router:  routing.NewPathRouter(manager),
		bridges: map[string]*bridge.Bridge{},
		timeout: cfg.MCP.RequestTimeout(),
		addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
	}

	gw.routes()
	gw.mountEndpoints()

	return gw
}

func (gw *Gateway) routes() {
	gw.app.Use(func(c fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("X-Request-ID", requestID)
		c.Locals("request_id", requestID)
		return c.Next()
	})

	gw.app.Use(logger.New(logger.Config{
		// Skip logging for the streaming mounts to reduce noise
		Next: func(c fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/sse")
		},
	}), healthcheck.NewHealthChecker())

	gw.app.Get("/", gw.handleInfo)
	gw.app.Get("/health", gw.handleHealth)
	gw.app.Get("/servers", gw.handleListServers)
	gw.app.Get("/servers/:name", gw.handleGetServer)
	gw.app.Post("/servers/:name/start", gw.handleAction("start"))
	gw.app.Post("/servers/:name/stop", gw.handleAction("stop"))
	gw.app.Post("/servers/:name/restart", gw.handleAction("restart"))
	gw.app.Get("/mcp/:path/tools", gw.handleListTools)
	gw.app.Post("/mcp/:path/call", gw.handleCallTool)
}

/*
mountEndpoints wires the per-endpoint protocol surfaces. Local endpoints
get a bridge translating the streaming wire shape onto their stdio
session; remote endpoints get a transparent reverse proxy to their
upstream URL.
*/
func (gw *Gateway) mountEndpoints() {
	for _, info := range gw.manager.List() {
		prefix := "/mcp/" + info.Path

		switch info.Kind {
		case endpoint.KindLocal:
			local, err := gw.manager.Local(info.Name)
			if err != nil {
				continue
			}

			br := bridge.NewBridge(info.Name, prefix, local)
			gw.bridges[info.Path] = br
			handler := fiberadaptor.HTTPHandler(br.Handler())

			gw.app.Get(prefix+"/sse", func(c fiber.Ctx) error {
				if err := br.Refresh(c.Context()); err != nil {
					return gw.fail(c, err)
				}
				return handler(c)
			})
			gw.app.Post(prefix+"/message", handler)
		case endpoint.KindRemote:
			remote, err := gw.manager.Remote(info.Name)
			if err != nil {
				continue
			}
			gw.app.All(prefix+"/*", gw.proxyRemote(remote, prefix))
		}
	}
}

// proxyRemote forwards everything under the endpoint's mount to the
// upstream service, preserving the remainder of the request path.
func (gw *Gateway) proxyRemote(remote *endpoint.RemoteEndpoint, prefix string) fiber.Handler {
	upstream, err := url.Parse(remote.URL())

	return func(c fiber.Ctx) error {
		if err != nil {
			return gw.fail(c, err)
		}
		target := upstream.Scheme + "://" + upstream.Host + strings.TrimPrefix(c.Path(), prefix)
		if query := string(c.RequestCtx().URI().QueryString()); query != "" {
			target += "?" + query
		}
		return proxy.Do(c, target)
	}
}

// Bridge returns the bridge mounted at path, if any.
func (gw *Gateway) Bridge(path string) (*bridge.Bridge, bool) {
	br, ok := gw.bridges[path]
	return br, ok
}

// App exposes the underlying fiber application, primarily for tests.
func (gw *Gateway) App() *fiber.App {
	return gw.app
}

func (gw *Gateway) Start() error {
	log.Info("starting gateway", "addr", gw.addr)
	return gw.app.Listen(gw.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (gw *Gateway) Shutdown(ctx context.Context) error {
	return gw.app.ShutdownWithContext(ctx)
}
