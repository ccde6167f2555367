package service

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"

	"github.com/theapemachine/toolgate/pkg/errors"
	"github.com/theapemachine/toolgate/pkg/routing"
	"github.com/theapemachine/toolgate/pkg/types"
)

func (gw *Gateway) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":    "toolgate",
		"version": "1.0.0",
		"servers": len(gw.manager.List()),
	})
}

func (gw *Gateway) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (gw *Gateway) handleListServers(c fiber.Ctx) error {
	servers := gw.manager.List()
	sort.Slice(servers, func(i, j int) bool {
		return servers[i].Name < servers[j].Name
	})
	return c.JSON(fiber.Map{"servers": servers})
}

func (gw *Gateway) handleGetServer(c fiber.Ctx) error {
	info, err := gw.manager.Get(c.Params("name"))
	if err != nil {
		return gw.fail(c, err)
	}
	return c.JSON(info)
}

// handleAction runs one lifecycle operation against a named endpoint.
// The response reports success; failure shapes come out of fail with the
// status mapped from the error type.
func (gw *Gateway) handleAction(action string) fiber.Handler {
	return func(c fiber.Ctx) error {
		name := c.Params("name")

		var err error
		switch action {
		case "start":
			err = gw.manager.Start(c.Context(), name)
		case "stop":
			err = gw.manager.Stop(c.Context(), name)
		case "restart":
			err = gw.manager.Restart(c.Context(), name)
		}

		if err != nil {
			return gw.fail(c, err)
		}

		log.Info("endpoint action completed", "endpoint", name, "action", action)
		return c.JSON(fiber.Map{
			"name":   name,
			"action": action,
			"status": "success",
		})
	}
}

func (gw *Gateway) handleListTools(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), gw.timeout)
	defer cancel()

	path := c.Params("path")
	client, filter, err := gw.router.GetClient(ctx, path)
	if err != nil {
		return gw.fail(c, err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		return gw.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"server":        client.Name(),
		"tools":         routing.ApplyFilter(tools, filter),
		"filter_active": filter != nil,
	})
}

func (gw *Gateway) handleCallTool(c fiber.Ctx) error {
	var request types.ToolCallRequest
	if err := c.Bind().Body(&request); err != nil {
		return gw.fail(c, errors.InvalidRequest("invalid request body: %s", err))
	}
	if request.Name == "" {
		return gw.fail(c, errors.InvalidRequest("tool name must not be empty"))
	}

	ctx, cancel := context.WithTimeout(c.Context(), gw.timeout)
	defer cancel()

	path := c.Params("path")
	client, filter, err := gw.router.GetClient(ctx, path)
	if err != nil {
		return gw.fail(c, err)
	}

	if !routing.IsAllowed(request.Name, filter) {
		return gw.fail(c, errors.ToolNotAllowed(request.Name))
	}

	response, err := client.CallTool(ctx, request)
	if err != nil {
		return gw.fail(c, err)
	}

	return c.JSON(response)
}

// fail maps a gateway error onto its HTTP status and a uniform error body.
func (gw *Gateway) fail(c fiber.Ctx, err error) error {
	status := errors.StatusCode(err)
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed", "path", c.Path(), "error", err)
	} else {
		log.Debug("request rejected", "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
