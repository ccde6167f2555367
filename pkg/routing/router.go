package routing

import (
	"context"

	"github.com/theapemachine/toolgate/pkg/endpoint"
	"github.com/theapemachine/toolgate/pkg/types"
)

/*
PathRouter resolves external routing keys to endpoints. Each endpoint
owns one path (defaulting to its name), so a path uniquely identifies the
endpoint and its tool filter.
*/
type PathRouter struct {
	manager *endpoint.Manager
}

func NewPathRouter(manager *endpoint.Manager) *PathRouter {
	return &PathRouter{manager: manager}
}

// GetRoute maps a path to its endpoint name and filter.
func (router *PathRouter) GetRoute(path string) (string, *types.ToolFilter, error) {
	info, err := router.manager.GetByPath(path)
	if err != nil {
		return "", nil, err
	}
	return info.Name, info.Filter, nil
}

// GetClient resolves a path all the way to a live client handle, failing
// when the endpoint is not running.
func (router *PathRouter) GetClient(ctx context.Context, path string) (*endpoint.Client, *types.ToolFilter, error) {
	name, filter, err := router.GetRoute(path)
	if err != nil {
		return nil, nil, err
	}

	client, err := router.manager.GetClient(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return client, filter, nil
}

// Routes lists (path, endpoint name) pairs for every registered endpoint.
func (router *PathRouter) Routes() [][2]string {
	infos := router.manager.List()
	routes := make([][2]string, 0, len(infos))
	for _, info := range infos {
		routes = append(routes, [2]string{info.Path, info.Name})
	}
	return routes
}
