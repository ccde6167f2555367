package endpoint

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/toolgate/pkg/errors"
	"github.com/theapemachine/toolgate/pkg/types"
)

// DefaultRestartDelay is how long restart waits between stop and start.
const DefaultRestartDelay = 500 * time.Millisecond

// managedEndpoint is the closed two-kind variant the manager dispatches
// on. Exactly one of local/remote is set, matching kind. The mutex
// serializes lifecycle transitions per endpoint.
type managedEndpoint struct {
	mu     sync.Mutex
	kind   Kind
	local  *LocalEndpoint
	remote *RemoteEndpoint
}

/*
Manager is the single authority for endpoint lifecycle transitions. It
owns the registry plus one managed instance per endpoint and is safe for
concurrent use; operations on distinct endpoints proceed in parallel.
*/
type Manager struct {
	registry     *Registry
	endpoints    sync.Map // name → *managedEndpoint
	restartDelay time.Duration
}

func NewManager() *Manager {
	return NewManagerWithRestartDelay(DefaultRestartDelay)
}

func NewManagerWithRestartDelay(restartDelay time.Duration) *Manager {
	return &Manager{
		registry:     NewRegistry(),
		restartDelay: restartDelay,
	}
}

// RegisterLocal registers a subprocess endpoint. With autoStart set the
// endpoint is started immediately; a start failure is logged, not
// returned, so one broken backend does not abort the rest of the load.
func (m *Manager) RegisterLocal(ctx context.Context, name, path string, config LocalSettings, filter *types.ToolFilter, autoStart bool) error {
	if err := m.registry.Register(name, path, KindLocal, filter); err != nil {
		return err
	}
	m.endpoints.Store(name, &managedEndpoint{
		kind:  KindLocal,
		local: NewLocal(name, config),
	})

	if autoStart {
		log.Info("auto-starting local endpoint", "name", name)
		if err := m.Start(ctx, name); err != nil {
			log.Error("failed to auto-start endpoint", "name", name, "error", err)
		}
	}
	return nil
}

// RegisterRemote registers a remote endpoint. Remote endpoints are never
// auto-started; their backends already run elsewhere.
func (m *Manager) RegisterRemote(name, path string, config RemoteSettings, filter *types.ToolFilter) error {
	if err := m.registry.Register(name, path, KindRemote, filter); err != nil {
		return err
	}
	m.endpoints.Store(name, &managedEndpoint{
		kind:   KindRemote,
		remote: NewRemote(name, config),
	})

	log.Info("registered remote endpoint", "name", name, "path", path)
	return nil
}

func (m *Manager) managed(name string) (*managedEndpoint, error) {
	value, ok := m.endpoints.Load(name)
	if !ok {
		return nil, errors.NotFound(name)
	}
	return value.(*managedEndpoint), nil
}

// Start brings an endpoint up. The start error, when any, is returned to
// the caller even if the subsequent status write fails.
func (m *Manager) Start(ctx context.Context, name string) error {
	managed, err := m.managed(name)
	if err != nil {
		return err
	}

	managed.mu.Lock()
	defer managed.mu.Unlock()

	// Status check and Starting write happen under the endpoint lock so a
	// concurrent start cannot act on a stale status.
	info, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if info.Status == StatusRunning {
		return errors.AlreadyRunning(name)
	}

	if err := m.registry.SetStatus(name, StatusStarting); err != nil {
		return err
	}

	var startErr error
	switch managed.kind {
	case KindLocal:
		startErr = managed.local.Start(ctx)
	case KindRemote:
		startErr = managed.remote.Start(ctx)
	}

	if startErr != nil {
		if statusErr := m.registry.SetStatus(name, StatusFailed); statusErr != nil {
			log.Warn("failed to record failed status", "name", name, "error", statusErr)
		}
		log.Error("failed to start endpoint", "name", name, "error", startErr)
		return startErr
	}

	if statusErr := m.registry.SetStatus(name, StatusRunning); statusErr != nil {
		log.Warn("failed to record running status", "name", name, "error", statusErr)
	}
	log.Info("started endpoint", "name", name)
	return nil
}

// Stop brings an endpoint down. A stop failure marks the endpoint Failed
// best-effort and still surfaces the original stop error.
func (m *Manager) Stop(ctx context.Context, name string) error {
	managed, err := m.managed(name)
	if err != nil {
		return err
	}

	managed.mu.Lock()
	defer managed.mu.Unlock()

	info, err := m.registry.Get(name)
	if err != nil {
		return err
	}
	if info.Status == StatusStopped {
		return errors.NotRunning(name)
	}

	if err := m.registry.SetStatus(name, StatusStopping); err != nil {
		return err
	}

	var stopErr error
	switch managed.kind {
	case KindLocal:
		stopErr = managed.local.Stop(ctx)
	case KindRemote:
		stopErr = managed.remote.Stop(ctx)
	}

	if stopErr != nil {
		if statusErr := m.registry.SetStatus(name, StatusFailed); statusErr != nil {
			log.Warn("failed to record failed status", "name", name, "error", statusErr)
		}
		log.Error("failed to stop endpoint", "name", name, "error", stopErr)
		return stopErr
	}

	if statusErr := m.registry.SetStatus(name, StatusStopped); statusErr != nil {
		log.Warn("failed to record stopped status", "name", name, "error", statusErr)
	}
	log.Info("stopped endpoint", "name", name)
	return nil
}

// Restart stops, waits the restart delay, and starts again. The second
// step is skipped when the first fails.
func (m *Manager) Restart(ctx context.Context, name string) error {
	log.Info("restarting endpoint", "name", name)

	if err := m.Stop(ctx, name); err != nil {
		return err
	}
	select {
	case <-time.After(m.restartDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.Start(ctx, name)
}

// GetClient hands out a usable client for a Running endpoint: the cached
// one for local endpoints, the cached or a lazily created one for remote.
func (m *Manager) GetClient(ctx context.Context, name string) (*Client, error) {
	info, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if info.Status != StatusRunning {
		return nil, errors.NotRunning(name)
	}

	managed, err := m.managed(name)
	if err != nil {
		return nil, err
	}

	switch managed.kind {
	case KindLocal:
		return managed.local.Client()
	case KindRemote:
		return managed.remote.Client(ctx)
	}
	return nil, errors.NotFound(name)
}

// Get returns the descriptor for name.
func (m *Manager) Get(name string) (Descriptor, error) {
	return m.registry.Get(name)
}

// GetByPath returns the descriptor routed at path.
func (m *Manager) GetByPath(path string) (Descriptor, error) {
	return m.registry.GetByPath(path)
}

// List snapshots all registered endpoints.
func (m *Manager) List() []Descriptor {
	return m.registry.List()
}

// Local returns the local endpoint instance for name, for components such
// as the bridge that only apply to subprocess backends.
func (m *Manager) Local(name string) (*LocalEndpoint, error) {
	managed, err := m.managed(name)
	if err != nil {
		return nil, err
	}
	if managed.kind != KindLocal {
		return nil, errors.NotFound(name)
	}
	return managed.local, nil
}

// Remote returns the remote endpoint instance for name.
func (m *Manager) Remote(name string) (*RemoteEndpoint, error) {
	managed, err := m.managed(name)
	if err != nil {
		return nil, err
	}
	if managed.kind != KindRemote {
		return nil, errors.NotFound(name)
	}
	return managed.remote, nil
}

// Shutdown stops every local endpoint. Remote endpoints hold no process
// or stream resource on this side and are left alone. Individual failures
// are logged and do not abort the rest.
func (m *Manager) Shutdown(ctx context.Context) {
	log.Info("shutting down all endpoints")

	m.endpoints.Range(func(key, value any) bool {
		name := key.(string)
		managed := value.(*managedEndpoint)
		if managed.kind != KindLocal {
			return true
		}

		info, err := m.registry.Get(name)
		if err != nil || info.Status == StatusStopped {
			return true
		}

		if err := m.Stop(ctx, name); err != nil {
			log.Warn("error stopping endpoint during shutdown", "name", name, "error", err)
		}
		return true
	})
}
