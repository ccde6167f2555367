package endpoint

import (
	"sync"

	"github.com/theapemachine/toolgate/pkg/errors"
	"github.com/theapemachine/toolgate/pkg/types"
)

// Status of a registered endpoint. Transitions follow
// Stopped → Starting → Running → Stopping → Stopped, with any active state
// allowed to drop to StatusFailed on error.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusFailed   Status = "failed"
)

// Kind discriminates the two endpoint variants.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

/*
Descriptor is the registry's view of one configured endpoint. Name and
path are immutable after registration; only the status changes over the
endpoint's lifetime.
*/
type Descriptor struct {
	Name   string            `json:"name"`
	Path   string            `json:"path"`
	Kind   Kind              `json:"type"`
	Status Status            `json:"status"`
	Filter *types.ToolFilter `json:"-"`
}

type registryEntry struct {
	mu   sync.RWMutex
	info Descriptor
}

func (e *registryEntry) snapshot() Descriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.info
}

/*
Registry tracks every configured endpoint by name, with a secondary index
from routing path to name. Entries are guarded individually, so updating
one endpoint's status never blocks reads or writes on another.
*/
type Registry struct {
	endpoints sync.Map // name → *registryEntry
	paths     sync.Map // path → name
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint in the Stopped state. Both the name and the
// path must be unused; a duplicate of either fails without touching the
// earlier registration.
func (registry *Registry) Register(name, path string, kind Kind, filter *types.ToolFilter) error {
	entry := &registryEntry{
		info: Descriptor{
			Name:   name,
			Path:   path,
			Kind:   kind,
			Status: StatusStopped,
			Filter: filter,
		},
	}

	if _, taken := registry.endpoints.LoadOrStore(name, entry); taken {
		return errors.AlreadyExists(name)
	}
	if owner, taken := registry.paths.LoadOrStore(path, name); taken && owner != name {
		registry.endpoints.Delete(name)
		return errors.AlreadyExists(path)
	}
	return nil
}

// Get returns a point-in-time copy of the descriptor for name.
func (registry *Registry) Get(name string) (Descriptor, error) {
	value, ok := registry.endpoints.Load(name)
	if !ok {
		return Descriptor{}, errors.NotFound(name)
	}
	return value.(*registryEntry).snapshot(), nil
}

// GetByPath resolves a routing path through the secondary index.
func (registry *Registry) GetByPath(path string) (Descriptor, error) {
	name, ok := registry.paths.Load(path)
	if !ok {
		return Descriptor{}, errors.NotFound(path)
	}
	return registry.Get(name.(string))
}

// SetStatus updates the status of a registered endpoint.
func (registry *Registry) SetStatus(name string, status Status) error {
	value, ok := registry.endpoints.Load(name)
	if !ok {
		return errors.NotFound(name)
	}
	entry := value.(*registryEntry)
	entry.mu.Lock()
	entry.info.Status = status
	entry.mu.Unlock()
	return nil
}

// List returns a snapshot of all descriptors. The snapshot is not a live
// view; statuses may change as soon as it is taken.
func (registry *Registry) List() []Descriptor {
	infos := make([]Descriptor, 0)
	registry.endpoints.Range(func(_, value any) bool {
		infos = append(infos, value.(*registryEntry).snapshot())
		return true
	})
	return infos
}
