package provider

import (
	"context"
	"sync"

	"github.com/dployr-io/sandbox/internal/models"
	"github.com/dployr-io/sandbox/internal/upstream"
)

// Provisioner is the capability set a provider backend must offer.
type Provisioner interface {
	Create(ctx context.Context, body []byte) (*models.InstanceRecord, error)
	Destroy(ctx context.Context, id string) error
}

// Registry maps provider names to provisioners. It is injected into the API
// server at construction; nothing holds provider state at process scope.
type Registry struct {
	mu  sync.RWMutex
	m   map[string]Provisioner
	def string
}

func NewRegistry() *Registry {
	return &Registry{m: map[string]Provisioner{}}
}

// Register adds a provisioner. The first registration becomes the default
// used for provisioning requests that carry no provider preference.
func (r *Registry) Register(name string, p Provisioner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.m) == 0 {
		r.def = name
	}
	r.m[name] = p
}

func (r *Registry) Resolve(name string) (Provisioner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.m[name]
	return p, ok
}

func (r *Registry) Default() (Provisioner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.m[r.def]
	return p, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for name := range r.m {
		out = append(out, name)
	}
	return out
}

// Upstream adapts the relay's upstream client into a Provisioner bound to a
// single provider name. The upstream service owns the actual cloud SDK calls.
type Upstream struct {
	name   string
	client *upstream.Client
}

func NewUpstream(name string, client *upstream.Client) *Upstream {
	return &Upstream{name: name, client: client}
}

func (u *Upstream) Create(ctx context.Context, body []byte) (*models.InstanceRecord, error) {
	rec, err := u.client.CreateInstance(ctx, body)
	if err != nil {
		return nil, err
	}
	if rec.Provider == "" {
		rec.Provider = u.name
	}
	return rec, nil
}

func (u *Upstream) Destroy(ctx context.Context, id string) error {
	return u.client.DestroyInstance(ctx, id, u.name)
}
