package scheduler

import (
	"sync"

	"github.com/withobsrvr/tally-sync-engine/internal/model"
)

// Registry is the process-global lookup the Scheduler consults at
// invocation time: a persisted job carries only a tenant name slug,
// never a live DB connection or HTTP client, so the job survives a
// process restart. Run-time handles are resolved here instead.
type Registry struct {
	mu        sync.RWMutex
	companies map[string]model.Company
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{companies: make(map[string]model.Company)}
}

// Put records or refreshes a tenant's company row, keyed by its own
// name (the same slug basis the Scheduler uses for job identity).
func (r *Registry) Put(c model.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[c.Name] = c
}

// Get resolves a tenant name to its company row.
func (r *Registry) Get(companyName string) (model.Company, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.companies[companyName]
	return c, ok
}

// Remove drops a tenant, e.g. when its job is disabled.
func (r *Registry) Remove(companyName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.companies, companyName)
}
