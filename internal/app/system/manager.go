package system

import (
	"context"
	"fmt"
	"sync"

	core "github.com/complif/rules-engine/internal/app/core/service"
)

// Manager owns the lifecycle of registered Services, starting and stopping
// them deterministically in registration order (stop runs in reverse).
type Manager struct {
	mu       sync.Mutex
	services []Service
	started  bool
}

// NewManager builds an empty lifecycle manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a service to the manager. Registering after Start has been
// called is rejected so the start/stop ordering stays predictable.
func (m *Manager) Register(svc Service) error {
	if svc == nil {
		return fmt.Errorf("system: cannot register nil service")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("system: cannot register %s after start", svc.Name())
	}
	m.services = append(m.services, svc)
	return nil
}

// Start starts every registered service in registration order. If a service
// fails to start, already-started services are stopped before the error is
// returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.started = true
	m.mu.Unlock()

	for i, svc := range services {
		if err := svc.Start(ctx); err != nil {
			m.stopFrom(ctx, services[:i])
			return fmt.Errorf("system: start %s: %w", svc.Name(), err)
		}
	}
	return nil
}

// Stop stops every registered service in reverse registration order,
// collecting (not short-circuiting on) individual stop errors.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()
	return m.stopFrom(ctx, services)
}

func (m *Manager) stopFrom(ctx context.Context, services []Service) error {
	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("system: stop %s: %w", services[i].Name(), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	joined := errs[0]
	for _, e := range errs[1:] {
		joined = fmt.Errorf("%w; %v", joined, e)
	}
	return joined
}

// Descriptors collects descriptors from every registered service that
// implements DescriptorProvider.
func (m *Manager) Descriptors() []core.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	providers := make([]DescriptorProvider, 0, len(m.services))
	for _, svc := range m.services {
		if p, ok := svc.(DescriptorProvider); ok {
			providers = append(providers, p)
		}
	}
	return CollectDescriptors(providers)
}

// NoopService is a Service implementation with no lifecycle behavior, used
// to register purely advertised capabilities (e.g. request/response
// services with no background loop) so they still show up in Descriptors.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                      { return n.ServiceName }
func (n NoopService) Start(ctx context.Context) error    { return nil }
func (n NoopService) Stop(ctx context.Context) error     { return nil }
