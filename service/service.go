// Package service provides capability providers that expose methods to
// agents but own no conversational ledger, and the registry holding them.
package service

import (
	"fmt"
	"sync"

	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/tool"
)

// Service is a named set of methods offered to agents as a module.
type Service struct {
	name        string
	description string
	methods     []tool.Method
}

// New creates a service.
func New(name, description string, methods ...tool.Method) *Service {
	return &Service{name: name, description: description, methods: methods}
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// Description returns the service description.
func (s *Service) Description() string { return s.description }

// Module returns the service as an invokable module.
func (s *Service) Module() tool.Module {
	methods := make([]tool.Method, len(s.methods))
	copy(methods, s.methods)
	return tool.Module{
		Name:        s.name,
		Type:        tool.ModuleTypeService,
		Description: s.description,
		Methods:     methods,
	}
}

// Manager is the service registry. Names are unique.
type Manager struct {
	mu       sync.RWMutex
	services map[string]*Service
	order    []string
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{services: make(map[string]*Service)}
}

// Register adds svc or fails with core.ErrDuplicateName.
func (m *Manager) Register(svc *Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.services[svc.Name()]; exists {
		return fmt.Errorf("service %q: %w", svc.Name(), core.ErrDuplicateName)
	}
	m.services[svc.Name()] = svc
	m.order = append(m.order, svc.Name())
	return nil
}

// Get returns the service registered under name.
func (m *Manager) Get(name string) (*Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[name]
	return svc, ok
}

// List returns services in registration order.
func (m *Manager) List() []*Service {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Service, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.services[name])
	}
	return out
}

// Modules returns every service as a module, in registration order.
func (m *Manager) Modules() []tool.Module {
	services := m.List()
	out := make([]tool.Module, len(services))
	for i, s := range services {
		out[i] = s.Module()
	}
	return out
}
