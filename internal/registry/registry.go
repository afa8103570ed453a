// Package registry manages module lifecycle: registration, API version
// checks, initialization, start and reverse-order shutdown.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/HerbHall/vigil/pkg/plugin"
	"go.uber.org/zap"
)

// Registry holds the registered modules in registration order.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]plugin.Plugin
	order   []string
	started []string
	logger  *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]plugin.Plugin),
		logger:  logger,
	}
}

// Register adds a module. Names must be unique and non-empty, and the
// module must target a supported SDK API version.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	name := info.Name

	if name == "" {
		return errors.New("plugin has empty name")
	}
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}
	if err := checkAPIVersion(name, info.APIVersion); err != nil {
		return err
	}

	r.plugins[name] = p
	r.order = append(r.order, name)
	r.logger.Info("plugin registered",
		zap.String("name", name),
		zap.String("version", info.Version),
		zap.Int("api_version", info.APIVersion),
	)
	return nil
}

// InitAll initializes every module in registration order. depsFn builds
// the dependencies handed to each module.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		r.logger.Info("initializing plugin", zap.String("name", name))
		if err := r.plugins[name].Init(ctx, depsFn(name)); err != nil {
			return fmt.Errorf("plugin %q failed to initialize: %w", name, err)
		}
	}
	return nil
}

// StartAll starts every module in registration order. On failure the
// modules already started are stopped before the error is returned.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	for _, name := range r.order {
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := r.plugins[name].Start(ctx); err != nil {
			r.mu.Unlock()
			r.StopAll(ctx)
			return fmt.Errorf("plugin %q failed to start: %w", name, err)
		}
		r.started = append(r.started, name)
	}
	r.mu.Unlock()
	return nil
}

// StopAll stops started modules in reverse start order. Stop errors are
// logged, never returned.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	started := r.started
	r.started = nil
	r.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		name := started[i]
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := r.plugins[name].Stop(ctx); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
		}
	}
}

// Get returns a module by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// All returns the modules in registration order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}
	return result
}

// AllRoutes returns the HTTP routes of every module implementing
// plugin.HTTPProvider, keyed by module name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		if hp, ok := r.plugins[name].(plugin.HTTPProvider); ok {
			if pr := hp.Routes(); len(pr) > 0 {
				routes[name] = pr
			}
		}
	}
	return routes
}

func checkAPIVersion(name string, apiVersion int) error {
	if apiVersion < plugin.APIVersionMin {
		return fmt.Errorf("plugin %q targets API v%d, this server requires v%d or newer",
			name, apiVersion, plugin.APIVersionMin)
	}
	if apiVersion > plugin.APIVersionCurrent {
		return fmt.Errorf("plugin %q targets API v%d, this server supports up to v%d",
			name, apiVersion, plugin.APIVersionCurrent)
	}
	return nil
}
