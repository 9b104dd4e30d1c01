package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by every write operation. Rule evaluation reads the cache through
// Snapshot() and never touches the repository.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[Key]*Device
	cacheMu sync.RWMutex // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[Key]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[Key]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.Key()] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by key.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, key Key) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[key]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a device written by another process)
	device, err := r.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[key] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// Snapshot returns an immutable copy of every cached device.
func (r *Registry) Snapshot() DevicesState {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	snapshot := make(DevicesState, len(r.cache))
	for k, d := range r.cache {
		snapshot[k] = *d.DeepCopy()
	}
	return snapshot
}

// Upsert validates and stores a device, creating it if its key is unknown.
// Integrations call this whenever they report a device.
func (r *Registry) Upsert(ctx context.Context, device *Device) error {
	if err := ValidateDevice(device); err != nil {
		return err
	}

	key := device.Key()
	r.cacheMu.RLock()
	_, known := r.cache[key]
	r.cacheMu.RUnlock()

	var err error
	if known {
		err = r.repo.Update(ctx, device)
	} else {
		err = r.repo.Create(ctx, device)
		if errors.Is(err, ErrDeviceExists) {
			err = r.repo.Update(ctx, device)
		}
	}
	if err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[key] = device.DeepCopy()
	r.cacheMu.Unlock()

	if known {
		r.logger.Debug("device updated", "key", key.String())
	} else {
		r.logger.Info("device registered", "key", key.String(), "name", device.Name)
	}
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, key Key) error {
	if err := r.repo.Delete(ctx, key); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, key)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "key", key.String())
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
