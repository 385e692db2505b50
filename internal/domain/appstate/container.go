// Package appstate holds values that live for the whole application run and
// tears them down in reverse registration order when the application exits.
//
// Values are keyed by type. Registering a second value of the same type is
// rejected so that an owned resource can never be silently replaced:
//
//	c := appstate.New(logger)
//	if err := appstate.RegisterOwned[sidecar.View](c, handle.View(), handle.Shutdown); err != nil { ... }
//	view, ok := appstate.Lookup[sidecar.View](c)
//	defer c.Close(ctx)
package appstate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrAlreadyRegistered is returned when a value of the same type is already held.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrClosed is returned by Register after Close.
	ErrClosed = errors.New("container closed")
)

// Stopper is implemented by values that need a context-aware teardown.
type Stopper interface {
	Shutdown(ctx context.Context) error
}

type entry struct {
	key   reflect.Type
	value any
	stop  func(ctx context.Context) error
}

// Container is the application-wide typed state store.
type Container struct {
	mu      sync.RWMutex
	entries []entry
	index   map[reflect.Type]int
	closed  bool

	closeOnce sync.Once
	closeErr  error
	logger    *zap.Logger
}

// New creates an empty container.
func New(logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{
		index:  make(map[reflect.Type]int),
		logger: logger,
	}
}

// Register stores v under type T. The container takes ownership: on Close,
// v is shut down if it implements Stopper or io.Closer.
func Register[T any](c *Container, v T) error {
	return c.put(typeFor[T](), v, nil)
}

// RegisterOwned stores v under type T and runs stop on Close instead of
// inspecting v. Use it when lookups must get a restricted view of a resource
// whose teardown only the container may trigger.
func RegisterOwned[T any](c *Container, v T, stop func(ctx context.Context) error) error {
	if stop == nil {
		return fmt.Errorf("register %s: nil teardown", typeFor[T]())
	}
	return c.put(typeFor[T](), v, stop)
}

// Lookup returns the value stored under type T.
func Lookup[T any](c *Container) (T, bool) {
	var zero T
	v, ok := c.get(typeFor[T]())
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// MustLookup is Lookup for values registered during startup.
func MustLookup[T any](c *Container) T {
	v, ok := Lookup[T](c)
	if !ok {
		panic(fmt.Sprintf("appstate: %s not registered", typeFor[T]()))
	}
	return v
}

func (c *Container) put(key reflect.Type, v any, stop func(ctx context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("register %s: %w", key, ErrClosed)
	}
	if _, exists := c.index[key]; exists {
		return fmt.Errorf("register %s: %w", key, ErrAlreadyRegistered)
	}

	c.index[key] = len(c.entries)
	c.entries = append(c.entries, entry{key: key, value: v, stop: stop})
	c.logger.Debug("state registered", zap.Stringer("type", key))
	return nil
}

func (c *Container) get(key reflect.Type) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[key]
	if !ok {
		return nil, false
	}
	return c.entries[i].value, true
}

// Len returns the number of registered values.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Closed reports whether Close has started.
func (c *Container) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close tears down every registered value in reverse order. It runs once;
// later calls return the first call's result.
func (c *Container) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		entries := c.entries
		c.entries = nil
		c.index = make(map[reflect.Type]int)
		c.mu.Unlock()

		var errs []error
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if err := e.teardown(ctx); err != nil {
				c.logger.Error("teardown failed", zap.Stringer("type", e.key), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", e.key, err))
				continue
			}
			c.logger.Debug("state released", zap.Stringer("type", e.key))
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func (e entry) teardown(ctx context.Context) error {
	if e.stop != nil {
		return e.stop(ctx)
	}
	switch t := e.value.(type) {
	case Stopper:
		return t.Shutdown(ctx)
	case io.Closer:
		return t.Close()
	default:
		return nil
	}
}

// typeFor returns the reflect.Type for T (equivalent to reflect.TypeFor,
// which is unavailable before Go 1.22).
func typeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
