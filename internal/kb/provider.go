package kb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrUnavailable wraps load failures seen by consumers of a Source.
var ErrUnavailable = errors.New("knowledge base unavailable")

// Source hands out the knowledge base. *Provider implements it.
type Source interface {
	Store(ctx context.Context) (*Store, error)
}

// ErrPending is reported by Ping before the first load has finished.
var ErrPending = errors.New("knowledge base not loaded yet")

// LoaderFunc builds a store.
type LoaderFunc func(ctx context.Context) (*Store, error)

// State is the lifecycle stage of a Provider.
type State int32

const (
	StatePending State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Provider builds a store exactly once and hands the same instance to
// every caller. Callers arriving while the build runs block until it
// finishes. A failed build is final for the lifetime of the provider.
type Provider struct {
	once  sync.Once
	load  LoaderFunc
	state atomic.Int32
	store *Store
	err   error
}

// NewProvider returns a provider that runs load on first use.
func NewProvider(load LoaderFunc) *Provider {
	return &Provider{load: load}
}

// Static returns a provider that is already ready with s.
func Static(s *Store) *Provider {
	p := &Provider{store: s}
	p.once.Do(func() {})
	p.state.Store(int32(StateReady))
	return p
}

// Store returns the loaded store, loading it first if needed. The load
// is detached from ctx cancellation so one abandoned request cannot fail
// the build for everyone else.
func (p *Provider) Store(ctx context.Context) (*Store, error) {
	p.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				p.store = nil
				p.err = &LoadError{Source: "provider", Err: fmt.Errorf("panic: %v", r)}
				p.state.Store(int32(StateFailed))
			}
		}()
		p.store, p.err = p.load(context.WithoutCancel(ctx))
		if p.err == nil && p.store == nil {
			p.err = &LoadError{Source: "provider", Err: errEmptyGraph}
		}
		if p.err != nil {
			p.store = nil
			p.state.Store(int32(StateFailed))
			return
		}
		p.state.Store(int32(StateReady))
	})
	return p.store, p.err
}

// State reports progress without triggering a load.
func (p *Provider) State() State {
	return State(p.state.Load())
}

// Err returns the load error once the provider has failed.
func (p *Provider) Err() error {
	if p.State() != StateFailed {
		return nil
	}
	return p.err
}

// Ping reports the load outcome without triggering a load: nil when
// ready, ErrPending while pending, the load error once failed.
func (p *Provider) Ping(ctx context.Context) error {
	switch p.State() {
	case StateReady:
		return nil
	case StateFailed:
		return p.err
	default:
		return ErrPending
	}
}
