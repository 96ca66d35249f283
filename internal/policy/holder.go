package policy

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// Holder publishes the current Registry snapshot. Readers never block; a
// reload swaps the pointer only after the new file parsed cleanly.
type Holder struct {
	current atomic.Pointer[Registry]
	path    string
	logger  *slog.Logger
}

type HolderOption func(*Holder)

func WithLogger(logger *slog.Logger) HolderOption {
	return func(h *Holder) {
		h.logger = logger
	}
}

// WithFile sets the file Reload reads from.
func WithFile(path string) HolderOption {
	return func(h *Holder) {
		h.path = path
	}
}

// NewHolder publishes initial.
func NewHolder(initial *Registry, opts ...HolderOption) (*Holder, error) {
	if initial == nil {
		return nil, errors.New("initial registry is required")
	}
	h := &Holder{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.current.Store(initial)
	return h, nil
}

// Resolve looks role up in the current snapshot.
func (h *Holder) Resolve(role string) (Policy, error) {
	return h.current.Load().Resolve(role)
}

// Current returns the published snapshot.
func (h *Holder) Current() *Registry {
	return h.current.Load()
}

// Swap publishes r.
func (h *Holder) Swap(r *Registry) {
	if r != nil {
		h.current.Store(r)
	}
}

// Reload re-reads the configured file. On error the previous snapshot stays.
func (h *Holder) Reload(ctx context.Context) error {
	if h.path == "" {
		return errors.New("policy holder has no file to reload")
	}
	next, err := LoadFile(h.path)
	if err != nil {
		h.logger.ErrorContext(ctx, "policy reload failed, keeping previous snapshot",
			"path", h.path,
			"error", err,
		)
		return err
	}
	h.current.Store(next)
	h.logger.InfoContext(ctx, "policy snapshot reloaded",
		"path", h.path,
		"roles", next.Roles(),
	)
	return nil
}
