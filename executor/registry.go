package executor

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/sandbox"
)

// Registry maps lowercase language identifiers to executor constructors.
// It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register binds language to c, replacing any previous binding.
func (r *Registry) Register(language string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[strings.ToLower(language)] = c
}

// Supports reports whether language has a binding.
func (r *Registry) Supports(language string) bool {
	_, ok := r.lookup(language)
	return ok
}

// Resolve constructs an executor for the submission's language, which unpacks
// the submission into sb.
func (r *Registry) Resolve(ctx context.Context, sub model.Submission, sb sandbox.Sandbox) (Executor, error) {
	c, ok := r.lookup(sub.Language)
	if !ok {
		return nil, &UnavailableError{Language: sub.Language}
	}
	return c(ctx, sub, sb)
}

// AvailableLanguages returns the bound identifiers in sorted order.
func (r *Registry) AvailableLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.constructors))
	for lang := range r.constructors {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}

func (r *Registry) lookup(language string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[strings.ToLower(language)]
	return c, ok
}
