package runtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Handler is one batch job. Type is the name used on the command line.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

type UnknownJobError struct {
	JobType    string
	Registered []string
}

func (e *UnknownJobError) Error() string {
	return fmt.Sprintf("unknown job type %q (registered: %s)", e.JobType, strings.Join(e.Registered, ","))
}

// Resolve maps job types to handlers in the given order. Blank entries are
// skipped so "-jobs feature_build," parses.
func (r *Registry) Resolve(jobTypes []string) ([]Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, 0, len(jobTypes))
	for _, t := range jobTypes {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		h, ok := r.handlers[t]
		if !ok {
			return nil, &UnknownJobError{JobType: t, Registered: r.typesLocked()}
		}
		out = append(out, h)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no job types given")
	}
	return out, nil
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typesLocked()
}

func (r *Registry) typesLocked() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
