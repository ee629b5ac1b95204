package ai

import (
	"fmt"
	"sort"
	"sync"

	"detectionsite/internal/logger"
)

// LoadFunc loads a detector, typically from model files on disk.
type LoadFunc func() (Detector, error)

// Variant describes one selectable model.
type Variant struct {
	Name      string
	Threshold float64
	Style     Style
	Load      LoadFunc
}

// Registry maps selectors to variants. With caching enabled a variant is
// loaded once and shared; otherwise every Acquire loads a fresh detector
// that the release func closes. Loads run outside the registry lock, so a
// slow model never stalls lookups or other variants.
type Registry struct {
	mu       sync.Mutex
	variants map[string]Variant
	loaded   map[string]Detector
	loading  map[string]*sync.Mutex
	gen      map[string]int
	cache    bool
	logger   *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cache bool, logger *logger.Logger) *Registry {
	return &Registry{
		variants: make(map[string]Variant),
		loaded:   make(map[string]Detector),
		loading:  make(map[string]*sync.Mutex),
		gen:      make(map[string]int),
		cache:    cache,
		logger:   logger,
	}
}

// Register adds or replaces a variant. A cached detector of the replaced
// variant is closed.
func (r *Registry) Register(v Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.loaded[v.Name]; ok {
		if err := old.Close(); err != nil {
			r.logger.Warning("Failed to close model %s: %v", v.Name, err)
		}
		delete(r.loaded, v.Name)
	}
	r.variants[v.Name] = v
	r.gen[v.Name]++
}

// Names returns the registered selectors in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the variant registered under name.
func (r *Registry) Lookup(name string) (Variant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.variants[name]
	return v, ok
}

// Acquire returns a ready detector for the selector together with its
// variant and a release func that must be called when the caller is done.
func (r *Registry) Acquire(name string) (Detector, Variant, func(), error) {
	r.mu.Lock()
	v, ok := r.variants[name]
	if !ok {
		r.mu.Unlock()
		return nil, Variant{}, nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	if !r.cache {
		r.mu.Unlock()
		det, err := r.load(v)
		if err != nil {
			return nil, v, nil, err
		}
		return det, v, r.releaseFunc(name, det), nil
	}

	if det, ok := r.loaded[name]; ok {
		r.mu.Unlock()
		return det, v, func() {}, nil
	}
	lock, ok := r.loading[name]
	if !ok {
		lock = &sync.Mutex{}
		r.loading[name] = lock
	}
	r.mu.Unlock()

	// One load per variant; concurrent callers wait here and then reuse it.
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	v, ok = r.variants[name]
	if !ok {
		r.mu.Unlock()
		return nil, Variant{}, nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	if det, ok := r.loaded[name]; ok {
		r.mu.Unlock()
		return det, v, func() {}, nil
	}
	gen := r.gen[name]
	r.mu.Unlock()

	det, err := r.load(v)
	if err != nil {
		return nil, v, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen[name] != gen {
		// Replaced while loading: hand out this detector once, do not cache it.
		return det, v, r.releaseFunc(name, det), nil
	}
	r.loaded[name] = det
	return det, v, func() {}, nil
}

func (r *Registry) load(v Variant) (Detector, error) {
	det, err := v.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", v.Name, err)
	}
	r.logger.Info("Loaded model %s", v.Name)
	return det, nil
}

func (r *Registry) releaseFunc(name string, det Detector) func() {
	return func() {
		if err := det.Close(); err != nil {
			r.logger.Warning("Failed to release model %s: %v", name, err)
		}
	}
}

// Close releases every cached detector.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, det := range r.loaded {
		if err := det.Close(); err != nil {
			r.logger.Warning("Failed to close model %s: %v", name, err)
		}
		delete(r.loaded, name)
	}
}
