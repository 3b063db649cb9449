package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrDuplicateObjective is returned when registering a name twice.
	ErrDuplicateObjective = errors.New("duplicate objective")

	// ErrInvalidAnalyzer is returned when a constructor is nil or
	// produces an analyzer without a name.
	ErrInvalidAnalyzer = errors.New("invalid analyzer")

	// ErrNotFound is returned when resolving an unregistered name.
	ErrNotFound = errors.New("objective not found")
)

// Constructor builds a fresh analyzer instance. The registry stores
// constructors rather than instances so every run gets analyzers with
// no state carried over from previous runs.
type Constructor func() Analyzer

// Registry is the catalog of available analyzers, keyed by objective
// name. It is populated once at process start and not safe for
// concurrent registration.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// DefaultRegistry returns a registry with every built-in analyzer
// registered. A positive lookback sets the Prometheus window of the
// performance analyzer; zero keeps its default.
func DefaultRegistry(lookback time.Duration) *Registry {
	r := NewRegistry()
	for _, ctor := range []Constructor{
		func() Analyzer { return NewHealthAnalyzer() },
		func() Analyzer { return NewConfigAnalyzer() },
		func() Analyzer { return NewSecurityAnalyzer() },
		func() Analyzer { return NewCapacityAnalyzer() },
		func() Analyzer {
			a := NewPerformanceAnalyzer()
			if lookback > 0 {
				a.Lookback = lookback
			}
			return a
		},
	} {
		// built-in names are distinct, registration cannot fail
		if err := r.Register(ctor); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a constructor to the catalog. It instantiates the
// analyzer once to validate it and learn its name.
func (r *Registry) Register(ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("%w: nil constructor", ErrInvalidAnalyzer)
	}

	a := ctor()
	if a == nil {
		return fmt.Errorf("%w: constructor returned nil", ErrInvalidAnalyzer)
	}
	name := a.Name()
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAnalyzer)
	}

	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateObjective, name)
	}

	r.constructors[name] = ctor
	return nil
}

// Get returns a fresh analyzer instance for the objective.
func (r *Registry) Get(name string) (Analyzer, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ctor(), nil
}

// Has reports whether an objective is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.constructors[name]
	return ok
}

// ListNames returns all registered objectives in lexicographic order.
func (r *Registry) ListNames() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
