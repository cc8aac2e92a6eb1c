package evo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrSelectorExists   = errors.New("selector already registered")
	ErrSelectorNotFound = errors.New("selector not found")
)

// SelectorFactory builds a selector. tournamentSize is ignored by strategies
// that do not sample.
type SelectorFactory func(tournamentSize int) Selector

var selectorRegistry = struct {
	mu sync.RWMutex
	m  map[string]SelectorFactory
}{
	m: make(map[string]SelectorFactory),
}

func init() {
	registerBuiltinSelectors()
}

func registerBuiltinSelectors() {
	tournament := func(size int) Selector { return TournamentSelector{TournamentSize: size} }
	proportional := func(int) Selector { return ProportionalSelector{} }
	_ = RegisterSelector("tournament", tournament)
	_ = RegisterSelector("proportional", proportional)
	_ = RegisterSelector("roulette", proportional)
}

func RegisterSelector(name string, factory SelectorFactory) error {
	name = normalizeSelectorName(name)
	if name == "" {
		return errors.New("selector name is required")
	}
	if factory == nil {
		return errors.New("selector factory is required")
	}

	selectorRegistry.mu.Lock()
	defer selectorRegistry.mu.Unlock()

	if _, exists := selectorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrSelectorExists, name)
	}
	selectorRegistry.m[name] = factory
	return nil
}

// SelectorFromName resolves a registered selection strategy by name.
func SelectorFromName(name string, tournamentSize int) (Selector, error) {
	selectorRegistry.mu.RLock()
	factory, ok := selectorRegistry.m[normalizeSelectorName(name)]
	selectorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, name)
	}
	return factory(tournamentSize), nil
}

func ListSelectors() []string {
	selectorRegistry.mu.RLock()
	defer selectorRegistry.mu.RUnlock()

	names := make([]string, 0, len(selectorRegistry.m))
	for name := range selectorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeSelectorName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func resetSelectorRegistryForTests() {
	selectorRegistry.mu.Lock()
	selectorRegistry.m = make(map[string]SelectorFactory)
	selectorRegistry.mu.Unlock()
	registerBuiltinSelectors()
}
