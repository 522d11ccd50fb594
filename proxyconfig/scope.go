package proxyconfig

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// Candidate priorities. Higher numbers win.
	ScopePriorityBuiltin  = 100
	ScopePriorityActive   = 200
	ScopePriorityExplicit = 300

	ScopeBuiltin  = "builtin"
	ScopeActive   = "active"
	ScopeExplicit = "explicit"
)

// Scope names a candidate source and its precedence.
type Scope struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Priority int    `json:"priority"`
}

// Layer pairs a scope with the configuration it offers. A nil Configuration
// means the source has nothing to contribute.
type Layer struct {
	Scope         Scope
	Configuration *Configuration
}

var (
	// ErrScopeNameRequired indicates a layer without a scope name.
	ErrScopeNameRequired = errors.New("proxyconfig: scope name must be provided")
	// ErrDuplicateScope indicates two layers share a scope name.
	ErrDuplicateScope = errors.New("proxyconfig: scope names must be unique")
	// ErrPriorityOrder indicates two layers share a priority.
	ErrPriorityOrder = errors.New("proxyconfig: priorities must be strictly ordered")
	// ErrNoConfiguration indicates every candidate was empty.
	ErrNoConfiguration = errors.New("proxyconfig: no configuration available")
)

// Stack is an immutable candidate list ordered strongest first.
type Stack struct {
	layers []Layer
}

// NewStack validates and orders layers so the highest priority comes first.
func NewStack(layers ...Layer) (*Stack, error) {
	seen := make(map[string]struct{}, len(layers))
	copied := make([]Layer, len(layers))
	for i, layer := range layers {
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seen[layer.Scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScope, layer.Scope.Name)
		}
		seen[layer.Scope.Name] = struct{}{}
		copied[i] = Layer{Scope: layer.Scope, Configuration: layer.Configuration.Clone()}
	}

	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].Scope.Priority > copied[j].Scope.Priority
	})
	for i := 1; i < len(copied); i++ {
		if copied[i-1].Scope.Priority == copied[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Scope.Priority)
		}
	}
	return &Stack{layers: copied}, nil
}

// Len returns the number of candidate layers.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Select returns the strongest present configuration together with a trace
// of every candidate that was considered.
func (s *Stack) Select() (*Configuration, Trace, error) {
	trace := Trace{}
	var selected *Configuration
	if s != nil {
		for _, layer := range s.layers {
			entry := Provenance{
				Scope:   layer.Scope,
				Present: layer.Configuration != nil,
			}
			if layer.Configuration != nil {
				entry.Name = layer.Configuration.Name
			}
			if selected == nil && layer.Configuration != nil {
				selected = layer.Configuration.Clone()
				entry.Selected = true
				trace.Selected = layer.Scope.Name
			}
			trace.Layers = append(trace.Layers, entry)
		}
	}
	if selected == nil {
		return nil, trace, ErrNoConfiguration
	}
	return selected, trace, nil
}
