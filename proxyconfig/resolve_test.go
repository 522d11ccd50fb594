package proxyconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePrecedence(t *testing.T) {
	explicit := New("explicit", nil)
	active := New("active", nil)
	builtin := New("builtin", nil)

	cases := []struct {
		name     string
		explicit *Configuration
		active   *Configuration
		builtin  *Configuration
		want     string
	}{
		{"explicit wins", explicit, active, builtin, "explicit"},
		{"explicit without active", explicit, nil, builtin, "explicit"},
		{"active when no explicit", nil, active, builtin, "active"},
		{"builtin fallback", nil, nil, builtin, "builtin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.explicit, tc.active, tc.builtin)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got.Name != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got.Name)
			}
		})
	}
}

func TestResolveAllNil(t *testing.T) {
	_, err := Resolve(nil, nil, nil)
	if !errors.Is(err, ErrNoConfiguration) {
		t.Fatalf("expected ErrNoConfiguration, got %v", err)
	}
}

func TestResolveReturnsDetachedCopy(t *testing.T) {
	defs := map[string]any{"filters": []any{"Contour"}}
	explicit := New("explicit", defs)

	got, err := Resolve(explicit, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got.Definitions["filters"].([]any)[0] = "mutated"
	if explicit.Definitions["filters"].([]any)[0] != "Contour" {
		t.Fatalf("expected input untouched, got %v", explicit.Definitions["filters"])
	}

	defs["filters"] = "changed"
	if _, ok := explicit.Definitions["filters"].([]any); !ok {
		t.Fatalf("expected New to copy definitions")
	}
}

func TestResolveWithTraceReportsLayers(t *testing.T) {
	_, trace, err := ResolveWithTrace(nil, New("active", nil), New("builtin", nil))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if trace.Selected != ScopeActive {
		t.Fatalf("expected active selected, got %q", trace.Selected)
	}
	if len(trace.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(trace.Layers))
	}
	if trace.Layers[0].Scope.Name != ScopeExplicit || trace.Layers[0].Present {
		t.Fatalf("expected absent explicit layer first, got %+v", trace.Layers[0])
	}
	if !trace.Layers[1].Selected || trace.Layers[2].Selected {
		t.Fatalf("unexpected selection flags: %+v", trace.Layers)
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if decoded.Selected != ScopeActive || len(decoded.Layers) != 3 {
		t.Fatalf("unexpected decoded trace: %+v", decoded)
	}
}

func TestNewStackRejectsDuplicates(t *testing.T) {
	_, err := NewStack(
		Layer{Scope: Scope{Name: "a", Priority: 1}},
		Layer{Scope: Scope{Name: "a", Priority: 2}},
	)
	if !errors.Is(err, ErrDuplicateScope) {
		t.Fatalf("expected ErrDuplicateScope, got %v", err)
	}

	_, err = NewStack(
		Layer{Scope: Scope{Name: "a", Priority: 1}},
		Layer{Scope: Scope{Name: "b", Priority: 1}},
	)
	if !errors.Is(err, ErrPriorityOrder) {
		t.Fatalf("expected ErrPriorityOrder, got %v", err)
	}

	_, err = NewStack(Layer{Scope: Scope{Priority: 1}})
	if !errors.Is(err, ErrScopeNameRequired) {
		t.Fatalf("expected ErrScopeNameRequired, got %v", err)
	}
}

func TestRegistryIsNotConsumed(t *testing.T) {
	registry := NewRegistry()
	if registry.Active() != nil {
		t.Fatalf("expected empty registry")
	}

	registry.SetActive(New("active", nil))
	for i := 0; i < 3; i++ {
		got, trace, err := registry.Resolve(nil)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if got.Name != "active" || trace.Selected != ScopeActive {
			t.Fatalf("resolve %d: expected active, got %q", i, got.Name)
		}
	}

	got, _, err := registry.Resolve(New("explicit", nil))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Name != "explicit" {
		t.Fatalf("expected explicit to beat active, got %q", got.Name)
	}

	registry.SetActive(nil)
	got, _, err = registry.Resolve(nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Name != "generic" {
		t.Fatalf("expected builtin generic config, got %q", got.Name)
	}
}

func TestBuiltinIsDetached(t *testing.T) {
	first := Builtin()
	first.Definitions["filters"] = "mutated"
	second := Builtin()
	if _, ok := second.Definitions["filters"].([]any); !ok {
		t.Fatalf("expected builtin to be re-cloned, got %v", second.Definitions["filters"])
	}
	if _, ok := second.Definition("proxies"); !ok {
		t.Fatalf("expected proxies definition")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxy.yaml")
	payload := "name: medical\ndefinitions:\n  filters:\n    - Threshold\n  views:\n    main: View3D\n"
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "medical" {
		t.Fatalf("expected name medical, got %q", cfg.Name)
	}
	views, ok := cfg.Definitions["views"].(map[string]any)
	if !ok || views["main"] != "View3D" {
		t.Fatalf("unexpected views definition: %#v", cfg.Definitions["views"])
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
