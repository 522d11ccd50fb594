package settings

import (
	"context"
	"errors"
	"testing"
)

func TestGetFallsBackToDefaultThenUnset(t *testing.T) {
	store, err := Open(context.Background(), NewMemoryBackend(), WithDefaults(map[string]any{"theme": "dark"}))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if got := store.Get("theme"); got != "dark" {
		t.Fatalf("expected default dark, got %v", got)
	}
	if got := store.Get(NoHistory); got != false {
		t.Fatalf("expected noHistory default false, got %v", got)
	}
	if got := store.Get("unknown"); !IsUnset(got) {
		t.Fatalf("expected Unset, got %#v", got)
	}
	if _, ok := store.Lookup("theme"); ok {
		t.Fatalf("expected Lookup to ignore defaults")
	}
}

func TestSetPersistsImmediately(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store, err := Open(ctx, backend)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := store.Set(ctx, "foo", "bar"); err != nil {
		t.Fatalf("set: %v", err)
	}
	persisted, _ := backend.LoadAll(ctx)
	if persisted["foo"] != "bar" {
		t.Fatalf("expected backend to hold foo=bar, got %v", persisted)
	}

	reopened, err := Open(ctx, backend)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Get("foo"); got != "bar" {
		t.Fatalf("expected persisted value after reopen, got %v", got)
	}

	if err := store.Set(ctx, "", 1); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestDeleteRestoresDefault(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, NewMemoryBackendWith(map[string]any{CollapseDatasetPanels: true}))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !store.Bool(CollapseDatasetPanels) {
		t.Fatalf("expected persisted true")
	}
	if err := store.Delete(ctx, CollapseDatasetPanels); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Bool(CollapseDatasetPanels) {
		t.Fatalf("expected default false after delete")
	}
}

func TestBoolParsesURLStrings(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, NewMemoryBackend())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cases := map[any]bool{"true": true, "1": true, "false": false, "": false, 1.0: true, 0.0: false, true: true}
	for value, want := range cases {
		if err := store.Set(ctx, "flag", value); err != nil {
			t.Fatalf("set: %v", err)
		}
		if got := store.Bool("flag"); got != want {
			t.Fatalf("Bool(%#v) = %v, want %v", value, got, want)
		}
	}
}

func TestOnChangeSkipsEqualValues(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, NewMemoryBackend())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var changes []Change
	cancel := store.OnChange(func(change Change) {
		changes = append(changes, change)
	})

	_ = store.Set(ctx, "foo", "bar")
	_ = store.Set(ctx, "foo", "bar")
	_ = store.Set(ctx, "foo", "baz")
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
	}
	if changes[1].OldValue != "bar" || changes[1].NewValue != "baz" {
		t.Fatalf("unexpected change: %+v", changes[1])
	}

	cancel()
	cancel()
	_ = store.Set(ctx, "foo", "qux")
	if len(changes) != 2 {
		t.Fatalf("expected no notification after cancel, got %d", len(changes))
	}
	if names := store.Names(); len(names) != 1 || names[0] != "foo" {
		t.Fatalf("unexpected names: %v", names)
	}
}

type failingBackend struct {
	*MemoryBackend
}

func (failingBackend) Save(context.Context, string, any) error {
	return errors.New("disk full")
}

func TestSetSurfacesBackendErrors(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, failingBackend{MemoryBackend: NewMemoryBackend()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Set(ctx, "foo", 1); err == nil {
		t.Fatalf("expected save error")
	}
	if _, ok := store.Lookup("foo"); ok {
		t.Fatalf("expected failed save to leave memory untouched")
	}
}

func TestOpenRequiresBackend(t *testing.T) {
	if _, err := Open(context.Background(), nil); !errors.Is(err, ErrBackendRequired) {
		t.Fatalf("expected ErrBackendRequired, got %v", err)
	}
}
