package rendergraph

import "testing"

func TestRegistryPutAndResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Put(BufferNameVisibilityFlags, nil, 128); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, size, ok := r.Resolve(BufferNameVisibilityFlags)
	if !ok {
		t.Fatal("expected Resolve to find registered buffer")
	}
	if size != 128 {
		t.Fatalf("size = %d, want 128", size)
	}
}

func TestRegistryResolveMissing(t *testing.T) {
	r := NewRegistry()
	if _, _, ok := r.Resolve("does-not-exist"); ok {
		t.Fatal("expected Resolve to fail for unregistered name")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	if err := r.Put(BufferNameVertex, nil, 64); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	err := r.Put(BufferNameVertex, nil, 64)
	if err == nil {
		t.Fatal("expected DuplicateResource on reuse of a registered name")
	}
	if _, ok := err.(*DuplicateResource); !ok {
		t.Fatalf("got %T, want *DuplicateResource", err)
	}
}

func TestRegistryNamesReflectsPut(t *testing.T) {
	r := NewRegistry()
	_ = r.Put(BufferNameIndex, nil, 16)
	_ = r.Put(BufferNameMeshExtents, nil, 32)
	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("got %d names, want 2", len(names))
	}
}
