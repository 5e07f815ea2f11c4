package blackboard

import "testing"

func TestInMemory(t *testing.T) {
	b := NewInMemory()
	if _, ok := b.Get("missing"); ok {
		t.Fatalf("expected miss for unknown key")
	}
	b.Set("topic", "quarterly report")
	v, ok := b.Get("topic")
	if !ok || v != "quarterly report" {
		t.Fatalf("unexpected value: %v", v)
	}

	b.AddObject("first")
	b.AddObject("second")
	objs := b.Objects()
	if len(objs) != 2 || objs[0] != "first" {
		t.Fatalf("unexpected objects: %v", objs)
	}

	// Objects returns a copy; mutating it must not affect the store.
	objs[0] = "mutated"
	if b.Objects()[0] != "first" {
		t.Fatalf("Objects should return a copy")
	}
}
