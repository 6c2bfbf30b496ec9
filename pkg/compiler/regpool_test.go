package compiler

import (
	"errors"
	"testing"
)

func TestRegisterPoolAllocatesLowestFirst(t *testing.T) {
	var pool registerPool
	for i, want := range temporaries {
		got, err := pool.allocate()
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		if got != want {
			t.Errorf("allocate %d = %s, want %s", i, got, want)
		}
	}
	if _, err := pool.allocate(); !errors.Is(err, ErrRegisterExhausted) {
		t.Errorf("ninth allocate: error = %v, want %v", err, ErrRegisterExhausted)
	}
}

func TestRegisterPoolReusesFreed(t *testing.T) {
	var pool registerPool
	a, _ := pool.allocate()
	b, _ := pool.allocate()
	pool.free(a)
	c, err := pool.allocate()
	if err != nil {
		t.Fatalf("allocate after free: %v", err)
	}
	if c != a {
		t.Errorf("reallocated %s, want the freed %s", c, a)
	}
	pool.free(b)
	pool.free(c)
	if pool.live() != 0 {
		t.Errorf("live = %d after freeing everything, want 0", pool.live())
	}
}

func TestRegisterPoolDoubleFreePanics(t *testing.T) {
	var pool registerPool
	a, _ := pool.allocate()
	pool.free(a)
	defer func() {
		if recover() == nil {
			t.Error("double free did not panic")
		}
	}()
	pool.free(a)
}
