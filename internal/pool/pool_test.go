package pool

import (
	"sync"
	"testing"
)

type fill struct {
	price float64
	qty   float64
}

func TestGetPutCycle(t *testing.T) {
	p := New[fill](4, func(f *fill) { *f = fill{} })
	if p.TotalAllocated() != 4 {
		t.Fatalf("allocated = %d, want 4", p.TotalAllocated())
	}
	obj := p.Get()
	obj.price = 100
	if p.InUse() != 1 {
		t.Fatalf("in use = %d, want 1", p.InUse())
	}
	p.Put(obj)
	if p.InUse() != 0 {
		t.Fatalf("in use = %d, want 0", p.InUse())
	}
	obj2 := p.Get()
	if obj2.price != 0 {
		t.Fatalf("reset not applied, price = %v", obj2.price)
	}
}

func TestGrowsByBlock(t *testing.T) {
	p := New[fill](2, nil)
	a, b, c := p.Get(), p.Get(), p.Get()
	if p.TotalAllocated() != 4 {
		t.Fatalf("allocated = %d, want 4 after block growth", p.TotalAllocated())
	}
	p.Put(a)
	p.Put(b)
	p.Put(c)
	if p.Available() != 4 {
		t.Fatalf("available = %d, want 4", p.Available())
	}
}

func TestHandleReleaseIdempotent(t *testing.T) {
	p := New[fill](2, nil)
	h := Borrow(p)
	if h.Get() == nil {
		t.Fatalf("handle should hold an object")
	}
	h.Release()
	h.Release()
	if h.Get() != nil {
		t.Fatalf("handle should be empty after release")
	}
	if p.InUse() != 0 {
		t.Fatalf("in use = %d, want 0", p.InUse())
	}
}

func TestConcurrentGetPut(t *testing.T) {
	p := New[fill](8, func(f *fill) { *f = fill{} })
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				obj := p.Get()
				obj.qty = float64(j)
				p.Put(obj)
			}
		}()
	}
	wg.Wait()
	if p.InUse() != 0 {
		t.Fatalf("in use = %d after all returned, want 0", p.InUse())
	}
}
