package command

import (
	"errors"
	"testing"

	"github.com/mythforge/mythforge/backend/sim"
	"github.com/mythforge/mythforge/gpu"
)

func newDevice(t *testing.T) (*sim.Backend, gpu.Device) {
	t.Helper()
	b := sim.New()
	adapters, _ := b.EnumerateAdapters()
	dev, err := b.CreateDevice(adapters[len(adapters)-1], gpu.FeatureLevel12_1)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range adapters {
		a.Release()
	}
	return b, dev
}

// failingDevice fails allocator creation after n successes.
type failingDevice struct {
	gpu.Device
	n int
}

func (d *failingDevice) CreateCommandAllocator(t gpu.CommandListType) (gpu.CommandAllocator, error) {
	if d.n == 0 {
		return nil, gpu.ErrDeviceLost
	}
	d.n--
	return d.Device.CreateCommandAllocator(t)
}

func TestNewQueue(t *testing.T) {
	_, dev := newDevice(t)
	q, err := NewQueue(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Release()
	if d := q.(*sim.Queue).Desc(); d.Type != gpu.CommandListDirect || d.Priority != gpu.QueuePriorityNormal {
		t.Errorf("queue desc = %+v, want direct/normal", d)
	}
}

func TestNewAllocatorsReleasesOnFailure(t *testing.T) {
	b, dev := newDevice(t)

	allocs, err := NewAllocators(dev, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(allocs) != 3 {
		t.Fatalf("got %d allocators, want 3", len(allocs))
	}
	for _, a := range allocs {
		a.Release()
	}

	_, err = NewAllocators(&failingDevice{Device: dev, n: 2}, 3)
	if !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("error = %v, want ErrDeviceLost", err)
	}
	if n := b.LiveObjects()["allocator"]; n != 0 {
		t.Errorf("leaked %d allocators", n)
	}
}

func TestListLifecycle(t *testing.T) {
	b, dev := newDevice(t)
	q, _ := NewQueue(dev)
	defer q.Release()
	allocs, _ := NewAllocators(dev, 2)

	l, err := NewList(dev, allocs[0])
	if err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	if l.IsOpen() {
		t.Fatal("new list is open, want closed")
	}
	if err := l.Close(); !errors.Is(err, ErrListClosed) {
		t.Errorf("Close on closed list = %v, want ErrListClosed", err)
	}

	if err := l.Reset(allocs[1]); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !l.IsOpen() {
		t.Error("list not open after Reset")
	}
	if err := l.Reset(allocs[0]); !errors.Is(err, ErrListOpen) {
		t.Errorf("Reset on open list = %v, want ErrListOpen", err)
	}
	if err := l.Submit(q); !errors.Is(err, ErrListOpen) {
		t.Errorf("Submit of open list = %v, want ErrListOpen", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Submit(q); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if v := b.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}
