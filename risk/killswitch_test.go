package risk

import (
	"testing"
	"time"
)

func TestKillSwitchSingleShot(t *testing.T) {
	clock := NewManualClock(time.Unix(1_700_000_000, 0).UTC())
	ks := NewKillSwitch(clock, nil)

	var calls int
	ks.RegisterHandler(func() { calls++ })

	ks.Activate("daily loss breach")
	if !ks.Activated() {
		t.Fatal("must be activated")
	}
	if got := ks.Reason(); got != "daily loss breach" {
		t.Fatalf("reason = %q", got)
	}
	if !ks.ActivatedAt().Equal(clock.Now()) {
		t.Fatalf("activatedAt = %v", ks.ActivatedAt())
	}

	// 二次触发为空操作：回调不重复执行，原因不被覆盖
	ks.Activate("second reason")
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if got := ks.Reason(); got != "daily loss breach" {
		t.Fatalf("reason overwritten: %q", got)
	}
}

func TestKillSwitchHandlerOrder(t *testing.T) {
	ks := NewKillSwitch(nil, nil)

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		ks.RegisterHandler(func() { order = append(order, i) })
	}
	ks.Activate("x")

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("handler order = %v", order)
	}
}

func TestKillSwitchPanickingHandler(t *testing.T) {
	ks := NewKillSwitch(nil, nil)

	var after bool
	ks.RegisterHandler(func() { panic("boom") })
	ks.RegisterHandler(func() { after = true })

	ks.Activate("x")
	if !after {
		t.Fatal("handler after panicking one must still run")
	}
}

func TestKillSwitchReset(t *testing.T) {
	ks := NewKillSwitch(nil, nil)
	var calls int
	ks.RegisterHandler(func() { calls++ })

	ks.Activate("first")
	ks.Reset()
	if ks.Activated() {
		t.Fatal("reset must clear the latch")
	}
	if ks.Reason() != "" {
		t.Fatal("reset must clear the reason")
	}

	ks.Activate("second")
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2 after reset", calls)
	}
	if got := ks.Reason(); got != "second" {
		t.Fatalf("reason = %q", got)
	}
}
