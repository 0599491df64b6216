package broadcast

import (
	"context"
	"testing"
	"time"
)

func TestInactiveReceiverSeesNothing(t *testing.T) {
	b := New[int]()
	b.Send(1)

	r := b.NewReceiver()
	if _, status := r.TryRecv(); status != Empty {
		t.Fatalf("inactive receiver should report Empty, got %v", status)
	}
}

func TestActivateThenTryRecv(t *testing.T) {
	b := New[int]()
	b.Send(1)

	r := b.NewReceiver()
	r.Activate()

	v, status := r.TryRecv()
	if status != Value || v != 1 {
		t.Fatalf("want Value/1, got %v/%v", status, v)
	}

	if _, status := r.TryRecv(); status != Empty {
		t.Fatalf("second TryRecv should be Empty, got %v", status)
	}
}

func TestOverflowReportsDrop(t *testing.T) {
	b := New[int]()
	r := b.NewReceiver()
	r.Activate()

	b.Send(1)
	b.Send(2)
	b.Send(3)

	v, status := r.TryRecv()
	if status != Overflowed || v != 3 {
		t.Fatalf("want Overflowed/3, got %v/%v", status, v)
	}
}

func TestSendNeverBlocksWithNoReceivers(t *testing.T) {
	b := New[int]()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Send(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked with no receivers")
	}
}

func TestRecvAsyncWakesOnSend(t *testing.T) {
	b := New[int]()
	r := b.NewReceiver()
	r.Activate()

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Send(42)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, status := r.RecvAsync(ctx)
	if status != Value || v != 42 {
		t.Fatalf("want Value/42, got %v/%v", status, v)
	}
}

func TestRecvAsyncRespectsContext(t *testing.T) {
	b := New[int]()
	r := b.NewReceiver()
	r.Activate()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, status := r.RecvAsync(ctx)
	if status != Empty {
		t.Fatalf("want Empty on context cancellation, got %v", status)
	}
}

func TestCloseReportedAfterDrain(t *testing.T) {
	b := New[int]()
	r := b.NewReceiver()
	r.Activate()

	b.Send(7)
	b.Close()

	v, status := r.TryRecv()
	if status != Value || v != 7 {
		t.Fatalf("want the last value before Closed, got %v/%v", status, v)
	}

	if _, status := r.TryRecv(); status != Closed {
		t.Fatalf("want Closed, got %v", status)
	}
}

func TestCloneIsIndependentAndInactive(t *testing.T) {
	b := New[int]()
	r1 := b.NewReceiver()
	r1.Activate()
	b.Send(1)
	r1.TryRecv()

	r2 := r1.Clone()
	if _, status := r2.TryRecv(); status != Empty {
		t.Fatalf("cloned receiver should start inactive, got %v", status)
	}
}
