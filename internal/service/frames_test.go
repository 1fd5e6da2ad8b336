package service

import (
	"testing"
	"time"

	"github.com/rockit-astro/qhy-camd/internal/models"
)

func TestFrameNotifier_FanOutAndCancel(t *testing.T) {
	n := NewFrameNotifier(nil)

	a, cancelA := n.Subscribe()
	b, cancelB := n.Subscribe()
	defer cancelA()

	frame := &models.FrameRecord{FrameID: "f1"}
	n.Notify(frame)

	for _, ch := range []<-chan *models.FrameRecord{a, b} {
		select {
		case got := <-ch:
			if got.FrameID != "f1" {
				t.Fatalf("unexpected frame: %+v", got)
			}
		default:
			t.Fatal("subscriber did not receive frame")
		}
	}

	// A cancelled subscriber sees its channel closed and no more frames.
	cancelB()
	cancelB() // safe to call twice
	n.Notify(&models.FrameRecord{FrameID: "f2"})
	if got, ok := <-b; ok {
		t.Fatalf("expected closed channel, got %+v", got)
	}

	select {
	case got := <-a:
		if got.FrameID != "f2" {
			t.Fatalf("unexpected frame: %+v", got)
		}
	default:
		t.Fatal("remaining subscriber did not receive frame")
	}
}

func TestFrameNotifier_SlowSubscriberSkipped(t *testing.T) {
	n := NewFrameNotifier(nil)

	ch, cancel := n.Subscribe()
	defer cancel()

	// Fill the buffer and then some; extra frames are dropped, not queued.
	for i := 0; i < frameSubscriberBuffer+3; i++ {
		n.Notify(&models.FrameRecord{FrameID: "f"})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != frameSubscriberBuffer {
		t.Fatalf("expected %d buffered frames, got %d", frameSubscriberBuffer, received)
	}
}

func TestFrameNotifier_RunDrainsQueue(t *testing.T) {
	n := NewFrameNotifier(nil)

	sub, cancel := n.Subscribe()
	defer cancel()

	frames := make(chan *models.FrameRecord, 1)
	done := make(chan struct{})
	go func() {
		n.Run(frames)
		close(done)
	}()

	frames <- &models.FrameRecord{FrameID: "f1"}
	select {
	case got := <-sub:
		if got.FrameID != "f1" {
			t.Fatalf("unexpected frame: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("frame not fanned out")
	}

	close(frames)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after queue close")
	}
}
