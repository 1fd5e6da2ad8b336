package service

import (
	"sync"

	"github.com/rockit-astro/qhy-camd/internal/logger"
	"github.com/rockit-astro/qhy-camd/internal/models"
)

// Per-subscriber buffer. A subscriber that falls further behind than this
// misses frames rather than stalling the pipeline.
const frameSubscriberBuffer = 4

// FrameSource hands out per-subscriber frame notification channels.
type FrameSource interface {
	Subscribe() (<-chan *models.FrameRecord, func())
}

// FrameNotifier fans completed exposures out to websocket subscribers.
// Delivery is best-effort; the frame queue itself is never blocked by a
// slow client.
type FrameNotifier struct {
	log *logger.Logger

	mu   sync.Mutex
	subs map[chan *models.FrameRecord]struct{}
}

// NewFrameNotifier returns a notifier with no subscribers.
func NewFrameNotifier(log *logger.Logger) *FrameNotifier {
	return &FrameNotifier{
		log:  log,
		subs: make(map[chan *models.FrameRecord]struct{}),
	}
}

// Subscribe registers a new frame channel. The returned cancel func must be
// called when the subscriber goes away; it is safe to call more than once.
func (n *FrameNotifier) Subscribe() (<-chan *models.FrameRecord, func()) {
	ch := make(chan *models.FrameRecord, frameSubscriberBuffer)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, ch)
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Notify delivers a frame to every subscriber without blocking. Subscribers
// whose buffers are full are skipped.
func (n *FrameNotifier) Notify(frame *models.FrameRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- frame:
		default:
			if n.log != nil {
				n.log.Debugw("frame notification dropped", "frame_id", frame.FrameID)
			}
		}
	}
}

// Run consumes the controller's frame queue until it closes, logging each
// completed exposure and fanning it out. The real pipeline also hands these
// to the fits writer daemon.
func (n *FrameNotifier) Run(frames <-chan *models.FrameRecord) {
	for frame := range frames {
		if n.log != nil {
			n.log.Infow("frame completed",
				"frame_id", frame.FrameID,
				"exposure_count", frame.ExposureCount,
				"exposure", frame.RequestedExposure)
		}
		n.Notify(frame)
	}
}
