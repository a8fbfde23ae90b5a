// Package netsim simulates network latency on a websocket connection.
// Every frame pushed into a DelayLine is handed to its sink after a fixed
// delay, in the order it was pushed.
package netsim

import (
	"sync"
	"time"

	"coin-arena/internal/clock"
)

// DefaultCapacity bounds the number of frames in flight per line.
const DefaultCapacity = 256

type frame struct {
	due     time.Time
	payload []byte
}

// DelayLine is a single-consumer FIFO with a constant delivery delay.
type DelayLine struct {
	clock   clock.Clock
	delay   time.Duration
	deliver func([]byte)

	frames   chan frame
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a line that calls deliver for every frame once its delay
// elapses. deliver runs on the line's goroutine, never concurrently.
func New(clk clock.Clock, delay time.Duration, capacity int, deliver func([]byte)) *DelayLine {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &DelayLine{
		clock:   clk,
		delay:   delay,
		deliver: deliver,
		frames:  make(chan frame, capacity),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery goroutine.
func (d *DelayLine) Start() {
	go d.run()
}

// Push schedules payload for delivery. It returns false if the line is
// closed or its buffer is full; the frame is dropped in both cases.
func (d *DelayLine) Push(payload []byte) bool {
	select {
	case <-d.quit:
		return false
	default:
	}
	f := frame{due: d.clock.Now().Add(d.delay), payload: payload}
	select {
	case d.frames <- f:
		return true
	default:
		return false
	}
}

// Close stops delivery. Frames still in flight are discarded.
func (d *DelayLine) Close() {
	d.stopOnce.Do(func() {
		close(d.quit)
	})
}

// Done is closed once the delivery goroutine has exited.
func (d *DelayLine) Done() <-chan struct{} {
	return d.done
}

// Delay returns the configured latency.
func (d *DelayLine) Delay() time.Duration {
	return d.delay
}

func (d *DelayLine) run() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			return
		case f := <-d.frames:
			if !d.wait(f.due) {
				return
			}
			d.deliver(f.payload)
		}
	}
}

func (d *DelayLine) wait(due time.Time) bool {
	remaining := due.Sub(d.clock.Now())
	if remaining <= 0 {
		return true
	}
	fired := make(chan struct{})
	t := d.clock.AfterFunc(remaining, func() { close(fired) })
	select {
	case <-fired:
		return true
	case <-d.quit:
		t.Stop()
		return false
	}
}
