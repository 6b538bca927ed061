package core

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// StreamContext is the asynchronous device: kernels are issued to a FIFO
// stream consumed by a worker goroutine, and their effects are observable
// only after FinishDeviceComputation returns. It exercises the asynchronous
// half of the operator protocol the way an accelerator stream would.
//
// A kernel that panics latches the panic as the stream fault. Kernels issued
// after a fault are dropped, and the fault is handed to the next
// FinishDeviceComputation call, which also clears it.
type StreamContext struct {
	deviceID int
	tag      string // correlates this stream's log lines and errors
	seed     int64
	rng      *rand.Rand

	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	running bool
	fault   error
}

// NewStreamContext builds a stream context from the definition's device
// option.
func NewStreamContext(option DeviceOption) *StreamContext {
	c := &StreamContext{
		deviceID: option.DeviceID,
		tag:      uuid.NewString(),
		seed:     randomSeed(option),
	}
	c.cond = sync.NewCond(&c.mu)
	klog.V(2).Infof("created stream %s on %s device %d", c.tag, STREAM, c.deviceID)
	return c
}

// SwitchToDevice implements Context. The stream is bound at construction;
// there is nothing to make current, but the call remains the ordering point
// of the operator protocol.
func (c *StreamContext) SwitchToDevice() {}

// Enqueue implements Context: the kernel will run after every previously
// issued kernel. Kernels issued while a fault is latched are dropped.
func (c *StreamContext) Enqueue(kernel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		klog.V(2).Infof("stream %s: dropping kernel issued after fault: %v", c.tag, c.fault)
		return
	}
	c.pending = append(c.pending, kernel)
	if !c.running {
		c.running = true
		go c.drain()
	}
}

// drain consumes the stream until it is empty, then lets the worker exit.
// The next Enqueue starts a fresh one.
func (c *StreamContext) drain() {
	c.mu.Lock()
	for len(c.pending) > 0 {
		kernel := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		c.runKernel(kernel)
		c.mu.Lock()
	}
	c.running = false
	c.cond.Broadcast()
	c.mu.Unlock()
}

// runKernel executes one kernel, latching a panic as the stream fault and
// discarding whatever was queued behind it.
func (c *StreamContext) runKernel(kernel func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.fault == nil {
			if err, ok := r.(error); ok {
				c.fault = errors.WithMessagef(err, "stream %s", c.tag)
			} else {
				c.fault = errors.Errorf("stream %s: kernel panic: %v", c.tag, r)
			}
		}
		c.pending = nil
	}()
	kernel()
}

// FinishDeviceComputation implements Context: it blocks until the stream is
// empty and returns the latched fault, if any. The fault is cleared, so the
// stream is usable again afterwards.
func (c *StreamContext) FinishDeviceComputation() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.running || len(c.pending) > 0 {
		c.cond.Wait()
	}
	fault := c.fault
	c.fault = nil
	return fault
}

// Device implements Context.
func (c *StreamContext) Device() DeviceType {
	return STREAM
}

// Rand implements Context. The generator must only be used from kernels
// running on the stream, which are serialized.
func (c *StreamContext) Rand() *rand.Rand {
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(c.seed))
	}
	return c.rng
}
