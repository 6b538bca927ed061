package core

import (
	"math/rand"
	"time"
)

// Context is the per-operator device resource: it decides where kernels run,
// owns the device's random generator and carries the synchronization point
// between issuing work and observing its results.
//
// A context is exclusively owned by one operator for that operator's
// lifetime. Building it is the first phase of operator construction, so that
// SwitchToDevice can run before any device-sensitive state is allocated.
type Context interface {
	// SwitchToDevice makes the context's device current. It runs before any
	// device work, including during operator construction.
	SwitchToDevice()

	// Enqueue issues a kernel to the device. On synchronous devices the
	// kernel runs inline; on asynchronous devices it runs later, in issue
	// order.
	Enqueue(kernel func())

	// FinishDeviceComputation blocks until every issued kernel completed and
	// reports any device fault encountered since the last synchronization.
	FinishDeviceComputation() error

	// Device returns the device type this context binds to.
	Device() DeviceType

	// Rand returns the context's random generator, seeded from the device
	// option the context was built from.
	Rand() *rand.Rand
}

var (
	_ Context = &CPUContext{}
	_ Context = &StreamContext{}
)

// CPUContext is the synchronous host device: kernels run inline on Enqueue
// and FinishDeviceComputation has nothing left to wait for.
type CPUContext struct {
	seed int64
	rng  *rand.Rand
}

// NewCPUContext builds a host context from the definition's device option.
func NewCPUContext(option DeviceOption) *CPUContext {
	return &CPUContext{seed: randomSeed(option)}
}

func randomSeed(option DeviceOption) int64 {
	if option.RandomSeed != 0 {
		return option.RandomSeed
	}
	return time.Now().UTC().UnixNano()
}

// SwitchToDevice implements Context. The host is always current.
func (c *CPUContext) SwitchToDevice() {}

// Enqueue implements Context by running the kernel inline.
func (c *CPUContext) Enqueue(kernel func()) {
	kernel()
}

// FinishDeviceComputation implements Context. Host kernels already ran.
func (c *CPUContext) FinishDeviceComputation() error {
	return nil
}

// Device implements Context.
func (c *CPUContext) Device() DeviceType {
	return CPU
}

// Rand implements Context. The generator is created lazily from the seed.
func (c *CPUContext) Rand() *rand.Rand {
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(c.seed))
	}
	return c.rng
}
