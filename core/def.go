package core

import (
	"fmt"
	"strings"
)

// DeviceType enumerates the devices operators can be bound to. The numeric
// values are part of the serialized graph contract and must not change.
type DeviceType int32

const (
	// CPU is the default device: kernels run inline on the host and
	// synchronization is a no-op.
	CPU DeviceType = 0

	// CUDA is reserved for an accelerator binding not provided by this
	// module. No registry is installed for it, so creating operators on it
	// fails with ErrDeviceTypeNotRegistered.
	CUDA DeviceType = 1

	// STREAM is the asynchronous device: kernels are issued to a FIFO stream
	// and their effects are observable only after synchronization.
	STREAM DeviceType = 2
)

// String implements fmt.Stringer.
func (d DeviceType) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case STREAM:
		return "STREAM"
	}
	return fmt.Sprintf("DeviceType(%d)", int32(d))
}

// DeviceOption selects and configures the device an operator runs on.
// The zero value means CPU device 0 with a clock-based random seed.
type DeviceOption struct {
	DeviceType DeviceType

	// DeviceID selects among multiple devices of the same type.
	DeviceID int

	// RandomSeed seeds the device context's random generator.
	// Zero means seed from the clock.
	RandomSeed int64

	// Engine optionally selects a specialized implementation.
	// OperatorDef.Engine, when set, takes precedence.
	Engine string
}

// OperatorDef is the declarative description of one operator instance: which
// implementation to construct (Type), the workspace blobs it reads and
// writes, its arguments, and the device it is bound to.
//
// A definition is built by the graph author and read-only from then on: the
// core never mutates it, and it must outlive the operator it configures.
type OperatorDef struct {
	// Name identifies this instance within a graph. Informational only.
	Name string

	// Type names the registered operator implementation to construct.
	Type string

	// Inputs and Outputs are ordered lists of workspace blob names. Operators
	// address them by position; the names are kept for diagnostics.
	Inputs  []string
	Outputs []string

	// Args configure the operator. Names must be unique.
	Args []*Argument

	// DeviceOption selects and configures the device.
	DeviceOption DeviceOption

	// Engine requests a specialized implementation, e.g. "BLAS". The factory
	// falls back to the default implementation if the engine has no entry or
	// reports the definition unsupported.
	Engine string
}

// engine returns the requested engine: OperatorDef.Engine wins over
// DeviceOption.Engine, empty means the default implementation.
func (def *OperatorDef) engine() string {
	if def.Engine != "" {
		return def.Engine
	}
	return def.DeviceOption.Engine
}

// String returns a single-line debug rendering of the definition. It is
// appended to operator errors so they can be traced back to the graph.
func (def *OperatorDef) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %q type: %q", def.Name, def.Type)
	if len(def.Inputs) > 0 {
		fmt.Fprintf(&b, " inputs: %q", def.Inputs)
	}
	if len(def.Outputs) > 0 {
		fmt.Fprintf(&b, " outputs: %q", def.Outputs)
	}
	fmt.Fprintf(&b, " device: %s", def.DeviceOption.DeviceType)
	if def.DeviceOption.DeviceID != 0 {
		fmt.Fprintf(&b, " device_id: %d", def.DeviceOption.DeviceID)
	}
	if engine := def.engine(); engine != "" {
		fmt.Fprintf(&b, " engine: %q", engine)
	}
	for _, arg := range def.Args {
		fmt.Fprintf(&b, " arg: {%s}", arg)
	}
	return b.String()
}
