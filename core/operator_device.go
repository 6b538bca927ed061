package core

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// DeviceRunner is the device-side computation of a concrete operator.
// DeviceOperator wraps it with the rest of the invoke protocol, so concrete
// operators implement RunOnDevice and nothing else.
type DeviceRunner interface {
	// RunOnDevice performs the operator's computation on the current device.
	// On an asynchronous device it may return once the work is issued.
	RunOnDevice() error
}

// DeviceOperator binds the untyped operator contract to one concrete device
// context type. Its inputs and outputs are tensors on that device, and its
// Run and RunAsync enforce the invoke protocol: switch to the device, run the
// computation, synchronize.
type DeviceOperator[C Context] struct {
	OperatorBase
	context C
	runner  DeviceRunner
}

// NewDeviceOperator builds the device-bound part of an operator. Construction
// is phased: the caller first builds ctx from def.DeviceOption, then this
// resolves the base against the workspace, binds the context and switches to
// the device. Only afterwards does the concrete constructor allocate its own
// state, which therefore lands on the right device.
//
// runner is the concrete operator itself; passing nil is an enforce
// violation.
func NewDeviceOperator[C Context](ctx C, def *OperatorDef, ws *Workspace, runner DeviceRunner) *DeviceOperator[C] {
	if runner == nil {
		exceptions.Panicf("operator %q of type %q constructed without a RunOnDevice implementation", def.Name, def.Type)
	}
	op := &DeviceOperator[C]{
		OperatorBase: *NewOperatorBase(def, ws),
		context:      ctx,
		runner:       runner,
	}
	op.context.SwitchToDevice()
	return op
}

// Context returns the device context this operator exclusively owns.
func (op *DeviceOperator[C]) Context() C { return op.context }

// Input returns the idx-th input as a tensor on this operator's device.
func (op *DeviceOperator[C]) Input(idx int) *Tensor[C] {
	return Input[Tensor[C]](op, idx)
}

// Output returns the idx-th output as a tensor on this operator's device,
// allocating it if the blob held nothing, or something else.
func (op *DeviceOperator[C]) Output(idx int) *Tensor[C] {
	return Output[Tensor[C]](op, idx)
}

// Run implements Operator: switch to the device, run the computation, then
// synchronize unconditionally. A synchronization failure leaves the device in
// an unknown state and is fatal to the process. Enforce panics from the
// computation are re-raised enriched with the operator definition.
func (op *DeviceOperator[C]) Run() error {
	defer op.enrichPanic()
	op.context.SwitchToDevice()
	runErr := op.runner.RunOnDevice()
	if err := op.context.FinishDeviceComputation(); err != nil {
		fatalf("Failed to execute finish device computation for operator %q of type %q: %+v",
			op.def.Name, op.def.Type, err)
	}
	return runErr
}

// RunAsync implements Operator: the computation is issued without waiting for
// the device. The caller owns the later synchronization through the
// operator's context.
func (op *DeviceOperator[C]) RunAsync() error {
	defer op.enrichPanic()
	op.context.SwitchToDevice()
	return op.runner.RunOnDevice()
}

// enrichPanic re-raises an in-flight enforce error with the operator
// definition appended, building the breadcrumb trail back to the graph.
func (op *DeviceOperator[C]) enrichPanic() {
	r := recover()
	if r == nil {
		return
	}
	if err, ok := r.(error); ok {
		panic(errors.WithMessagef(err, "error from operator: %s", op.def))
	}
	panic(r)
}
