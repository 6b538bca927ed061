// Package core turns declarative operator definitions into live operators
// bound to workspace blobs and a device context, and invokes them uniformly
// across devices, element types and specialized engines.
//
// The pieces, leaf first:
//
//   - OperatorDef describes one computation step: type, blob names, arguments
//     and device.
//   - Workspace owns the named Blobs that operators borrow.
//   - Tensor[C] is the n-dimensional buffer, typed by the device context it
//     lives on.
//   - Context is the device an operator exclusively owns: CPUContext runs
//     kernels inline, StreamContext issues them to an asynchronous stream.
//   - OperatorBase resolves a definition against a workspace and gives typed,
//     checked access to arguments, inputs and outputs.
//   - DeviceOperator[C] wraps a DeviceRunner with the device protocol:
//     switch, run, synchronize.
//   - DispatchValue and DispatchType select statically declared
//     specializations from runtime values.
//   - DeviceTypeRegistry and CreateOperator instantiate operators through
//     per-device, engine-aware registries.
package core

import (
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Operator is the uniform invoke contract every operator implements.
//
// Run executes synchronously: when it returns nil the operator's outputs are
// observable. RunAsync only issues the work; the caller owns the device
// synchronization before reading outputs.
type Operator interface {
	Run() error
	RunAsync() error

	// Def returns the definition this operator was constructed from.
	Def() *OperatorDef

	// Args gives read access to the definition's arguments.
	Args() *ArgumentHelper

	// Inputs and Outputs are the borrowed blob handles, positionally matching
	// the definition's input and output name lists.
	Inputs() []*Blob
	Outputs() []*Blob

	InputSize() int
	OutputSize() int
}

var _ Operator = &OperatorBase{}

// OperatorBase is the untyped half of every operator: it owns the definition
// and its argument helper, and borrows the input and output blobs from the
// workspace. Concrete operators embed it, usually through DeviceOperator.
type OperatorBase struct {
	def     *OperatorDef
	args    *ArgumentHelper
	inputs  []*Blob
	outputs []*Blob
}

// NewOperatorBase resolves def's declared input and output names against ws.
// Every input must already exist in the workspace; a missing one is an
// enforce violation naming the blob and the definition. Output blobs are
// created as needed.
func NewOperatorBase(def *OperatorDef, ws *Workspace) *OperatorBase {
	op := &OperatorBase{
		def:     def,
		args:    NewArgumentHelper(def),
		inputs:  make([]*Blob, 0, len(def.Inputs)),
		outputs: make([]*Blob, 0, len(def.Outputs)),
	}
	for _, name := range def.Inputs {
		b := ws.GetBlob(name)
		if b == nil {
			exceptions.Panicf("input blob %q is not in the workspace, required by operator def: %s", name, def)
		}
		op.inputs = append(op.inputs, b)
	}
	for _, name := range def.Outputs {
		op.outputs = append(op.outputs, ws.CreateBlob(name))
	}
	return op
}

// Def implements Operator.
func (op *OperatorBase) Def() *OperatorDef { return op.def }

// Args implements Operator.
func (op *OperatorBase) Args() *ArgumentHelper { return op.args }

// Inputs implements Operator. The returned slice is the operator's own handle
// list and must not be modified.
func (op *OperatorBase) Inputs() []*Blob { return op.inputs }

// Outputs implements Operator, with the same ownership rule as Inputs.
func (op *OperatorBase) Outputs() []*Blob { return op.outputs }

// InputSize implements Operator.
func (op *OperatorBase) InputSize() int { return len(op.inputs) }

// OutputSize implements Operator.
func (op *OperatorBase) OutputSize() int { return len(op.outputs) }

// HasArgument reports whether the definition carries the named argument.
func (op *OperatorBase) HasArgument(name string) bool {
	return op.args.HasArgument(name)
}

// Run implements Operator. The base carries no computation; concrete
// operators provide it.
func (op *OperatorBase) Run() error {
	return errors.Wrapf(ErrNotImplemented, "operator %q of type %q", op.def.Name, op.def.Type)
}

// RunAsync implements Operator by delegating to Run.
func (op *OperatorBase) RunAsync() error {
	return op.Run()
}

func inputBlob(op Operator, idx int) *Blob {
	blobs := op.Inputs()
	if idx < 0 || idx >= len(blobs) {
		exceptions.Panicf("input index %d out of range for operator %q of type %q with %d inputs",
			idx, op.Def().Name, op.Def().Type, len(blobs))
	}
	return blobs[idx]
}

func outputBlob(op Operator, idx int) *Blob {
	blobs := op.Outputs()
	if idx < 0 || idx >= len(blobs) {
		exceptions.Panicf("output index %d out of range for operator %q of type %q with %d outputs",
			idx, op.Def().Name, op.Def().Type, len(blobs))
	}
	return blobs[idx]
}

// Input returns the idx-th input blob's value as a *T. An out-of-range index
// is an enforce violation; so is a blob holding a different type, reported
// with the offending blob's declared name so the failure can be traced back
// to the graph.
func Input[T any](op Operator, idx int) *T {
	b := inputBlob(op, idx)
	v, ok := b.value.(*T)
	if !ok {
		exceptions.Panicf("input %d (blob %q) of operator %q holds %s, not %s",
			idx, op.Def().Inputs[idx], op.Def().Type, b.TypeName(), reflect.TypeFor[T]().String())
	}
	return v
}

// Output returns the idx-th output blob's value as a *T, allocating a zero T
// if the blob is empty or currently holds a different type. An out-of-range
// index is an enforce violation.
func Output[T any](op Operator, idx int) *T {
	return BlobGetMutable[T](outputBlob(op, idx))
}

// InputIsType reports whether the idx-th input currently holds a value of
// type T. The index is still bounds-checked.
func InputIsType[T any](op Operator, idx int) bool {
	return BlobIsType[T](inputBlob(op, idx))
}

// OutputIsType is the output counterpart of InputIsType.
func OutputIsType[T any](op Operator, idx int) bool {
	return BlobIsType[T](outputBlob(op, idx))
}

// GetSingleArgument returns the named argument's value, or defaultValue when
// the definition does not carry it. See SingleArgument for the class
// mismatch rules.
func GetSingleArgument[T ArgumentValue](op Operator, name string, defaultValue T) T {
	return SingleArgument(op.Args(), name, defaultValue)
}

// GetRepeatedArgument returns the named repeated argument's values, or nil
// when the definition does not carry it.
func GetRepeatedArgument[T ArgumentValue](op Operator, name string) []T {
	return RepeatedArgument[T](op.Args(), name)
}
