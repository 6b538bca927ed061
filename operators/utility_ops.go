// Package operators provides the built-in operators: elementwise sums,
// weighted and scattered accumulation, tensor fillers and small utilities.
// Each operator registers itself for the devices it supports, so importing
// the package is enough to make them available to core.CreateOperator.
package operators

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Zehaos/caffe2/core"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// podNumber are the element types whose arithmetic runs directly on Go
// values. The half-precision floats go through float32 conversions and get
// dedicated kernels.
type podNumber interface {
	int32 | int64 | float32 | float64
}

type podFloat interface {
	float32 | float64
}

// sameShapedInputs collects the flat data of every input tensor, enforcing
// that all of them share input 0's dimensions.
func sameShapedInputs[T dtypes.Supported, C core.Context](op *core.DeviceOperator[C]) [][]T {
	x0 := op.Input(0)
	ins := make([][]T, op.InputSize())
	for i := range ins {
		xi := op.Input(i)
		if i > 0 && !slices.Equal(xi.Dims(), x0.Dims()) {
			exceptions.Panicf("input %d of %q has dims %v, expected input 0's dims %v",
				i, op.Def().Type, xi.Dims(), x0.Dims())
		}
		ins[i] = core.Data[T](xi)
	}
	return ins
}

// sumOp implements "Sum": the elementwise sum of one or more same-shaped
// inputs. The output may be the same blob as input 0, accumulating in place.
type sumOp[C core.Context] struct {
	*core.DeviceOperator[C]
}

func newSumOp[C core.Context](ctx C, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &sumOp[C]{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	return op, nil
}

func (op *sumOp[C]) RunOnDevice() error {
	return core.DispatchType(op.Input(0).DType(),
		core.OnType[float32](func() error { return sumInto[float32](op.DeviceOperator) }),
		core.OnType[float64](func() error { return sumInto[float64](op.DeviceOperator) }),
		core.OnType[int32](func() error { return sumInto[int32](op.DeviceOperator) }),
		core.OnType[int64](func() error { return sumInto[int64](op.DeviceOperator) }),
		core.OnType[float16.Float16](func() error { return sumIntoFloat16(op.DeviceOperator) }),
		core.OnType[bfloat16.BFloat16](func() error { return sumIntoBFloat16(op.DeviceOperator) }),
	)
}

func sumInto[T podNumber, C core.Context](op *core.DeviceOperator[C]) error {
	ins := sameShapedInputs[T](op)
	y := op.Output(0)
	y.Resize(op.Input(0).Dims()...)
	out := core.MutableData[T](y)
	op.Context().Enqueue(func() {
		copy(out, ins[0])
		for _, in := range ins[1:] {
			for j, v := range in {
				out[j] += v
			}
		}
	})
	return nil
}

func sumIntoFloat16[C core.Context](op *core.DeviceOperator[C]) error {
	ins := sameShapedInputs[float16.Float16](op)
	y := op.Output(0)
	y.Resize(op.Input(0).Dims()...)
	out := core.MutableData[float16.Float16](y)
	op.Context().Enqueue(func() {
		copy(out, ins[0])
		for _, in := range ins[1:] {
			for j, v := range in {
				out[j] = float16.Fromfloat32(out[j].Float32() + v.Float32())
			}
		}
	})
	return nil
}

func sumIntoBFloat16[C core.Context](op *core.DeviceOperator[C]) error {
	ins := sameShapedInputs[bfloat16.BFloat16](op)
	y := op.Output(0)
	y.Resize(op.Input(0).Dims()...)
	out := core.MutableData[bfloat16.BFloat16](y)
	op.Context().Enqueue(func() {
		copy(out, ins[0])
		for _, in := range ins[1:] {
			for j, v := range in {
				out[j] = bfloat16.FromFloat32(out[j].Float32() + v.Float32())
			}
		}
	})
	return nil
}

// weightedSumOp implements "WeightedSum": Y = sum_i w_i * X_i over
// (tensor, scalar weight) input pairs. Like Sum, it may accumulate in place
// on input 0.
type weightedSumOp[C core.Context] struct {
	*core.DeviceOperator[C]
}

func newWeightedSumOp[C core.Context](ctx C, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &weightedSumOp[C]{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	return op, nil
}

func (op *weightedSumOp[C]) RunOnDevice() error {
	if op.InputSize() == 0 || op.InputSize()%2 != 0 {
		exceptions.Panicf("WeightedSum takes (tensor, weight) input pairs, got %d inputs", op.InputSize())
	}
	return core.DispatchType(op.Input(0).DType(),
		core.OnType[float32](func() error { return weightedSumInto[float32](op.DeviceOperator) }),
		core.OnType[float64](func() error { return weightedSumInto[float64](op.DeviceOperator) }),
	)
}

func weightedSumInto[T podFloat, C core.Context](op *core.DeviceOperator[C]) error {
	x0 := op.Input(0)
	pairs := op.InputSize() / 2
	xs := make([][]T, pairs)
	weights := make([][]T, pairs)
	for i := 0; i < pairs; i++ {
		xi := op.Input(2 * i)
		if i > 0 && !slices.Equal(xi.Dims(), x0.Dims()) {
			exceptions.Panicf("input %d of %q has dims %v, expected input 0's dims %v",
				2*i, op.Def().Type, xi.Dims(), x0.Dims())
		}
		wi := op.Input(2*i + 1)
		if wi.Size() != 1 {
			exceptions.Panicf("weight input %d of %q must be a scalar, has %d elements",
				2*i+1, op.Def().Type, wi.Size())
		}
		xs[i] = core.Data[T](xi)
		weights[i] = core.Data[T](wi)
	}
	y := op.Output(0)
	y.Resize(x0.Dims()...)
	out := core.MutableData[T](y)
	op.Context().Enqueue(func() {
		for j := range out {
			acc := weights[0][0] * xs[0][j]
			for i := 1; i < pairs; i++ {
				acc += weights[i][0] * xs[i][j]
			}
			out[j] = acc
		}
	})
	return nil
}

// aliasOp implements "Alias": the output shares the input's storage. Writes
// through either tensor are visible in both, so the output must not be
// treated as an independent copy.
type aliasOp[C core.Context] struct {
	*core.DeviceOperator[C]
}

func newAliasOp[C core.Context](ctx C, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &aliasOp[C]{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	return op, nil
}

func (op *aliasOp[C]) RunOnDevice() error {
	op.Output(0).ShareData(op.Input(0))
	return nil
}

// copyOp implements "Copy": a deep copy of the input tensor. The element copy
// goes through the operator's context, so it lands in stream order on
// asynchronous devices.
type copyOp[C core.Context] struct {
	*core.DeviceOperator[C]
}

func newCopyOp[C core.Context](ctx C, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &copyOp[C]{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	return op, nil
}

func (op *copyOp[C]) RunOnDevice() error {
	return core.CopyTensor(op.Context(), op.Output(0), op.Input(0))
}

// ensureCPUOutputOp implements "EnsureCPUOutput": output 0 is always a host
// tensor, whether input 0 already lives on the host or on this operator's
// device. With a synchronous Run the host copy is complete on return.
type ensureCPUOutputOp[C core.Context] struct {
	*core.DeviceOperator[C]
}

func newEnsureCPUOutputOp[C core.Context](ctx C, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &ensureCPUOutputOp[C]{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	return op, nil
}

func (op *ensureCPUOutputOp[C]) RunOnDevice() error {
	out := core.Output[core.TensorCPU](op, 0)
	if core.InputIsType[core.TensorCPU](op, 0) {
		return core.CopyTensor(op.Context(), out, core.Input[core.TensorCPU](op, 0))
	}
	return core.CopyTensor(op.Context(), out, op.Input(0))
}

// printOp implements "Print" on the host: it logs the leading values of the
// input tensor. The "limit" argument caps how many values are shown, 0 means
// the default of 100.
type printOp struct {
	*core.DeviceOperator[*core.CPUContext]
	limit int
}

func newPrintOp(ctx *core.CPUContext, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &printOp{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	op.limit = int(core.GetSingleArgument(op, "limit", int64(0)))
	if op.limit <= 0 {
		op.limit = 100
	}
	return op, nil
}

func (op *printOp) RunOnDevice() error {
	tensor := op.Input(0)
	return core.DispatchType(tensor.DType(),
		core.OnType[bool](func() error { return printTensor[bool](op, tensor) }),
		core.OnType[uint8](func() error { return printTensor[uint8](op, tensor) }),
		core.OnType[int32](func() error { return printTensor[int32](op, tensor) }),
		core.OnType[int64](func() error { return printTensor[int64](op, tensor) }),
		core.OnType[float32](func() error { return printTensor[float32](op, tensor) }),
		core.OnType[float64](func() error { return printTensor[float64](op, tensor) }),
		core.OnType[float16.Float16](func() error { return printTensor[float16.Float16](op, tensor) }),
		core.OnType[bfloat16.BFloat16](func() error { return printTensor[bfloat16.BFloat16](op, tensor) }),
	)
}

func printTensor[T dtypes.Supported](op *printOp, tensor *core.TensorCPU) error {
	flat := core.Data[T](tensor)
	n := min(len(flat), op.limit)
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v", flat[i])
	}
	if n < len(flat) {
		b.WriteString(" ...")
	}
	klog.Infof("Tensor %q %v (%s): %s", op.Def().Inputs[0], tensor.Dims(), tensor.DType(), b.String())
	return nil
}

func init() {
	core.RegisterCPUOperator("Sum", newSumOp[*core.CPUContext])
	core.RegisterStreamOperator("Sum", newSumOp[*core.StreamContext])
	core.RegisterCPUOperator("WeightedSum", newWeightedSumOp[*core.CPUContext])
	core.RegisterStreamOperator("WeightedSum", newWeightedSumOp[*core.StreamContext])
	core.RegisterCPUOperator("Alias", newAliasOp[*core.CPUContext])
	core.RegisterStreamOperator("Alias", newAliasOp[*core.StreamContext])
	core.RegisterCPUOperator("Copy", newCopyOp[*core.CPUContext])
	core.RegisterStreamOperator("Copy", newCopyOp[*core.StreamContext])
	core.RegisterCPUOperator("EnsureCPUOutput", newEnsureCPUOutputOp[*core.CPUContext])
	core.RegisterStreamOperator("EnsureCPUOutput", newEnsureCPUOutputOp[*core.StreamContext])
	core.RegisterCPUOperator("Print", newPrintOp)
}
