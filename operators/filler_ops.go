package operators

import (
	"github.com/Zehaos/caffe2/core"
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// The filler operators produce float32 tensors: ConstantFill repeats a value,
// UniformFill and GaussianFill draw from the context's random generator, so a
// fixed DeviceOption.RandomSeed reproduces the same tensor. The output shape
// comes from the "shape" argument, or from input 0's dimensions when an input
// is given (only the shape is read, never the values).

// asInts converts an integer slice to []int, for dimension lists.
func asInts[T constraints.Integer](values []T) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}

// fillerDims resolves the output dimensions of a filler operator.
func fillerDims[C core.Context](op *core.DeviceOperator[C]) []int {
	if op.InputSize() > 0 {
		return op.Input(0).Dims()
	}
	return asInts(core.GetRepeatedArgument[int64](op, "shape"))
}

// constantFillOp implements "ConstantFill" with the "value" argument,
// defaulting to zero.
type constantFillOp[C core.Context] struct {
	*core.DeviceOperator[C]
	value float32
}

func newConstantFillOp[C core.Context](ctx C, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &constantFillOp[C]{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	op.value = core.GetSingleArgument(op, "value", float32(0))
	return op, nil
}

func (op *constantFillOp[C]) RunOnDevice() error {
	y := op.Output(0)
	y.Resize(fillerDims(op.DeviceOperator)...)
	out := core.MutableData[float32](y)
	value := op.value
	op.Context().Enqueue(func() {
		for i := range out {
			out[i] = value
		}
	})
	return nil
}

// uniformFillOp implements "UniformFill": uniform draws from ["min", "max").
type uniformFillOp[C core.Context] struct {
	*core.DeviceOperator[C]
	min, max float32
}

func newUniformFillOp[C core.Context](ctx C, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &uniformFillOp[C]{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	op.min = core.GetSingleArgument(op, "min", float32(0))
	op.max = core.GetSingleArgument(op, "max", float32(1))
	if op.min > op.max {
		exceptions.Panicf("UniformFill needs min <= max, got min=%v max=%v", op.min, op.max)
	}
	return op, nil
}

func (op *uniformFillOp[C]) RunOnDevice() error {
	y := op.Output(0)
	y.Resize(fillerDims(op.DeviceOperator)...)
	out := core.MutableData[float32](y)
	lo, width := op.min, op.max-op.min
	ctx := op.Context()
	ctx.Enqueue(func() {
		rng := ctx.Rand()
		for i := range out {
			out[i] = lo + width*rng.Float32()
		}
	})
	return nil
}

// gaussianFillOp implements "GaussianFill": normal draws with the "mean" and
// "std" arguments.
type gaussianFillOp[C core.Context] struct {
	*core.DeviceOperator[C]
	mean, std float32
}

func newGaussianFillOp[C core.Context](ctx C, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &gaussianFillOp[C]{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	op.mean = core.GetSingleArgument(op, "mean", float32(0))
	op.std = core.GetSingleArgument(op, "std", float32(1))
	if op.std < 0 {
		exceptions.Panicf("GaussianFill needs std >= 0, got %v", op.std)
	}
	return op, nil
}

func (op *gaussianFillOp[C]) RunOnDevice() error {
	y := op.Output(0)
	y.Resize(fillerDims(op.DeviceOperator)...)
	out := core.MutableData[float32](y)
	mean, std := float64(op.mean), float64(op.std)
	ctx := op.Context()
	ctx.Enqueue(func() {
		rng := ctx.Rand()
		for i := range out {
			out[i] = float32(mean + std*rng.NormFloat64())
		}
	})
	return nil
}

func init() {
	core.RegisterCPUOperator("ConstantFill", newConstantFillOp[*core.CPUContext])
	core.RegisterStreamOperator("ConstantFill", newConstantFillOp[*core.StreamContext])
	core.RegisterCPUOperator("UniformFill", newUniformFillOp[*core.CPUContext])
	core.RegisterStreamOperator("UniformFill", newUniformFillOp[*core.StreamContext])
	core.RegisterCPUOperator("GaussianFill", newGaussianFillOp[*core.CPUContext])
	core.RegisterStreamOperator("GaussianFill", newGaussianFillOp[*core.StreamContext])
}
