package operators

import (
	"slices"

	"github.com/Zehaos/caffe2/core"
	"github.com/gomlx/exceptions"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// The "BLAS" engine lowers Sum and WeightedSum onto level-1 BLAS routines.
// It only handles the shapes axpy and scal can express; for anything else the
// constructor reports the definition unsupported and the factory falls back
// to the generic implementation. The engine is host only.

func vector32(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Inc: 1, Data: data}
}

func vector64(data []float64) blas64.Vector {
	return blas64.Vector{N: len(data), Inc: 1, Data: data}
}

// sumBLASOp is "Sum" with engine "BLAS": Y = X0 + X1 as one axpy.
type sumBLASOp struct {
	*core.DeviceOperator[*core.CPUContext]
}

func newSumBLASOp(ctx *core.CPUContext, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	if len(def.Inputs) != 2 {
		return nil, core.UnsupportedFeaturef("BLAS Sum handles exactly 2 inputs, got %d", len(def.Inputs))
	}
	op := &sumBLASOp{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	return op, nil
}

func (op *sumBLASOp) RunOnDevice() error {
	x0, x1 := op.Input(0), op.Input(1)
	if !slices.Equal(x0.Dims(), x1.Dims()) {
		exceptions.Panicf("input 1 of %q has dims %v, expected input 0's dims %v",
			op.Def().Type, x1.Dims(), x0.Dims())
	}
	y := op.Output(0)
	y.Resize(x0.Dims()...)
	return core.DispatchType(x0.DType(),
		core.OnType[float32](func() error {
			a := core.Data[float32](x0)
			b := core.Data[float32](x1)
			out := core.MutableData[float32](y)
			copy(out, a)
			blas32.Axpy(1, vector32(b), vector32(out))
			return nil
		}),
		core.OnType[float64](func() error {
			a := core.Data[float64](x0)
			b := core.Data[float64](x1)
			out := core.MutableData[float64](y)
			copy(out, a)
			blas64.Axpy(1, vector64(b), vector64(out))
			return nil
		}),
	)
}

// weightedSumBLASOp is "WeightedSum" with engine "BLAS": the first pair is a
// copy and scal, every further pair one axpy.
type weightedSumBLASOp struct {
	*core.DeviceOperator[*core.CPUContext]
}

func newWeightedSumBLASOp(ctx *core.CPUContext, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	if len(def.Inputs) == 0 || len(def.Inputs)%2 != 0 {
		return nil, core.UnsupportedFeaturef("BLAS WeightedSum takes (tensor, weight) input pairs, got %d inputs",
			len(def.Inputs))
	}
	op := &weightedSumBLASOp{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	return op, nil
}

func (op *weightedSumBLASOp) RunOnDevice() error {
	x0 := op.Input(0)
	pairs := op.InputSize() / 2
	for i := 1; i < pairs; i++ {
		xi := op.Input(2 * i)
		if !slices.Equal(xi.Dims(), x0.Dims()) {
			exceptions.Panicf("input %d of %q has dims %v, expected input 0's dims %v",
				2*i, op.Def().Type, xi.Dims(), x0.Dims())
		}
	}
	y := op.Output(0)
	y.Resize(x0.Dims()...)
	return core.DispatchType(x0.DType(),
		core.OnType[float32](func() error {
			out := core.MutableData[float32](y)
			copy(out, core.Data[float32](x0))
			blas32.Scal(op.weight32(1), vector32(out))
			for i := 1; i < pairs; i++ {
				blas32.Axpy(op.weight32(2*i+1), vector32(core.Data[float32](op.Input(2*i))), vector32(out))
			}
			return nil
		}),
		core.OnType[float64](func() error {
			out := core.MutableData[float64](y)
			copy(out, core.Data[float64](x0))
			blas64.Scal(op.weight64(1), vector64(out))
			for i := 1; i < pairs; i++ {
				blas64.Axpy(op.weight64(2*i+1), vector64(core.Data[float64](op.Input(2*i))), vector64(out))
			}
			return nil
		}),
	)
}

// weight32 reads the scalar weight at input idx.
func (op *weightedSumBLASOp) weight32(idx int) float32 {
	w := op.Input(idx)
	if w.Size() != 1 {
		exceptions.Panicf("weight input %d of %q must be a scalar, has %d elements", idx, op.Def().Type, w.Size())
	}
	return core.Data[float32](w)[0]
}

func (op *weightedSumBLASOp) weight64(idx int) float64 {
	w := op.Input(idx)
	if w.Size() != 1 {
		exceptions.Panicf("weight input %d of %q must be a scalar, has %d elements", idx, op.Def().Type, w.Size())
	}
	return core.Data[float64](w)[0]
}

func init() {
	core.RegisterCPUOperatorWithEngine("Sum", "BLAS", newSumBLASOp)
	core.RegisterCPUOperatorWithEngine("WeightedSum", "BLAS", newWeightedSumBLASOp)
}
