package operators

import (
	"github.com/Zehaos/caffe2/core"
	"github.com/gomlx/exceptions"
)

// podIndex are the element types accepted for index tensors.
type podIndex interface {
	int32 | int64
}

// scatterWeightedSumOp implements "ScatterWeightedSum" on the host: a sparse
// weighted accumulation into rows of X0 along its first axis,
//
//	X0[idx[j]] = w0*X0[idx[j]] + w1*X1[j] + w2*X2[j] + ...
//
// Inputs are X0, the scalar weight w0, the index vector, then (X_i, w_i)
// pairs of row-slice tensors and scalar weights; the one index vector applies
// to every pair. The operation is in place: output 0 must be the X0 blob
// itself. A row listed twice is rescaled by w0 on each touch, so duplicate
// indices do not sum the way separate rows do.
type scatterWeightedSumOp struct {
	*core.DeviceOperator[*core.CPUContext]
}

func newScatterWeightedSumOp(ctx *core.CPUContext, def *core.OperatorDef, ws *core.Workspace) (core.Operator, error) {
	op := &scatterWeightedSumOp{}
	op.DeviceOperator = core.NewDeviceOperator(ctx, def, ws, op)
	return op, nil
}

func (op *scatterWeightedSumOp) RunOnDevice() error {
	if op.InputSize() < 5 || op.InputSize()%2 != 1 {
		exceptions.Panicf("ScatterWeightedSum takes X0, w0, indices and (X_i, w_i) pairs, got %d inputs",
			op.InputSize())
	}
	if op.Outputs()[0] != op.Inputs()[0] {
		exceptions.Panicf("ScatterWeightedSum runs in place: output 0 must be the X0 input blob")
	}
	if op.Input(0).Rank() == 0 {
		exceptions.Panicf("ScatterWeightedSum X0 must have at least one axis")
	}
	return core.DispatchType(op.Input(0).DType(),
		core.OnType[float32](func() error { return scatterIndexed[float32](op) }),
		core.OnType[float64](func() error { return scatterIndexed[float64](op) }),
	)
}

// scatterIndexed resolves the index element type, then picks the kernel by
// block size: rank-1 data has unit rows and takes the scalar kernel,
// everything else the strided one.
func scatterIndexed[T podFloat](op *scatterWeightedSumOp) error {
	return core.DispatchType(op.Input(2).DType(),
		core.OnType[int32](func() error { return scatterBlocks[T, int32](op) }),
		core.OnType[int64](func() error { return scatterBlocks[T, int64](op) }),
	)
}

func scatterBlocks[T podFloat, Index podIndex](op *scatterWeightedSumOp) error {
	block := 1
	for _, d := range op.Input(0).Dims()[1:] {
		block *= d
	}
	return core.DispatchValue(block,
		core.OnValue(1, func() error {
			scatterUnitRows[T, Index](op)
			return nil
		}),
		core.OnValue(core.Unspecialized, func() error {
			scatterStridedRows[T, Index](op, block)
			return nil
		}),
	)
}

// scatterWeight reads the scalar weight at input idx.
func scatterWeight[T podFloat](op *scatterWeightedSumOp, idx int) T {
	w := op.Input(idx)
	if w.Size() != 1 {
		exceptions.Panicf("weight input %d of %q must be a scalar, has %d elements",
			idx, op.Def().Type, w.Size())
	}
	return core.Data[T](w)[0]
}

func scatterUnitRows[T podFloat, Index podIndex](op *scatterWeightedSumOp) {
	data := core.Data[T](op.Input(0))
	w0 := scatterWeight[T](op, 1)
	idx := core.Data[Index](op.Input(2))
	rows := len(data)
	for pair := 3; pair < op.InputSize(); pair += 2 {
		x := core.Data[T](op.Input(pair))
		if len(x) != len(idx) {
			exceptions.Panicf("input %d of %q has %d elements, expected one per index (%d)",
				pair, op.Def().Type, len(x), len(idx))
		}
		w := scatterWeight[T](op, pair+1)
		first := pair == 3
		for j, id := range idx {
			row := int(id)
			if row < 0 || row >= rows {
				exceptions.Panicf("index %d out of range for %q with %d rows", row, op.Def().Type, rows)
			}
			if first {
				data[row] = w0*data[row] + w*x[j]
			} else {
				data[row] += w * x[j]
			}
		}
	}
}

func scatterStridedRows[T podFloat, Index podIndex](op *scatterWeightedSumOp, block int) {
	data := core.Data[T](op.Input(0))
	w0 := scatterWeight[T](op, 1)
	idx := core.Data[Index](op.Input(2))
	rows := op.Input(0).Dim(0)
	for pair := 3; pair < op.InputSize(); pair += 2 {
		x := core.Data[T](op.Input(pair))
		if len(x) != len(idx)*block {
			exceptions.Panicf("input %d of %q has %d elements, expected %d rows of %d",
				pair, op.Def().Type, len(x), len(idx), block)
		}
		w := scatterWeight[T](op, pair+1)
		first := pair == 3
		for j, id := range idx {
			row := int(id)
			if row < 0 || row >= rows {
				exceptions.Panicf("index %d out of range for %q with %d rows", row, op.Def().Type, rows)
			}
			dst := data[row*block : (row+1)*block]
			src := x[j*block : (j+1)*block]
			if first {
				for k := range dst {
					dst[k] = w0*dst[k] + w*src[k]
				}
			} else {
				for k := range dst {
					dst[k] += w * src[k]
				}
			}
		}
	}
}

func init() {
	core.RegisterCPUOperator("ScatterWeightedSum", newScatterWeightedSumOp)
}
