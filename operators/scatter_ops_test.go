package operators

import (
	"testing"

	"github.com/Zehaos/caffe2/core"
	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/require"
)

func TestScatterWeightedSum_UnitRows(t *testing.T) {
	ws := core.NewWorkspace()
	x0 := addInput[float32, *core.CPUContext](ws, "x0", []int{4}, []float32{1, 2, 3, 4})
	addInput[float32, *core.CPUContext](ws, "w0", nil, []float32{1})
	addInput[int32, *core.CPUContext](ws, "indices", []int{2}, []int32{1, 3})
	addInput[float32, *core.CPUContext](ws, "x1", []int{2}, []float32{10, 20})
	addInput[float32, *core.CPUContext](ws, "w1", nil, []float32{0.5})

	def := &core.OperatorDef{
		Type:    "ScatterWeightedSum",
		Inputs:  []string{"x0", "w0", "indices", "x1", "w1"},
		Outputs: []string{"x0"},
	}
	mustRun(t, def, ws)
	require.Equal(t, []float32{1, 7, 3, 14}, core.Data[float32](x0))
}

func TestScatterWeightedSum_StridedRows(t *testing.T) {
	ws := core.NewWorkspace()
	x0 := addInput[float32, *core.CPUContext](ws, "x0", []int{3, 2},
		[]float32{1, 1, 2, 2, 3, 3})
	addInput[float32, *core.CPUContext](ws, "w0", nil, []float32{2})
	addInput[int64, *core.CPUContext](ws, "indices", []int{2}, []int64{2, 0})
	addInput[float32, *core.CPUContext](ws, "x1", []int{2, 2},
		[]float32{10, 20, 30, 40})
	addInput[float32, *core.CPUContext](ws, "w1", nil, []float32{1})

	def := &core.OperatorDef{
		Type:    "ScatterWeightedSum",
		Inputs:  []string{"x0", "w0", "indices", "x1", "w1"},
		Outputs: []string{"x0"},
	}
	mustRun(t, def, ws)
	// Row 2 becomes 2*{3,3}+{10,20}, row 0 becomes 2*{1,1}+{30,40}, row 1 is
	// untouched.
	require.Equal(t, []float32{32, 42, 2, 2, 16, 26}, core.Data[float32](x0))
}

func TestScatterWeightedSum_MultiplePairs(t *testing.T) {
	ws := core.NewWorkspace()
	x0 := addInput[float64, *core.CPUContext](ws, "x0", []int{3}, []float64{1, 1, 1})
	addInput[float64, *core.CPUContext](ws, "w0", nil, []float64{1})
	addInput[int32, *core.CPUContext](ws, "indices", []int{1}, []int32{2})
	addInput[float64, *core.CPUContext](ws, "x1", []int{1}, []float64{10})
	addInput[float64, *core.CPUContext](ws, "w1", nil, []float64{1})
	addInput[float64, *core.CPUContext](ws, "x2", []int{1}, []float64{100})
	addInput[float64, *core.CPUContext](ws, "w2", nil, []float64{0.5})

	def := &core.OperatorDef{
		Type:    "ScatterWeightedSum",
		Inputs:  []string{"x0", "w0", "indices", "x1", "w1", "x2", "w2"},
		Outputs: []string{"x0"},
	}
	mustRun(t, def, ws)
	require.Equal(t, []float64{1, 1, 61}, core.Data[float64](x0))
}

func TestScatterWeightedSum_RequiresInPlace(t *testing.T) {
	ws := core.NewWorkspace()
	addInput[float32, *core.CPUContext](ws, "x0", []int{2}, []float32{1, 2})
	addInput[float32, *core.CPUContext](ws, "w0", nil, []float32{1})
	addInput[int32, *core.CPUContext](ws, "indices", []int{1}, []int32{0})
	addInput[float32, *core.CPUContext](ws, "x1", []int{1}, []float32{1})
	addInput[float32, *core.CPUContext](ws, "w1", nil, []float32{1})

	def := &core.OperatorDef{
		Type:    "ScatterWeightedSum",
		Inputs:  []string{"x0", "w0", "indices", "x1", "w1"},
		Outputs: []string{"y"},
	}
	op, err := core.CreateOperator(def, ws)
	require.NoError(t, err)

	runErr := exceptions.TryCatch[error](func() { _ = op.Run() })
	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "in place")
}

func TestScatterWeightedSum_IndexOutOfRange(t *testing.T) {
	ws := core.NewWorkspace()
	addInput[float32, *core.CPUContext](ws, "x0", []int{2}, []float32{1, 2})
	addInput[float32, *core.CPUContext](ws, "w0", nil, []float32{1})
	addInput[int32, *core.CPUContext](ws, "indices", []int{1}, []int32{5})
	addInput[float32, *core.CPUContext](ws, "x1", []int{1}, []float32{1})
	addInput[float32, *core.CPUContext](ws, "w1", nil, []float32{1})

	def := &core.OperatorDef{
		Type:    "ScatterWeightedSum",
		Inputs:  []string{"x0", "w0", "indices", "x1", "w1"},
		Outputs: []string{"x0"},
	}
	op, err := core.CreateOperator(def, ws)
	require.NoError(t, err)

	runErr := exceptions.TryCatch[error](func() { _ = op.Run() })
	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "index 5 out of range")
}
