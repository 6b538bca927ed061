package operators

import (
	"testing"

	"github.com/Zehaos/caffe2/core"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

// addInput creates a tensor blob on device family C with explicit values.
func addInput[T dtypes.Supported, C core.Context](ws *core.Workspace, name string, dims []int, values []T) *core.Tensor[C] {
	tensor := core.BlobGetMutable[core.Tensor[C]](ws.CreateBlob(name))
	tensor.Resize(dims...)
	copy(core.MutableData[T](tensor), values)
	return tensor
}

// addConstInput creates a float32 tensor blob filled with one value.
func addConstInput[C core.Context](ws *core.Workspace, name string, dims []int, value float32) *core.Tensor[C] {
	tensor := core.BlobGetMutable[core.Tensor[C]](ws.CreateBlob(name))
	tensor.Resize(dims...)
	flat := core.MutableData[float32](tensor)
	for i := range flat {
		flat[i] = value
	}
	return tensor
}

// mustRun creates def's operator from the default registry and runs it
// synchronously.
func mustRun(t *testing.T, def *core.OperatorDef, ws *core.Workspace) core.Operator {
	t.Helper()
	op, err := core.CreateOperator(def, ws)
	require.NoError(t, err)
	require.NotNil(t, op)
	require.NoError(t, op.Run())
	return op
}

// cpuTensor reads the named blob as a host tensor.
func cpuTensor(t *testing.T, ws *core.Workspace, name string) *core.TensorCPU {
	t.Helper()
	require.True(t, ws.HasBlob(name))
	return core.BlobGet[core.TensorCPU](ws.GetBlob(name))
}
