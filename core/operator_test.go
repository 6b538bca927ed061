package core

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/require"
)

// newTestWorkspace builds a workspace with CPU tensor blobs named after the
// given inputs, each filled with its index.
func newTestWorkspace(inputs ...string) *Workspace {
	ws := NewWorkspace()
	for i, name := range inputs {
		tensor := BlobGetMutable[TensorCPU](ws.CreateBlob(name))
		tensor.Resize(2)
		flat := MutableData[float32](tensor)
		for j := range flat {
			flat[j] = float32(i)
		}
	}
	return ws
}

func TestOperatorBase_Bindings(t *testing.T) {
	def := &OperatorDef{
		Type:    "Test",
		Inputs:  []string{"x0", "x1", "x2"},
		Outputs: []string{"y0", "y1"},
	}
	ws := newTestWorkspace("x0", "x1", "x2")
	op := NewOperatorBase(def, ws)

	require.Equal(t, 3, op.InputSize())
	require.Equal(t, 2, op.OutputSize())
	require.True(t, ws.HasBlob("y0"))
	require.True(t, ws.HasBlob("y1"))

	// Positional access resolves to the declared blobs, in order.
	for i := range def.Inputs {
		require.Equal(t, float32(i), Data[float32](Input[TensorCPU](op, i))[0])
	}
	require.Same(t, ws.GetBlob("y1"), op.Outputs()[1])

	out := Output[TensorCPU](op, 0)
	out.Resize(1)
	require.True(t, OutputIsType[TensorCPU](op, 0))
	require.True(t, InputIsType[TensorCPU](op, 1))
	require.False(t, InputIsType[TensorStream](op, 1))
}

func TestOperatorBase_MissingInput(t *testing.T) {
	def := &OperatorDef{Type: "Test", Inputs: []string{"x0", "ghost"}}
	ws := newTestWorkspace("x0")
	err := exceptions.TryCatch[error](func() { NewOperatorBase(def, ws) })
	require.Error(t, err)
	require.Contains(t, err.Error(), `"ghost"`)
	require.Contains(t, err.Error(), `"Test"`)
}

func TestOperatorBase_IndexOutOfRange(t *testing.T) {
	def := &OperatorDef{Type: "Test", Inputs: []string{"x0"}, Outputs: []string{"y"}}
	op := NewOperatorBase(def, newTestWorkspace("x0"))

	err := exceptions.TryCatch[error](func() { Input[TensorCPU](op, 1) })
	require.Error(t, err)
	require.Contains(t, err.Error(), "input index 1 out of range")

	require.Panics(t, func() { Input[TensorCPU](op, -1) })
	require.Panics(t, func() { Output[TensorCPU](op, 3) })
}

func TestOperatorBase_InputTypeMismatch(t *testing.T) {
	def := &OperatorDef{Type: "Test", Inputs: []string{"x0", "x1"}}
	ws := newTestWorkspace("x0")
	BlobGetMutable[int](ws.CreateBlob("x1"))
	op := NewOperatorBase(def, ws)

	err := exceptions.TryCatch[error](func() { Input[TensorCPU](op, 1) })
	require.Error(t, err)
	// The failure names the offending blob so it can be traced to the graph.
	require.Contains(t, err.Error(), `blob "x1"`)
	require.Contains(t, err.Error(), "int")
}

func TestOperatorBase_RunNotImplemented(t *testing.T) {
	def := &OperatorDef{Name: "noop", Type: "Test"}
	op := NewOperatorBase(def, NewWorkspace())

	err := op.Run()
	require.ErrorIs(t, err, ErrNotImplemented)
	require.Contains(t, err.Error(), `"noop"`)
	require.ErrorIs(t, op.RunAsync(), ErrNotImplemented)
}

func TestOperatorBase_Arguments(t *testing.T) {
	def := &OperatorDef{
		Type: "Test",
		Args: []*Argument{MakeArgument("value", float32(2.5))},
	}
	op := NewOperatorBase(def, NewWorkspace())
	require.True(t, op.HasArgument("value"))
	require.False(t, op.HasArgument("missing"))
	require.Equal(t, float32(2.5), GetSingleArgument(op, "value", float32(0)))
	require.Equal(t, int64(3), GetSingleArgument(op, "missing", int64(3)))
	require.Nil(t, GetRepeatedArgument[int64](op, "shape"))
}
