package core

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// recordingContext is a Context double that records the protocol calls made
// against it.
type recordingContext struct {
	events    []string
	finishErr error
	rng       *rand.Rand
}

func (c *recordingContext) SwitchToDevice() { c.events = append(c.events, "switch") }

func (c *recordingContext) Enqueue(kernel func()) {
	c.events = append(c.events, "enqueue")
	kernel()
}

func (c *recordingContext) FinishDeviceComputation() error {
	c.events = append(c.events, "finish")
	return c.finishErr
}

func (c *recordingContext) Device() DeviceType { return CPU }

func (c *recordingContext) Rand() *rand.Rand {
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(1))
	}
	return c.rng
}

// scriptedRunner is a DeviceRunner double whose RunOnDevice records itself
// and then returns or panics as scripted.
type scriptedRunner struct {
	ctx       *recordingContext
	err       error
	panicWith error
}

func (r *scriptedRunner) RunOnDevice() error {
	r.ctx.events = append(r.ctx.events, "run")
	if r.panicWith != nil {
		panic(r.panicWith)
	}
	return r.err
}

// captureFatal redirects fatalf into a slice for the duration of the test.
func captureFatal(t *testing.T) *[]string {
	t.Helper()
	var calls []string
	previous := fatalf
	fatalf = func(format string, args ...any) {
		calls = append(calls, fmt.Sprintf(format, args...))
	}
	t.Cleanup(func() { fatalf = previous })
	return &calls
}

func newScriptedOperator(t *testing.T, runner *scriptedRunner) *DeviceOperator[*recordingContext] {
	t.Helper()
	def := &OperatorDef{Name: "probe", Type: "Probe", Inputs: []string{"x0"}, Outputs: []string{"y"}}
	ws := NewWorkspace()
	BlobGetMutable[Tensor[*recordingContext]](ws.CreateBlob("x0"))
	return NewDeviceOperator(runner.ctx, def, ws, runner)
}

func TestDeviceOperator_ConstructionSwitchesFirst(t *testing.T) {
	ctx := &recordingContext{}
	runner := &scriptedRunner{ctx: ctx}
	op := newScriptedOperator(t, runner)

	// The device was made current during construction, before any Run.
	require.Equal(t, []string{"switch"}, ctx.events)
	require.Same(t, ctx, op.Context())
}

func TestDeviceOperator_RunProtocol(t *testing.T) {
	ctx := &recordingContext{}
	runner := &scriptedRunner{ctx: ctx}
	op := newScriptedOperator(t, runner)
	ctx.events = nil

	require.NoError(t, op.Run())
	require.Equal(t, []string{"switch", "run", "finish"}, ctx.events)
}

func TestDeviceOperator_RunAsyncSkipsFinish(t *testing.T) {
	ctx := &recordingContext{}
	runner := &scriptedRunner{ctx: ctx}
	op := newScriptedOperator(t, runner)
	ctx.events = nil

	require.NoError(t, op.RunAsync())
	require.Equal(t, []string{"switch", "run"}, ctx.events)
}

func TestDeviceOperator_RunErrorStillSynchronizes(t *testing.T) {
	ctx := &recordingContext{}
	runner := &scriptedRunner{ctx: ctx, err: errors.New("kernel rejected")}
	op := newScriptedOperator(t, runner)
	ctx.events = nil

	err := op.Run()
	require.ErrorContains(t, err, "kernel rejected")
	require.Equal(t, []string{"switch", "run", "finish"}, ctx.events)
}

func TestDeviceOperator_FinishFailureIsFatal(t *testing.T) {
	fatals := captureFatal(t)
	ctx := &recordingContext{finishErr: errors.New("device wedged")}
	runner := &scriptedRunner{ctx: ctx}
	op := newScriptedOperator(t, runner)

	require.NoError(t, op.Run())
	require.Len(t, *fatals, 1)
	require.Contains(t, (*fatals)[0], "Failed to execute finish device computation")
	require.Contains(t, (*fatals)[0], "device wedged")
}

func TestDeviceOperator_PanicEnrichment(t *testing.T) {
	ctx := &recordingContext{}
	runner := &scriptedRunner{ctx: ctx}
	op := newScriptedOperator(t, runner)

	runner.panicWith = exceptions.TryCatch[error](func() {
		exceptions.Panicf("negative size")
	})
	require.Error(t, runner.panicWith)

	err := exceptions.TryCatch[error](func() { _ = op.Run() })
	require.Error(t, err)
	require.Contains(t, err.Error(), "negative size")
	require.Contains(t, err.Error(), "error from operator")
	require.Contains(t, err.Error(), `"Probe"`)

	err = exceptions.TryCatch[error](func() { _ = op.RunAsync() })
	require.Error(t, err)
	require.Contains(t, err.Error(), "error from operator")
}

func TestDeviceOperator_NilRunner(t *testing.T) {
	def := &OperatorDef{Type: "Probe"}
	err := exceptions.TryCatch[error](func() {
		NewDeviceOperator(&recordingContext{}, def, NewWorkspace(), nil)
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "without a RunOnDevice implementation")
}

func TestDeviceOperator_TypedAccessors(t *testing.T) {
	ctx := &recordingContext{}
	runner := &scriptedRunner{ctx: ctx}
	op := newScriptedOperator(t, runner)

	in := op.Input(0)
	require.Equal(t, 1, in.Size())

	out := op.Output(0)
	out.Resize(3)
	MutableData[float32](out)
	require.True(t, OutputIsType[Tensor[*recordingContext]](op, 0))
	require.False(t, OutputIsType[TensorStream](op, 0))
}
