package core

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// Tensor is an n-dimensional array of one of the supported element types
// (see dtypes.Supported), bound at the type level to the device context
// family C it lives on: a Tensor[*CPUContext] and a Tensor[*StreamContext]
// holding the same numbers are distinct types, so cross-device confusion
// surfaces as a blob type mismatch instead of silent corruption.
//
// The flat backing storage is allocated lazily by the first MutableData call,
// which also fixes the element type.
type Tensor[C Context] struct {
	dims  []int
	dtype dtypes.DType
	flat  any
}

// TensorCPU is a tensor on the host device.
type TensorCPU = Tensor[*CPUContext]

// TensorStream is a tensor on the asynchronous STREAM device.
type TensorStream = Tensor[*StreamContext]

// NewTensor returns an unallocated tensor with the given dimensions.
func NewTensor[C Context](dims ...int) *Tensor[C] {
	t := &Tensor[C]{}
	t.Resize(dims...)
	return t
}

// Resize sets the tensor dimensions. The backing storage survives when the
// element count is unchanged and is dropped otherwise, to be reallocated by
// the next MutableData.
func (t *Tensor[C]) Resize(dims ...int) {
	newSize := 1
	for _, d := range dims {
		if d < 0 {
			exceptions.Panicf("tensor dimensions must be non-negative, got %v", dims)
		}
		newSize *= d
	}
	if t.flat != nil && newSize != t.Size() {
		t.flat = nil
	}
	t.dims = slices.Clone(dims)
}

// ResizeLike resizes t to src's dimensions. For tensors on different devices
// use Resize(src.Dims()...).
func (t *Tensor[C]) ResizeLike(src *Tensor[C]) {
	t.Resize(src.dims...)
}

// Dims returns the tensor dimensions. The returned slice is owned by the
// tensor and must not be modified.
func (t *Tensor[C]) Dims() []int { return t.dims }

// Dim returns the size of axis i.
func (t *Tensor[C]) Dim(i int) int { return t.dims[i] }

// Rank returns the number of axes.
func (t *Tensor[C]) Rank() int { return len(t.dims) }

// Size returns the number of elements.
func (t *Tensor[C]) Size() int {
	size := 1
	for _, d := range t.dims {
		size *= d
	}
	return size
}

// DType returns the element type, or dtypes.InvalidDType before the first
// MutableData call.
func (t *Tensor[C]) DType() dtypes.DType { return t.dtype }

// Nbytes returns the size of the backing storage in bytes, 0 before
// allocation.
func (t *Tensor[C]) Nbytes() uintptr {
	if t.flat == nil {
		return 0
	}
	return uintptr(t.Size()) * t.dtype.Memory()
}

// ShareData turns t into an alias of src: same dimensions, element type and
// backing storage. Writes through either tensor are visible in both.
func (t *Tensor[C]) ShareData(src *Tensor[C]) {
	t.dims = slices.Clone(src.dims)
	t.dtype = src.dtype
	t.flat = src.flat
}

// String implements fmt.Stringer.
func (t *Tensor[C]) String() string {
	if t.flat == nil {
		return fmt.Sprintf("Tensor[dims=%v, unallocated]", t.dims)
	}
	return fmt.Sprintf("Tensor[dims=%v, %s]", t.dims, t.dtype)
}

// Data returns the flat backing data of t as a []T. The tensor must already
// be allocated with element type T; anything else is an enforce violation.
func Data[T dtypes.Supported, C Context](t *Tensor[C]) []T {
	want := dtypes.FromGenericsType[T]()
	if t.flat == nil {
		exceptions.Panicf("tensor %s is not allocated, cannot read %s data", t, want)
	}
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("tensor holds %s, not %s", t.dtype, want)
	}
	return flat
}

// MutableData returns the flat backing data of t as a []T, allocating it and
// fixing the tensor's element type on first use. A tensor already allocated
// with a different element type is an enforce violation.
func MutableData[T dtypes.Supported, C Context](t *Tensor[C]) []T {
	if t.flat == nil {
		t.dtype = dtypes.FromGenericsType[T]()
		t.flat = make([]T, t.Size())
	}
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("tensor holds %s, not %s", t.dtype, dtypes.FromGenericsType[T]())
	}
	return flat
}

// CopyTensor copies src into dst, resizing dst to src's dimensions. The two
// tensors may live on different devices; the element copy is issued through
// ctx, so on an asynchronous device it runs in stream order and is complete
// only after the context is synchronized.
//
// Copying an unallocated tensor only transfers the metadata.
func CopyTensor[DC, SC Context](ctx Context, dst *Tensor[DC], src *Tensor[SC]) error {
	dst.Resize(src.dims...)
	if src.flat == nil {
		dst.dtype = src.dtype
		dst.flat = nil
		return nil
	}
	return DispatchType(src.dtype,
		OnType[bool](func() error { copyFlat[bool](ctx, dst, src); return nil }),
		OnType[int8](func() error { copyFlat[int8](ctx, dst, src); return nil }),
		OnType[int16](func() error { copyFlat[int16](ctx, dst, src); return nil }),
		OnType[int32](func() error { copyFlat[int32](ctx, dst, src); return nil }),
		OnType[int64](func() error { copyFlat[int64](ctx, dst, src); return nil }),
		OnType[uint8](func() error { copyFlat[uint8](ctx, dst, src); return nil }),
		OnType[uint16](func() error { copyFlat[uint16](ctx, dst, src); return nil }),
		OnType[uint32](func() error { copyFlat[uint32](ctx, dst, src); return nil }),
		OnType[uint64](func() error { copyFlat[uint64](ctx, dst, src); return nil }),
		OnType[float16.Float16](func() error { copyFlat[float16.Float16](ctx, dst, src); return nil }),
		OnType[bfloat16.BFloat16](func() error { copyFlat[bfloat16.BFloat16](ctx, dst, src); return nil }),
		OnType[float32](func() error { copyFlat[float32](ctx, dst, src); return nil }),
		OnType[float64](func() error { copyFlat[float64](ctx, dst, src); return nil }),
		OnType[complex64](func() error { copyFlat[complex64](ctx, dst, src); return nil }),
		OnType[complex128](func() error { copyFlat[complex128](ctx, dst, src); return nil }),
	)
}

func copyFlat[T dtypes.Supported, DC, SC Context](ctx Context, dst *Tensor[DC], src *Tensor[SC]) {
	srcFlat := Data[T](src)
	dstFlat := MutableData[T](dst)
	ctx.Enqueue(func() {
		copy(dstFlat, srcFlat)
	})
}
