package core

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// The dispatch helpers select one specialization out of a statically declared
// candidate list using a runtime value. The list is ordered: candidates are
// tried in declaration order and the first match wins, so specialized entries
// go before general ones.

// Unspecialized is the sentinel candidate for DispatchValue. It matches any
// runtime value, marking the generic implementation that closes a dispatch
// list.
const Unspecialized = -1

// ValueCase pairs one integer candidate with its specialization.
type ValueCase struct {
	Value   int
	Handler func() error
}

// OnValue declares the specialization for one exact integer candidate, or for
// Unspecialized the generic fallback.
func OnValue(value int, handler func() error) ValueCase {
	return ValueCase{Value: value, Handler: handler}
}

// DispatchValue invokes the first case matching value. An Unspecialized case
// matches any value, so entries after it are unreachable. Exhausting a list
// without an Unspecialized case is a dispatch-table defect and panics with an
// enforce error.
func DispatchValue(value int, cases ...ValueCase) error {
	for _, c := range cases {
		if c.Value == value || c.Value == Unspecialized {
			return c.Handler()
		}
	}
	exceptions.Panicf("no specialization for value %d and no Unspecialized fallback in the dispatch list", value)
	return nil
}

// TypeCase pairs one element-type candidate with its specialization.
type TypeCase struct {
	DType   dtypes.DType
	Handler func() error
}

// OnType declares the specialization for element type T.
func OnType[T dtypes.Supported](handler func() error) TypeCase {
	return TypeCase{DType: dtypes.FromGenericsType[T](), Handler: handler}
}

// DispatchType invokes the first case matching dtype, in declaration order.
// Unlike value dispatch there is no generic fallback over element types:
// exhausting the list is an enforce violation naming the unsupported type.
func DispatchType(dtype dtypes.DType, cases ...TypeCase) error {
	for _, c := range cases {
		if c.DType == dtype {
			return c.Handler()
		}
	}
	exceptions.Panicf("Unsupported type of tensor: %s", dtype)
	return nil
}
