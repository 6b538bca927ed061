package core

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// ArgumentValue constrains the Go types an operator argument can carry.
// Values are normalized to the storage classes of the serialized form:
// integers widen to int64 and floats narrow to float32.
type ArgumentValue interface {
	bool | int | int32 | int64 | float32 | float64 | string
}

// Argument is one name to value configuration entry of an OperatorDef.
// Build it with MakeArgument or MakeRepeatedArgument; it is immutable after
// construction.
type Argument struct {
	name string

	// value holds one of: bool, int64, float32, string, []int64, []float32
	// or []string.
	value any
}

// MakeArgument builds a single-valued argument.
func MakeArgument[T ArgumentValue](name string, value T) *Argument {
	return &Argument{name: name, value: normalizeArgument(value)}
}

// MakeRepeatedArgument builds a repeated argument. It may be empty; the value
// class is fixed by the type parameter, not by the values given.
func MakeRepeatedArgument[T ArgumentValue](name string, values ...T) *Argument {
	return &Argument{name: name, value: normalizeRepeatedArgument(name, values)}
}

// Name returns the argument name.
func (a *Argument) Name() string { return a.name }

// String implements fmt.Stringer.
func (a *Argument) String() string {
	return fmt.Sprintf("%s=%v", a.name, a.value)
}

func normalizeArgument[T ArgumentValue](value T) any {
	switch v := any(value).(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return float32(v)
	default:
		// bool, int64, float32 and string are already in storage form.
		return v
	}
}

func normalizeRepeatedArgument[T ArgumentValue](name string, values []T) any {
	var zero T
	switch any(zero).(type) {
	case int, int32, int64:
		out := make([]int64, len(values))
		for i, value := range values {
			switch v := any(value).(type) {
			case int:
				out[i] = int64(v)
			case int32:
				out[i] = int64(v)
			case int64:
				out[i] = v
			}
		}
		return out
	case float32, float64:
		out := make([]float32, len(values))
		for i, value := range values {
			switch v := any(value).(type) {
			case float32:
				out[i] = v
			case float64:
				out[i] = float32(v)
			}
		}
		return out
	case string:
		out := make([]string, len(values))
		for i, value := range values {
			out[i] = any(value).(string)
		}
		return out
	default:
		exceptions.Panicf("repeated arguments of type %T are not supported (argument %q)", zero, name)
		return nil
	}
}

// ArgumentHelper gives typed read access to an OperatorDef's arguments. It is
// built once per operator; lookups never fail on absence, they fall back to
// the caller's default.
type ArgumentHelper struct {
	args map[string]*Argument
}

// NewArgumentHelper indexes def's arguments by name. A duplicated argument
// name is a definition defect and panics with an enforce error.
func NewArgumentHelper(def *OperatorDef) *ArgumentHelper {
	h := &ArgumentHelper{args: make(map[string]*Argument, len(def.Args))}
	for _, arg := range def.Args {
		if _, dup := h.args[arg.name]; dup {
			exceptions.Panicf("duplicated argument name %q in operator def: %s", arg.name, def)
		}
		h.args[arg.name] = arg
	}
	return h
}

// HasArgument reports whether the named argument is present.
func (h *ArgumentHelper) HasArgument(name string) bool {
	_, found := h.args[name]
	return found
}

func argumentMismatch(arg *Argument, want string) {
	exceptions.Panicf("argument %q holds a value of type %T, not %s", arg.name, arg.value, want)
}

// SingleArgument returns the value of the named single-valued argument, or
// defaultValue when the argument is absent. Conversions within a storage
// class are transparent (an int64 argument reads back as int); asking for a
// different class than the stored one panics with an enforce error.
func SingleArgument[T ArgumentValue](h *ArgumentHelper, name string, defaultValue T) T {
	arg, found := h.args[name]
	if !found {
		return defaultValue
	}
	var out T
	switch p := any(&out).(type) {
	case *bool:
		v, ok := arg.value.(bool)
		if !ok {
			argumentMismatch(arg, "bool")
		}
		*p = v
	case *int:
		v, ok := arg.value.(int64)
		if !ok {
			argumentMismatch(arg, "int")
		}
		*p = int(v)
	case *int32:
		v, ok := arg.value.(int64)
		if !ok {
			argumentMismatch(arg, "int")
		}
		*p = int32(v)
	case *int64:
		v, ok := arg.value.(int64)
		if !ok {
			argumentMismatch(arg, "int")
		}
		*p = v
	case *float32:
		v, ok := arg.value.(float32)
		if !ok {
			argumentMismatch(arg, "float")
		}
		*p = v
	case *float64:
		v, ok := arg.value.(float32)
		if !ok {
			argumentMismatch(arg, "float")
		}
		*p = float64(v)
	case *string:
		v, ok := arg.value.(string)
		if !ok {
			argumentMismatch(arg, "string")
		}
		*p = v
	}
	return out
}

// RepeatedArgument returns the values of the named repeated argument, or nil
// when the argument is absent. A single-valued argument under the same name
// is a class mismatch and panics with an enforce error.
func RepeatedArgument[T ArgumentValue](h *ArgumentHelper, name string) []T {
	arg, found := h.args[name]
	if !found {
		return nil
	}
	var zero T
	switch any(zero).(type) {
	case int:
		vs, ok := arg.value.([]int64)
		if !ok {
			argumentMismatch(arg, "repeated int")
		}
		out := make([]T, len(vs))
		for i, v := range vs {
			out[i] = any(int(v)).(T)
		}
		return out
	case int32:
		vs, ok := arg.value.([]int64)
		if !ok {
			argumentMismatch(arg, "repeated int")
		}
		out := make([]T, len(vs))
		for i, v := range vs {
			out[i] = any(int32(v)).(T)
		}
		return out
	case int64:
		vs, ok := arg.value.([]int64)
		if !ok {
			argumentMismatch(arg, "repeated int")
		}
		out := make([]T, len(vs))
		for i, v := range vs {
			out[i] = any(v).(T)
		}
		return out
	case float32:
		vs, ok := arg.value.([]float32)
		if !ok {
			argumentMismatch(arg, "repeated float")
		}
		out := make([]T, len(vs))
		for i, v := range vs {
			out[i] = any(v).(T)
		}
		return out
	case float64:
		vs, ok := arg.value.([]float32)
		if !ok {
			argumentMismatch(arg, "repeated float")
		}
		out := make([]T, len(vs))
		for i, v := range vs {
			out[i] = any(float64(v)).(T)
		}
		return out
	case string:
		vs, ok := arg.value.([]string)
		if !ok {
			argumentMismatch(arg, "repeated string")
		}
		out := make([]T, len(vs))
		for i, v := range vs {
			out[i] = any(v).(T)
		}
		return out
	default:
		exceptions.Panicf("repeated arguments of type %T are not supported (argument %q)", zero, name)
		return nil
	}
}
