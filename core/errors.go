package core

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// fatalf reports unrecoverable faults: duplicated load-time registrations and
// device synchronization failures. It is a variable so package tests can
// exercise the fatal paths without killing the test process.
var fatalf = klog.Fatalf

// Sentinel errors of the execution core. They are always wrapped with context
// when they surface; match them with errors.Is.
var (
	// ErrNotImplemented is returned by OperatorBase.Run when a concrete
	// operator did not supply a computation.
	ErrNotImplemented = errors.New("not implemented")

	// ErrDeviceTypeNotRegistered is returned by CreateOperator when no
	// registry serves the definition's device type.
	ErrDeviceTypeNotRegistered = errors.New("device type not registered")

	// ErrOperatorNotRegistered is returned when an operator type, or its
	// engine-qualified variant, has no entry in the device's registry.
	ErrOperatorNotRegistered = errors.New("operator not registered")

	// ErrUnsupportedFeature is the constructor outcome "this implementation
	// cannot handle the given definition". It drives the factory fallback
	// from an engine-qualified entry to the default one and never escapes
	// CreateOperator.
	ErrUnsupportedFeature = errors.New("operator feature not supported")
)

// UnsupportedFeaturef builds the constructor outcome that tells CreateOperator
// to fall back to a more general implementation. Use it only from operator
// constructors, for conditions decidable from the definition alone.
func UnsupportedFeaturef(format string, args ...any) error {
	return errors.WithMessagef(ErrUnsupportedFeature, format, args...)
}

// IsUnsupportedFeature reports whether err is an UnsupportedFeaturef outcome.
func IsUnsupportedFeature(err error) bool {
	return errors.Is(err, ErrUnsupportedFeature)
}
