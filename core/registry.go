package core

import (
	"maps"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// OperatorCreator constructs an operator from its definition and the
// workspace to resolve blob names against. Returning an error wrapping
// ErrUnsupportedFeature tells the factory this implementation cannot handle
// the definition and the fallback entry should be tried instead.
type OperatorCreator func(def *OperatorDef, ws *Workspace) (Operator, error)

// OperatorRegistry maps operator type names, optionally engine-qualified as
// "<type>_ENGINE_<engine>", to their creators for one device type. Entries
// are write-once: registration happens at load time from package init
// functions, lookups afterwards are read-mostly.
type OperatorRegistry struct {
	device DeviceType

	mu       sync.RWMutex
	creators map[string]OperatorCreator
}

// NewOperatorRegistry returns an empty registry labeled with the device type
// it serves. The label feeds diagnostics only.
func NewOperatorRegistry(device DeviceType) *OperatorRegistry {
	return &OperatorRegistry{
		device:   device,
		creators: make(map[string]OperatorCreator),
	}
}

// Device returns the device type this registry serves.
func (r *OperatorRegistry) Device() DeviceType { return r.device }

// Register installs a creator under key. Registering the same key twice is a
// fatal configuration error.
func (r *OperatorRegistry) Register(key string, creator OperatorCreator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.creators[key]; dup {
		fatalf("Operator %q is already registered for device %s.", key, r.device)
		return
	}
	r.creators[key] = creator
}

// Has reports whether key has a registered creator.
func (r *OperatorRegistry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.creators[key]
	return found
}

// Keys returns all registered keys, sorted.
func (r *OperatorRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.creators))
}

// Create instantiates the operator registered under key. An unknown key
// returns an error wrapping ErrOperatorNotRegistered; creator errors are
// returned unchanged.
func (r *OperatorRegistry) Create(key string, def *OperatorDef, ws *Workspace) (Operator, error) {
	r.mu.RLock()
	creator, found := r.creators[key]
	r.mu.RUnlock()
	if !found {
		return nil, errors.Wrapf(ErrOperatorNotRegistered, "key %q on device %s", key, r.device)
	}
	return creator(def, ws)
}

// DeviceTypeRegistry maps device types to their operator registries. It is an
// explicit object passed by reference: the process-wide instance is
// DefaultRegistry, and tests build isolated instances of their own.
type DeviceTypeRegistry struct {
	mu         sync.RWMutex
	registries map[DeviceType]*OperatorRegistry
}

// NewDeviceTypeRegistry returns an empty device type registry.
func NewDeviceTypeRegistry() *DeviceTypeRegistry {
	return &DeviceTypeRegistry{registries: make(map[DeviceType]*OperatorRegistry)}
}

// RegisterDevice installs the operator registry serving a device type.
// Registering the same device type twice is a fatal configuration error: it
// means two device implementations claimed the same numeric identifier.
func (d *DeviceTypeRegistry) RegisterDevice(device DeviceType, r *OperatorRegistry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.registries[device]; dup {
		fatalf("Device type %s registered twice; did two devices get the same numeric identifier?", device)
		return
	}
	d.registries[device] = r
}

// Registry returns the operator registry serving the device type, or nil if
// none was registered.
func (d *DeviceTypeRegistry) Registry(device DeviceType) *OperatorRegistry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.registries[device]
}

// Devices returns the registered device types, sorted.
func (d *DeviceTypeRegistry) Devices() []DeviceType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.registries))
}

// CreateOperator instantiates the operator described by def, picking the most
// specific registered implementation:
//
//  1. The registry for def's device type must exist, otherwise the error
//     wraps ErrDeviceTypeNotRegistered.
//  2. If the definition names an engine (OperatorDef.Engine, or else
//     DeviceOption.Engine), the engine-qualified entry
//     "<type>_ENGINE_<engine>" is tried first.
//  3. A missing engine entry, or an engine creator reporting the definition
//     unsupported (IsUnsupportedFeature), falls back to the plain entry.
//  4. If the plain entry is missing too, or itself reports the definition
//     unsupported, the error wraps ErrOperatorNotRegistered and names the
//     type, device and engine.
//
// Any other creator error is returned unchanged. On success the operator is
// never nil.
func (d *DeviceTypeRegistry) CreateOperator(def *OperatorDef, ws *Workspace) (Operator, error) {
	device := def.DeviceOption.DeviceType
	r := d.Registry(device)
	if r == nil {
		return nil, errors.Wrapf(ErrDeviceTypeNotRegistered, "device %s, operator def: %s", device, def)
	}
	klog.V(1).Infof("Creating operator of type %q on device %s", def.Type, device)
	engine := def.engine()
	if engine != "" {
		key := def.Type + "_ENGINE_" + engine
		klog.V(1).Infof("Trying to create operator %q with engine %q", def.Type, engine)
		op, err := r.Create(key, def, ws)
		switch {
		case err == nil:
			return op, nil
		case errors.Is(err, ErrOperatorNotRegistered):
			klog.V(1).Infof("Engine %q is not registered for operator %q, using the default implementation.",
				engine, def.Type)
		case IsUnsupportedFeature(err):
			klog.V(1).Infof("Engine %q does not support this %q definition (%v), using the default implementation.",
				engine, def.Type, err)
		default:
			return nil, err
		}
	}
	op, err := r.Create(def.Type, def, ws)
	switch {
	case err == nil:
		return op, nil
	case errors.Is(err, ErrOperatorNotRegistered):
		return nil, errors.Wrapf(ErrOperatorNotRegistered,
			"cannot create operator of type %q on device %s (engine %q)", def.Type, device, engine)
	case IsUnsupportedFeature(err):
		return nil, errors.Wrapf(ErrOperatorNotRegistered,
			"cannot create operator of type %q on device %s (engine %q): %v", def.Type, device, engine, err)
	default:
		return nil, err
	}
}

// DefaultRegistry is the process-wide device type registry that the
// package-level registration helpers and CreateOperator operate on.
var DefaultRegistry = NewDeviceTypeRegistry()

// CPUOperatorRegistry and StreamOperatorRegistry serve the built-in devices.
// They are installed into DefaultRegistry at load time.
var (
	CPUOperatorRegistry    = NewOperatorRegistry(CPU)
	StreamOperatorRegistry = NewOperatorRegistry(STREAM)
)

func init() {
	DefaultRegistry.RegisterDevice(CPU, CPUOperatorRegistry)
	DefaultRegistry.RegisterDevice(STREAM, StreamOperatorRegistry)
}

// CreateOperator instantiates def against DefaultRegistry. See
// DeviceTypeRegistry.CreateOperator.
func CreateOperator(def *OperatorDef, ws *Workspace) (Operator, error) {
	return DefaultRegistry.CreateOperator(def, ws)
}

// DeviceCreator builds an operator from an already constructed device
// context. The registration helpers construct the context from the
// definition's device option and hand it over, which keeps concrete operator
// constructors generic over the device.
type DeviceCreator[C Context] func(ctx C, def *OperatorDef, ws *Workspace) (Operator, error)

// RegisterCPUOperator registers the default CPU implementation of an operator
// type name.
func RegisterCPUOperator(name string, creator DeviceCreator[*CPUContext]) {
	CPUOperatorRegistry.Register(name, func(def *OperatorDef, ws *Workspace) (Operator, error) {
		return creator(NewCPUContext(def.DeviceOption), def, ws)
	})
}

// RegisterCPUOperatorWithEngine registers a specialized CPU implementation
// under the engine-qualified key "<name>_ENGINE_<engine>".
func RegisterCPUOperatorWithEngine(name, engine string, creator DeviceCreator[*CPUContext]) {
	RegisterCPUOperator(name+"_ENGINE_"+engine, creator)
}

// RegisterStreamOperator registers the default STREAM implementation of an
// operator type name.
func RegisterStreamOperator(name string, creator DeviceCreator[*StreamContext]) {
	StreamOperatorRegistry.Register(name, func(def *OperatorDef, ws *Workspace) (Operator, error) {
		return creator(NewStreamContext(def.DeviceOption), def, ws)
	})
}

// RegisterStreamOperatorWithEngine registers a specialized STREAM
// implementation under the engine-qualified key.
func RegisterStreamOperatorWithEngine(name, engine string, creator DeviceCreator[*StreamContext]) {
	RegisterStreamOperator(name+"_ENGINE_"+engine, creator)
}
