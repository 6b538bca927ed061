package core

import (
	"cmp"
	"maps"
	"slices"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// Workspace owns a set of named blobs. It is the buffer store operators
// resolve their inputs and outputs against, and it must outlive every
// operator created on it.
//
// A workspace is not synchronized: sequencing concurrent use is the runner's
// contract, same as for the operators themselves.
type Workspace struct {
	blobs map[string]*Blob
}

// NewWorkspace returns an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{blobs: make(map[string]*Blob)}
}

// CreateBlob returns the blob with the given name, creating an empty one if
// it does not exist yet.
func (ws *Workspace) CreateBlob(name string) *Blob {
	if b, found := ws.blobs[name]; found {
		return b
	}
	b := &Blob{}
	ws.blobs[name] = b
	return b
}

// GetBlob returns the named blob, or nil if it does not exist.
func (ws *Workspace) GetBlob(name string) *Blob {
	return ws.blobs[name]
}

// HasBlob reports whether the named blob exists.
func (ws *Workspace) HasBlob(name string) bool {
	_, found := ws.blobs[name]
	return found
}

// RemoveBlob deletes the named blob and reports whether it existed. Operators
// still borrowing its handle keep it alive; the workspace just forgets it.
func (ws *Workspace) RemoveBlob(name string) bool {
	_, found := ws.blobs[name]
	delete(ws.blobs, name)
	return found
}

// Blobs returns the names of all blobs, sorted.
func (ws *Workspace) Blobs() []string {
	return slices.Sorted(maps.Keys(ws.blobs))
}

// LogBlobSizes logs the memory held by each blob, largest first, followed by
// the total. Blobs whose value does not report a byte size (anything that is
// not a tensor) count as zero.
func (ws *Workspace) LogBlobSizes() {
	type blobSize struct {
		name  string
		bytes uintptr
	}
	sizes := make([]blobSize, 0, len(ws.blobs))
	var total uintptr
	for name, b := range ws.blobs {
		var n uintptr
		if sized, ok := b.value.(interface{ Nbytes() uintptr }); ok {
			n = sized.Nbytes()
		}
		total += n
		sizes = append(sizes, blobSize{name: name, bytes: n})
	}
	slices.SortFunc(sizes, func(a, b blobSize) int {
		if c := cmp.Compare(b.bytes, a.bytes); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	for _, s := range sizes {
		klog.Infof("blob %q: %s", s.name, humanize.Bytes(uint64(s.bytes)))
	}
	klog.Infof("total: %s in %d blobs", humanize.Bytes(uint64(total)), len(sizes))
}
