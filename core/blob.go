package core

import (
	"reflect"

	"github.com/gomlx/exceptions"
)

// Blob is a type-erased slot holding at most one value, identified by name in
// a Workspace. The workspace owns its blobs; operators only borrow them, so a
// blob handle stays valid for as long as the workspace lives.
type Blob struct {
	value any
}

// BlobIsType reports whether b currently holds a value of type T.
func BlobIsType[T any](b *Blob) bool {
	_, ok := b.value.(*T)
	return ok
}

// BlobGet returns the value held by b. An empty blob or one holding a
// different type is an enforce violation naming both types.
func BlobGet[T any](b *Blob) *T {
	v, ok := b.value.(*T)
	if !ok {
		exceptions.Panicf("blob holds %s, not %s", b.TypeName(), reflect.TypeFor[T]().String())
	}
	return v
}

// BlobGetMutable returns the value held by b, replacing it with a newly
// allocated zero T if the blob is empty or holds a different type.
func BlobGetMutable[T any](b *Blob) *T {
	if v, ok := b.value.(*T); ok {
		return v
	}
	v := new(T)
	b.value = v
	return v
}

// Reset discards the held value, leaving the blob empty.
func (b *Blob) Reset() {
	b.value = nil
}

// TypeName returns a printable name for the held value's type, or "nil" for
// an empty blob.
func (b *Blob) TypeName() string {
	if b.value == nil {
		return "nil"
	}
	return reflect.TypeOf(b.value).Elem().String()
}
