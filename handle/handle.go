// Package handle provides a generic owned-resource wrapper with a
// pluggable release action. Backends compose handles instead of pairing
// every acquisition with a matching release on each early-return path:
// a deferred Close fires the release action exactly once no matter how
// the function exits.
package handle

// Handle owns at most one resource value of type T. Ownership is unique:
// transferring it with Release or MoveTo leaves the source empty, and an
// empty handle's Close is a no-op.
type Handle[T comparable] struct {
	val     T
	release func(T)
	empty   bool
}

// Empty returns a handle owning nothing.
func Empty[T comparable]() *Handle[T] {
	return &Handle[T]{empty: true}
}

// New returns a handle owning v. A zero value of T counts as "no
// resource": the release action is never invoked for it.
func New[T comparable](v T, release func(T)) *Handle[T] {
	var zero T
	return &Handle[T]{val: v, release: release, empty: v == zero}
}

func (h *Handle[T]) IsEmpty() bool {
	return h.empty
}

// Get returns the owned value without affecting ownership.
func (h *Handle[T]) Get() T {
	return h.val
}

// Reset releases the currently owned resource, if any, and takes
// ownership of v.
func (h *Handle[T]) Reset(v T) {
	if !h.empty && h.release != nil {
		h.release(h.val)
	}
	var zero T
	h.val = v
	h.empty = v == zero
}

// Update replaces the stored value without releasing the old one. Used
// when the underlying library reallocated the resource on our behalf.
func (h *Handle[T]) Update(v T) {
	var zero T
	h.val = v
	h.empty = v == zero
}

// Release relinquishes ownership and returns the raw value. The release
// action will not be invoked for it.
func (h *Handle[T]) Release() T {
	h.empty = true
	return h.val
}

// MoveTo transfers ownership into dst, releasing whatever dst owned.
// After the call h is empty.
func (h *Handle[T]) MoveTo(dst *Handle[T]) {
	if h == dst {
		return
	}
	if !h.empty {
		dst.Reset(h.val)
		dst.release = h.release
		h.empty = true
		return
	}
	dst.Reset(*new(T))
}

// Close invokes the release action if the handle owns a resource, and
// leaves the handle empty. Safe to call multiple times.
func (h *Handle[T]) Close() {
	if h.empty {
		return
	}
	h.empty = true
	if h.release != nil {
		h.release(h.val)
	}
}
