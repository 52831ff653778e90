// Package handle provides a single-owner wrapper for native GPU handles.
package handle

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527 for details.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Unique owns one native handle and releases it exactly once.
//
// The zero value of T is the null handle. A Unique holding the null handle
// owns nothing. Ownership is moved with Take, which leaves the source empty,
// and ended with Reset or Close, which run the release function.
//
// Unique must not be copied; go vet reports copies.
type Unique[T comparable] struct {
	_       noCopy
	v       T
	release func(T)
}

// New returns a Unique owning v. release is called with v when ownership ends.
func New[T comparable](v T, release func(T)) Unique[T] {
	return Unique[T]{v: v, release: release}
}

// Get returns the owned handle without transferring ownership.
func (u *Unique[T]) Get() T {
	return u.v
}

// Valid reports whether u owns a non-null handle.
func (u *Unique[T]) Valid() bool {
	var zero T
	return u.v != zero
}

// Release relinquishes ownership and returns the handle. The caller becomes
// responsible for releasing it.
func (u *Unique[T]) Release() T {
	v := u.v
	var zero T
	u.v = zero
	return v
}

// Take moves ownership out of u into a new Unique.
func (u *Unique[T]) Take() Unique[T] {
	return Unique[T]{v: u.Release(), release: u.release}
}

// Reset replaces the owned handle with v and releases the previous one.
// The new handle is stored before the old one is released.
func (u *Unique[T]) Reset(v T) {
	old := u.v
	u.v = v
	var zero T
	if old != zero && old != v && u.release != nil {
		u.release(old)
	}
}

// Close releases the owned handle, if any.
func (u *Unique[T]) Close() {
	var zero T
	u.Reset(zero)
}
