// Package capability models optional collaborators that may or may not be
// present at runtime. A Provider is decided once, when it is constructed,
// and callers branch on the variant explicitly.
package capability

// Provider holds either an available handle of type T or the reason the
// collaborator is unavailable.
type Provider[T any] struct {
	handle    T
	available bool
	reason    string
}

// Available wraps a usable handle.
func Available[T any](handle T) Provider[T] {
	return Provider[T]{handle: handle, available: true}
}

// Unavailable records why the collaborator cannot be used.
func Unavailable[T any](reason string) Provider[T] {
	if reason == "" {
		reason = "not provided"
	}
	return Provider[T]{reason: reason}
}

// Get returns the handle and true when available, or the zero value and
// false otherwise.
func (p Provider[T]) Get() (T, bool) {
	return p.handle, p.available
}

// IsAvailable reports whether the provider holds a handle.
func (p Provider[T]) IsAvailable() bool { return p.available }

// Reason explains an unavailable provider. It is empty when available.
func (p Provider[T]) Reason() string {
	if p.available {
		return ""
	}
	if p.reason == "" {
		return "not provided"
	}
	return p.reason
}
