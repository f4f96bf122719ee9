// Package stash provides an immutable byte buffer that is either owned or a
// non-owning view into externally-held memory. Views let producers hand large
// payloads (embedded assets, memory-mapped files) to the delivery layer
// without a copy, as long as the backing memory outlives the request.
package stash

// Stash is an immutable byte buffer. The zero value is an empty owned buffer.
type Stash struct {
	data  []byte
	owned bool
}

// From copies b into a new owned Stash. Later mutation of b does not affect
// the returned value.
func From(b []byte) Stash {
	if len(b) == 0 {
		return Stash{owned: true}
	}
	data := make([]byte, len(b))
	copy(data, b)
	return Stash{data: data, owned: true}
}

// FromString copies s into a new owned Stash.
func FromString(s string) Stash {
	return From([]byte(s))
}

// Own adopts b as the storage of a new owned Stash. The caller must not
// modify b afterwards.
func Own(b []byte) Stash {
	return Stash{data: b, owned: true}
}

// View wraps b without copying. The caller guarantees b is stably allocated
// and outlives every use of the returned Stash.
func View(b []byte) Stash {
	return Stash{data: b}
}

// Empty returns an empty owned Stash.
func Empty() Stash {
	return Stash{owned: true}
}

// Data returns the underlying bytes. Callers must not modify the returned
// slice.
func (s Stash) Data() []byte {
	return s.data
}

// Size returns the number of bytes held.
func (s Stash) Size() int {
	return len(s.data)
}

// Owned reports whether the Stash owns its storage.
func (s Stash) Owned() bool {
	return s.owned
}

// String returns the contents as a string.
func (s Stash) String() string {
	return string(s.data)
}
