package buffer

import "errors"

var (
	// ErrNoFreeFrame is returned when every frame in the pool is pinned and
	// none can be evicted to satisfy a NewPage or FetchPage miss.
	ErrNoFreeFrame = errors.New("buffer: no free frame available")

	// ErrPageNotFound is returned by operations on a page id that isn't
	// currently resident in the pool.
	ErrPageNotFound = errors.New("buffer: page not resident")

	// ErrNotPinned is returned when UnpinPage is called on a page whose pin
	// count is already zero.
	ErrNotPinned = errors.New("buffer: page not pinned")

	// ErrPagePinned is returned when DeletePage is called on a page that
	// still has outstanding pins.
	ErrPagePinned = errors.New("buffer: page is pinned")
)
