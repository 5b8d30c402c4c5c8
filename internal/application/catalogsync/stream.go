package catalogsync

// Stream walks a slice from a starting offset and can be stopped early. The
// offset always names the next unprocessed index, so it is the resume point
// for a handoff.
type Stream[T any] struct {
	items   []T
	next    int
	stopped bool
}

// NewStream starts a stream at offset. Offsets past the end yield an empty
// stream; negative offsets start at zero.
func NewStream[T any](items []T, offset int) *Stream[T] {
	if offset < 0 {
		offset = 0
	}
	if offset > len(items) {
		offset = len(items)
	}
	return &Stream[T]{items: items, next: offset}
}

// Next returns the next item, or false once the stream is exhausted or stopped.
func (s *Stream[T]) Next() (T, bool) {
	var zero T
	if s.stopped || s.next >= len(s.items) {
		return zero, false
	}
	item := s.items[s.next]
	s.next++
	return item, true
}

// Stop ends the stream; later calls to Next return false.
func (s *Stream[T]) Stop() {
	s.stopped = true
}

// Offset returns the index of the next unprocessed item.
func (s *Stream[T]) Offset() int {
	return s.next
}

// Remaining returns the number of unprocessed items.
func (s *Stream[T]) Remaining() int {
	return len(s.items) - s.next
}

// Total returns the stream length.
func (s *Stream[T]) Total() int {
	return len(s.items)
}
