package analytics

// Window is a bounded FIFO that retains at most size items, oldest first.
// When the size is exceeded the oldest items are dropped.
//
// It is not safe for concurrent use without external synchronization.
type Window[T any] struct {
	size  int
	items []T
}

// NewWindow constructs a window retaining at most size items. A size <= 0 retains nothing.
func NewWindow[T any](size int) *Window[T] {
	if size < 0 {
		size = 0
	}

	return &Window[T]{
		size:  size,
		items: make([]T, 0, size),
	}
}

// Append adds an item and evicts the oldest ones past the window size
func (w *Window[T]) Append(item T) {
	if w.size == 0 {
		return
	}

	w.items = append(w.items, item)
	if len(w.items) > w.size {
		w.items = append(w.items[:0], w.items[len(w.items)-w.size:]...)
	}
}

// Items returns a copy of the current contents, oldest first
func (w *Window[T]) Items() []T {
	out := make([]T, len(w.items))
	copy(out, w.items)

	return out
}

// Last returns the most recent item
func (w *Window[T]) Last() (T, bool) {
	var zero T
	if len(w.items) == 0 {
		return zero, false
	}

	return w.items[len(w.items)-1], true
}

// Len returns the number of stored items
func (w *Window[T]) Len() int {
	return len(w.items)
}

// Size returns the configured capacity
func (w *Window[T]) Size() int {
	return w.size
}

// IsFull returns true if the window holds size items
func (w *Window[T]) IsFull() bool {
	return w.size > 0 && len(w.items) == w.size
}

// Clear removes all items
func (w *Window[T]) Clear() {
	w.items = w.items[:0]
}
