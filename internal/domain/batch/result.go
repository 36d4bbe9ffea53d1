package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Item is the outcome of one query in a batch, addressed by its input position.
type Item[T any] struct {
	index  int
	status ItemStatus
	value  T
	err    error
}

// NewOK creates a successful batch item.
func NewOK[T any](index int, value T) Item[T] {
	return Item[T]{index: index, status: StatusOK, value: value}
}

// NewError creates a failed batch item.
func NewError[T any](index int, err error) Item[T] {
	return Item[T]{index: index, status: StatusError, err: err}
}

// Index returns the position of the item in the submitted batch.
func (r Item[T]) Index() int { return r.index }

// Status returns the processing outcome.
func (r Item[T]) Status() ItemStatus { return r.status }

// Value returns the result; the zero value for failed items.
func (r Item[T]) Value() T { return r.value }

// Err returns the error, if any.
func (r Item[T]) Err() error { return r.err }

// Counts tallies successful and failed items.
func Counts[T any](items []Item[T]) (ok, failed int) {
	for _, it := range items {
		if it.status == StatusOK {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
