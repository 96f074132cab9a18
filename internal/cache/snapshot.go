package cache

// State identifies which arm of a Snapshot is populated
type State int

const (
	StateLoading State = iota
	StateData
	StateError
)

// Snapshot is the tri-state value delivered on watch streams: a read
// starts Loading, then resolves to Data (with its origin) or Error.
type Snapshot[T any] struct {
	State  State
	Data   T
	Origin Origin
	Err    error
}

// Loading returns a snapshot in the loading state
func Loading[T any]() Snapshot[T] {
	return Snapshot[T]{State: StateLoading}
}

// Ready returns a snapshot carrying data and the tier it came from
func Ready[T any](data T, origin Origin) Snapshot[T] {
	return Snapshot[T]{State: StateData, Data: data, Origin: origin}
}

// Failed returns a snapshot carrying an error
func Failed[T any](err error) Snapshot[T] {
	return Snapshot[T]{State: StateError, Err: err}
}
