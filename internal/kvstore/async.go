package kvstore

import "context"

// Callback receives the outcome of an asynchronous operation.
type Callback[T any] func(err error, result T)

// Future is the eventual result of an asynchronous operation.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed when the operation has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the operation finishes or ctx is done. Giving up on
// ctx does not cancel the operation itself.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func goFuture[T any](fn func() (T, error), callbacks []Callback[T]) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		f.value, f.err = fn()
		close(f.done)
		for _, cb := range callbacks {
			if cb != nil {
				cb(f.err, f.value)
			}
		}
	}()
	return f
}

// Value is the result of Async.Get.
type Value struct {
	Data  string
	Found bool
}

// Async runs Store operations in the background. Each method returns a
// Future and also calls any supplied callbacks once the operation finishes.
type Async struct {
	store *Store
}

// NewAsync wraps store.
func NewAsync(store *Store) *Async {
	return &Async{store: store}
}

// Store returns the wrapped store.
func (a *Async) Store() *Store {
	return a.store
}

// Set runs Store.Set.
func (a *Async) Set(ctx context.Context, key, value string, cb ...Callback[struct{}]) *Future[struct{}] {
	return goFuture(func() (struct{}, error) {
		return struct{}{}, a.store.Set(ctx, key, value)
	}, cb)
}

// Get runs Store.Get.
func (a *Async) Get(ctx context.Context, key string, cb ...Callback[Value]) *Future[Value] {
	return goFuture(func() (Value, error) {
		data, ok, err := a.store.Get(ctx, key)
		return Value{Data: data, Found: ok}, err
	}, cb)
}

// Remove runs Store.Remove.
func (a *Async) Remove(ctx context.Context, key string, cb ...Callback[struct{}]) *Future[struct{}] {
	return goFuture(func() (struct{}, error) {
		return struct{}{}, a.store.Remove(ctx, key)
	}, cb)
}

// ListKeys runs Store.ListKeys.
func (a *Async) ListKeys(ctx context.Context, cb ...Callback[[]string]) *Future[[]string] {
	return goFuture(func() ([]string, error) {
		return a.store.ListKeys(ctx)
	}, cb)
}
