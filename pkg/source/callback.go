package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// errNoResult is returned when a callback resolver signals completion
// without a path or an error.
var errNoResult = errors.New("resolver completed without a result")

// CallbackFunc is a resolver that reports its result through done instead
// of returning it. done may be called from any goroutine.
type CallbackFunc func(base, request string, done func(path string, err error))

// FromCallback adapts a callback style resolver to Resolver. Only the first
// call to done is honored; later calls are ignored. Resolve returns when done
// is called or ctx ends, whichever happens first.
func FromCallback(fn CallbackFunc) Resolver {
	return ResolverFunc(func(ctx context.Context, base, request string) (string, error) {
		type result struct {
			path string
			err  error
		}
		ch := make(chan result, 1)
		var once sync.Once
		done := func(path string, err error) {
			once.Do(func() {
				if path == "" && err == nil {
					err = errNoResult
				}
				ch <- result{path: path, err: err}
			})
		}

		go func() {
			defer func() {
				if r := recover(); r != nil {
					done("", &panicError{value: r})
				}
			}()
			fn(base, request, done)
		}()

		select {
		case res := <-ch:
			return res.path, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("resolver panicked: %v", e.value)
}
