package types

// Result carries either a value or a classified failure. Pipeline stages
// return a Result instead of panicking or returning bare errors so the
// caller can dispatch on the failure kind explicitly.
type Result[T any] struct {
	Value T
	Err   *AppError
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a classified failure.
func Fail[T any](err *AppError) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Kind returns the failure kind, or KindNone on success.
func (r Result[T]) Kind() FailureKind {
	if r.Err == nil {
		return KindNone
	}
	return r.Err.Kind()
}
