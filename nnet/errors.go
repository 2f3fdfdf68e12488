package nnet

import "fmt"

// ViewCountError indicates that the instance axis of the input cannot be
// split into groups of stride views. This is a configuration bug in the
// caller: views must be grouped contiguously per object.
type ViewCountError struct {
	Views  int
	Stride int
}

func (e ViewCountError) Error() string {
	return fmt.Sprintf("view pool: %d instances not divisible by view stride %d", e.Views, e.Stride)
}

// MethodError indicates an unsupported pooling method string.
type MethodError struct {
	Method string
}

func (e MethodError) Error() string {
	return fmt.Sprintf("view pool: unknown pooling method %q", e.Method)
}

// LayerNotFoundError is returned when an edit names an anchor layer which
// does not exist in the sequence.
type LayerNotFoundError struct {
	Name string
}

func (e LayerNotFoundError) Error() string {
	return fmt.Sprintf("no layer named %q in network", e.Name)
}
