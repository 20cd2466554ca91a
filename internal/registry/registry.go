// Package registry resolves function references against caller-supplied
// function tables.
//
// A Ref is either a name looked up in a Registry or a Function supplied
// directly. Every Function carries a declared arity so call sites can reject
// mismatches before any data is processed.
package registry

import (
	"fmt"
	"sort"

	apperrors "projector/internal/errors"
)

// Fn is the calling convention shared by every registered function.
type Fn func(args ...any) (any, error)

// Function is a callable with a declared arity.
//
// The zero Function is invalid; construct with New, Unary or Binary.
type Function struct {
	arity int
	fn    Fn
}

// New wraps fn with the given arity.
//
// Panics:
//   - If arity is negative or fn is nil.
func New(arity int, fn Fn) Function {
	if arity < 0 {
		panic("registry: negative arity")
	}
	if fn == nil {
		panic("registry: nil function")
	}
	return Function{arity: arity, fn: fn}
}

// Unary wraps a one-argument function.
func Unary(fn func(v any) (any, error)) Function {
	return New(1, func(args ...any) (any, error) { return fn(args[0]) })
}

// Binary wraps a two-argument function.
func Binary(fn func(a, b any) (any, error)) Function {
	return New(2, func(args ...any) (any, error) { return fn(args[0], args[1]) })
}

// Arity returns the declared number of arguments.
func (f Function) Arity() int { return f.arity }

// IsZero reports whether f was never constructed.
func (f Function) IsZero() bool { return f.fn == nil }

// Call invokes f after checking the argument count.
//
// Errors:
//   - ARITY when len(args) differs from the declared arity.
//   - INVALID_REFERENCE when f is the zero Function.
//   - Whatever the wrapped function returns.
func (f Function) Call(args ...any) (any, error) {
	if f.fn == nil {
		return nil, apperrors.NewInvalidReferenceError("call of zero function")
	}
	if len(args) != f.arity {
		return nil, apperrors.NewArityError("call", len(args), f.arity)
	}
	return f.fn(args...)
}

// Bind fixes the leading arguments of f and returns a function that takes
// the remaining ones.
//
// Bind never mutates f. Binding more arguments than f accepts is an arity error.
func (f Function) Bind(prefix ...any) (Function, error) {
	if f.fn == nil {
		return Function{}, apperrors.NewInvalidReferenceError("bind of zero function")
	}
	if len(prefix) > f.arity {
		return Function{}, apperrors.NewArityError("bind", len(prefix), f.arity)
	}
	bound := append([]any(nil), prefix...)
	inner := f.fn
	return New(f.arity-len(bound), func(rest ...any) (any, error) {
		args := make([]any, 0, len(bound)+len(rest))
		args = append(args, bound...)
		args = append(args, rest...)
		return inner(args...)
	}), nil
}

type refKind uint8

const (
	refInvalid refKind = iota
	refByName
	refDirect
)

// Ref is a tagged reference to a function: ByName or Direct.
//
// The zero Ref is neither and fails to resolve. Refs decode from a plain
// string in JSON and YAML configs.
type Ref struct {
	kind refKind
	name string
	fn   Function
}

// Name returns a by-name reference.
func Name(name string) Ref { return Ref{kind: refByName, name: name} }

// Direct returns a reference holding f itself.
func Direct(f Function) Ref { return Ref{kind: refDirect, fn: f} }

// IsZero reports whether r is the zero Ref.
func (r Ref) IsZero() bool { return r.kind == refInvalid }

// IsDirect reports whether r holds a function value.
func (r Ref) IsDirect() bool { return r.kind == refDirect }

// Name returns the referenced name, or "" for direct and zero refs.
func (r Ref) Name() string {
	if r.kind != refByName {
		return ""
	}
	return r.name
}

func (r Ref) String() string {
	switch r.kind {
	case refByName:
		return r.name
	case refDirect:
		return "<direct>"
	default:
		return "<invalid>"
	}
}

// UnmarshalText decodes a by-name reference. An empty string leaves the zero Ref.
func (r *Ref) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*r = Ref{}
		return nil
	}
	*r = Name(string(b))
	return nil
}

// MarshalText encodes a by-name reference. Direct refs have no text form.
func (r Ref) MarshalText() ([]byte, error) {
	switch r.kind {
	case refByName:
		return []byte(r.name), nil
	case refInvalid:
		return nil, nil
	default:
		return nil, fmt.Errorf("registry: direct function reference cannot be encoded")
	}
}

// Registry maps names to functions.
type Registry map[string]Function

// Names returns the registered names in sorted order.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// With returns a new Registry holding r's entries overlaid by other's.
func (r Registry) With(other Registry) Registry {
	out := make(Registry, len(r)+len(other))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Resolve turns ref into a Function.
//
// Direct refs are returned unchanged; by-name refs are looked up in reg.
//
// Errors:
//   - UNKNOWN_FUNCTION when the name is not in reg.
//   - INVALID_REFERENCE for the zero Ref or a direct ref holding the zero Function.
func Resolve(reg Registry, ref Ref) (Function, error) {
	switch ref.kind {
	case refDirect:
		if ref.fn.IsZero() {
			return Function{}, apperrors.NewInvalidReferenceError("direct reference holds no function")
		}
		return ref.fn, nil
	case refByName:
		f, ok := reg[ref.name]
		if !ok || f.IsZero() {
			return Function{}, apperrors.NewUnknownFunctionError(ref.name)
		}
		return f, nil
	default:
		return Function{}, apperrors.NewInvalidReferenceError("reference is neither a name nor a function")
	}
}
