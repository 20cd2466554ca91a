package registry

import (
	"encoding/json"
	"errors"
	"testing"

	apperrors "projector/internal/errors"
)

func double() Function {
	return Unary(func(v any) (any, error) { return v.(float64) * 2, nil })
}

func TestResolve(t *testing.T) {
	t.Parallel()

	reg := Registry{"double": double()}
	direct := Binary(func(a, b any) (any, error) { return a, nil })

	tests := []struct {
		name      string
		ref       Ref
		wantArity int
		wantErr   error
	}{
		{name: "by_name", ref: Name("double"), wantArity: 1},
		{name: "direct", ref: Direct(direct), wantArity: 2},
		{name: "unknown_name", ref: Name("triple"), wantErr: apperrors.ErrUnknownFunction},
		{name: "zero_ref", ref: Ref{}, wantErr: apperrors.ErrInvalidReference},
		{name: "direct_zero_function", ref: Direct(Function{}), wantErr: apperrors.ErrInvalidReference},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := Resolve(reg, tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve(%v) err=%v, want %v", tt.ref, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%v) unexpected err: %v", tt.ref, err)
			}
			if f.Arity() != tt.wantArity {
				t.Fatalf("Resolve(%v).Arity()=%d, want %d", tt.ref, f.Arity(), tt.wantArity)
			}
		})
	}
}

func TestResolve_NilRegistryByName(t *testing.T) {
	t.Parallel()

	if _, err := Resolve(nil, Name("sum")); !errors.Is(err, apperrors.ErrUnknownFunction) {
		t.Fatalf("Resolve(nil, sum) err=%v, want unknown function", err)
	}
}

func TestFunction_CallChecksArity(t *testing.T) {
	t.Parallel()

	f := double()
	got, err := f.Call(2.5)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != 5.0 {
		t.Fatalf("Call(2.5)=%v, want 5", got)
	}

	if _, err := f.Call(1.0, 2.0); !errors.Is(err, apperrors.ErrArity) {
		t.Fatalf("Call with 2 args err=%v, want arity error", err)
	}
	if _, err := (Function{}).Call(); !errors.Is(err, apperrors.ErrInvalidReference) {
		t.Fatalf("zero Call err=%v, want invalid reference", err)
	}
}

func TestFunction_Bind(t *testing.T) {
	t.Parallel()

	concat := New(3, func(args ...any) (any, error) {
		return args[0].(string) + args[1].(string) + args[2].(string), nil
	})

	bound, err := concat.Bind("a", "b")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if bound.Arity() != 1 {
		t.Fatalf("bound.Arity()=%d, want 1", bound.Arity())
	}
	got, err := bound.Call("c")
	if err != nil {
		t.Fatalf("bound.Call: %v", err)
	}
	if got != "abc" {
		t.Fatalf("bound.Call(c)=%q, want %q", got, "abc")
	}

	// Binding twice from the same base must not share argument storage.
	other, _ := concat.Bind("x", "y")
	got2, _ := other.Call("z")
	got3, _ := bound.Call("c")
	if got2 != "xyz" || got3 != "abc" {
		t.Fatalf("independent binds got (%v, %v), want (xyz, abc)", got2, got3)
	}

	if _, err := concat.Bind(1, 2, 3, 4); !errors.Is(err, apperrors.ErrArity) {
		t.Fatalf("over-binding err=%v, want arity error", err)
	}
}

func TestRef_TextRoundTrip(t *testing.T) {
	t.Parallel()

	var cfg struct {
		Fn Ref `json:"fn"`
	}
	if err := json.Unmarshal([]byte(`{"fn":"linear"}`), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Fn.Name() != "linear" || cfg.Fn.IsDirect() {
		t.Fatalf("decoded ref=%v, want by-name linear", cfg.Fn)
	}

	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"fn":"linear"}` {
		t.Fatalf("Marshal=%s, want {\"fn\":\"linear\"}", b)
	}

	if _, err := Direct(double()).MarshalText(); err == nil {
		t.Fatalf("expected error marshalling a direct ref")
	}
}

func TestRegistry_WithIsPure(t *testing.T) {
	t.Parallel()

	base := Registry{"a": double()}
	over := Registry{"b": double()}
	merged := base.With(over)

	if len(base) != 1 || len(over) != 1 {
		t.Fatalf("With mutated inputs: base=%v over=%v", base.Names(), over.Names())
	}
	if got := merged.Names(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("merged.Names()=%v, want [a b]", got)
	}
}
