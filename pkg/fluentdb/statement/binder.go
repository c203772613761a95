package statement

import (
	"fmt"
	"reflect"
)

// TypedNull is a null binding that still declares its wire type. A null
// carries no value the driver could derive a type from, so the declared
// type is mandatory and transmitted as a typed nil.
type TypedNull struct {
	Type reflect.Type
}

// Null declares a typed null binding.
func Null[T any]() TypedNull {
	return TypedNull{Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// NullOf declares a typed null binding for a runtime type.
func NullOf(t reflect.Type) TypedNull {
	return TypedNull{Type: t}
}

// arg converts the null into the typed nil pointer sent to the driver.
func (n TypedNull) arg() any {
	if n.Type == nil {
		return nil
	}

	return reflect.Zero(reflect.PointerTo(n.Type)).Interface()
}

// binder accumulates placeholder bindings for one statement. Placeholders
// are addressed either by name ("$1"-style or a driver-native token) or by
// 0-based position; one statement must not mix the two schemes. Binding
// the same placeholder twice overwrites the previous value.
type binder struct {
	named      map[string]any
	positional map[int]any
	err        error
}

func (b *binder) bind(identifier, value any) {
	if b.err != nil {
		return
	}

	switch id := identifier.(type) {
	case string:
		if id == "" {
			b.err = fmt.Errorf("%w: empty placeholder name", ErrInvalidSpecification)
			return
		}

		if b.positional != nil {
			b.err = fmt.Errorf("%w: cannot mix named and positional bindings", ErrInvalidSpecification)
			return
		}

		if b.named == nil {
			b.named = make(map[string]any)
		}

		b.named[id] = value
	case int:
		if id < 0 {
			b.err = fmt.Errorf("%w: negative bind position %d", ErrInvalidSpecification, id)
			return
		}

		if b.named != nil {
			b.err = fmt.Errorf("%w: cannot mix named and positional bindings", ErrInvalidSpecification)
			return
		}

		if b.positional == nil {
			b.positional = make(map[int]any)
		}

		b.positional[id] = value
	default:
		b.err = fmt.Errorf("%w: placeholder identifier must be string or int, got %T", ErrInvalidSpecification, identifier)
	}
}

func (b *binder) bindNull(identifier any, null TypedNull) {
	if b.err != nil {
		return
	}

	if null.Type == nil {
		b.err = fmt.Errorf("%w: null binding requires a declared type", ErrInvalidSpecification)
		return
	}

	b.bind(identifier, null)
}

// bindingArg resolves a bound value into the argument handed to the driver.
// Untyped nils are rejected; nulls must come through TypedNull.
func bindingArg(value any) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil value bound without a declared type, use Null", ErrInvalidSpecification)
	}

	if n, ok := value.(TypedNull); ok {
		if n.Type == nil {
			return nil, fmt.Errorf("%w: null binding requires a declared type", ErrInvalidSpecification)
		}

		return n.arg(), nil
	}

	return value, nil
}
