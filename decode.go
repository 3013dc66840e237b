package stores

import (
	"fmt"

	"github.com/goliatone/go-stores/internal/hydrate"
)

// DecodeOption configures Decode.
type DecodeOption[T any] func(*decodeConfig[T])

type decodeConfig[T any] struct {
	opts []hydrate.DecoderOption[T]
}

// DecodeStrict rejects fields that T does not declare.
func DecodeStrict[T any]() DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		cfg.opts = append(cfg.opts, hydrate.WithDisallowUnknownFields[T]())
	}
}

// DecodeValidate runs check on the decoded value.
func DecodeValidate[T any](check func(path Pointer, value *T) error) DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		if check == nil {
			return
		}
		cfg.opts = append(cfg.opts, hydrate.WithPostHook[T](func(ctx hydrate.Context, value *T) error {
			p, err := NewPointer(ctx.Path)
			if err != nil {
				return err
			}
			return check(p, value)
		}))
	}
}

// Decode reads the subtree at p into a T. An absent value fails with
// ErrInvalidPath.
func Decode[T any](store *Store, p Pointer, opts ...DecodeOption[T]) (T, error) {
	var zero T
	if store == nil {
		return zero, ErrNilStore
	}
	value, ok, err := store.Lookup(p)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("%w: no value at %q", ErrInvalidPath, p)
	}
	cfg := decodeConfig[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	out, err := hydrate.NewDecoder[T](cfg.opts...).Decode(hydrate.Context{Path: p.String()}, value)
	if err != nil {
		return zero, fmt.Errorf("stores: decode %q: %w", p, err)
	}
	return out, nil
}
