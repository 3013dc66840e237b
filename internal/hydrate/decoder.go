// Package hydrate turns store subtrees (maps, slices and scalars) into typed
// Go values.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-stores/internal/tree"
)

// Context identifies the store location a value was read from.
type Context struct {
	Path string
}

// PreHook rewrites the raw subtree before decoding. Returning nil keeps the
// current value.
type PreHook func(Context, any) (any, error)

// PostHook adjusts or validates the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the JSON decoding step.
type CustomDecoder[T any] func(Context, any) (T, error)

type DecoderOption[T any] func(*Decoder[T])

// Decoder runs pre-hooks, a decode step and post-hooks in that order.
type Decoder[T any] struct {
	pre    []PreHook
	post   []PostHook[T]
	json   []func(*json.Decoder)
	custom CustomDecoder[T]
}

func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithDecoderConfig tunes the json.Decoder used by the default decode step.
func WithDecoderConfig[T any](configure func(*json.Decoder)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if configure != nil {
			d.json = append(d.json, configure)
		}
	}
}

// WithUseNumber keeps numbers as json.Number in untyped destinations.
func WithUseNumber[T any]() DecoderOption[T] {
	return WithDecoderConfig[T]((*json.Decoder).UseNumber)
}

// WithDisallowUnknownFields rejects object keys T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return WithDecoderConfig[T]((*json.Decoder).DisallowUnknownFields)
}

func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts value into a T. Hooks work on a deep copy, so value and
// the store it came from are never mutated.
func (d *Decoder[T]) Decode(ctx Context, value any) (T, error) {
	var zero T
	current := tree.Clone(value)
	for _, hook := range d.pre {
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook at %q: %w", ctx.Path, err)
		}
		if next != nil {
			current = next
		}
	}

	result, err := d.decode(ctx, current)
	if err != nil {
		return zero, err
	}

	for _, hook := range d.post {
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook at %q: %w", ctx.Path, err)
		}
	}
	return result, nil
}

func (d *Decoder[T]) decode(ctx Context, value any) (T, error) {
	var out T
	if d.custom != nil {
		decoded, err := d.custom(ctx, value)
		if err != nil {
			return out, fmt.Errorf("hydrate: custom decoder at %q: %w", ctx.Path, err)
		}
		return decoded, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return out, fmt.Errorf("hydrate: encode %q: %w", ctx.Path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	for _, configure := range d.json {
		configure(dec)
	}
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("hydrate: decode %q: %w", ctx.Path, err)
	}
	return out, nil
}
