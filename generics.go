// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

// This file gives the classifier (C1) something concrete to recognize for
// the value categories spec.md describes abstractly (optional-like,
// tuple-like, variant-like, raw pointer-to-reflectable) but that Go has no
// builtin for. Each is a small generic wrapper implementing a marker
// interface; the engine (C4) recovers an addressable pointer to the payload
// through that interface rather than copying boxed interface{} values
// around, so nested aggregates still decode in place.

// OptionalLike is implemented by Optional[T]. The classifier (priority 5)
// recognizes any type implementing it before falling through to
// variant/owned-handle/aggregate checks.
type OptionalLike interface {
	HasValue() bool
	SetHasValue(bool)
	// ElemPtr returns a non-nil *T boxed as any, valid to read from or
	// write into regardless of HasValue.
	ElemPtr() any
}

// Optional holds zero or one value of type T.
type Optional[T any] struct {
	has   bool
	value T
}

// Some returns a populated Optional.
func Some[T any](v T) Optional[T] { return Optional[T]{has: true, value: v} }

// None returns an empty Optional.
func None[T any]() Optional[T] { return Optional[T]{} }

// Get reports the held value and whether one is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.has }

func (o *Optional[T]) HasValue() bool      { return o.has }
func (o *Optional[T]) SetHasValue(b bool)  { o.has = b }
func (o *Optional[T]) ElemPtr() any        { return &o.value }

// TupleLike is implemented by Pair and Triple. The classifier (priority 4)
// recognizes any type implementing it.
type TupleLike interface {
	Arity() int
	// ElemPtr returns the i-th element's address boxed as any.
	ElemPtr(i int) any
}

// Pair is a tuple-like of arity 2.
type Pair[A, B any] struct {
	First  A
	Second B
}

func (p *Pair[A, B]) Arity() int { return 2 }

func (p *Pair[A, B]) ElemPtr(i int) any {
	switch i {
	case 0:
		return &p.First
	case 1:
		return &p.Second
	default:
		panic("serialization: Pair index out of range")
	}
}

// Triple is a tuple-like of arity 3.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

func (t *Triple[A, B, C]) Arity() int { return 3 }

func (t *Triple[A, B, C]) ElemPtr(i int) any {
	switch i {
	case 0:
		return &t.First
	case 1:
		return &t.Second
	case 2:
		return &t.Third
	default:
		panic("serialization: Triple index out of range")
	}
}

// Variant is implemented by Variant2/Variant3/Variant4. The classifier
// (priority 6) recognizes any type implementing it.
//
// Each alternative gets its own field rather than a single raw-storage
// slot: Go has no union type, and every Go value is default-constructible,
// so the non-default-constructible-alternative/scratch-buffer-with-
// drop-guard machinery spec.md §4.4 and §9 describe for the source
// language has no Go equivalent to build (see DESIGN.md).
type Variant interface {
	Arity() int
	// Tag returns the active alternative's index, or -1 if none is active
	// (a value-less sum, rejected on save with ErrInvalidVariant).
	Tag() int
	// SetTag marks alternative i as active, in preparation for loading into
	// ElemPtr(i).
	SetTag(i int)
	// ElemPtr returns alternative i's address boxed as any.
	ElemPtr(i int) any
}

// Variant2 is a sum type over two alternatives.
type Variant2[A, B any] struct {
	tag int
	a   A
	b   B
}

// NoVariant2 returns a Variant2 with no active alternative.
func NoVariant2[A, B any]() Variant2[A, B] { return Variant2[A, B]{tag: -1} }

// NewVariant2A returns a Variant2 active on its first alternative.
func NewVariant2A[A, B any](v A) Variant2[A, B] { return Variant2[A, B]{tag: 0, a: v} }

// NewVariant2B returns a Variant2 active on its second alternative.
func NewVariant2B[A, B any](v B) Variant2[A, B] { return Variant2[A, B]{tag: 1, b: v} }

func (v *Variant2[A, B]) Arity() int   { return 2 }
func (v *Variant2[A, B]) Tag() int     { return v.tag }
func (v *Variant2[A, B]) SetTag(i int) { v.tag = i }

func (v *Variant2[A, B]) ElemPtr(i int) any {
	switch i {
	case 0:
		return &v.a
	case 1:
		return &v.b
	default:
		panic("serialization: Variant2 tag out of range")
	}
}

// Variant3 is a sum type over three alternatives.
type Variant3[A, B, C any] struct {
	tag int
	a   A
	b   B
	c   C
}

func NoVariant3[A, B, C any]() Variant3[A, B, C] { return Variant3[A, B, C]{tag: -1} }

func NewVariant3A[A, B, C any](v A) Variant3[A, B, C] { return Variant3[A, B, C]{tag: 0, a: v} }
func NewVariant3B[A, B, C any](v B) Variant3[A, B, C] { return Variant3[A, B, C]{tag: 1, b: v} }
func NewVariant3C[A, B, C any](v C) Variant3[A, B, C] { return Variant3[A, B, C]{tag: 2, c: v} }

func (v *Variant3[A, B, C]) Arity() int   { return 3 }
func (v *Variant3[A, B, C]) Tag() int     { return v.tag }
func (v *Variant3[A, B, C]) SetTag(i int) { v.tag = i }

func (v *Variant3[A, B, C]) ElemPtr(i int) any {
	switch i {
	case 0:
		return &v.a
	case 1:
		return &v.b
	case 2:
		return &v.c
	default:
		panic("serialization: Variant3 tag out of range")
	}
}

// Variant4 is a sum type over four alternatives.
type Variant4[A, B, C, D any] struct {
	tag int
	a   A
	b   B
	c   C
	d   D
}

func NoVariant4[A, B, C, D any]() Variant4[A, B, C, D] { return Variant4[A, B, C, D]{tag: -1} }

func NewVariant4A[A, B, C, D any](v A) Variant4[A, B, C, D] { return Variant4[A, B, C, D]{tag: 0, a: v} }
func NewVariant4B[A, B, C, D any](v B) Variant4[A, B, C, D] { return Variant4[A, B, C, D]{tag: 1, b: v} }
func NewVariant4C[A, B, C, D any](v C) Variant4[A, B, C, D] { return Variant4[A, B, C, D]{tag: 2, c: v} }
func NewVariant4D[A, B, C, D any](v D) Variant4[A, B, C, D] { return Variant4[A, B, C, D]{tag: 3, d: v} }

func (v *Variant4[A, B, C, D]) Arity() int   { return 4 }
func (v *Variant4[A, B, C, D]) Tag() int     { return v.tag }
func (v *Variant4[A, B, C, D]) SetTag(i int) { v.tag = i }

func (v *Variant4[A, B, C, D]) ElemPtr(i int) any {
	switch i {
	case 0:
		return &v.a
	case 1:
		return &v.b
	case 2:
		return &v.c
	case 3:
		return &v.d
	default:
		panic("serialization: Variant4 tag out of range")
	}
}

// rawRef is the marker interface for Ref[T] (spec.md §4.1 category 10: a
// non-owning raw address to a reflectable). The classifier gives it its
// own priority so it is never confused with an owned unique pointer.
type rawRef interface {
	rawRefMarker()
}

// Ref is a non-owning reference to a reflectable value. It may be saved
// (the referent is written in place, as if embedded) but never loaded:
// there is no defined ownership to load into. spec.md describes this as
// "rejected at compile time" in the source language; Go cannot reject it
// before running, so Load returns ErrUnsupported instead.
type Ref[T any] struct {
	Ptr *T
}

// NewRef wraps a non-owning pointer for saving.
func NewRef[T any](p *T) Ref[T] { return Ref[T]{Ptr: p} }

func (Ref[T]) rawRefMarker() {}
