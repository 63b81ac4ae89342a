// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

import (
	"fmt"
	"reflect"
)

// Category is one of the eleven value categories spec.md §4.1 classifies
// any type into. Unlike the source language, Go cannot reject an
// unsupported type at compile time (there is no concept/SFINAE
// mechanism); classify returns ErrUnsupported instead, and Save/Load
// report it as an error when the traversal reaches such a type.
type Category int

const (
	CategoryPrimitive Category = iota
	CategorySequence
	CategoryMapLike
	CategorySetLike
	CategoryArray
	CategoryTuple
	CategoryOptional
	CategoryVariant
	CategoryUniquePointer
	CategorySharedPointer
	CategoryAggregate
	CategoryRawPointer
)

func (c Category) String() string {
	switch c {
	case CategoryPrimitive:
		return "primitive"
	case CategorySequence:
		return "sequence"
	case CategoryMapLike:
		return "map-like"
	case CategorySetLike:
		return "set-like"
	case CategoryArray:
		return "array"
	case CategoryTuple:
		return "tuple-like"
	case CategoryOptional:
		return "optional-like"
	case CategoryVariant:
		return "variant-like"
	case CategoryUniquePointer:
		return "owned-unique"
	case CategorySharedPointer:
		return "owned-shared"
	case CategoryAggregate:
		return "reflectable-aggregate"
	case CategoryRawPointer:
		return "pointer-to-reflectable"
	default:
		return "unknown"
	}
}

var (
	textPrimitiveType = reflect.TypeOf((*TextPrimitive)(nil)).Elem()
	tupleLikeType     = reflect.TypeOf((*TupleLike)(nil)).Elem()
	optionalLikeType  = reflect.TypeOf((*OptionalLike)(nil)).Elem()
	variantType       = reflect.TypeOf((*Variant)(nil)).Elem()
	rawRefType        = reflect.TypeOf((*rawRef)(nil)).Elem()
	initializerType   = reflect.TypeOf((*Initializer)(nil)).Elem()

	unitType = reflect.TypeOf(Unit{})
	charType = reflect.TypeOf(Char(0))
)

// implementsViaPtr reports whether t or *t implements iface — mirrors the
// teacher's typeRegistry.lookup, which always tries both a type and a
// pointer to it (bson/registry.go: "if t.Kind() != reflect.Ptr { t =
// reflect.PtrTo(t) }").
func implementsViaPtr(t reflect.Type, iface reflect.Type) bool {
	if t.Implements(iface) {
		return true
	}
	if t.Kind() != reflect.Ptr {
		return reflect.PointerTo(t).Implements(iface)
	}
	return false
}

func isPrimitiveKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// isSetLike reports whether a map type has no meaningful mapped value
// (spec.md: "else set-like"). The idiomatic Go shape for a set is
// map[K]struct{}.
func isSetLike(t reflect.Type) bool {
	elem := t.Elem()
	return elem.Kind() == reflect.Struct && elem.NumField() == 0
}

// classify categorizes t (a static type, e.g. a struct field's type) into
// exactly one of the eleven categories, priority order exactly as spec.md
// §4.1 lists them.
func classify(t reflect.Type) (Category, error) {
	if isPrimitiveKind(t.Kind()) || t == unitType || t == charType || implementsViaPtr(t, textPrimitiveType) {
		return CategoryPrimitive, nil
	}

	switch t.Kind() {
	case reflect.Slice:
		return CategorySequence, nil
	case reflect.Array:
		return CategoryArray, nil
	case reflect.Map:
		if isSetLike(t) {
			return CategorySetLike, nil
		}
		return CategoryMapLike, nil
	}

	// Variant's method set includes TupleLike's (Arity, ElemPtr(int)), so a
	// variant type must be kept out of the tuple-like branch explicitly.
	if implementsViaPtr(t, tupleLikeType) && !implementsViaPtr(t, variantType) {
		return CategoryTuple, nil
	}
	if implementsViaPtr(t, optionalLikeType) {
		return CategoryOptional, nil
	}
	if implementsViaPtr(t, variantType) {
		return CategoryVariant, nil
	}
	if implementsViaPtr(t, rawRefType) {
		return CategoryRawPointer, nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		return CategoryUniquePointer, nil
	case reflect.Interface:
		return CategorySharedPointer, nil
	case reflect.Struct:
		if _, ok := describeOf(t); ok {
			return CategoryAggregate, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrUnsupported, t)
}

// concreteTypeName is the type-identity string (spec.md's "canonical,
// demangled, fully qualified name"): Go's reflect already hands back a
// fully qualified name, so no demangling step is needed, just a pointer
// strip so a type has one identity regardless of indirection.
func concreteTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
