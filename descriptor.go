// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

import (
	"fmt"
	"reflect"
	"sync"
)

// Member is one entry of a reflection descriptor (C3): a stable textual
// name and an accessor reaching into an instance of the described type.
// Get is nil for a placeholder entry (spec.md: "a reflectable type with no
// data"), which still occupies a slot in the descriptor's Class/no-member
// round trip but contributes nothing to save/load.
//
// This mirrors original_source/include/common/reflection.h's
// reflection_impl (a member pointer, a name, an optional description) far
// more directly than the teacher's struct-tag scanning does — the source
// library builds its member list from an explicit macro-driven list, not
// by inspecting fields at runtime, and Go's nearest equivalent to "list the
// members once, explicitly" is a constructor function the caller calls
// with one entry per member.
type Member struct {
	Name string
	Doc  string
	// Get returns, given a pointer to the described type, an addressable
	// pointer to the member's storage, boxed as any. nil for placeholders.
	Get func(obj any) any
}

// Field builds a Member for field F of struct T.
func Field[T, F any](name string, get func(*T) *F) Member {
	return Member{Name: name, Get: func(o any) any { return get(o.(*T)) }}
}

// FieldDoc is Field with an attached description (spec's reflection_impl
// carries one; round-tripping never uses it, it exists for introspection).
func FieldDoc[T, F any](name, doc string, get func(*T) *F) Member {
	return Member{Name: name, Doc: doc, Get: func(o any) any { return get(o.(*T)) }}
}

// Placeholder declares a named member with no backing storage, for
// reflectable types that carry no data of their own.
func Placeholder(name string) Member {
	return Member{Name: name}
}

// Descriptor is the compile-time (here: registered-once-at-init-time)
// ordered list of a reflectable type's members.
type Descriptor struct {
	TypeName string
	Members  []Member
}

var (
	descriptorsMu sync.RWMutex
	descriptors   = make(map[reflect.Type]*Descriptor)
)

func registerDescriptor(t reflect.Type, d *Descriptor) {
	descriptorsMu.Lock()
	defer descriptorsMu.Unlock()
	if _, exists := descriptors[t]; exists {
		panic(fmt.Sprintf("serialization: %s already has a registered descriptor", t))
	}
	descriptors[t] = d
}

func describeOf(t reflect.Type) (*Descriptor, bool) {
	descriptorsMu.RLock()
	defer descriptorsMu.RUnlock()
	d, ok := descriptors[t]
	return d, ok
}

// Describe registers T's reflection descriptor: an ordered list of members,
// each a (name, accessor) pair. Call it once, typically from an init()
// function, before any Save/Load involving T.
func Describe[T any](members ...Member) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	registerDescriptor(t, &Descriptor{TypeName: t.String(), Members: members})
}

// DescribeDerived registers Derived's descriptor as Base's descriptor
// (which must already be registered) concatenated with Derived's own
// members, parent-first, in that order — spec.md §3's "concatenation of
// B's descriptor and T's own added entries". parentOf extracts the
// embedded Base field's address from a *Derived.
func DescribeDerived[Derived, Base any](parentOf func(*Derived) *Base, own ...Member) {
	baseType := reflect.TypeOf((*Base)(nil)).Elem()
	base, ok := describeOf(baseType)
	if !ok {
		panic(fmt.Sprintf("serialization: %s has no registered descriptor; Describe it before its derived types", baseType))
	}

	adapted := make([]Member, 0, len(base.Members)+len(own))
	for _, m := range base.Members {
		m := m
		adapted = append(adapted, Member{
			Name: m.Name,
			Doc:  m.Doc,
			Get:  adaptGet[Derived](m.Get, parentOf),
		})
	}
	adapted = append(adapted, own...)

	t := reflect.TypeOf((*Derived)(nil)).Elem()
	registerDescriptor(t, &Descriptor{TypeName: t.String(), Members: adapted})
}

// adaptGet rebases a base Member's Get through parentOf so it reads from
// the embedded Base field inside a *Derived instead of a *Base directly.
// A nil get (a placeholder member) stays nil rather than being wrapped in
// a closure that returns untyped nil, so saveAggregate/loadAggregate's
// `m.Get == nil` placeholder check still sees a real nil and skips it
// instead of dereferencing a zero reflect.Value.
func adaptGet[Derived, Base any](get func(obj any) any, parentOf func(*Derived) *Base) func(obj any) any {
	if get == nil {
		return nil
	}
	return func(o any) any {
		d := o.(*Derived)
		return get(parentOf(d))
	}
}

// Initializer is the user-overridable hook C3 calls after a reflectable's
// members have all been loaded (never on save). It may recompute derived
// fields, re-validate invariants, or register the object externally.
type Initializer interface {
	Initialize() error
}
