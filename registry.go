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

// Registry is the polymorphic type registry (C5): a process-wide table
// mapping a type-identity string to the concrete reflect.Type it names,
// one independent table per format (spec §4.5: "the registry is not a
// single global table; each archive format owns its own").
//
// original_source/include/common/type_registry.h keys its table on the
// same string and stores a pair of bespoke save/load function pointers
// per type, because C++ template instantiation means each registered
// type needs its own compiled callback. Go's traversal (engine.go) is
// already runtime-reflective for any type, so the callback collapses to
// "the concrete reflect.Type": runLoad below constructs a fresh value of
// that type, and runSave/runLoad hand values to the same
// saveValue/loadValue the rest of the engine uses, rather than storing a
// bespoke closure per type.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]reflect.Type
	onDup   DuplicateRegistrationPolicy
}

func newRegistry() *Registry {
	return &Registry{entries: make(map[string]reflect.Type)}
}

// Per-format registries, mirroring the three independent archiver_wrapper
// specializations in the source (one registry instance per archive type).
var (
	JSONRegistry   = newRegistry()
	XMLRegistry    = newRegistry()
	BinaryRegistry = newRegistry()
)

func registryFor(f Format) *Registry {
	switch f {
	case FormatJSON:
		return JSONRegistry
	case FormatXML:
		return XMLRegistry
	case FormatBinary:
		return BinaryRegistry
	default:
		panic(fmt.Sprintf("serialization: unknown format %d", f))
	}
}

// SetDuplicatePolicy controls what happens when the same type-identity
// string is registered twice in this registry. The default is to panic
// (spec §4.5's "registering the same name twice is a programming error").
func (r *Registry) SetDuplicatePolicy(p DuplicateRegistrationPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDup = p
}

// Register associates name with t. Behavior on a name collision follows
// the registry's DuplicateRegistrationPolicy.
func (r *Registry) Register(name string, t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[name]; ok {
		switch r.onDup {
		case KeepFirstRegistration:
			return
		case KeepLastRegistration:
			r.entries[name] = t
			return
		default:
			panic(fmt.Sprintf("serialization: %q already registered for type %s", name, existing))
		}
	}
	r.entries[name] = t
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

func (r *Registry) lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.entries[name]
	return t, ok
}

// runSave invokes the concrete type's save logic: concrete holds the
// dynamic value behind the owning interface (spec §4.5's "invoke the
// save-direction callback").
func (r *Registry) runSave(ctx *Context, a Archive, path string, concrete reflect.Value) error {
	for concrete.Kind() == reflect.Ptr {
		concrete = concrete.Elem()
	}
	return saveValue(ctx, a, path, concrete)
}

// runLoad invokes the concrete type's load logic, constructing a fresh
// value of the registered type and returning it addressed as the
// registry's pointer kind (*T, matching how owned-shared handles store
// their pointee).
func (r *Registry) runLoad(ctx *Context, a Archive, path, name string) (reflect.Value, error) {
	t, ok := r.lookup(name)
	if !ok {
		return reflect.Value{}, fault(ErrRegistryNotFound, path, fmt.Errorf("%q", name))
	}
	nv := reflect.New(t) // *T, addressable Elem()
	if err := loadValue(ctx, a, path, nv.Elem()); err != nil {
		return reflect.Value{}, err
	}
	return nv, nil
}

// RegisterTypeForAllFormats registers concrete type T under its
// type-identity string in all three format registries at once — the
// single entry point spec §4.5 describes ("the library provides one
// registration call that updates every format's table together").
func RegisterTypeForAllFormats[T any]() {
	t := reflect.TypeOf((*T)(nil)).Elem()
	name := concreteTypeName(t)
	JSONRegistry.Register(name, t)
	XMLRegistry.Register(name, t)
	BinaryRegistry.Register(name, t)
}
