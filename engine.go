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

// Save writes v's full object graph into archive. v is read-only; it
// need not be addressable, unlike Load's target.
func Save(archive Archive, v any, opts ...Option) error {
	ctx := newContext(opts...)
	applyRegistryPolicy(ctx, archive.Format())
	return saveValue(ctx, archive, "$", reflect.ValueOf(v))
}

// Load reads a full object graph out of archive into v, which must be a
// non-nil pointer.
func Load(archive Archive, v any, opts ...Option) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fault(ErrUnsupported, "$", fmt.Errorf("Load target must be a non-nil pointer, got %T", v))
	}
	ctx := newContext(opts...)
	applyRegistryPolicy(ctx, archive.Format())
	return loadValue(ctx, archive, "$", rv.Elem())
}

// applyRegistryPolicy propagates WithOnDuplicateRegistration (when given)
// to the C5 registry this traversal's format will consult, so a caller can
// configure duplicate handling the same way it configures recursion depth,
// without reaching into the package-level registry vars directly.
func applyRegistryPolicy(ctx *Context, format Format) {
	if !ctx.onDuplicateSet {
		return
	}
	registryFor(format).SetDuplicatePolicy(ctx.onDuplicate)
}

func pathIndex(path string, i int) string { return fmt.Sprintf("%s[%d]", path, i) }
func pathChild(path, name string) string  { return path + "." + name }

// addressable returns rv itself if it is already addressable, otherwise
// a fresh addressable copy. Used on the save side, where several
// categories need to call a pointer-receiver method purely to read state
// that was only ever exposed through a *T method set.
func addressable(rv reflect.Value) reflect.Value {
	if rv.CanAddr() {
		return rv
	}
	cp := reflect.New(rv.Type()).Elem()
	cp.Set(rv)
	return cp
}

// saveValue and loadValue are the C4 traversal engine's single recursive
// entry point, dispatching on the category C1 (classify.go) assigns to
// rv's static type — the Go analogue of the source's
// serializer_impl<Archiver, T> partial-specialization set in
// original_source/include/serialization_impl.h, collapsed into one
// switch because Go has no compile-time specialization to hang each
// branch off of.
func saveValue(ctx *Context, a Archive, path string, rv reflect.Value) error {
	if err := ctx.enter(path); err != nil {
		return err
	}
	defer ctx.exit()

	cat, err := classify(rv.Type())
	if err != nil {
		return fault(ErrUnsupported, path, err)
	}

	switch cat {
	case CategoryPrimitive:
		return savePrimitive(a, path, rv)
	case CategorySequence:
		return saveSequence(ctx, a, path, rv)
	case CategoryMapLike:
		return saveMapLike(ctx, a, path, rv)
	case CategorySetLike:
		return saveSetLike(ctx, a, path, rv)
	case CategoryArray:
		return saveArray(ctx, a, path, rv)
	case CategoryTuple:
		return saveTuple(ctx, a, path, rv)
	case CategoryOptional:
		return saveOptional(ctx, a, path, rv)
	case CategoryVariant:
		return saveVariant(ctx, a, path, rv)
	case CategoryUniquePointer:
		return saveUniquePointer(ctx, a, path, rv)
	case CategorySharedPointer:
		return saveSharedPointer(ctx, a, path, rv)
	case CategoryAggregate:
		return saveAggregate(ctx, a, path, rv)
	case CategoryRawPointer:
		return saveRawPointer(ctx, a, path, rv)
	default:
		return fault(ErrUnsupported, path, fmt.Errorf("unhandled category %s", cat))
	}
}

func loadValue(ctx *Context, a Archive, path string, rv reflect.Value) error {
	if err := ctx.enter(path); err != nil {
		return err
	}
	defer ctx.exit()

	cat, err := classify(rv.Type())
	if err != nil {
		return fault(ErrUnsupported, path, err)
	}

	switch cat {
	case CategoryPrimitive:
		return loadPrimitive(a, path, rv)
	case CategorySequence:
		return loadSequence(ctx, a, path, rv)
	case CategoryMapLike:
		return loadMapLike(ctx, a, path, rv)
	case CategorySetLike:
		return loadSetLike(ctx, a, path, rv)
	case CategoryArray:
		return loadArray(ctx, a, path, rv)
	case CategoryTuple:
		return loadTuple(ctx, a, path, rv)
	case CategoryOptional:
		return loadOptional(ctx, a, path, rv)
	case CategoryVariant:
		return loadVariant(ctx, a, path, rv)
	case CategoryUniquePointer:
		return loadUniquePointer(ctx, a, path, rv)
	case CategorySharedPointer:
		return loadSharedPointer(ctx, a, path, rv)
	case CategoryAggregate:
		return loadAggregate(ctx, a, path, rv)
	case CategoryRawPointer:
		return fault(ErrUnsupported, path, fmt.Errorf("pointer-to-reflectable is save-only"))
	default:
		return fault(ErrUnsupported, path, fmt.Errorf("unhandled category %s", cat))
	}
}

var dateType = reflect.TypeOf(Date{})

// --- category 1: primitive --------------------------------------------------

func savePrimitive(a Archive, path string, rv reflect.Value) error {
	t := rv.Type()
	switch {
	case t == unitType:
		return a.WriteNull()
	case t == dateType:
		d := rv.Interface().(Date)
		if a.Format() == FormatJSON {
			return a.WriteInt64(d.unixSeconds())
		}
		return a.WriteString(d.String())
	case t == charType:
		return a.WriteString(rv.Interface().(Char).String())
	case implementsViaPtr(t, textPrimitiveType):
		return saveText(a, rv)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return a.WriteBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.WriteInt64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return a.WriteUint64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return a.WriteFloat64(rv.Float())
	case reflect.String:
		return a.WriteString(rv.String())
	}
	return fault(ErrUnsupported, path, fmt.Errorf("primitive kind %s", rv.Kind()))
}

func saveText(a Archive, rv reflect.Value) error {
	rv = addressable(rv)
	s := rv.Addr().Interface().(TextPrimitive)
	return a.WriteString(s.String())
}

func loadPrimitive(a Archive, path string, rv reflect.Value) error {
	t := rv.Type()
	switch {
	case t == unitType:
		if err := a.ReadNull(); err != nil {
			return fault(ErrDecode, path, err)
		}
		return nil
	case t == dateType:
		d := rv.Addr().Interface().(*Date)
		if a.Format() == FormatJSON {
			sec, err := a.ReadInt64()
			if err != nil {
				return fault(ErrDecode, path, err)
			}
			d.setUnixSeconds(sec)
			return nil
		}
		s, err := a.ReadString()
		if err != nil {
			return fault(ErrDecode, path, err)
		}
		return d.ParseText(s)
	case t == charType:
		s, err := a.ReadString()
		if err != nil {
			return fault(ErrDecode, path, err)
		}
		return rv.Addr().Interface().(*Char).ParseText(s)
	case implementsViaPtr(t, textPrimitiveType):
		s, err := a.ReadString()
		if err != nil {
			return fault(ErrDecode, path, err)
		}
		p, ok := rv.Addr().Interface().(TextPrimitiveParser)
		if !ok {
			return fault(ErrUnsupported, path, fmt.Errorf("%s has no ParseText", t))
		}
		return p.ParseText(s)
	}

	switch rv.Kind() {
	case reflect.Bool:
		v, err := a.ReadBool()
		if err != nil {
			return fault(ErrDecode, path, err)
		}
		rv.SetBool(v)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := a.ReadInt64()
		if err != nil {
			return fault(ErrDecode, path, err)
		}
		rv.SetInt(v)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := a.ReadUint64()
		if err != nil {
			return fault(ErrDecode, path, err)
		}
		rv.SetUint(v)
		return nil
	case reflect.Float32, reflect.Float64:
		v, err := a.ReadFloat64()
		if err != nil {
			return fault(ErrDecode, path, err)
		}
		rv.SetFloat(v)
		return nil
	case reflect.String:
		v, err := a.ReadString()
		if err != nil {
			return fault(ErrDecode, path, err)
		}
		rv.SetString(v)
		return nil
	}
	return fault(ErrUnsupported, path, fmt.Errorf("primitive kind %s", rv.Kind()))
}

// --- category 2: sequence ----------------------------------------------------

func saveSequence(ctx *Context, a Archive, path string, rv reflect.Value) error {
	n := rv.Len()
	if err := a.Resize(n); err != nil {
		return fault(ErrDecode, path, err)
	}
	for i := 0; i < n; i++ {
		if err := saveValue(ctx, a.ChildAt(i), pathIndex(path, i), rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func loadSequence(ctx *Context, a Archive, path string, rv reflect.Value) error {
	n, err := a.Size()
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	rv.Set(reflect.MakeSlice(rv.Type(), n, n))
	for i := 0; i < n; i++ {
		if err := loadValue(ctx, a.ChildAt(i), pathIndex(path, i), rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

// --- category 3a: map-like ---------------------------------------------------

func saveMapLike(ctx *Context, a Archive, path string, rv reflect.Value) error {
	n := rv.Len()
	if err := a.Resize(2 * n); err != nil {
		return fault(ErrDecode, path, err)
	}
	iter := rv.MapRange()
	i := 0
	for iter.Next() {
		if err := saveValue(ctx, a.ChildAt(2*i), pathIndex(path, 2*i), iter.Key()); err != nil {
			return err
		}
		if err := saveValue(ctx, a.ChildAt(2*i+1), pathIndex(path, 2*i+1), iter.Value()); err != nil {
			return err
		}
		i++
	}
	return nil
}

func loadMapLike(ctx *Context, a Archive, path string, rv reflect.Value) error {
	n, err := a.Size()
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	if n%2 != 0 {
		return fault(ErrSizeMismatch, path, fmt.Errorf("map-like sequence has odd length %d", n))
	}
	mt := rv.Type()
	m := reflect.MakeMapWithSize(mt, n/2)
	for i := 0; i < n; i += 2 {
		kv := reflect.New(mt.Key()).Elem()
		if err := loadValue(ctx, a.ChildAt(i), pathIndex(path, i), kv); err != nil {
			return err
		}
		vv := reflect.New(mt.Elem()).Elem()
		if err := loadValue(ctx, a.ChildAt(i+1), pathIndex(path, i+1), vv); err != nil {
			return err
		}
		m.SetMapIndex(kv, vv)
	}
	rv.Set(m)
	return nil
}

// --- category 3b: set-like ---------------------------------------------------

func saveSetLike(ctx *Context, a Archive, path string, rv reflect.Value) error {
	n := rv.Len()
	if err := a.Resize(n); err != nil {
		return fault(ErrDecode, path, err)
	}
	iter := rv.MapRange()
	i := 0
	for iter.Next() {
		if err := saveValue(ctx, a.ChildAt(i), pathIndex(path, i), iter.Key()); err != nil {
			return err
		}
		i++
	}
	return nil
}

func loadSetLike(ctx *Context, a Archive, path string, rv reflect.Value) error {
	n, err := a.Size()
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	mt := rv.Type()
	m := reflect.MakeMapWithSize(mt, n)
	zero := reflect.Zero(mt.Elem())
	for i := 0; i < n; i++ {
		kv := reflect.New(mt.Key()).Elem()
		if err := loadValue(ctx, a.ChildAt(i), pathIndex(path, i), kv); err != nil {
			return err
		}
		m.SetMapIndex(kv, zero)
	}
	rv.Set(m)
	return nil
}

// --- category 4: fixed array --------------------------------------------------

func saveArray(ctx *Context, a Archive, path string, rv reflect.Value) error {
	n := rv.Len()
	if err := a.Resize(n); err != nil {
		return fault(ErrDecode, path, err)
	}
	for i := 0; i < n; i++ {
		if err := saveValue(ctx, a.ChildAt(i), pathIndex(path, i), rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func loadArray(ctx *Context, a Archive, path string, rv reflect.Value) error {
	n, err := a.Size()
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	want := rv.Len()
	if n != want {
		return fault(ErrSizeMismatch, path, fmt.Errorf("array has %d elements, archive declares %d", want, n))
	}
	for i := 0; i < n; i++ {
		if err := loadValue(ctx, a.ChildAt(i), pathIndex(path, i), rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

// --- category 5: tuple-like --------------------------------------------------

func asTupleLike(rv reflect.Value) (TupleLike, error) {
	rv = addressable(rv)
	tl, ok := rv.Addr().Interface().(TupleLike)
	if !ok {
		return nil, fmt.Errorf("%s is not tuple-like", rv.Type())
	}
	return tl, nil
}

func saveTuple(ctx *Context, a Archive, path string, rv reflect.Value) error {
	tl, err := asTupleLike(rv)
	if err != nil {
		return fault(ErrUnsupported, path, err)
	}
	k := tl.Arity()
	if err := a.Resize(k); err != nil {
		return fault(ErrDecode, path, err)
	}
	for i := 0; i < k; i++ {
		ev := reflect.ValueOf(tl.ElemPtr(i)).Elem()
		if err := saveValue(ctx, a.ChildAt(i), pathIndex(path, i), ev); err != nil {
			return err
		}
	}
	return nil
}

func loadTuple(ctx *Context, a Archive, path string, rv reflect.Value) error {
	tl, ok := rv.Addr().Interface().(TupleLike)
	if !ok {
		return fault(ErrUnsupported, path, fmt.Errorf("%s is not tuple-like", rv.Type()))
	}
	n, err := a.Size()
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	if n != tl.Arity() {
		return fault(ErrSizeMismatch, path, fmt.Errorf("tuple has arity %d, archive declares %d", tl.Arity(), n))
	}
	for i := 0; i < n; i++ {
		ev := reflect.ValueOf(tl.ElemPtr(i)).Elem()
		if err := loadValue(ctx, a.ChildAt(i), pathIndex(path, i), ev); err != nil {
			return err
		}
	}
	return nil
}

// --- category 6: optional-like ------------------------------------------------

func saveOptional(ctx *Context, a Archive, path string, rv reflect.Value) error {
	rv = addressable(rv)
	opt := rv.Addr().Interface().(OptionalLike)
	if err := a.Resize(2); err != nil {
		return fault(ErrDecode, path, err)
	}
	if err := a.ChildAt(0).WriteBool(opt.HasValue()); err != nil {
		return fault(ErrDecode, path, err)
	}
	if !opt.HasValue() {
		return nil
	}
	ev := reflect.ValueOf(opt.ElemPtr()).Elem()
	return saveValue(ctx, a.ChildAt(1), pathChild(path, "value"), ev)
}

func loadOptional(ctx *Context, a Archive, path string, rv reflect.Value) error {
	opt, ok := rv.Addr().Interface().(OptionalLike)
	if !ok {
		return fault(ErrUnsupported, path, fmt.Errorf("%s is not optional-like", rv.Type()))
	}
	n, err := a.Size()
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	if n < 1 {
		return fault(ErrSizeMismatch, path, fmt.Errorf("optional has %d children, need at least 1", n))
	}
	has, err := a.ChildAt(0).ReadBool()
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	opt.SetHasValue(has)
	if !has {
		return nil
	}
	if n < 2 {
		return fault(ErrSizeMismatch, path, fmt.Errorf("optional has_value but only %d children", n))
	}
	ev := reflect.ValueOf(opt.ElemPtr()).Elem()
	return loadValue(ctx, a.ChildAt(1), pathChild(path, "value"), ev)
}

// --- category 7: variant-like --------------------------------------------------

func saveVariant(ctx *Context, a Archive, path string, rv reflect.Value) error {
	rv = addressable(rv)
	v := rv.Addr().Interface().(Variant)
	tag := v.Tag()
	if tag < 0 || tag >= v.Arity() {
		return fault(ErrInvalidVariant, path, fmt.Errorf("tag %d, arity %d", tag, v.Arity()))
	}
	if err := a.WriteIndex("Index", uint64(tag)); err != nil {
		return fault(ErrDecode, path, err)
	}
	ev := reflect.ValueOf(v.ElemPtr(tag)).Elem()
	return saveValue(ctx, a.Child("Value"), pathChild(path, "Value"), ev)
}

func loadVariant(ctx *Context, a Archive, path string, rv reflect.Value) error {
	v, ok := rv.Addr().Interface().(Variant)
	if !ok {
		return fault(ErrUnsupported, path, fmt.Errorf("%s is not variant-like", rv.Type()))
	}
	tag, err := a.ReadIndex("Index")
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	if int(tag) >= v.Arity() {
		return fault(ErrInvalidIndex, path, fmt.Errorf("tag %d, arity %d", tag, v.Arity()))
	}
	v.SetTag(int(tag))
	ev := reflect.ValueOf(v.ElemPtr(int(tag))).Elem()
	return loadValue(ctx, a.Child("Value"), pathChild(path, "Value"), ev)
}

// --- category 8: owned unique ---------------------------------------------------

func saveUniquePointer(ctx *Context, a Archive, path string, rv reflect.Value) error {
	if rv.IsNil() {
		return fault(ErrNullPointer, path, fmt.Errorf("%s is nil", rv.Type()))
	}
	return saveValue(ctx, a, path, rv.Elem())
}

func loadUniquePointer(ctx *Context, a Archive, path string, rv reflect.Value) error {
	if rv.IsNil() {
		rv.Set(reflect.New(rv.Type().Elem()))
	}
	return loadValue(ctx, a, path, rv.Elem())
}

// --- category 9: owned shared (polymorphic base, C5) ---------------------------

func saveSharedPointer(ctx *Context, a Archive, path string, rv reflect.Value) error {
	if rv.IsNil() {
		return a.WriteClassName(emptySentinel)
	}
	concrete := rv.Elem() // the dynamic value held by the interface
	concreteType := concrete.Type()
	elemType := concreteType
	if elemType.Kind() == reflect.Ptr {
		elemType = elemType.Elem()
	}
	name := concreteTypeName(concreteType)
	if err := a.WriteClassName(name); err != nil {
		return fault(ErrDecode, path, err)
	}

	if _, ok := describeOf(elemType); ok {
		pv := concrete
		if concreteType.Kind() == reflect.Ptr {
			pv = concrete.Elem()
		}
		return saveValue(ctx, a, path, pv)
	}

	reg := registryFor(a.Format())
	if !reg.Has(name) {
		return fault(ErrRegistryNotFound, path, fmt.Errorf("%q is neither reflectable nor registered", name))
	}
	return reg.runSave(ctx, a, path, concrete)
}

func loadSharedPointer(ctx *Context, a Archive, path string, rv reflect.Value) error {
	name, present, err := a.ReadClassName()
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	if !present {
		warnMissingClass(a.Format(), path)
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}
	if name == emptySentinel {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}

	reg := registryFor(a.Format())
	if reg.Has(name) {
		nv, err := reg.runLoad(ctx, a, path, name)
		if err != nil {
			return err
		}
		if nv.Type().AssignableTo(rv.Type()) {
			rv.Set(nv)
		} else if nv.Elem().Type().AssignableTo(rv.Type()) {
			rv.Set(nv.Elem())
		} else {
			return fault(ErrUnsupported, path, fmt.Errorf("%s does not implement %s", nv.Type(), rv.Type()))
		}
		return nil
	}

	t, byPointer, ok := registeredConcreteType(rv.Type(), name)
	if !ok {
		return fault(ErrRegistryNotFound, path, fmt.Errorf("%q: not registered and no matching reflectable type", name))
	}
	nv := reflect.New(t)
	if err := loadValue(ctx, a, path, nv.Elem()); err != nil {
		return err
	}
	if byPointer {
		rv.Set(nv)
	} else {
		rv.Set(nv.Elem())
	}
	return nil
}

// --- category 10: reflectable aggregate (C3) ---------------------------------

func saveAggregate(ctx *Context, a Archive, path string, rv reflect.Value) error {
	d, ok := describeOf(rv.Type())
	if !ok {
		return fault(ErrUnsupported, path, fmt.Errorf("%s has no registered descriptor", rv.Type()))
	}
	if err := a.WriteClassName(d.TypeName); err != nil {
		return fault(ErrDecode, path, err)
	}
	rv = addressable(rv)
	ptr := rv.Addr().Interface()
	for _, m := range d.Members {
		if m.Get == nil {
			continue // placeholder: occupies a name, carries no data
		}
		mv := reflect.ValueOf(m.Get(ptr)).Elem()
		if err := saveValue(ctx, a.Child(m.Name), pathChild(path, m.Name), mv); err != nil {
			return err
		}
	}
	return nil
}

func loadAggregate(ctx *Context, a Archive, path string, rv reflect.Value) error {
	d, ok := describeOf(rv.Type())
	if !ok {
		return fault(ErrUnsupported, path, fmt.Errorf("%s has no registered descriptor", rv.Type()))
	}
	name, present, err := a.ReadClassName()
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	if !present {
		warnMissingClass(a.Format(), path)
		return fault(ErrMissingField, path, fmt.Errorf("missing Class attribute for %s", d.TypeName))
	}
	if name == emptySentinel {
		// pop_class_name() found the empty-handle sentinel: leave rv at its
		// zero value and return without touching a single member.
		return nil
	}

	ptr := rv.Addr().Interface()
	for _, m := range d.Members {
		if m.Get == nil {
			continue
		}
		mv := reflect.ValueOf(m.Get(ptr)).Elem()
		if err := loadValue(ctx, a.Child(m.Name), pathChild(path, m.Name), mv); err != nil {
			return err
		}
	}
	if init, ok := ptr.(Initializer); ok {
		if err := init.Initialize(); err != nil {
			return fault(ErrDecode, path, err)
		}
	}
	return nil
}

// --- category 11: raw pointer-to-reflectable (save-only) -----------------------

func saveRawPointer(ctx *Context, a Archive, path string, rv reflect.Value) error {
	ptrField := rv.FieldByName("Ptr")
	if ptrField.IsNil() {
		return fault(ErrNullPointer, path, fmt.Errorf("%s.Ptr is nil", rv.Type()))
	}
	return saveValue(ctx, a, path, ptrField.Elem())
}

// registeredConcreteType supports loading a shared handle whose concrete
// type was never passed through RegisterTypeForAllFormats but is itself
// a reflectable aggregate directly assignable to the interface — the
// common case of a base interface with exactly one reflectable
// implementation discovered by scanning registered descriptors. The
// bool result reports whether ifaceType is satisfied by *T (true) or by
// T itself (false), so the caller knows whether to install the pointer
// or the dereferenced value.
func registeredConcreteType(ifaceType reflect.Type, name string) (t reflect.Type, byPointer bool, ok bool) {
	descriptorsMu.RLock()
	defer descriptorsMu.RUnlock()
	for candidate := range descriptors {
		if candidate.String() != name {
			continue
		}
		if reflect.PointerTo(candidate).AssignableTo(ifaceType) {
			return candidate, true, true
		}
		if candidate.AssignableTo(ifaceType) {
			return candidate, false, true
		}
	}
	return nil, false, false
}
