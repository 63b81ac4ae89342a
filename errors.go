// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel error kinds. Callers compare against these with errors.Is; a
// *Fault's Error() string carries the archive path and underlying cause on
// top of the sentinel.
var (
	// ErrSizeMismatch is returned when a declared size on load disagrees
	// with the static arity (array/tuple), parity requirement (map-like),
	// or minimum length (optional-like).
	ErrSizeMismatch = errors.New("serialization: size mismatch")

	// ErrInvalidVariant is returned when saving a value-less sum type.
	ErrInvalidVariant = errors.New("serialization: variant has no active alternative")

	// ErrInvalidIndex is returned when a loaded variant tag is outside the
	// alternative set.
	ErrInvalidIndex = errors.New("serialization: variant tag out of range")

	// ErrNullPointer is returned when saving a nil unique handle.
	ErrNullPointer = errors.New("serialization: nil unique pointer")

	// ErrMissingField is returned when a reflectable's required Class
	// attribute is absent on load.
	ErrMissingField = errors.New("serialization: missing Class attribute")

	// ErrRegistryNotFound is returned when a base-typed owned load names a
	// concrete type absent from the registry with no reflection fallback.
	ErrRegistryNotFound = errors.New("serialization: type not found in registry")

	// ErrRecursionLimit is returned when traversal exceeds the configured
	// depth cap.
	ErrRecursionLimit = errors.New("serialization: recursion limit exceeded")

	// ErrUnsupported marks a value the classifier has no strategy for. In a
	// language with compile-time concepts this would never leave a build;
	// in Go it is returned by Save/Load when the reflect-based walk reaches
	// such a value.
	ErrUnsupported = errors.New("serialization: unsupported type")

	// ErrDecode wraps a backing-level parse failure (malformed JSON or XML,
	// truncated byte stream).
	ErrDecode = errors.New("serialization: decode failed")
)

// Fault wraps one of the sentinel errors above with the archive path at
// which it occurred, in the style of the teacher's CodecEncodeError /
// CodecDecodeError (a named error carrying the offending site, not a bare
// string).
type Fault struct {
	Kind  error
	Path  string
	Cause error
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%v at %s: %v", f.Kind, f.Path, f.Cause)
	}
	return fmt.Sprintf("%v at %s", f.Kind, f.Path)
}

func (f *Fault) Unwrap() error { return f.Kind }

// fault builds a *Fault, prefixing cause (if any) with the archive path
// via pkg/errors.WithMessage.
func fault(kind error, path string, cause error) error {
	if cause != nil {
		cause = errors.WithMessage(cause, path)
	}
	return &Fault{Kind: kind, Path: path, Cause: cause}
}
