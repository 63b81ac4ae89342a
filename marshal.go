// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

import "os"

// File I/O helpers are explicitly out of core scope (spec §6: "thin I/O,
// external collaborators") but are named as part of the external
// interface, so they're provided here as one-line wrappers over the
// Marshal/Unmarshal pairs in jsonarchive.go, xmlarchive.go and
// binaryarchive.go — mirroring the teacher's own bson/marshal.go, which
// keeps its path-based helpers equally thin over Encoder/Decoder.

// WriteJSON saves v to path as JSON.
func WriteJSON(path string, v any, opts ...Option) error {
	data, err := MarshalJSON(v, opts...)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads v from the JSON file at path.
func ReadJSON(path string, v any, opts ...Option) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	return UnmarshalJSON(data, v, opts...)
}

// WriteXML saves v to path as XML.
func WriteXML(path string, v any, opts ...Option) error {
	data, err := MarshalXML(v, opts...)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadXML loads v from the XML file at path.
func ReadXML(path string, v any, opts ...Option) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	return UnmarshalXML(data, v, opts...)
}

// WriteBinary saves v to path in the self-describing binary format.
func WriteBinary(path string, v any, opts ...Option) error {
	data, err := MarshalBinary(v, opts...)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadBinary loads v from the binary file at path.
func ReadBinary(path string, v any, opts ...Option) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fault(ErrDecode, path, err)
	}
	return UnmarshalBinary(data, v, opts...)
}
