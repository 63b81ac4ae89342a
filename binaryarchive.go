// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

import (
	"bytes"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// binaryArchive is the self-describing binary backing (C2): a thin
// Archive adapter directly over *msgpack.Encoder/*msgpack.Decoder's
// primitive Encode*/Decode* calls (github.com/vmihailenco/msgpack/v5,
// grounded on its use in andreyvit-edb/encoding.go). It deliberately
// never calls the encoder/decoder's own EncodeValue/DecodeValue
// reflection path — that machinery would re-derive msgpack's own
// notion of struct shape from Go types, duplicating what classify.go
// and descriptor.go already do, and would not let the three formats
// share one traversal engine.
//
// Unlike jsonNode/xmlNode, a binaryArchive is not a tree: msgpack is a
// single sequential byte stream, so Child and ChildAt return the same
// archive rather than an addressable sub-node — ordering alone carries
// structure, exactly as the save/load calls already walk it.
type binaryArchive struct {
	enc *msgpack.Encoder
	dec *msgpack.Decoder
}

// NewBinaryEncodeArchive returns a binary archive that writes to w.
func NewBinaryEncodeArchive(w io.Writer) Archive {
	return &binaryArchive{enc: msgpack.NewEncoder(w)}
}

// NewBinaryDecodeArchive returns a binary archive that reads from r.
func NewBinaryDecodeArchive(r io.Reader) Archive {
	return &binaryArchive{dec: msgpack.NewDecoder(r)}
}

func (a *binaryArchive) Format() Format { return FormatBinary }

func (a *binaryArchive) WriteBool(v bool) error  { return a.enc.EncodeBool(v) }
func (a *binaryArchive) ReadBool() (bool, error) { return a.dec.DecodeBool() }

func (a *binaryArchive) WriteInt64(v int64) error  { return a.enc.EncodeInt64(v) }
func (a *binaryArchive) ReadInt64() (int64, error) { return a.dec.DecodeInt64() }

func (a *binaryArchive) WriteUint64(v uint64) error  { return a.enc.EncodeUint64(v) }
func (a *binaryArchive) ReadUint64() (uint64, error) { return a.dec.DecodeUint64() }

func (a *binaryArchive) WriteFloat64(v float64) error  { return a.enc.EncodeFloat64(v) }
func (a *binaryArchive) ReadFloat64() (float64, error) { return a.dec.DecodeFloat64() }

func (a *binaryArchive) WriteString(v string) error  { return a.enc.EncodeString(v) }
func (a *binaryArchive) ReadString() (string, error) { return a.dec.DecodeString() }

func (a *binaryArchive) WriteNull() error { return a.enc.EncodeNil() }
func (a *binaryArchive) ReadNull() error  { return a.dec.DecodeNil() }

func (a *binaryArchive) WriteClassName(name string) error { return a.enc.EncodeString(name) }

func (a *binaryArchive) ReadClassName() (string, bool, error) {
	s, err := a.dec.DecodeString()
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (a *binaryArchive) WriteIndex(_ string, idx uint64) error { return a.enc.EncodeUint64(idx) }
func (a *binaryArchive) ReadIndex(_ string) (uint64, error)    { return a.dec.DecodeUint64() }

func (a *binaryArchive) Child(_ string) Archive { return a }
func (a *binaryArchive) ChildAt(_ int) Archive  { return a }

func (a *binaryArchive) Resize(n int) error { return a.enc.EncodeArrayLen(n) }
func (a *binaryArchive) Size() (int, error) { return a.dec.DecodeArrayLen() }

// MarshalBinary saves v into the self-describing binary format.
func MarshalBinary(v any, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	a := NewBinaryEncodeArchive(&buf)
	if err := Save(a, v, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary loads v from the self-describing binary format.
func UnmarshalBinary(data []byte, v any, opts ...Option) error {
	a := NewBinaryDecodeArchive(bytes.NewReader(data))
	return Load(a, v, opts...)
}
