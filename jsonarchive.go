// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/pretty"
)

// jsonNode is the JSON-shaped archive (C2): an ordered in-memory tree
// that Save/Load drive through the Archive interface, rendered to or
// parsed from actual JSON bytes at the edges. No ecosystem library in
// the retrieval pack offers an ordered, ownership-aware JSON tree (see
// DESIGN.md), so this hand-rolled node renders itself in insertion order
// and uses stdlib encoding/json only for string escaping when writing.
// Parsing decodes through encoding/json into map/slice values with
// UseNumber, so integer precision above 2^53 is kept, but the key order
// of a parsed object is not preserved (members are looked up by name on
// load, so this does not affect what Load reads).
type jsonKind int

const (
	jsonKindUnset jsonKind = iota
	jsonKindScalar
	jsonKindArray
	jsonKindObject
)

type jsonNode struct {
	kind   jsonKind
	scalar interface{}
	items  []*jsonNode
	keys   []string
	attrs  map[string]*jsonNode
}

// NewJSONArchive returns an empty JSON-shaped archive, ready to Save into.
func NewJSONArchive() Archive { return newJSONNode() }

func newJSONNode() *jsonNode { return &jsonNode{} }

func (n *jsonNode) Format() Format { return FormatJSON }

func (n *jsonNode) setScalar(v interface{}) {
	n.kind = jsonKindScalar
	n.scalar = v
}

func (n *jsonNode) WriteBool(v bool) error       { n.setScalar(v); return nil }
func (n *jsonNode) WriteInt64(v int64) error     { n.setScalar(v); return nil }
func (n *jsonNode) WriteUint64(v uint64) error   { n.setScalar(v); return nil }
func (n *jsonNode) WriteFloat64(v float64) error { n.setScalar(v); return nil }
func (n *jsonNode) WriteString(v string) error   { n.setScalar(v); return nil }
func (n *jsonNode) WriteNull() error             { n.kind = jsonKindScalar; n.scalar = nil; return nil }

func (n *jsonNode) ReadBool() (bool, error) {
	b, ok := n.scalar.(bool)
	if !ok {
		return false, fmt.Errorf("serialization: expected bool, got %T", n.scalar)
	}
	return b, nil
}

func (n *jsonNode) ReadInt64() (int64, error) {
	switch v := n.scalar.(type) {
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	}
	return 0, fmt.Errorf("serialization: expected integer, got %T", n.scalar)
}

func (n *jsonNode) ReadUint64() (uint64, error) {
	switch v := n.scalar.(type) {
	case uint64:
		return v, nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("serialization: negative value for unsigned field")
		}
		return uint64(v), nil
	case json.Number:
		return strconv.ParseUint(v.String(), 10, 64)
	case float64:
		return uint64(v), nil
	}
	return 0, fmt.Errorf("serialization: expected unsigned integer, got %T", n.scalar)
}

func (n *jsonNode) ReadFloat64() (float64, error) {
	switch v := n.scalar.(type) {
	case float64:
		return v, nil
	case json.Number:
		return v.Float64()
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("serialization: expected float, got %T", n.scalar)
}

func (n *jsonNode) ReadString() (string, error) {
	s, ok := n.scalar.(string)
	if !ok {
		return "", fmt.Errorf("serialization: expected string, got %T", n.scalar)
	}
	return s, nil
}

func (n *jsonNode) ReadNull() error {
	if n.kind != jsonKindScalar || n.scalar != nil {
		return fmt.Errorf("serialization: expected null")
	}
	return nil
}

func (n *jsonNode) attr(name string) *jsonNode {
	if n.kind == jsonKindUnset {
		n.kind = jsonKindObject
		n.attrs = make(map[string]*jsonNode)
	}
	if c, ok := n.attrs[name]; ok {
		return c
	}
	c := newJSONNode()
	n.attrs[name] = c
	n.keys = append(n.keys, name)
	return c
}

// WriteClassName sets (or idempotently replaces) the "Class" attribute.
// Called twice on the same node for a reflectable type behind a shared
// handle (once at the handle level, once again by the nested aggregate
// save) — see engine.go's saveSharedPointer — so this must overwrite,
// never append.
func (n *jsonNode) WriteClassName(name string) error {
	n.attr("Class").setScalar(name)
	return nil
}

func (n *jsonNode) ReadClassName() (string, bool, error) {
	if n.attrs == nil {
		return "", false, nil
	}
	c, ok := n.attrs["Class"]
	if !ok {
		return "", false, nil
	}
	s, ok := c.scalar.(string)
	if !ok {
		warnNonStringClass(FormatJSON, "")
		return "", false, nil
	}
	return s, true, nil
}

func (n *jsonNode) WriteIndex(attrName string, idx uint64) error {
	n.attr(attrName).setScalar(idx)
	return nil
}

func (n *jsonNode) ReadIndex(attrName string) (uint64, error) {
	if n.attrs != nil {
		if c, ok := n.attrs[attrName]; ok {
			return c.ReadUint64()
		}
	}
	return 0, fmt.Errorf("serialization: missing %q attribute", attrName)
}

func (n *jsonNode) Child(name string) Archive { return n.attr(name) }

func (n *jsonNode) ChildAt(i int) Archive {
	if n.kind == jsonKindUnset {
		n.kind = jsonKindArray
	}
	for len(n.items) <= i {
		n.items = append(n.items, newJSONNode())
	}
	return n.items[i]
}

func (n *jsonNode) Resize(count int) error {
	n.kind = jsonKindArray
	items := make([]*jsonNode, count)
	copy(items, n.items)
	for i := range items {
		if items[i] == nil {
			items[i] = newJSONNode()
		}
	}
	n.items = items
	return nil
}

func (n *jsonNode) Size() (int, error) {
	if n.kind != jsonKindArray {
		return 0, fmt.Errorf("serialization: node is not array-like")
	}
	return len(n.items), nil
}

func (n *jsonNode) marshal(buf *bytes.Buffer) error {
	switch n.kind {
	case jsonKindArray:
		buf.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.marshal(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case jsonKindObject:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := n.attrs[k].marshal(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return n.marshalScalar(buf)
	}
}

func (n *jsonNode) marshalScalar(buf *bytes.Buffer) error {
	switch v := n.scalar.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(v, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case json.Number:
		buf.WriteString(v.String())
	case string:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
	default:
		return fmt.Errorf("serialization: unsupported JSON scalar type %T", v)
	}
	return nil
}

// Bytes renders the tree as compact JSON, or pretty-printed (via
// github.com/tidwall/pretty, already in the teacher's go.mod) when
// indent is true.
func (n *jsonNode) Bytes(indent bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := n.marshal(&buf); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if indent {
		out = pretty.Pretty(out)
	}
	return out, nil
}

func parseJSONNode(data []byte) (*jsonNode, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return nodeFromRaw(raw), nil
}

func nodeFromRaw(raw interface{}) *jsonNode {
	n := newJSONNode()
	switch v := raw.(type) {
	case []interface{}:
		n.kind = jsonKindArray
		n.items = make([]*jsonNode, len(v))
		for i, e := range v {
			n.items[i] = nodeFromRaw(e)
		}
	case map[string]interface{}:
		n.kind = jsonKindObject
		n.attrs = make(map[string]*jsonNode, len(v))
		for k, e := range v {
			n.attrs[k] = nodeFromRaw(e)
			n.keys = append(n.keys, k)
		}
	default:
		n.kind = jsonKindScalar
		n.scalar = v
	}
	return n
}

// MarshalJSON saves v into a fresh JSON-shaped archive and renders it as
// compact JSON bytes.
func MarshalJSON(v any, opts ...Option) ([]byte, error) {
	n := newJSONNode()
	if err := Save(n, v, opts...); err != nil {
		return nil, err
	}
	return n.Bytes(false)
}

// MarshalIndentJSON is MarshalJSON with tidwall/pretty indentation applied.
func MarshalIndentJSON(v any, opts ...Option) ([]byte, error) {
	n := newJSONNode()
	if err := Save(n, v, opts...); err != nil {
		return nil, err
	}
	return n.Bytes(true)
}

// UnmarshalJSON parses JSON bytes into a tree and loads v from it.
func UnmarshalJSON(data []byte, v any, opts ...Option) error {
	n, err := parseJSONNode(data)
	if err != nil {
		return fault(ErrDecode, "$", err)
	}
	return Load(n, v, opts...)
}
