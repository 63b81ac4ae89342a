// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fixtures, registered once for the whole package ------------------------

type MessageID struct {
	ID     string
	Scheme string
}

type Header struct {
	MessageID         MessageID
	SentBy            string
	SendTo            string
	CreationTimestamp Date
}

type Shape interface {
	Area() float64
}

type Circle struct {
	D float64
	N string
}

func (c *Circle) Area() float64 { return 3.14159 * c.D * c.D / 4 }

type ShapeHolder struct {
	S Shape
}

// Meters is a non-aggregate concrete type (category primitive) registered
// behind the Distance interface, exercising the registry (C5) path rather
// than the reflectable-descriptor path saveSharedPointer/loadSharedPointer
// also support.
type Distance interface {
	Amount() float64
}

type Meters float64

func (m Meters) Amount() float64 { return float64(m) }

type DistanceHolder struct {
	D Distance
}

type Node struct {
	Value int
	Next  *Node
}

// Animal/Dog exercise C3's derived-descriptor concatenation
// (DescribeDerived), including a placeholder member ("Kind") that carries
// no storage of its own and must be skipped on both save and load.
type Animal struct {
	Legs int
}

type Dog struct {
	Animal
	Name string
}

func init() {
	Describe[MessageID](
		Field[MessageID, string]("ID", func(m *MessageID) *string { return &m.ID }),
		Field[MessageID, string]("Scheme", func(m *MessageID) *string { return &m.Scheme }),
	)
	Describe[Header](
		Field[Header, MessageID]("MessageID", func(h *Header) *MessageID { return &h.MessageID }),
		Field[Header, string]("SentBy", func(h *Header) *string { return &h.SentBy }),
		Field[Header, string]("SendTo", func(h *Header) *string { return &h.SendTo }),
		Field[Header, Date]("CreationTimestamp", func(h *Header) *Date { return &h.CreationTimestamp }),
	)
	Describe[Circle](
		Field[Circle, float64]("D", func(c *Circle) *float64 { return &c.D }),
		Field[Circle, string]("N", func(c *Circle) *string { return &c.N }),
	)
	Describe[ShapeHolder](
		Field[ShapeHolder, Shape]("S", func(h *ShapeHolder) *Shape { return &h.S }),
	)
	Describe[DistanceHolder](
		Field[DistanceHolder, Distance]("D", func(h *DistanceHolder) *Distance { return &h.D }),
	)
	Describe[Node](
		Field[Node, int]("Value", func(n *Node) *int { return &n.Value }),
		Field[Node, *Node]("Next", func(n *Node) **Node { return &n.Next }),
	)
	Describe[Animal](
		Placeholder("Kind"),
		Field[Animal, int]("Legs", func(a *Animal) *int { return &a.Legs }),
	)
	DescribeDerived[Dog, Animal](
		func(d *Dog) *Animal { return &d.Animal },
		Field[Dog, string]("Name", func(d *Dog) *string { return &d.Name }),
	)
	RegisterTypeForAllFormats[Meters]()
}

// roundTripAll saves v through every backing and loads it back into a fresh
// zero value of the same type, returning the three reconstructions keyed
// by format name.
func roundTripAll(t *testing.T, v any, fresh func() any) map[string]any {
	t.Helper()
	out := make(map[string]any, 3)

	jsonData, err := MarshalJSON(v)
	require.NoError(t, err)
	jsonOut := fresh()
	require.NoError(t, UnmarshalJSON(jsonData, jsonOut))
	out["json"] = jsonOut

	xmlData, err := MarshalXML(v)
	require.NoError(t, err)
	xmlOut := fresh()
	require.NoError(t, UnmarshalXML(xmlData, xmlOut))
	out["xml"] = xmlOut

	binData, err := MarshalBinary(v)
	require.NoError(t, err)
	binOut := fresh()
	require.NoError(t, UnmarshalBinary(binData, binOut))
	out["binary"] = binOut

	return out
}

func TestIntegerVectorRoundTrip(t *testing.T) {
	x := []int{1, 2, 4, 6, 8}
	got := roundTripAll(t, x, func() any { return new([]int) })
	for format, v := range got {
		assert.Empty(t, cmp.Diff(&x, v), "format %s", format)
	}
}

func TestIntegerKeyedMapRoundTrip(t *testing.T) {
	x := map[int]int{1: 1, 2: 2}
	got := roundTripAll(t, x, func() any { return new(map[int]int) })
	for format, v := range got {
		assert.Empty(t, cmp.Diff(&x, v), "format %s", format)
	}
}

func TestSumTypeRoundTrip(t *testing.T) {
	x := NewVariant3B[int64, float64, string](6.5)

	data, err := MarshalJSON(x)
	require.NoError(t, err)
	n, err := parseJSONNode(data)
	require.NoError(t, err)
	idx, err := n.ReadIndex("Index")
	require.NoError(t, err)
	assert.EqualValues(t, 1, idx)
	f, err := n.Child("Value").ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 6.5, f)

	var loaded Variant3[int64, float64, string]
	require.NoError(t, UnmarshalJSON(data, &loaded))
	assert.Equal(t, 1, loaded.Tag())
	v, ok := loaded.ElemPtr(1).(*float64)
	require.True(t, ok)
	assert.Equal(t, 6.5, *v)
}

func TestOptionalRoundTrip(t *testing.T) {
	some := Some("Hello")
	data, err := MarshalJSON(some)
	require.NoError(t, err)
	var loadedSome Optional[string]
	require.NoError(t, UnmarshalJSON(data, &loadedSome))
	v, ok := loadedSome.Get()
	require.True(t, ok)
	assert.Equal(t, "Hello", v)

	none := None[string]()
	data, err = MarshalJSON(none)
	require.NoError(t, err)
	var loadedNone Optional[string]
	require.NoError(t, UnmarshalJSON(data, &loadedNone))
	_, ok = loadedNone.Get()
	assert.False(t, ok)
}

func TestPolymorphismRoundTrip(t *testing.T) {
	original := ShapeHolder{S: &Circle{D: 6.7, N: "me"}}
	got := roundTripAll(t, original, func() any { return new(ShapeHolder) })
	for format, v := range got {
		holder, ok := v.(*ShapeHolder)
		require.True(t, ok, "format %s", format)
		c, ok := holder.S.(*Circle)
		require.True(t, ok, "format %s: concrete type did not round-trip", format)
		assert.Equal(t, 6.7, c.D, "format %s", format)
		assert.Equal(t, "me", c.N, "format %s", format)
	}
}

func TestDerivedDescriptorRoundTrip(t *testing.T) {
	original := Dog{Animal: Animal{Legs: 4}, Name: "Rex"}
	got := roundTripAll(t, original, func() any { return new(Dog) })
	for format, v := range got {
		dog, ok := v.(*Dog)
		require.True(t, ok, "format %s", format)
		assert.Equal(t, 4, dog.Legs, "format %s", format)
		assert.Equal(t, "Rex", dog.Name, "format %s", format)
	}
}

func TestRegisteredNonReflectableRoundTrip(t *testing.T) {
	original := DistanceHolder{D: Meters(42.5)}
	got := roundTripAll(t, original, func() any { return new(DistanceHolder) })
	for format, v := range got {
		holder, ok := v.(*DistanceHolder)
		require.True(t, ok, "format %s", format)
		require.NotNil(t, holder.D, "format %s", format)
		assert.Equal(t, 42.5, holder.D.Amount(), "format %s", format)
	}
}

func TestNestedAggregateRoundTrip(t *testing.T) {
	ts, err := time.Parse(time.RFC3339, "2024-12-15T10:30:00Z")
	require.NoError(t, err)
	original := Header{
		MessageID:         MessageID{ID: "MSG12345", Scheme: "https://example.com/messageId"},
		SentBy:            "BANKXYZ",
		SendTo:            "CLIENTABC",
		CreationTimestamp: DateFromTime(ts),
	}

	for _, format := range []string{"json", "xml", "binary"} {
		var (
			data []byte
			err  error
		)
		switch format {
		case "json":
			data, err = MarshalJSON(original)
		case "xml":
			data, err = MarshalXML(original)
		case "binary":
			data, err = MarshalBinary(original)
		}
		require.NoError(t, err, format)

		var loaded Header
		switch format {
		case "json":
			err = UnmarshalJSON(data, &loaded)
		case "xml":
			err = UnmarshalXML(data, &loaded)
		case "binary":
			err = UnmarshalBinary(data, &loaded)
		}
		require.NoError(t, err, format)
		assert.Equal(t, original.MessageID, loaded.MessageID, format)
		assert.Equal(t, original.SentBy, loaded.SentBy, format)
		assert.Equal(t, original.SendTo, loaded.SendTo, format)
		assert.True(t, original.CreationTimestamp.Time().Equal(loaded.CreationTimestamp.Time()), format)
	}
}

// --- negative cases, per spec's error taxonomy -------------------------------

func TestSaveNullUniqueHandleFails(t *testing.T) {
	var c *Circle
	_, err := MarshalJSON(c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNullPointer))
}

func TestLoadVariantTagOutOfRangeFails(t *testing.T) {
	n := NewJSONArchive()
	require.NoError(t, n.WriteIndex("Index", 5))
	require.NoError(t, n.Child("Value").WriteInt64(1))

	var v Variant3[int64, float64, string]
	err := Load(n, &v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidIndex))
}

func TestLoadFixedArraySizeMismatchFails(t *testing.T) {
	n := NewJSONArchive()
	require.NoError(t, n.Resize(2))
	require.NoError(t, n.ChildAt(0).WriteInt64(1))
	require.NoError(t, n.ChildAt(1).WriteInt64(2))

	var arr [3]int
	err := Load(n, &arr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSizeMismatch))
}

func TestLoadMapLikeOddLengthFails(t *testing.T) {
	n := NewJSONArchive()
	require.NoError(t, n.Resize(3))
	require.NoError(t, n.ChildAt(0).WriteInt64(1))
	require.NoError(t, n.ChildAt(1).WriteInt64(1))
	require.NoError(t, n.ChildAt(2).WriteInt64(2))

	var m map[int]int
	err := Load(n, &m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSizeMismatch))
}

func TestRecursionLimitExceeded(t *testing.T) {
	root := &Node{Value: 0}
	cur := root
	for i := 1; i < 20; i++ {
		cur.Next = &Node{Value: i}
		cur = cur.Next
	}

	_, err := MarshalJSON(root, WithMaxDepth(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecursionLimit))
}

func TestEmptySentinelForNilSharedHandle(t *testing.T) {
	original := ShapeHolder{S: nil}
	data, err := MarshalJSON(original)
	require.NoError(t, err)

	n, err := parseJSONNode(data)
	require.NoError(t, err)
	name, present, err := n.Child("S").ReadClassName()
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, emptySentinel, name)

	var loaded ShapeHolder
	require.NoError(t, UnmarshalJSON(data, &loaded))
	assert.Nil(t, loaded.S)
}
