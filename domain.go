// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TextPrimitive is implemented by single-string domain types (spec §4.2:
// "date-like, tenor-like, key-like") and by user enumerations. The
// classifier (C1) treats any type implementing it as a primitive rather
// than walking its internal representation. Manual enum-to/from-string
// conversion is explicitly out of scope (spec §1) — this interface is the
// boundary the caller's own conversion logic plugs into.
type TextPrimitive interface {
	fmt.Stringer
}

// TextPrimitiveParser is the load-direction half of TextPrimitive; a
// pointer receiver populates the value from its canonical string form.
type TextPrimitiveParser interface {
	ParseText(s string) error
}

// Unit is the empty-sum placeholder (spec §4.1 category 1): a primitive
// with no representable state, analogous to std::monostate. It is the
// default-constructible "no value" alternative of a Variant and is written
// as the null sentinel in text formats, a single marker byte in binary.
type Unit struct{}

// Char is a single character, kept distinct from a plain int32 so the
// classifier can special-case it as spec.md's "single characters" primitive
// rather than as a generic signed integer.
type Char rune

func (c Char) String() string { return string(rune(c)) }

// ParseText implements TextPrimitiveParser.
func (c *Char) ParseText(s string) error {
	r := []rune(s)
	if len(r) != 1 {
		return fmt.Errorf("serialization: %q is not a single character", s)
	}
	*c = Char(r[0])
	return nil
}

// Key is the key-like domain type: an opaque identifier with a single
// canonical string form.
type Key struct {
	id string
}

// NewKey builds a Key from a UUID, grounded on google/uuid (present in the
// retrieval pack's ValentinKolb-dKV/go.mod) as the canonical way to mint a
// stable textual identifier in this corpus.
func NewKey() Key { return Key{id: uuid.NewString()} }

// KeyFromString wraps an already-canonical string as a Key.
func KeyFromString(s string) Key { return Key{id: s} }

func (k Key) String() string { return k.id }

// ParseText implements TextPrimitiveParser.
func (k *Key) ParseText(s string) error {
	k.id = s
	return nil
}

// Tenor is the tenor-like domain type: a duration expressed in its
// canonical short form (e.g. "3M", "10Y", "ON").
type Tenor struct {
	raw string
}

func TenorFromString(s string) Tenor { return Tenor{raw: s} }

func (t Tenor) String() string { return t.raw }

// ParseText implements TextPrimitiveParser.
func (t *Tenor) ParseText(s string) error {
	t.raw = s
	return nil
}

// Date is the date-like domain type. Text backings store its canonical
// string form; the key-value (JSON) backing may alternatively store a
// numeric Unix timestamp, per spec §4.2: "date-like may alternatively
// store a numeric timestamp in the key-value backing (an implementation
// may choose either, but must be consistent within the backing)". This
// implementation chooses the numeric form for JSON and the string form for
// XML and binary, and documents that choice in DESIGN.md rather than
// leaving it ambiguous.
type Date struct {
	t time.Time
}

func DateFromTime(t time.Time) Date { return Date{t: t.UTC()} }

func (d Date) Time() time.Time { return d.t }

func (d Date) String() string { return d.t.Format(time.RFC3339) }

// ParseText implements TextPrimitiveParser.
func (d *Date) ParseText(s string) error {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.t = t.UTC()
	return nil
}

// unixSeconds/unixFromSeconds convert Date to/from the numeric form the
// JSON backing uses in place of ParseText/String.
func (d Date) unixSeconds() int64 { return d.t.Unix() }

func (d *Date) setUnixSeconds(sec int64) { d.t = time.Unix(sec, 0).UTC() }
