// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

// DefaultMaxDepth is the default recursion depth cap (spec: "fixed upper
// bound (default 1000)").
const DefaultMaxDepth = 1000

// DuplicateRegistrationPolicy controls what happens when the same (type,
// format) pair is registered twice in the polymorphic registry (C5). The
// source left this undefined; spec.md's open questions ask implementations
// to pick one and document it. This library rejects by default.
type DuplicateRegistrationPolicy int

const (
	// RejectDuplicate panics on a second registration of the same key. This
	// is the default; a duplicate registration is a program error, almost
	// always two init() functions racing to claim the same type name.
	RejectDuplicate DuplicateRegistrationPolicy = iota
	// KeepFirstRegistration silently ignores the second registration.
	KeepFirstRegistration
	// KeepLastRegistration silently overwrites with the second registration.
	KeepLastRegistration
)

// Context carries the knobs a traversal needs; it is threaded through every
// recursive Save/Load call the way the teacher threads EncodeContext and
// DecodeContext through every Codec call.
type Context struct {
	MaxDepth int
	depth    int

	onDuplicate    DuplicateRegistrationPolicy
	onDuplicateSet bool
}

// Option configures a Context returned by newContext.
type Option func(*Context)

// WithMaxDepth overrides the recursion depth cap.
func WithMaxDepth(n int) Option {
	return func(c *Context) { c.MaxDepth = n }
}

// WithOnDuplicateRegistration overrides the duplicate-registration policy
// applied to the C5 registry for the format a Save/Load call traverses.
func WithOnDuplicateRegistration(p DuplicateRegistrationPolicy) Option {
	return func(c *Context) {
		c.onDuplicate = p
		c.onDuplicateSet = true
	}
}

func newContext(opts ...Option) *Context {
	c := &Context{MaxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) enter(path string) error {
	c.depth++
	if c.depth > c.MaxDepth {
		return fault(ErrRecursionLimit, path, nil)
	}
	return nil
}

func (c *Context) exit() { c.depth-- }
