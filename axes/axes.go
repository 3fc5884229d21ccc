// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

// Package axes defines named, length-tagged dimension records used to shape the
// tensor expressions of the model.
//
// An Axis is a plain immutable value: it is created once, with its length fixed,
// and passed explicitly into the graph-building calls that need it. There is no
// global axis registry -- two functions only share an axis if the same record is
// handed to both.
package axes

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// Axis is a named dimension with a fixed length.
//
// Two Axis values are distinct dimensions even when they share a length:
// identity is the whole record, not the length.
type Axis struct {
	Name   string
	Length int
}

// New returns an axis with the given name and length.
func New(name string, length int) Axis {
	return Axis{Name: name, Length: length}
}

// String implements fmt.Stringer.
func (a Axis) String() string {
	return fmt.Sprintf("%s[%d]", a.Name, a.Length)
}

// Shape builds a shape with the given dtype whose dimensions follow the given
// axis order. All axis lengths must be positive: shapes are only built once the
// axes are fully specified, before any computation is compiled.
func Shape(dtype dtypes.DType, axes ...Axis) shapes.Shape {
	dims := make([]int, len(axes))
	for i, a := range axes {
		if a.Length <= 0 {
			exceptions.Panicf("axes.Shape: axis %q has unset length %d", a.Name, a.Length)
		}
		dims[i] = a.Length
	}
	return shapes.Make(dtype, dims...)
}

// Size returns the number of elements spanned by the given axes, that is, the
// product of their lengths.
func Size(axes ...Axis) int {
	size := 1
	for _, a := range axes {
		size *= a.Length
	}
	return size
}
