// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ndtype

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// Access describes how an axis reaches its elements.
type Access int

const (
	// Direct axes are addressed by stride arithmetic only.
	Direct Access = iota
	// Ptr axes always hold pointers that must be followed, offset by the
	// axis suboffset.
	Ptr
	// Full axes may or may not be indirect; a negative suboffset at run
	// time means direct.
	Full
)

// Packing describes how an axis is laid out relative to its neighbours.
type Packing int

const (
	Strided Packing = iota
	// Contig axes have a stride equal to the item size.
	Contig
	// Follow axes are contiguous relative to the adjacent contiguous axis.
	Follow
)

// Axis is the per-dimension descriptor of an array type.
type Axis struct {
	Access  Access
	Packing Packing
}

// IsIndirect reports whether the axis may carry a suboffset.
func (a Axis) IsIndirect() bool {
	return a.Access != Direct
}

func (a Axis) String() string {
	var sb strings.Builder
	switch a.Access {
	case Ptr:
		sb.WriteString("ptr&")
	case Full:
		sb.WriteString("full&")
	default:
		sb.WriteString("direct&")
	}
	switch a.Packing {
	case Contig:
		sb.WriteString("contig")
	case Follow:
		sb.WriteString("follow")
	default:
		sb.WriteString("strided")
	}
	return sb.String()
}

// StridedAxes returns n direct strided axes.
func StridedAxes(n int) []Axis {
	axes := make([]Axis, n)
	for i := range axes {
		axes[i] = Axis{Access: Direct, Packing: Strided}
	}
	return axes
}

// CContigAxes returns n axes describing a C-contiguous array.
func CContigAxes(n int) []Axis {
	axes := make([]Axis, n)
	for i := range axes {
		axes[i] = Axis{Access: Direct, Packing: Follow}
	}
	if n > 0 {
		axes[n-1].Packing = Contig
	}
	return axes
}

// FContigAxes returns n axes describing a Fortran-contiguous array.
func FContigAxes(n int) []Axis {
	axes := make([]Axis, n)
	for i := range axes {
		axes[i] = Axis{Access: Direct, Packing: Follow}
	}
	if n > 0 {
		axes[0].Packing = Contig
	}
	return axes
}

// Array is a strided N-dimensional array of Elem. len(Axes) is the
// dimensionality.
type Array struct {
	Elem Type
	Axes []Axis
}

// NewArray returns an array type; axes are copied.
func NewArray(elem Type, axes []Axis) *Array {
	return &Array{Elem: elem, Axes: append([]Axis(nil), axes...)}
}

func (a *Array) Kind() Kind { return KindArray }

// NDim returns the number of axes.
func (a *Array) NDim() int { return len(a.Axes) }

// String spells the array as elem[axis, ...] using memoryview notation.
func (a *Array) String() string {
	parts := make([]string, len(a.Axes))
	for i, ax := range a.Axes {
		switch {
		case ax.Access == Ptr:
			parts[i] = "::indirect"
		case ax.Access == Full:
			parts[i] = "::generic"
		case ax.Packing == Contig:
			parts[i] = "::1"
		default:
			parts[i] = ":"
		}
	}
	return fmt.Sprintf("%s[%s]", a.Elem, strings.Join(parts, ", "))
}

func (a *Array) Declare(name string) string {
	return a.String() + " " + name
}

func (a *Array) Equal(other Type) bool {
	o, ok := other.(*Array)
	if !ok || !a.Elem.Equal(o.Elem) || len(a.Axes) != len(o.Axes) {
		return false
	}
	for i := range a.Axes {
		if a.Axes[i] != o.Axes[i] {
			return false
		}
	}
	return true
}

func (a *Array) Hash() uint64 {
	h := a.Elem.Hash()
	for _, ax := range a.Axes {
		h = mix(h, xxh3.HashString(ax.String()))
	}
	return h
}

// AxisContiguity reports whether axis i is compatible with C and with
// Fortran contiguity of the whole array.
func (a *Array) AxisContiguity(i int) (c, f bool) {
	ax := a.Axes[i]
	if ax.IsIndirect() {
		return false, false
	}
	last := len(a.Axes) - 1
	switch ax.Packing {
	case Contig:
		return i == last, i == 0
	case Follow:
		return i != last, i != 0
	}
	return false, false
}

// Contiguity reports whether the array type is C and/or Fortran
// contiguous. Both hold for 0-d arrays, and for 1-d arrays with a
// contiguous axis.
func (a *Array) Contiguity() (c, f bool) {
	c, f = true, true
	for i := range a.Axes {
		ci, fi := a.AxisContiguity(i)
		c = c && ci
		f = f && fi
	}
	return c, f
}

// Order selects C (row-major) or Fortran (column-major) contiguity.
type Order byte

const (
	OrderC Order = 'C'
	OrderF Order = 'F'
)

// IsContiguous checks a concrete strided layout for contiguity in the
// given order. Any non-negative suboffset makes the layout non-contiguous.
// suboffsets may be nil.
func IsContiguous(shape, strides, suboffsets []int, itemsize int, order Order) bool {
	ndim := len(shape)
	start, step := ndim-1, -1
	if order == OrderF {
		start, step = 0, 1
	}
	expected := itemsize
	for i := range ndim {
		idx := start + step*i
		if suboffsets != nil && suboffsets[idx] >= 0 {
			return false
		}
		if strides[idx] != expected {
			return false
		}
		expected *= shape[idx]
	}
	return true
}
