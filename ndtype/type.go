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

// Package ndtype describes the types seen by the loop generator: strided
// arrays with per-axis access and packing specs, C scalars, pointers, the
// index integer and char.
//
// Types are immutable values. Equality is structural and every type can
// report its C spelling for casts and declarations.
package ndtype

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// Kind tags the Type variants.
type Kind int

const (
	KindScalar Kind = iota
	KindArray
	KindPointer
	KindIndex
	KindChar
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindPointer:
		return "pointer"
	case KindIndex:
		return "index"
	case KindChar:
		return "char"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Type is implemented by *Scalar, *Array, *Pointer, IndexInteger and
// CharT. The set is closed; switch on Kind or a type switch.
type Type interface {
	Kind() Kind
	// String returns the C spelling used inside a cast, e.g. "double *".
	String() string
	// Declare returns a C declaration of name with this type.
	Declare(name string) string
	Equal(other Type) bool
	Hash() uint64
}

// Scalar is a C arithmetic type. Constant marks compile-time constants.
type Scalar struct {
	Name     string
	Constant bool
}

func (s *Scalar) Kind() Kind     { return KindScalar }
func (s *Scalar) String() string { return s.Name }

func (s *Scalar) Declare(name string) string {
	return s.Name + " " + name
}

func (s *Scalar) Equal(other Type) bool {
	o, ok := other.(*Scalar)
	return ok && o.Name == s.Name && o.Constant == s.Constant
}

func (s *Scalar) Hash() uint64 {
	if s.Constant {
		return xxh3.HashString("const " + s.Name)
	}
	return xxh3.HashString(s.Name)
}

// AsConstant returns a constant copy of s.
func (s *Scalar) AsConstant() *Scalar {
	return &Scalar{Name: s.Name, Constant: true}
}

// Pointer is a C pointer to Base.
type Pointer struct {
	Base Type
}

func (p *Pointer) Kind() Kind { return KindPointer }

func (p *Pointer) String() string {
	base := p.Base.String()
	if strings.HasSuffix(base, "*") {
		return base + "*"
	}
	return base + " *"
}

func (p *Pointer) Declare(name string) string {
	return p.String() + name
}

func (p *Pointer) Equal(other Type) bool {
	o, ok := other.(*Pointer)
	return ok && p.Base.Equal(o.Base)
}

func (p *Pointer) Hash() uint64 {
	return mix(xxh3.HashString("*"), p.Base.Hash())
}

// IndexInteger is the signed integer type used for loop indices, extents
// and strides.
type IndexInteger struct{}

func (IndexInteger) Kind() Kind                 { return KindIndex }
func (IndexInteger) String() string             { return "ptrdiff_t" }
func (IndexInteger) Declare(name string) string { return "ptrdiff_t " + name }
func (IndexInteger) Hash() uint64               { return xxh3.HashString("ptrdiff_t") }

func (IndexInteger) Equal(other Type) bool {
	_, ok := other.(IndexInteger)
	return ok
}

// CharT is C char, used for byte-granular pointer arithmetic.
type CharT struct{}

func (CharT) Kind() Kind                 { return KindChar }
func (CharT) String() string             { return "char" }
func (CharT) Declare(name string) string { return "char " + name }
func (CharT) Hash() uint64               { return xxh3.HashString("char") }

func (CharT) Equal(other Type) bool {
	_, ok := other.(CharT)
	return ok
}

// Predeclared types.
var (
	Index    Type = IndexInteger{}
	Char     Type = CharT{}
	Int           = &Scalar{Name: "int"}
	Float32       = &Scalar{Name: "float"}
	Float64       = &Scalar{Name: "double"}
	Int8          = &Scalar{Name: "signed char"}
	Int16         = &Scalar{Name: "short"}
	Int32         = &Scalar{Name: "int"}
	Int64         = &Scalar{Name: "long long"}
	Uint8         = &Scalar{Name: "unsigned char"}
	Uint16        = &Scalar{Name: "unsigned short"}
	Uint32        = &Scalar{Name: "unsigned int"}
	Uint64        = &Scalar{Name: "unsigned long long"}
	CharPtr       = PointerTo(Char)
)

// goScalars maps Go element type names to their C scalar types.
var goScalars = map[string]*Scalar{
	"float32": Float32,
	"float64": Float64,
	"int8":    Int8,
	"int16":   Int16,
	"int32":   Int32,
	"int64":   Int64,
	"uint8":   Uint8,
	"uint16":  Uint16,
	"uint32":  Uint32,
	"uint64":  Uint64,
	"int":     Int64,
	"byte":    Uint8,
}

// ParseScalar returns the C scalar type for a Go element type name such as
// "float32".
func ParseScalar(name string) (*Scalar, error) {
	s, ok := goScalars[name]
	if !ok {
		return nil, fmt.Errorf("unknown element type: %s", name)
	}
	return s, nil
}

// ElemSize returns the size in bytes of a Go element type name, or 0 when
// unknown.
func ElemSize(name string) int {
	switch name {
	case "float32", "int32", "uint32":
		return 4
	case "float64", "int64", "uint64", "int":
		return 8
	case "int16", "uint16":
		return 2
	case "int8", "uint8", "byte":
		return 1
	default:
		return 0
	}
}

// PointerTo returns a pointer type to base.
func PointerTo(base Type) *Pointer {
	return &Pointer{Base: base}
}

// IsArray reports whether t is an array type.
func IsArray(t Type) bool { return t != nil && t.Kind() == KindArray }

// IsPointer reports whether t is a pointer type.
func IsPointer(t Type) bool { return t != nil && t.Kind() == KindPointer }

// IsScalar reports whether t is a non-array value type.
func IsScalar(t Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case KindScalar, KindIndex, KindChar:
		return true
	}
	return false
}

// IsConstant reports whether t is a constant scalar.
func IsConstant(t Type) bool {
	s, ok := t.(*Scalar)
	return ok && s.Constant
}

// NDim returns the dimensionality of t; non-array types are 0-d.
func NDim(t Type) int {
	if a, ok := t.(*Array); ok {
		return len(a.Axes)
	}
	return 0
}

func mix(h, v uint64) uint64 {
	h ^= v + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
	return h
}
