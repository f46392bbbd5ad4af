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

// Package cpuinfo reports the SIMD features of the host CPU.
package cpuinfo

import (
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sys/cpu"
)

// Feature is one named CPU capability.
type Feature struct {
	Name    string
	Present bool
	Note    string
}

// Features describes the host.
type Features struct {
	GOOS   string
	GOARCH string
	NumCPU int
	List   []Feature
}

// Detect reads the host features through golang.org/x/sys/cpu.
func Detect() Features {
	f := Features{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH, NumCPU: runtime.NumCPU()}
	switch runtime.GOARCH {
	case "arm64":
		f.List = arm64Features()
	case "amd64":
		f.List = amd64Features()
	}
	return f
}

// Has reports whether the named feature is present.
func (f Features) Has(name string) bool {
	for _, ft := range f.List {
		if ft.Name == name {
			return ft.Present
		}
	}
	return false
}

func arm64Features() []Feature {
	return []Feature{
		{"ASIMD", cpu.ARM64.HasASIMD, "NEON baseline"},
		{"FP", cpu.ARM64.HasFP, "Floating point"},
		{"FPHP", cpu.ARM64.HasFPHP, "FP16 scalar, ARMv8.2-A"},
		{"ASIMDHP", cpu.ARM64.HasASIMDHP, "FP16 NEON, ARMv8.2-A"},
		{"ASIMDFHM", cpu.ARM64.HasASIMDFHM, "FP16 FMA, ARMv8.4-A"},
		{"SVE", cpu.ARM64.HasSVE, "Scalable Vector Extension"},
		{"SVE2", cpu.ARM64.HasSVE2, ""},
	}
}

func amd64Features() []Feature {
	return []Feature{
		{"SSE2", cpu.X86.HasSSE2, ""},
		{"SSE41", cpu.X86.HasSSE41, ""},
		{"SSE42", cpu.X86.HasSSE42, ""},
		{"AVX", cpu.X86.HasAVX, ""},
		{"AVX2", cpu.X86.HasAVX2, ""},
		{"FMA", cpu.X86.HasFMA, ""},
		{"AVX512F", cpu.X86.HasAVX512F, ""},
		{"AVX512BW", cpu.X86.HasAVX512BW, ""},
		{"AVX512VL", cpu.X86.HasAVX512VL, ""},
	}
}

// Print writes a human-readable report to w.
func (f Features) Print(w io.Writer) {
	fmt.Fprintf(w, "GOOS: %s\n", f.GOOS)
	fmt.Fprintf(w, "GOARCH: %s\n", f.GOARCH)
	fmt.Fprintf(w, "NumCPU: %d\n", f.NumCPU)
	if len(f.List) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "=== golang.org/x/sys/cpu.%s ===\n", archName(f.GOARCH))
	for _, ft := range f.List {
		if ft.Note != "" {
			fmt.Fprintf(w, "  Has%-9s %v (%s)\n", ft.Name+":", ft.Present, ft.Note)
		} else {
			fmt.Fprintf(w, "  Has%-9s %v\n", ft.Name+":", ft.Present)
		}
	}
}

func archName(goarch string) string {
	if goarch == "amd64" {
		return "X86"
	}
	return "ARM64"
}
