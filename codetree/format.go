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

package codetree

import "strings"

// Formatter turns flattened fragments into the final text.
type Formatter interface {
	Format(value string) string
	// FormatValues formats all fragments of a flattened tree.
	FormatValues(values []string) string
}

// StringFormatter concatenates fragments unchanged.
type StringFormatter struct{}

func (StringFormatter) Format(value string) string { return value }

func (f StringFormatter) FormatValues(values []string) string {
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString(f.Format(v))
	}
	return sb.String()
}
