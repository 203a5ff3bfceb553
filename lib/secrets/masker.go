// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import "strings"

// maskPlaceholder replaces secret values wherever they appear verbatim
// in captured output.
const maskPlaceholder = "***"

// minMaskLength is the shortest value the masker will redact. Very
// short values ("1", "ok") would wipe out unrelated text all over the
// logs; a job that truly needs such a value as a secret gets no
// masking for it.
const minMaskLength = 4

// Masker redacts known secret values from text before it reaches logs
// or captured step output. A nil Masker is valid and masks nothing.
type Masker struct {
	replacer *strings.Replacer
}

// NewMasker builds a Masker over the given secret values. Values
// shorter than four characters are skipped. Returns nil when nothing
// needs masking, so callers can hold a nil Masker unconditionally.
func NewMasker(values map[string]string) *Masker {
	var pairs []string
	for _, value := range values {
		if len(value) < minMaskLength {
			continue
		}
		pairs = append(pairs, value, maskPlaceholder)
	}
	if len(pairs) == 0 {
		return nil
	}
	return &Masker{replacer: strings.NewReplacer(pairs...)}
}

// Mask returns text with every known secret value replaced by "***".
func (m *Masker) Mask(text string) string {
	if m == nil {
		return text
	}
	return m.replacer.Replace(text)
}
