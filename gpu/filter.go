// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"slices"
)

// MessageFilter is a deny-list storage filter for the debug info queue.
type MessageFilter struct {
	DenySeverities []MessageSeverity
	DenyIDs        []MessageID
}

// DefaultMessageFilter drops informational chatter and the known-benign
// warnings about mismatched clear colors and null-range map/unmap.
func DefaultMessageFilter() MessageFilter {
	return MessageFilter{
		DenySeverities: []MessageSeverity{SeverityInfo},
		DenyIDs: []MessageID{
			MessageClearRenderTargetViewMismatchingClearValue,
			MessageMapInvalidNullRange,
			MessageUnmapInvalidNullRange,
		},
	}
}

// Validate rejects filters that would hide errors or corruption.
func (f MessageFilter) Validate() error {
	for _, s := range []MessageSeverity{SeverityCorruption, SeverityError} {
		if slices.Contains(f.DenySeverities, s) {
			return fmt.Errorf("gpu: message filter must not deny %s messages", s)
		}
	}
	return nil
}
