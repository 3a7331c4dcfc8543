// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ralph

import "github.com/pdiddy/deep-research/pkg/types"

// FindingStore is an append-only, insertion-ordered collection of findings.
// It never deduplicates: two findings with the same URL or content count as
// independent evidence, and merging is the caller's decision.
type FindingStore struct {
	findings []types.Finding
}

// Add appends f.
func (s *FindingStore) Add(f types.Finding) {
	s.findings = append(s.findings, f)
}

// All returns the findings in insertion order. The returned slice is a copy.
func (s *FindingStore) All() []types.Finding {
	out := make([]types.Finding, len(s.findings))
	copy(out, s.findings)
	return out
}

// Len returns the number of findings.
func (s *FindingStore) Len() int {
	return len(s.findings)
}
