// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-research loop:
// source provenance, source quality, findings, depth tiers, and per-component
// configuration.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSourceType is returned when a string does not name a SourceType.
var ErrUnknownSourceType = errors.New("unknown source type")

// SourceType is the provenance category of a finding. The set is closed: values
// outside the declared constants are rejected by ParseSourceType and by text
// unmarshaling, so an unrecognized name never silently gets a default authority.
type SourceType uint8

const (
	SourceWeb SourceType = iota + 1
	SourceArxiv
	SourceGitHub
	SourceDocs
	SourceLocal
)

// AllSourceTypes returns every SourceType in declaration order.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceWeb, SourceArxiv, SourceGitHub, SourceDocs, SourceLocal}
}

// String returns the lowercase wire name ("web", "arxiv", ...).
func (t SourceType) String() string {
	switch t {
	case SourceWeb:
		return "web"
	case SourceArxiv:
		return "arxiv"
	case SourceGitHub:
		return "github"
	case SourceDocs:
		return "docs"
	case SourceLocal:
		return "local"
	default:
		return fmt.Sprintf("SourceType(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the declared source types.
func (t SourceType) Valid() bool {
	return t >= SourceWeb && t <= SourceLocal
}

// Authority returns the fixed default authority weight for the source type:
// academic papers rank highest, general web results lowest.
func (t SourceType) Authority() float64 {
	switch t {
	case SourceArxiv:
		return 0.90
	case SourceDocs:
		return 0.85
	case SourceGitHub:
		return 0.70
	case SourceLocal:
		return 0.60
	case SourceWeb:
		return 0.50
	default:
		return 0
	}
}

// ParseSourceType maps a wire name to a SourceType. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseSourceType(s string) (SourceType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, t := range AllSourceTypes() {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSourceType, s)
}

// MarshalText encodes the source type as its wire name for JSON and YAML.
func (t SourceType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSourceType, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a wire name, rejecting unknown values.
func (t *SourceType) UnmarshalText(text []byte) error {
	parsed, err := ParseSourceType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
