// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "math"

const (
	recencyWeight   = 0.2
	authorityWeight = 0.4
	relevanceWeight = 0.4

	verificationStep = 0.05
	verificationCap  = 0.15

	// defaultSignal is used for recency and relevance when the caller has no
	// finer-grained signal.
	defaultSignal = 0.5
)

// ScoreQuality combines source signals into a single score in [0, 1]: a
// weighted average of recency (20%), authority (40%), and relevance (40%) plus
// 5% per independent verification, capped at 15%. The total is capped at 1.0.
// Inputs are trusted to lie in [0, 1].
func ScoreQuality(recency, authority, relevance float64, verifications int) float64 {
	base := recency*recencyWeight + authority*authorityWeight + relevance*relevanceWeight
	bonus := math.Min(float64(verifications)*verificationStep, verificationCap)
	return math.Min(base+bonus, 1.0)
}

// SourceQuality describes how much a source can be trusted.
type SourceQuality struct {
	// SourceType is the provenance category.
	SourceType SourceType `json:"source_type" yaml:"source_type"`

	// RecencyScore rates how current the source is (0.0-1.0).
	RecencyScore float64 `json:"recency_score" yaml:"recency_score"`

	// AuthorityScore rates how authoritative the source is (0.0-1.0).
	AuthorityScore float64 `json:"authority_score" yaml:"authority_score"`

	// RelevanceScore rates how relevant the source is to the query (0.0-1.0).
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// VerificationCount is the number of other sources that confirm this one.
	VerificationCount int `json:"verification_count" yaml:"verification_count"`
}

// OverallScore returns the combined quality score in [0, 1].
func (q SourceQuality) OverallScore() float64 {
	return ScoreQuality(q.RecencyScore, q.AuthorityScore, q.RelevanceScore, q.VerificationCount)
}

// QualityOption overrides one signal in NewSourceQuality.
type QualityOption func(*SourceQuality)

// WithRecency sets the recency score.
func WithRecency(v float64) QualityOption {
	return func(q *SourceQuality) { q.RecencyScore = v }
}

// WithAuthority replaces the source type's default authority.
func WithAuthority(v float64) QualityOption {
	return func(q *SourceQuality) { q.AuthorityScore = v }
}

// WithRelevance sets the relevance score.
func WithRelevance(v float64) QualityOption {
	return func(q *SourceQuality) { q.RelevanceScore = v }
}

// WithVerifications sets the verification count.
func WithVerifications(n int) QualityOption {
	return func(q *SourceQuality) { q.VerificationCount = n }
}

// NewSourceQuality builds a SourceQuality for t using the type's default
// authority and 0.5 for recency and relevance unless overridden.
func NewSourceQuality(t SourceType, opts ...QualityOption) SourceQuality {
	q := SourceQuality{
		SourceType:     t,
		RecencyScore:   defaultSignal,
		AuthorityScore: t.Authority(),
		RelevanceScore: defaultSignal,
	}
	for _, o := range opts {
		o(&q)
	}
	return q
}

// Finding is a single piece of recorded evidence. Findings are not edited
// after creation; further corroboration is recorded as a new Finding.
type Finding struct {
	// Content is the evidence text.
	Content string `json:"content" yaml:"content"`

	// SourceURL locates the source.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// SourceTitle is the source's display title.
	SourceTitle string `json:"source_title" yaml:"source_title"`

	// Confidence is the reporter's certainty in the claim (0.0-1.0).
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// VerifiedBy lists URLs of other sources that confirm this finding.
	VerifiedBy []string `json:"verified_by,omitempty" yaml:"verified_by,omitempty"`

	// Quality is the optional source quality assessment.
	Quality *SourceQuality `json:"quality,omitempty" yaml:"quality,omitempty"`
}

// WeightedConfidence returns Confidence scaled by the source's overall quality,
// or Confidence unchanged when no quality is attached. It is recomputed on
// every call.
func (f Finding) WeightedConfidence() float64 {
	if f.Quality == nil {
		return f.Confidence
	}
	return f.Confidence * f.Quality.OverallScore()
}
