// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ralph

import (
	"math"

	"github.com/pdiddy/deep-research/pkg/types"
)

const (
	// quantityTarget is the finding count at which the quantity factor saturates.
	quantityTarget = 10

	// diversityTarget is the number of distinct source types for full diversity.
	diversityTarget = 4

	// diversityFloor is the share of coverage that does not depend on diversity.
	diversityFloor = 0.8

	// unknownSource buckets findings that carry no quality assessment.
	unknownSource = "unknown"
)

// Coverage estimates research completeness in [0, 1] as
//
//	avg(weighted confidence) * min(n/10, 1) * (0.8 + 0.2*diversity)
//
// Coverage cannot approach 1 until at least ten findings exist, and a flood of
// findings from a single source type loses up to 20%.
func Coverage(findings []types.Finding) float64 {
	if len(findings) == 0 {
		return 0.0
	}

	var sum float64
	for _, f := range findings {
		sum += f.WeightedConfidence()
	}
	avg := sum / float64(len(findings))

	quantity := math.Min(float64(len(findings))/quantityTarget, 1.0)
	diversity := SourceDiversity(findings)

	return avg * quantity * (diversityFloor + (1-diversityFloor)*diversity)
}

// SourceDiversity returns the number of distinct source types among findings
// divided by four, capped at 1. Findings without quality share one "unknown"
// bucket.
func SourceDiversity(findings []types.Finding) float64 {
	if len(findings) == 0 {
		return 0.0
	}
	seen := make(map[string]struct{})
	for _, f := range findings {
		key := unknownSource
		if f.Quality != nil {
			key = f.Quality.SourceType.String()
		}
		seen[key] = struct{}{}
	}
	return math.Min(float64(len(seen))/diversityTarget, 1.0)
}
