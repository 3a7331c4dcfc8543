// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package depth

import (
	"fmt"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

var modeTitles = map[types.ResearchDepth]string{
	types.DepthQuick:      "Quick Research Mode",
	types.DepthStandard:   "Standard Research Mode",
	types.DepthDeep:       "Deep Research Mode (Ralph Loop)",
	types.DepthExhaustive: "Exhaustive Research Mode (Extended Ralph Loop)",
}

// Guidance renders the per-tier instructions appended to iteration prompts:
// search budget, iteration budget, primary sources, and validation rules.
func Guidance(cfg types.DepthConfig) string {
	var b strings.Builder

	title, ok := modeTitles[cfg.Depth]
	if !ok {
		title = "Research Mode"
	}
	fmt.Fprintf(&b, "## %s\n\n", title)
	fmt.Fprintf(&b, "**Search budget**: max %d total searches\n", cfg.MaxSearches)
	fmt.Fprintf(&b, "**Iterations**: up to %d\n", cfg.MaxRalphIterations)
	fmt.Fprintf(&b, "**Primary sources**: %s\n\n", strings.Join(cfg.SourceNames(), " + "))

	if cfg.RequireCrossValidation {
		fmt.Fprintf(&b, "Every major claim needs >= %d independent sources. ", cfg.MinSourcesForClaim)
		b.WriteString("Document contradictions instead of averaging them.\n")
	} else {
		b.WriteString("Cross-validation is optional; mark single-source claims as uncertain.\n")
	}
	fmt.Fprintf(&b, "Research is complete at coverage >= %.2f.\n", cfg.CoverageThreshold)
	return b.String()
}
