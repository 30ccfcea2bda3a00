// causal.go models inferred cause→effect relationships between events.

package bytehot

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"
)

// CausalLink connects a cause event to an effect event.
type CausalLink struct {
	Cause          Event
	Effect         Event
	TimeDelta      time.Duration
	LinkConfidence float64
	Relationship   string
}

// CausalChain is a linear chain of causal links rooted at an optional root
// cause. Confidence is always within [0,1]. A chain is never mutated;
// AddContributingFactor returns a new chain.
type CausalChain struct {
	RootCause           *Event
	Links               []CausalLink
	Confidence          float64
	ContributingFactors []string
	AnalysisMetadata    map[string]any
}

// NewCausalChain builds a chain, clamping confidence to [0,1].
func NewCausalChain(root *Event, links []CausalLink, confidence float64, factors []string, metadata map[string]any) CausalChain {
	if links == nil {
		links = []CausalLink{}
	}
	if factors == nil {
		factors = []string{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return CausalChain{
		RootCause:           root,
		Links:               links,
		Confidence:          clamp01(confidence),
		ContributingFactors: factors,
		AnalysisMetadata:    metadata,
	}
}

// EmptyCausalChain returns a chain with no root cause and zero confidence.
func EmptyCausalChain() CausalChain {
	return NewCausalChain(nil, nil, 0, nil, nil)
}

// CausalChainFromRootCause returns a link-less chain rooted at root.
func CausalChainFromRootCause(root Event, confidence float64) CausalChain {
	return NewCausalChain(&root, nil, confidence, nil, map[string]any{"analysisType": "simple"})
}

// ChainLength returns the number of links.
func (c CausalChain) ChainLength() int {
	return len(c.Links)
}

// IsHighConfidence reports whether confidence exceeds 0.8.
func (c CausalChain) IsHighConfidence() bool {
	return c.Confidence > 0.8
}

// HasRootCause reports whether a root cause was identified.
func (c CausalChain) HasRootCause() bool {
	return c.RootCause != nil
}

// TotalDuration sums the time deltas of all links.
func (c CausalChain) TotalDuration() time.Duration {
	var total time.Duration
	for _, l := range c.Links {
		total += l.TimeDelta
	}
	return total
}

// WeakestLink returns the link with the lowest confidence.
func (c CausalChain) WeakestLink() (CausalLink, bool) {
	if len(c.Links) == 0 {
		return CausalLink{}, false
	}
	return slices.MinFunc(c.Links, func(a, b CausalLink) int {
		switch {
		case a.LinkConfidence < b.LinkConfidence:
			return -1
		case a.LinkConfidence > b.LinkConfidence:
			return 1
		}
		return 0
	}), true
}

// Description renders the chain as "Root cause: A → B → C (confidence: N%)".
func (c CausalChain) Description() string {
	if len(c.Links) == 0 {
		if c.RootCause != nil {
			return "Root cause identified: " + c.RootCause.EventType
		}
		return "No clear causal pattern detected"
	}

	var b strings.Builder
	if c.RootCause != nil {
		b.WriteString("Root cause: ")
		b.WriteString(c.RootCause.EventType)
		b.WriteString(" → ")
	}
	for i, l := range c.Links {
		if i > 0 {
			b.WriteString(" → ")
		}
		b.WriteString(l.Effect.EventType)
	}
	fmt.Fprintf(&b, " (confidence: %.1f%%)", c.Confidence*100)
	return b.String()
}

// RelatedEvents returns the distinct events of links whose delta is within maxDelta.
func (c CausalChain) RelatedEvents(maxDelta time.Duration) []Event {
	seen := make(map[string]bool)
	var result []Event
	add := func(e Event) {
		key := e.EventID
		if key == "" {
			key = e.EventType + "@" + e.Timestamp.String()
		}
		if seen[key] {
			return
		}
		seen[key] = true
		result = append(result, e)
	}
	for _, l := range c.Links {
		if l.TimeDelta <= maxDelta {
			add(l.Cause)
			add(l.Effect)
		}
	}
	return result
}

// HasPattern reports whether analysis metadata lists the named pattern.
func (c CausalChain) HasPattern(pattern string) bool {
	return slices.Contains(metadataStrings(c.AnalysisMetadata, "patterns"), pattern)
}

// DebuggingSuggestions returns the suggestions recorded by the analysis.
func (c CausalChain) DebuggingSuggestions() []string {
	return metadataStrings(c.AnalysisMetadata, "debuggingSuggestions")
}

// AddContributingFactor returns a copy of the chain with one more factor.
func (c CausalChain) AddContributingFactor(factor string) CausalChain {
	factors := append(slices.Clone(c.ContributingFactors), factor)
	return CausalChain{
		RootCause:           c.RootCause,
		Links:               c.Links,
		Confidence:          c.Confidence,
		ContributingFactors: factors,
		AnalysisMetadata:    maps.Clone(c.AnalysisMetadata),
	}
}

func metadataStrings(meta map[string]any, key string) []string {
	switch v := meta[key].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
