// detector.go matches event sequences against the known flow patterns.

package flow

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// ResponseKind distinguishes the responses an Analyzer can return.
type ResponseKind string

const (
	ResponseFlowDiscovered      ResponseKind = "FlowDiscovered"
	ResponseFlowDetectionFailed ResponseKind = "FlowDetectionFailed"
)

// AnalysisRequest asks an Analyzer to find flows in a sequence of events.
type AnalysisRequest struct {
	AnalysisID        string
	Events            []bytehot.Event
	MinimumConfidence float64

	// WindowStart and Window bound the period the events were drawn from.
	WindowStart time.Time
	Window      time.Duration

	RequestedBy string
	RequestedAt time.Time
}

// AnalysisResponse is one result of an analysis.
type AnalysisResponse struct {
	Kind             ResponseKind
	AnalysisID       string
	Flow             Flow
	TriggeringEvents []bytehot.Event
	Confidence       float64
	DiscoveredAt     time.Time
}

// Analyzer finds flows in an event sequence.
type Analyzer interface {
	AnalyzeEventSequence(ctx context.Context, req AnalysisRequest) ([]AnalysisResponse, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, req AnalysisRequest) ([]AnalysisResponse, error)

func (f AnalyzerFunc) AnalyzeEventSequence(ctx context.Context, req AnalysisRequest) ([]AnalysisResponse, error) {
	return f(ctx, req)
}

// Detector is the default Analyzer. It matches events against a fixed set of
// patterns and scores each match by completeness and elapsed time.
type Detector struct {
	patterns []Flow
	clock    func() time.Time
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithPatterns replaces the known patterns.
func WithPatterns(patterns ...Flow) DetectorOption {
	return func(d *Detector) {
		d.patterns = patterns
	}
}

// WithDetectorClock overrides the discovery timestamp source.
func WithDetectorClock(clock func() time.Time) DetectorOption {
	return func(d *Detector) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDetector creates a detector for the known flow patterns.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		patterns: KnownPatterns(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// KnownPatterns returns the built-in flow patterns.
func KnownPatterns() []Flow {
	return []Flow{
		{
			ID:          mustIDFromName("hot-swap-complete"),
			Name:        "Hot-Swap Complete Flow",
			Description: "Complete hot-swap operation from file change to instance update",
			EventSequence: []string{
				"ClassFileChanged",
				"ClassMetadataExtracted",
				"BytecodeValidated",
				"HotSwapRequested",
				"ClassRedefinitionSucceeded",
				"InstancesUpdated",
			},
			MinimumEventCount: 4,
			MaximumTimeWindow: 30 * time.Second,
			Confidence:        0.95,
		},
		{
			ID:                mustIDFromName("user-session"),
			Name:              "User Session Flow",
			Description:       "User authentication and session management",
			EventSequence:     []string{"FlowAnalysisRequested", "UserAuthenticated", "UserSessionStarted"},
			MinimumEventCount: 2,
			MaximumTimeWindow: 5 * time.Minute,
			Confidence:        0.90,
		},
		{
			ID:                mustIDFromName("error-recovery"),
			Name:              "Error Recovery Flow",
			Description:       "System error detection and recovery process",
			EventSequence:     []string{"ClassRedefinitionFailed"},
			MinimumEventCount: 1,
			MaximumTimeWindow: 2 * time.Minute,
			Confidence:        0.85,
		},
	}
}

// AnalyzeEventSequence returns one FlowDiscovered response per pattern that
// matches req.Events with at least req.MinimumConfidence.
func (d *Detector) AnalyzeEventSequence(ctx context.Context, req AnalysisRequest) ([]AnalysisResponse, error) {
	if len(req.Events) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysisID := req.AnalysisID
	if analysisID == "" {
		analysisID = uuid.NewString()
	}

	var discovered []AnalysisResponse
	for _, pattern := range d.patterns {
		if !matchesPattern(req.Events, pattern, req.MinimumConfidence) {
			continue
		}
		discovered = append(discovered, AnalysisResponse{
			Kind:             ResponseFlowDiscovered,
			AnalysisID:       analysisID,
			Flow:             pattern,
			TriggeringEvents: req.Events,
			Confidence:       PatternConfidence(req.Events, pattern),
			DiscoveredAt:     d.clock(),
		})
	}
	return discovered, nil
}

func matchesPattern(events []bytehot.Event, pattern Flow, minConfidence float64) bool {
	if len(events) < pattern.MinimumEventCount {
		return false
	}
	if !pattern.Matches(events) {
		return false
	}
	return PatternConfidence(events, pattern) >= minConfidence
}

// PatternConfidence scores how well events fit pattern. The pattern's own
// confidence is scaled by completeness, by how far the events overrun the
// time window (never below half), and halved when the condition fails.
func PatternConfidence(events []bytehot.Event, pattern Flow) float64 {
	confidence := pattern.Confidence
	if n := len(pattern.EventSequence); n > 0 {
		confidence *= math.Min(1, float64(len(events))/float64(n))
	}

	if len(events) > 1 {
		actual := events[len(events)-1].Timestamp.Sub(events[0].Timestamp)
		if actual > pattern.MaximumTimeWindow && actual.Milliseconds() > 0 {
			ratio := float64(pattern.MaximumTimeWindow.Milliseconds()) / float64(actual.Milliseconds())
			confidence *= math.Max(0.5, ratio)
		}
	}

	if pattern.Condition != nil && !pattern.Condition.Evaluate(events) {
		confidence *= 0.5
	}
	return clamp01(confidence)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
