// generator.go builds bounded, best-effort event snapshots for failures.

package bytehot

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/rydnr/bytehot-observe/pkg/bytehot"

// rootCauseTimingFactor weights root-cause confidence until real inter-event
// timing is modelled.
const rootCauseTimingFactor = 0.7

// SnapshotConfig bounds what a snapshot captures.
type SnapshotConfig struct {
	// MaxEvents caps the event history; the most recent events are kept.
	MaxEvents int

	// MaxTimeWindow is how far back events are fetched from the store.
	MaxTimeWindow time.Duration

	IncludeCausalAnalysis     bool
	IncludePerformanceMetrics bool

	// EventFilter, when set, must accept an event for it to be captured.
	EventFilter func(Event) bool

	// EventTypePatterns are doublestar globs matched against event types.
	// When non-empty, an event must match at least one.
	EventTypePatterns []string

	// MinCausalConfidence is the lowest root-cause confidence accepted.
	MinCausalConfidence float64
}

// DefaultSnapshotConfig returns the standard limits: 100 events over the last
// five minutes with causal analysis and performance metrics enabled.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		MaxEvents:                 100,
		MaxTimeWindow:             5 * time.Minute,
		IncludeCausalAnalysis:     true,
		IncludePerformanceMetrics: true,
		MinCausalConfidence:       0.3,
	}
}

// Validate reports configuration values that cannot produce a snapshot.
func (c SnapshotConfig) Validate() error {
	if c.MaxEvents < 0 {
		return errors.Newf("max events must not be negative, got %d", c.MaxEvents)
	}
	if c.MaxTimeWindow < 0 {
		return errors.Newf("max time window must not be negative, got %s", c.MaxTimeWindow)
	}
	if c.MinCausalConfidence < 0 || c.MinCausalConfidence > 1 {
		return errors.Newf("min causal confidence must be within [0,1], got %v", c.MinCausalConfidence)
	}
	for _, p := range c.EventTypePatterns {
		if !doublestar.ValidatePattern(p) {
			return errors.Newf("invalid event type pattern %q", p)
		}
	}
	return nil
}

// GeneratorOption configures a SnapshotGenerator.
type GeneratorOption func(*SnapshotGenerator)

// WithSnapshotConfig replaces the default snapshot limits.
func WithSnapshotConfig(cfg SnapshotConfig) GeneratorOption {
	return func(g *SnapshotGenerator) {
		g.config = cfg
	}
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(logger *zap.Logger) GeneratorOption {
	return func(g *SnapshotGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTracer sets the tracer that wraps each generation in a span.
func WithTracer(tracer trace.Tracer) GeneratorOption {
	return func(g *SnapshotGenerator) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// WithClock overrides the source of snapshot timestamps.
func WithClock(clock func() time.Time) GeneratorOption {
	return func(g *SnapshotGenerator) {
		if clock != nil {
			g.clock = clock
			g.capture = append(g.capture, WithCaptureClock(clock))
		}
	}
}

// WithCaptureOptions forwards options to every error context capture.
func WithCaptureOptions(opts ...CaptureOption) GeneratorOption {
	return func(g *SnapshotGenerator) {
		g.capture = append(g.capture, opts...)
	}
}

// SnapshotGenerator pulls recent events from an EventStore and freezes them
// together with the runtime context of a failure. It is safe for concurrent
// use and never returns a nil snapshot.
type SnapshotGenerator struct {
	store   EventStore
	config  SnapshotConfig
	logger  *zap.Logger
	tracer  trace.Tracer
	clock   func() time.Time
	capture []CaptureOption
}

// NewSnapshotGenerator creates a generator reading from store. A nil store
// yields snapshots without event history.
func NewSnapshotGenerator(store EventStore, opts ...GeneratorOption) *SnapshotGenerator {
	g := &SnapshotGenerator{
		store:  store,
		config: DefaultSnapshotConfig(),
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = EventStoreFunc(func(context.Context, time.Time, time.Time) ([]Event, error) {
			return nil, nil
		})
	}
	return g
}

// Config returns the generator's snapshot limits.
func (g *SnapshotGenerator) Config() SnapshotConfig {
	return g.config
}

// GenerateSnapshot captures a snapshot for the current failure. Values of
// additional are stringified into the environment context.
func (g *SnapshotGenerator) GenerateSnapshot(ctx context.Context, additional map[string]any) *EventSnapshot {
	snapshot, _ := g.generate(ctx, additional)
	return snapshot
}

// GenerateSnapshotForError seeds the environment context with the error's
// class, message and stack length.
func (g *SnapshotGenerator) GenerateSnapshotForError(ctx context.Context, err error) *EventSnapshot {
	snapshot, _ := g.generate(ctx, errorContextFields(err))
	return snapshot
}

// CaptureSnapshotError builds the SnapshotError for cause. msg overrides the
// derived message when non-empty. It never fails.
func (g *SnapshotGenerator) CaptureSnapshotError(ctx context.Context, cause error, msg string) *SnapshotError {
	var additional map[string]any
	if cause != nil {
		additional = errorContextFields(cause)
	}
	snapshot, errCtx := g.generate(ctx, additional)
	if msg == "" {
		return WrapSnapshotError(cause, snapshot, errCtx)
	}
	return NewSnapshotError(msg, snapshot, errCtx, cause)
}

func errorContextFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	return map[string]any{
		"exceptionType":    ClassName(err),
		"exceptionMessage": errorMessage(err),
		"stackTraceLength": stackTraceLength(err),
	}
}

func (g *SnapshotGenerator) generate(ctx context.Context, additional map[string]any) (snapshot *EventSnapshot, errCtx *ErrorContext) {
	ctx, span := g.tracer.Start(ctx, "bytehot.snapshot.generate")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := errors.Newf("snapshot generation panicked: %v", r)
			snapshot = g.fallback(ctx, span, err)
			if errCtx == nil {
				errCtx = fallbackErrorContext(g.clock())
			}
		}
	}()

	errCtx = newCaptureConfig(g.capture).capture(ctx, 2)
	now := errCtx.CapturedAt
	cutoff := now.Add(-g.config.MaxTimeWindow)

	events, err := g.store.EventsBetween(ctx, cutoff, now)
	if err != nil {
		return g.fallback(ctx, span, errors.Wrap(err, "fetch events")), errCtx
	}

	events = limitEvents(g.filter(events), g.config.MaxEvents)

	var chain *CausalChain
	if g.config.IncludeCausalAnalysis && len(events) > 0 {
		chain = g.analyzeCausalChain(events)
	}

	metrics := map[string]any{}
	if g.config.IncludePerformanceMetrics {
		metrics = performanceMetrics(now)
	}

	env := environmentContext(now)
	for k, v := range additional {
		env[k] = fmt.Sprint(v)
	}

	snapshot = &EventSnapshot{
		SnapshotID:         uuid.NewString(),
		CapturedAt:         now,
		Events:             events,
		User:               errCtx.User,
		EnvironmentContext: env,
		ThreadName:         errCtx.ThreadName,
		SystemProperties:   errCtx.SystemProperties,
		CausalChain:        chain,
		PerformanceMetrics: metrics,
	}

	span.SetAttributes(
		attribute.String("bytehot.snapshot.id", snapshot.SnapshotID),
		attribute.Int("bytehot.snapshot.events", len(events)),
		attribute.Bool("bytehot.snapshot.causal_chain", chain != nil),
	)
	return snapshot, errCtx
}

func (g *SnapshotGenerator) filter(events []Event) []Event {
	if g.config.EventFilter == nil && len(g.config.EventTypePatterns) == 0 {
		return events
	}
	result := make([]Event, 0, len(events))
	for _, e := range events {
		if g.config.EventFilter != nil && !g.config.EventFilter(e) {
			continue
		}
		if !matchesAnyPattern(g.config.EventTypePatterns, e.EventType) {
			continue
		}
		result = append(result, e)
	}
	return result
}

func matchesAnyPattern(patterns []string, eventType string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, eventType); err == nil && ok {
			return true
		}
	}
	return false
}

// analyzeCausalChain picks the first error-like event as root cause, or the
// first event when none looks like an error.
func (g *SnapshotGenerator) analyzeCausalChain(events []Event) (chain *CausalChain) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("causal analysis failed", zap.Any("panic", r))
			empty := EmptyCausalChain()
			chain = &empty
		}
	}()

	if len(events) < 2 {
		return nil
	}

	rootIdx := 0
	for i, e := range events {
		t := strings.ToLower(e.EventType)
		if strings.Contains(t, "error") || strings.Contains(t, "fail") || strings.Contains(t, "reject") {
			rootIdx = i
			break
		}
	}

	confidence := RootCauseConfidence(rootIdx, len(events))
	var result CausalChain
	if confidence >= g.config.MinCausalConfidence {
		result = CausalChainFromRootCause(events[rootIdx], confidence).
			AddContributingFactor("Event sequence analysis")
	} else {
		result = EmptyCausalChain()
	}
	return &result
}

// RootCauseConfidence scores a root cause at index idx of n events. Earlier
// events score higher.
func RootCauseConfidence(idx, n int) float64 {
	if n <= 0 {
		return 0
	}
	positionFactor := 1 - float64(idx)/float64(n)
	return min(1.0, positionFactor*0.6+rootCauseTimingFactor*0.4)
}

func environmentContext(now time.Time) map[string]string {
	return map[string]string{
		"timestamp":    formatInstant(now),
		"javaVersion":  runtime.Version(),
		"goVersion":    runtime.Version(),
		"osName":       runtime.GOOS,
		"osVersion":    runtime.GOARCH,
		"userTimezone": time.Local.String(),
	}
}

func (g *SnapshotGenerator) fallback(ctx context.Context, span trace.Span, cause error) *EventSnapshot {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "fallback snapshot")
	g.logger.Warn("snapshot generation failed, using fallback", zap.Error(cause))

	named, _ := ThreadNameFromContext(ctx)
	gid, _ := goroutineInfo()
	return &EventSnapshot{
		SnapshotID: uuid.NewString(),
		CapturedAt: g.clock(),
		Events:     []Event{},
		EnvironmentContext: map[string]string{
			"fallback": "true",
			"error":    cause.Error(),
		},
		ThreadName: threadName(named, gid),
		SystemProperties: map[string]string{
			"java.version": runtime.Version(),
		},
		PerformanceMetrics: map[string]any{
			"fallbackGeneration": true,
		},
	}
}
