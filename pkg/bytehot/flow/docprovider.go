// docprovider.go builds documentation links, contextualised by the flow the
// agent is currently executing.

package flow

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

const (
	// DefaultBaseURL is the root of the published documentation.
	DefaultBaseURL = "https://rydnr.github.io/bytehot"

	DefaultURLTTL            = 30 * time.Minute
	DefaultFlowTTL           = 30 * time.Second
	DefaultRecentEventWindow = 5 * time.Minute
	DefaultMaxRecentEvents   = 10

	currentFlowKey          = "current_flow"
	minDiscoveredConfidence = 0.6
	simpleFlowDescription   = "Flow detected for documentation purposes with confidence scoring"
)

// Option configures a DocProvider.
type Option func(*DocProvider)

// WithBaseURL sets the documentation root. A trailing slash is removed.
func WithBaseURL(url string) Option {
	return func(p *DocProvider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithAnalyzer replaces the default Detector.
func WithAnalyzer(a Analyzer) Option {
	return func(p *DocProvider) {
		if a != nil {
			p.analyzer = a
		}
	}
}

// WithClock overrides the time source used for caching and event eviction.
func WithClock(clock func() time.Time) Option {
	return func(p *DocProvider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithStackSource overrides how the current call stack is read.
func WithStackSource(stack func() []bytehot.StackFrame) Option {
	return func(p *DocProvider) {
		if stack != nil {
			p.stack = stack
		}
	}
}

// WithLogger sets the logger used for detection fallbacks.
func WithLogger(logger *zap.Logger) Option {
	return func(p *DocProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithCacheTTLs sets how long documentation URLs and detected flows are cached.
func WithCacheTTLs(urls, flows time.Duration) Option {
	return func(p *DocProvider) {
		if urls > 0 {
			p.urlTTL = urls
		}
		if flows > 0 {
			p.flowTTL = flows
		}
	}
}

// WithRecentEvents bounds the recent-event buffer by age and size.
func WithRecentEvents(window time.Duration, limit int) Option {
	return func(p *DocProvider) {
		if window > 0 {
			p.window = window
		}
		if limit > 0 {
			p.maxRecent = limit
		}
	}
}

// DocProvider resolves documentation URLs for classes and detects the flow
// the agent is currently in, from a rolling buffer of recent events or, as a
// fallback, from the call stack. It is safe for concurrent use.
type DocProvider struct {
	baseURL   string
	analyzer  Analyzer
	clock     func() time.Time
	stack     func() []bytehot.StackFrame
	logger    *zap.Logger
	urlTTL    time.Duration
	flowTTL   time.Duration
	window    time.Duration
	maxRecent int

	docs  *ttlCache[string]
	flows *ttlCache[Flow]

	mu     sync.Mutex
	recent []bytehot.Event

	detect singleflight.Group

	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	flowDetectionCalls atomic.Int64
}

// NewDocProvider creates a provider backed by the known-pattern Detector.
func NewDocProvider(opts ...Option) *DocProvider {
	p := &DocProvider{
		baseURL:   DefaultBaseURL,
		clock:     time.Now,
		stack:     func() []bytehot.StackFrame { return bytehot.CaptureStack(1) },
		logger:    zap.NewNop(),
		urlTTL:    DefaultURLTTL,
		flowTTL:   DefaultFlowTTL,
		window:    DefaultRecentEventWindow,
		maxRecent: DefaultMaxRecentEvents,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.analyzer == nil {
		p.analyzer = NewDetector(WithDetectorClock(p.clock))
	}
	p.docs = newTTLCache[string](p.urlTTL, p.clock)
	p.flows = newTTLCache[Flow](p.flowTTL, p.clock)
	return p
}

// AddRecentEvent appends ev to the recent-event buffer, then evicts events
// older than the window and keeps at most the configured number of newest.
func (p *DocProvider) AddRecentEvent(ev bytehot.Event) {
	cutoff := p.clock().Add(-p.window)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.recent = append(p.recent, ev)
	kept := p.recent[:0]
	for _, e := range p.recent {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	if len(kept) > p.maxRecent {
		kept = kept[len(kept)-p.maxRecent:]
	}
	p.recent = append([]bytehot.Event(nil), kept...)
}

// RecentEvents returns a copy of the recent-event buffer.
func (p *DocProvider) RecentEvents() []bytehot.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bytehot.Event(nil), p.recent...)
}

// DocumentationURL returns the class documentation page for a fully
// qualified class name.
func (p *DocProvider) DocumentationURL(className string) string {
	return p.cachedURL("doc:"+className, func() string {
		return p.basicURL(className)
	})
}

// MethodDocumentationURL returns the class page anchored at method.
func (p *DocProvider) MethodDocumentationURL(className, method string) string {
	return p.cachedURL("method:"+className+"#"+method, func() string {
		return p.basicURL(className) + "#" + method
	})
}

// ContextualDocumentationURL returns the page describing className within
// the currently detected flow, or the plain class page when no flow is
// detected.
func (p *DocProvider) ContextualDocumentationURL(ctx context.Context, className string) string {
	p.flowDetectionCalls.Add(1)
	if f, ok := p.DetectCurrentFlow(ctx); ok {
		return p.FlowDocumentationURL(className, f)
	}
	return p.DocumentationURL(className)
}

// FlowDocumentationURL returns the page describing className within f. The
// flow name is lower-cased with runs of other characters turned into "-".
func (p *DocProvider) FlowDocumentationURL(className string, f Flow) string {
	flowName := strings.Trim(nonAlphanumeric.ReplaceAllString(strings.ToLower(f.Name), "-"), "-")
	return p.baseURL + "/flows/" + flowName + "/" + simpleName(className) + "-in-" + flowName + ".html"
}

// TestingDocumentationURL returns the testing guide for className.
func (p *DocProvider) TestingDocumentationURL(className string) string {
	return p.baseURL + "/testing/" + simpleName(className) + "-testing.html"
}

// HasContextualDocumentation reports whether a flow is cached or can be
// detected from the current call stack.
func (p *DocProvider) HasContextualDocumentation(string) bool {
	if _, ok := p.flows.Get(currentFlowKey); ok {
		return true
	}
	for _, f := range p.stack() {
		if strings.Contains(f.Function, "bytehot") {
			return true
		}
	}
	return false
}

// DetectCurrentFlow returns the cached flow, or detects one from recent
// events and caches it, or falls back to call-stack heuristics. Concurrent
// event-based detections share a single analysis.
func (p *DocProvider) DetectCurrentFlow(ctx context.Context) (Flow, bool) {
	if f, ok := p.flows.Get(currentFlowKey); ok {
		return f, true
	}

	v, _, _ := p.detect.Do(currentFlowKey, func() (any, error) {
		if f, ok := p.flows.Get(currentFlowKey); ok {
			return &f, nil
		}
		f, ok := p.detectFromEvents(ctx)
		if !ok {
			return (*Flow)(nil), nil
		}
		p.flows.Put(currentFlowKey, f)
		p.logger.Debug("flow detected from recent events",
			zap.String("flow", f.Name),
			zap.Float64("confidence", f.Confidence),
		)
		return &f, nil
	})
	if f, _ := v.(*Flow); f != nil {
		return *f, true
	}

	return p.detectFromCallStack()
}

// Metrics is a point-in-time view of the provider's counters.
type Metrics struct {
	CacheHits          int64   `json:"cache_hits"`
	CacheMisses        int64   `json:"cache_misses"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	FlowDetectionCalls int64   `json:"flow_detection_calls"`
	CachedDocs         int     `json:"cached_docs"`
	CachedFlows        int     `json:"cached_flows"`
	RecentEvents       int     `json:"recent_events_count"`
	IntegrationActive  bool    `json:"integration_active"`
}

// PerformanceMetrics returns the provider's cache and detection counters.
func (p *DocProvider) PerformanceMetrics() Metrics {
	hits, misses := p.cacheHits.Load(), p.cacheMisses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	p.mu.Lock()
	recent := len(p.recent)
	p.mu.Unlock()

	return Metrics{
		CacheHits:          hits,
		CacheMisses:        misses,
		CacheHitRate:       rate,
		FlowDetectionCalls: p.flowDetectionCalls.Load(),
		CachedDocs:         p.docs.Len(),
		CachedFlows:        p.flows.Len(),
		RecentEvents:       recent,
		IntegrationActive:  true,
	}
}

func (p *DocProvider) cachedURL(key string, build func() string) string {
	if url, ok := p.docs.Get(key); ok {
		p.cacheHits.Add(1)
		return url
	}
	p.cacheMisses.Add(1)
	url := build()
	p.docs.Put(key, url)
	return url
}

func (p *DocProvider) basicURL(className string) string {
	return p.baseURL + "/docs/" + strings.ReplaceAll(packageName(className), ".", "/") + "/" + simpleName(className) + ".html"
}

// detectFromEvents asks the analyzer about the recent events and falls back
// to simple type matching when it fails.
func (p *DocProvider) detectFromEvents(ctx context.Context) (Flow, bool) {
	events := p.RecentEvents()
	if len(events) == 0 {
		return Flow{}, false
	}

	analysis := analyzeEvents(events)
	now := p.clock()
	req := AnalysisRequest{
		AnalysisID:        uuid.NewString(),
		Events:            events,
		MinimumConfidence: dynamicMinimumConfidence(analysis),
		WindowStart:       now.Add(-DefaultRecentEventWindow),
		Window:            DefaultRecentEventWindow,
		RequestedBy:       "DocProvider",
		RequestedAt:       now,
	}

	responses, err := p.analyze(ctx, req)
	if err != nil {
		p.logger.Debug("flow analysis failed, matching event types instead", zap.Error(err))
		return p.detectFromEventTypes(events)
	}

	best, ok := selectBestDiscovered(responses, analysis)
	if !ok {
		return Flow{}, false
	}
	f, err := best.Flow.WithConfidence(p.enhance(best.Flow.Name, best.Confidence, events))
	if err != nil {
		return Flow{}, false
	}
	return f, true
}

func (p *DocProvider) analyze(ctx context.Context, req AnalysisRequest) (responses []AnalysisResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("flow analyzer panicked: %v", r)
		}
	}()
	return p.analyzer.AnalyzeEventSequence(ctx, req)
}

func (p *DocProvider) detectFromEventTypes(events []bytehot.Event) (Flow, bool) {
	hasType := func(match func(string) bool) bool {
		for _, ev := range events {
			if match(ev.EventType) {
				return true
			}
		}
		return false
	}

	switch {
	case hasType(func(t string) bool { return containsAny(t, "ClassFileChanged", "HotSwap") }):
		return p.simpleFlow(FlowHotSwapComplete, 0.8, events), true
	case hasType(func(t string) bool { return containsAny(t, "Configuration", "Config") }):
		return p.simpleFlow(FlowConfigurationManagement, 0.75, events), true
	case hasType(func(t string) bool { return strings.Contains(t, "User") && strings.Contains(t, "Session") }):
		return p.simpleFlow(FlowUserSession, 0.7, events), true
	}
	return Flow{}, false
}

func (p *DocProvider) detectFromCallStack() (Flow, bool) {
	flowType, base, ok := detectFromStack(p.stack())
	if !ok {
		return Flow{}, false
	}
	return p.simpleFlow(flowType, base, p.RecentEvents()), true
}

// simpleFlow builds a flow for one of the provider's own flow types.
func (p *DocProvider) simpleFlow(flowType string, base float64, events []bytehot.Event) Flow {
	return Flow{
		ID:          ID("doc-" + strings.ToLower(flowType)),
		Name:        flowType,
		Description: simpleFlowDescription,
		Confidence:  p.enhance(flowType, base, events),
	}
}

func (p *DocProvider) enhance(flowType string, base float64, events []bytehot.Event) float64 {
	m := p.PerformanceMetrics()
	return enhanceConfidence(confidenceInput{
		flowType:     flowType,
		stack:        p.stack(),
		events:       events,
		cacheHitRate: m.CacheHitRate,
		recentEvents: m.RecentEvents,
	}, base)
}

// Event pattern tags.
const (
	PatternFileChange     = "FILE_CHANGE"
	PatternHotSwap        = "HOT_SWAP"
	PatternConfiguration  = "CONFIGURATION"
	PatternUserAuth       = "USER_AUTH"
	PatternFlowDiscovery  = "FLOW_DISCOVERY"
	PatternErrorHandling  = "ERROR_HANDLING"
	PatternTesting        = "TESTING"
	PatternRequest        = "REQUEST"
	PatternCompletion     = "COMPLETION"
	PatternInitialization = "INITIALIZATION"
	PatternGeneric        = "GENERIC"
)

// EventPattern maps an event type name to its coarse pattern tag.
func EventPattern(eventType string) string {
	switch {
	case containsAny(eventType, "ClassFileChanged", "FileChanged"):
		return PatternFileChange
	case containsAny(eventType, "HotSwap", "Redefinition"):
		return PatternHotSwap
	case containsAny(eventType, "Configuration", "Config"):
		return PatternConfiguration
	case strings.Contains(eventType, "User") && strings.Contains(eventType, "Authenticated"):
		return PatternUserAuth
	case strings.Contains(eventType, "Flow") && strings.Contains(eventType, "Discovered"):
		return PatternFlowDiscovery
	case containsAny(eventType, "Error", "Failed"):
		return PatternErrorHandling
	case strings.Contains(eventType, "Test"):
		return PatternTesting
	case strings.Contains(eventType, "Requested"):
		return PatternRequest
	case containsAny(eventType, "Completed", "Succeeded"):
		return PatternCompletion
	case strings.Contains(eventType, "Started"):
		return PatternInitialization
	default:
		return PatternGeneric
	}
}

// eventAnalysis summarises the recent-event buffer.
type eventAnalysis struct {
	eventTypes []string
	// patterns holds one tag per event, in order; frequency counts them.
	patterns  []string
	frequency map[string]int
	span      time.Duration
	density   float64
}

func analyzeEvents(events []bytehot.Event) eventAnalysis {
	a := eventAnalysis{frequency: make(map[string]int)}
	if len(events) == 0 {
		return a
	}

	earliest, latest := events[0].Timestamp, events[0].Timestamp
	for _, ev := range events {
		a.eventTypes = append(a.eventTypes, ev.EventType)
		tag := EventPattern(ev.EventType)
		a.patterns = append(a.patterns, tag)
		a.frequency[tag]++
		if ev.Timestamp.Before(earliest) {
			earliest = ev.Timestamp
		}
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}
	}

	if len(events) >= 2 {
		a.span = latest.Sub(earliest)
		minutes := float64(a.span.Milliseconds()) / 60000
		if minutes == 0 {
			a.density = float64(len(events))
		} else {
			a.density = float64(len(events)) / minutes
		}
	}
	return a
}

// dynamicMinimumConfidence relaxes the threshold for dense activity and
// tightens it for longer or very recent sequences. It stays in [0.6, 0.8].
func dynamicMinimumConfidence(a eventAnalysis) float64 {
	confidence := 0.7
	if a.density > 5 {
		confidence -= 0.1
	}
	if len(a.eventTypes) > 3 {
		confidence += 0.05
	}
	if a.span < 30*time.Second {
		confidence += 0.05
	}
	return math.Max(0.6, math.Min(0.8, confidence))
}

func selectBestDiscovered(responses []AnalysisResponse, a eventAnalysis) (AnalysisResponse, bool) {
	var (
		best      AnalysisResponse
		bestScore float64
		found     bool
	)
	for _, r := range responses {
		if r.Kind != ResponseFlowDiscovered || r.Confidence < minDiscoveredConfidence {
			continue
		}
		if score := relevanceScore(r, a); !found || score > bestScore {
			best, bestScore, found = r, score, true
		}
	}
	return best, found
}

// relevanceScore ranks a discovered flow by its confidence plus how well
// its name agrees with the pattern tags of the recent events.
func relevanceScore(r AnalysisResponse, a eventAnalysis) float64 {
	score := r.Confidence
	name := strings.ToLower(r.Flow.Name)
	for _, tag := range a.patterns {
		if strings.Contains(name, strings.ReplaceAll(strings.ToLower(tag), "_", "")) {
			score += 0.1
		}
	}
	if a.frequency[PatternFileChange] > 0 && strings.Contains(name, "file") {
		score += 0.15
	}
	if a.frequency[PatternHotSwap] > 0 && strings.Contains(name, "hotswap") {
		score += 0.2
	}
	if a.frequency[PatternConfiguration] > 0 && strings.Contains(name, "config") {
		score += 0.1
	}
	return score
}

func packageName(className string) string {
	if idx := strings.LastIndex(className, "."); idx >= 0 {
		return className[:idx]
	}
	return ""
}

func simpleName(className string) string {
	name := className[strings.LastIndex(className, ".")+1:]
	return name[strings.LastIndex(name, "$")+1:]
}
