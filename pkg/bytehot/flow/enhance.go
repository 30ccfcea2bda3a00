// enhance.go adjusts a detector's base confidence using the surrounding
// runtime context.

package flow

import (
	"math"
	"strings"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// Flow types produced by DocProvider's own detectors.
const (
	FlowHotSwapComplete         = "HotSwapComplete"
	FlowAgentStartup            = "AgentStartup"
	FlowFileChangeDetection     = "FileChangeDetection"
	FlowConfigurationManagement = "ConfigurationManagement"
	FlowDocumentationGeneration = "DocumentationGeneration"
	FlowTestingWorkflow         = "TestingWorkflow"
	FlowUserSession             = "UserSession"
)

// confidenceInput is the context a confidence is enhanced against.
type confidenceInput struct {
	flowType     string
	stack        []bytehot.StackFrame
	events       []bytehot.Event
	cacheHitRate float64
	recentEvents int
}

// flowTypeKey maps a flow type or display name to its lookup key, so that
// "HotSwapComplete" and "Hot-Swap Complete Flow" share "hotswapcomplete".
func flowTypeKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimSuffix(key, " flow")
	return nonAlphanumeric.ReplaceAllString(key, "")
}

// enhanceConfidence adds the temporal, correlation, stack, system and
// historical adjustments to base and clamps the result to [0,1].
func enhanceConfidence(in confidenceInput, base float64) float64 {
	key := flowTypeKey(in.flowType)
	confidence := base
	confidence += temporalConsistencyBonus(in.events)
	confidence += eventCorrelationBonus(in.events, key)
	confidence += stackQualityBonus(in.stack, key)
	confidence += systemContextBonus(in.cacheHitRate, in.recentEvents)
	confidence += historicalAccuracyBonus(key)
	return clamp01(confidence)
}

// temporalConsistencyBonus rewards evenly spaced events, measured by the
// coefficient of variation of the gaps between consecutive events.
func temporalConsistencyBonus(events []bytehot.Event) float64 {
	if len(events) < 2 {
		return 0
	}

	intervals := make([]float64, 0, len(events)-1)
	sum := 0.0
	for i := 1; i < len(events); i++ {
		ms := float64(events[i].Timestamp.Sub(events[i-1].Timestamp).Milliseconds())
		intervals = append(intervals, ms)
		sum += ms
	}
	avg := sum / float64(len(intervals))
	if avg == 0 {
		return 0.1
	}

	variance := 0.0
	for _, ms := range intervals {
		variance += (ms - avg) * (ms - avg)
	}
	variance /= float64(len(intervals))

	cv := math.Sqrt(variance) / avg
	switch {
	case cv < 0.3:
		return 0.15
	case cv < 0.7:
		return 0.05
	default:
		return -0.1
	}
}

func eventCorrelationBonus(events []bytehot.Event, key string) float64 {
	if len(events) == 0 {
		return 0
	}
	relevant := 0
	for _, ev := range events {
		if eventRelevantToFlow(ev.EventType, key) {
			relevant++
		}
	}
	ratio := float64(relevant) / float64(len(events))
	switch {
	case ratio >= 0.8:
		return 0.1
	case ratio >= 0.5:
		return 0.05
	case ratio >= 0.2:
		return 0
	default:
		return -0.05
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func eventRelevantToFlow(eventType, key string) bool {
	switch key {
	case "hotswapcomplete":
		return containsAny(eventType, "ClassFile", "HotSwap", "Redefinition", "Bytecode")
	case "filechangedetection":
		return containsAny(eventType, "File", "Watch", "Change", "Monitor")
	case "configurationmanagement":
		return containsAny(eventType, "Configuration", "Config", "Properties", "Settings")
	case "agentstartup":
		return containsAny(eventType, "Agent", "Startup", "Initialize", "Bootstrap")
	case "testingworkflow":
		return containsAny(eventType, "Test", "Assert", "Mock", "Verify")
	case "documentationgeneration":
		return containsAny(eventType, "Documentation", "Doc", "Link", "Generate")
	default:
		return false
	}
}

// stackQualityBonus combines a depth adjustment with the share of frames
// that look related to the flow.
func stackQualityBonus(stack []bytehot.StackFrame, key string) float64 {
	total := len(stack)
	if total == 0 {
		return 0
	}

	relevant := 0
	for _, f := range stack {
		class := strings.ToLower(f.Package() + "." + f.TypeName())
		method := strings.ToLower(f.Method())
		if frameRelevantToFlow(class, method, key) {
			relevant++
		}
	}

	depth := 0.0
	switch {
	case total >= 10 && total <= 50:
		depth = 0.02
	case total > 50:
		depth = -0.02
	}

	ratio := float64(relevant) / float64(total)
	relevance := 0.0
	switch {
	case ratio >= 0.3:
		relevance = 0.08
	case ratio >= 0.1:
		relevance = 0.03
	}
	return depth + relevance
}

func frameRelevantToFlow(class, method, key string) bool {
	switch key {
	case "hotswapcomplete":
		return containsAny(class, "hotswap", "redefinition") || containsAny(method, "transform", "redefine")
	case "filechangedetection":
		return containsAny(class, "file", "watch") || containsAny(method, "monitor", "change")
	case "configurationmanagement":
		return containsAny(class, "config", "properties") || containsAny(method, "load", "parse")
	case "agentstartup":
		return strings.Contains(class, "agent") || containsAny(method, "attach", "main", "start")
	case "testingworkflow":
		return strings.Contains(class, "test") || containsAny(method, "test", "assert", "verify")
	case "documentationgeneration":
		return strings.Contains(class, "doc") || containsAny(method, "doc", "generate", "url")
	default:
		return false
	}
}

// systemContextBonus treats the cache hit rate and buffer occupancy as
// health signals.
func systemContextBonus(cacheHitRate float64, recentEvents int) float64 {
	bonus := 0.0
	switch {
	case cacheHitRate > 0.7:
		bonus += 0.02
	case cacheHitRate < 0.3:
		bonus -= 0.02
	}
	switch {
	case recentEvents >= 3 && recentEvents <= 10:
		bonus += 0.03
	case recentEvents > 15:
		bonus -= 0.02
	}
	return bonus
}

func historicalAccuracyBonus(key string) float64 {
	switch key {
	case "hotswapcomplete":
		return 0.08
	case "filechangedetection":
		return 0.06
	case "documentationgeneration":
		return 0.05
	case "agentstartup":
		return 0.04
	case "testingworkflow":
		return 0.03
	case "configurationmanagement":
		return 0.02
	default:
		return 0
	}
}
