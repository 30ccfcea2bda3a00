// callstack.go infers a flow from the names of the functions on the stack.

package flow

import (
	"strings"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// frameContext holds the tokens extracted from a call stack, outermost last.
type frameContext struct {
	classNames     []string
	methodNames    []string
	packageNames   []string
	classHierarchy []string
}

func newFrameContext(frames []bytehot.StackFrame) frameContext {
	var fc frameContext
	for _, f := range frames {
		pkg, typ := f.Package(), f.TypeName()
		className := typ
		if pkg != "" {
			className = pkg + "." + typ
			fc.packageNames = append(fc.packageNames, pkg)
		}
		fc.classNames = append(fc.classNames, className)
		fc.methodNames = append(fc.methodNames, f.Method())
		fc.classHierarchy = append(fc.classHierarchy, typ)
	}
	return fc
}

func anyContains(values []string, pattern string) bool {
	for _, v := range values {
		if strings.Contains(v, pattern) {
			return true
		}
	}
	return false
}

func (fc frameContext) containsPattern(p string) bool {
	return anyContains(fc.classNames, p) || anyContains(fc.methodNames, p) || anyContains(fc.classHierarchy, p)
}

func (fc frameContext) containsClassPattern(p string) bool {
	return anyContains(fc.classNames, p) || anyContains(fc.classHierarchy, p)
}

func (fc frameContext) containsMethodPattern(p string) bool {
	return anyContains(fc.methodNames, p)
}

func (fc frameContext) containsPackagePattern(p string) bool {
	return anyContains(fc.packageNames, p)
}

// containsMethodSequence reports whether consecutive frames have method names
// containing seq in order.
func (fc frameContext) containsMethodSequence(seq ...string) bool {
	for i := 0; i+len(seq) <= len(fc.methodNames); i++ {
		found := true
		for j, s := range seq {
			if !strings.Contains(fc.methodNames[i+j], s) {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

// stackDetector accumulates weight for every indicator found on the stack,
// adds an optional bonus, and fires once the total reaches threshold.
type stackDetector struct {
	flow       string
	indicators []string
	weight     float64
	minMatches int
	bonus      func(frameContext) float64
	threshold  float64
	ceiling    float64
}

func (d stackDetector) detect(fc frameContext) (float64, bool) {
	matches := 0
	confidence := 0.0
	for _, indicator := range d.indicators {
		if fc.containsPattern(indicator) {
			matches++
			confidence += d.weight
		}
	}
	if d.bonus != nil {
		confidence += d.bonus(fc)
	}
	if matches < d.minMatches || confidence < d.threshold {
		return 0, false
	}
	return min(d.ceiling, confidence), true
}

// stackDetectors run in priority order; the first that fires wins.
var stackDetectors = []stackDetector{
	{
		flow: FlowHotSwapComplete,
		indicators: []string{
			"HotSwap", "Redefinition", "ClassRedefinition", "BytecodeTransformation",
			"ClassFileTransformer", "Instrumentation", "retransform", "redefine",
		},
		weight:     0.15,
		minMatches: 2,
		bonus: func(fc frameContext) float64 {
			if fc.containsMethodSequence("transform", "redefine") || fc.containsMethodSequence("validate", "transform", "apply") {
				return 0.25
			}
			return 0
		},
		threshold: 0.8,
		ceiling:   0.95,
	},
	{
		flow:       FlowAgentStartup,
		indicators: []string{"Agent", "agentmain", "premain", "attach", "detach", "AgentBootstrap", "AgentInitializer"},
		weight:     0.2,
		bonus: func(fc frameContext) float64 {
			if fc.containsMethodPattern("main") && fc.containsClassPattern("Agent") {
				return 0.3
			}
			return 0
		},
		threshold: 0.75,
		ceiling:   0.9,
	},
	{
		flow: FlowFileChangeDetection,
		indicators: []string{
			"FileWatcher", "WatchService", "ClassFileChanged", "FileSystemWatcher",
			"onFileChanged", "watchForChanges", "FileMonitor",
		},
		weight: 0.25,
		bonus: func(fc frameContext) float64 {
			if fc.containsPackagePattern("java.nio.file") || fc.containsMethodPattern("watch") {
				return 0.15
			}
			return 0
		},
		threshold: 0.8,
		ceiling:   0.9,
	},
	{
		flow:       FlowConfigurationManagement,
		indicators: []string{"Configuration", "Config", "Properties", "Settings", "loadConfig", "parseConfig", "applyConfig"},
		weight:     0.2,
		threshold:  0.75,
		ceiling:    0.85,
	},
	{
		flow:       FlowDocumentationGeneration,
		indicators: []string{"DocProvider", "Documentation", "DocLink", "getDocUrl", "generateDoc", "DocumentationService"},
		weight:     0.2,
		threshold:  0.7,
		ceiling:    0.8,
	},
	{
		flow:       FlowTestingWorkflow,
		indicators: []string{"Test", "test", "junit", "TestCase", "TestSuite", "assert", "verify", "mock"},
		weight:     0.15,
		bonus: func(fc frameContext) float64 {
			if fc.containsPackagePattern("org.junit") || fc.containsMethodPattern("test") {
				return 0.25
			}
			return 0
		},
		threshold: 0.6,
		ceiling:   0.75,
	},
}

// detectFromStack returns the flow type and base confidence of the first
// detector that fires on frames.
func detectFromStack(frames []bytehot.StackFrame) (string, float64, bool) {
	fc := newFrameContext(frames)
	for _, d := range stackDetectors {
		if confidence, ok := d.detect(fc); ok {
			return d.flow, confidence, true
		}
	}
	return "", 0, false
}
