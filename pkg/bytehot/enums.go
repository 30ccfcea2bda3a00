// enums.go holds the closed classification catalogs used by reports and
// recovery decisions.

package bytehot

// BugSeverity ranks the impact of a reported bug.
type BugSeverity string

const (
	BugSeverityCritical BugSeverity = "CRITICAL"
	BugSeverityHigh     BugSeverity = "HIGH"
	BugSeverityMedium   BugSeverity = "MEDIUM"
	BugSeverityLow      BugSeverity = "LOW"
	BugSeverityInfo     BugSeverity = "INFO"
)

var bugSeverityDescriptions = map[BugSeverity]string{
	BugSeverityCritical: "Critical - System failure or data loss",
	BugSeverityHigh:     "High - Major functionality affected",
	BugSeverityMedium:   "Medium - Partial functionality affected",
	BugSeverityLow:      "Low - Minor issue or cosmetic",
	BugSeverityInfo:     "Informational - Not a bug but notable behavior",
}

func (s BugSeverity) Description() string {
	return bugSeverityDescriptions[s]
}

// BugCategory groups bugs by their likely nature.
type BugCategory string

const (
	BugCategoryMemoryLeak            BugCategory = "MEMORY_LEAK"
	BugCategoryConcurrentAccess      BugCategory = "CONCURRENT_ACCESS"
	BugCategoryValidationError       BugCategory = "VALIDATION_ERROR"
	BugCategoryConfigurationError    BugCategory = "CONFIGURATION_ERROR"
	BugCategoryDependencyError       BugCategory = "DEPENDENCY_ERROR"
	BugCategoryPerformanceIssue      BugCategory = "PERFORMANCE_ISSUE"
	BugCategorySecurityVulnerability BugCategory = "SECURITY_VULNERABILITY"
	BugCategoryDataCorruption        BugCategory = "DATA_CORRUPTION"
	BugCategoryNetworkError          BugCategory = "NETWORK_ERROR"
	BugCategoryUnknown               BugCategory = "UNKNOWN"
)

var bugCategoryDescriptions = map[BugCategory]string{
	BugCategoryMemoryLeak:            "Memory Management - Leaks or excessive usage",
	BugCategoryConcurrentAccess:      "Concurrency - Race conditions or deadlocks",
	BugCategoryValidationError:       "Validation - Input or state validation failure",
	BugCategoryConfigurationError:    "Configuration - Setup or config issues",
	BugCategoryDependencyError:       "Dependencies - Missing or incompatible dependencies",
	BugCategoryPerformanceIssue:      "Performance - Slow execution or timeouts",
	BugCategorySecurityVulnerability: "Security - Potential security issues",
	BugCategoryDataCorruption:        "Data Integrity - Corruption or inconsistency",
	BugCategoryNetworkError:          "Network - Connectivity or communication issues",
	BugCategoryUnknown:               "Unknown - Unable to categorize automatically",
}

func (c BugCategory) Description() string {
	return bugCategoryDescriptions[c]
}

// ErrorClassification tags how a failure should be reproduced.
type ErrorClassification string

const (
	ClassificationHotSwapFailure      ErrorClassification = "HOT_SWAP_FAILURE"
	ClassificationNullReference       ErrorClassification = "NULL_REFERENCE"
	ClassificationTypeMismatch        ErrorClassification = "TYPE_MISMATCH"
	ClassificationInvalidState        ErrorClassification = "INVALID_STATE"
	ClassificationFileMonitoringError ErrorClassification = "FILE_MONITORING_ERROR"
	ClassificationCaptureFailure      ErrorClassification = "CAPTURE_FAILURE"
	ClassificationUnknown             ErrorClassification = "UNKNOWN"
)

var classificationInfo = map[ErrorClassification]struct{ display, label string }{
	ClassificationHotSwapFailure:      {"Hot-Swap Failure", "hotswap"},
	ClassificationNullReference:       {"Null Reference", "null-pointer"},
	ClassificationTypeMismatch:        {"Type Mismatch", "type-error"},
	ClassificationInvalidState:        {"Invalid State", "state-error"},
	ClassificationFileMonitoringError: {"File Monitoring Error", "file-monitoring"},
	ClassificationCaptureFailure:      {"Error Capture Failure", "capture-error"},
	ClassificationUnknown:             {"Unknown Error", "unknown"},
}

// DisplayName returns the human-readable name.
func (c ErrorClassification) DisplayName() string {
	if info, ok := classificationInfo[c]; ok {
		return info.display
	}
	return classificationInfo[ClassificationUnknown].display
}

// Label returns the issue-tracker label.
func (c ErrorClassification) Label() string {
	if info, ok := classificationInfo[c]; ok {
		return info.label
	}
	return classificationInfo[ClassificationUnknown].label
}

// BugPriority is the triage priority of a reproduced failure.
type BugPriority string

const (
	BugPriorityHigh   BugPriority = "HIGH"
	BugPriorityMedium BugPriority = "MEDIUM"
	BugPriorityLow    BugPriority = "LOW"
)

// DeterminePriority maps a classification to its triage priority.
func DeterminePriority(c ErrorClassification) BugPriority {
	switch c {
	case ClassificationHotSwapFailure:
		return BugPriorityHigh
	case ClassificationNullReference, ClassificationTypeMismatch:
		return BugPriorityMedium
	case ClassificationFileMonitoringError, ClassificationCaptureFailure:
		return BugPriorityLow
	default:
		return BugPriorityMedium
	}
}

// ErrorType is the outcome of classifying a failure.
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "VALIDATION_ERROR"
	ErrorTypeInstanceUpdate     ErrorType = "INSTANCE_UPDATE_ERROR"
	ErrorTypeRedefinitionFailed ErrorType = "REDEFINITION_FAILURE"
	ErrorTypeSecurity           ErrorType = "SECURITY_ERROR"
	ErrorTypeCriticalSystem     ErrorType = "CRITICAL_SYSTEM_ERROR"
	ErrorTypeFileSystem         ErrorType = "FILE_SYSTEM_ERROR"
	ErrorTypeConfiguration      ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeUnknown            ErrorType = "UNKNOWN_ERROR"
)

// ErrorSeverity orders failures by urgency.
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityCritical
	ErrorSeverityFatal
)

var errorSeverityNames = [...]struct{ name, description string }{
	{"INFO", "Informational"},
	{"WARNING", "Warning"},
	{"ERROR", "Error"},
	{"CRITICAL", "Critical"},
	{"FATAL", "Fatal"},
}

func (s ErrorSeverity) String() string {
	if s < ErrorSeverityInfo || s > ErrorSeverityFatal {
		return "UNKNOWN"
	}
	return errorSeverityNames[s].name
}

func (s ErrorSeverity) Description() string {
	if s < ErrorSeverityInfo || s > ErrorSeverityFatal {
		return "Unknown"
	}
	return errorSeverityNames[s].description
}

// Level returns the numeric level, 0 for INFO through 4 for FATAL.
func (s ErrorSeverity) Level() int {
	return int(s)
}

func (s ErrorSeverity) IsMoreSevereThan(other ErrorSeverity) bool {
	return s > other
}

func (s ErrorSeverity) IsAtLeast(other ErrorSeverity) bool {
	return s >= other
}

// RecoveryStrategy is the action taken after a failure.
type RecoveryStrategy string

const (
	RecoveryRejectChange         RecoveryStrategy = "REJECT_CHANGE"
	RecoveryRollbackChanges      RecoveryStrategy = "ROLLBACK_CHANGES"
	RecoveryPreserveCurrentState RecoveryStrategy = "PRESERVE_CURRENT_STATE"
	RecoveryRetryOperation       RecoveryStrategy = "RETRY_OPERATION"
	RecoveryRestartComponent     RecoveryStrategy = "RESTART_COMPONENT"
	RecoveryEmergencyShutdown    RecoveryStrategy = "EMERGENCY_SHUTDOWN"
	RecoveryManualIntervention   RecoveryStrategy = "MANUAL_INTERVENTION"
	RecoveryFallbackMode         RecoveryStrategy = "FALLBACK_MODE"
	RecoveryIgnoreError          RecoveryStrategy = "IGNORE_ERROR"
	RecoveryNoAction             RecoveryStrategy = "NO_ACTION"
)

var recoveryInfo = map[RecoveryStrategy]struct{ name, description string }{
	RecoveryRejectChange:         {"Reject Change", "Refuse the operation and maintain current state"},
	RecoveryRollbackChanges:      {"Rollback", "Restore to previous known good state"},
	RecoveryPreserveCurrentState: {"Preserve State", "Keep current state and skip update"},
	RecoveryRetryOperation:       {"Retry", "Attempt operation again with modifications"},
	RecoveryRestartComponent:     {"Restart", "Restart the affected component"},
	RecoveryEmergencyShutdown:    {"Emergency Shutdown", "Immediate shutdown to prevent damage"},
	RecoveryManualIntervention:   {"Manual Intervention", "Escalate to human operators"},
	RecoveryFallbackMode:         {"Fallback", "Continue with degraded functionality"},
	RecoveryIgnoreError:          {"Ignore", "Log error but continue normal operation"},
	RecoveryNoAction:             {"No Action", "No recovery action required"},
}

func (r RecoveryStrategy) DisplayName() string {
	return recoveryInfo[r].name
}

func (r RecoveryStrategy) Description() string {
	return recoveryInfo[r].description
}

// IsShutdownStrategy reports whether the strategy stops the component.
func (r RecoveryStrategy) IsShutdownStrategy() bool {
	return r == RecoveryEmergencyShutdown || r == RecoveryRestartComponent
}

func (r RecoveryStrategy) RequiresHumanIntervention() bool {
	return r == RecoveryManualIntervention
}

// AllowsContinuation reports whether normal operation may go on.
func (r RecoveryStrategy) AllowsContinuation() bool {
	return r != RecoveryEmergencyShutdown && r != RecoveryManualIntervention
}

// RecoveryStrategyFor returns the default recovery for an error type.
func RecoveryStrategyFor(t ErrorType) RecoveryStrategy {
	switch t {
	case ErrorTypeValidation:
		return RecoveryRejectChange
	case ErrorTypeRedefinitionFailed:
		return RecoveryRollbackChanges
	case ErrorTypeInstanceUpdate:
		return RecoveryPreserveCurrentState
	case ErrorTypeCriticalSystem:
		return RecoveryEmergencyShutdown
	case ErrorTypeSecurity:
		return RecoveryManualIntervention
	case ErrorTypeFileSystem:
		return RecoveryRetryOperation
	case ErrorTypeConfiguration:
		return RecoveryFallbackMode
	default:
		return RecoveryNoAction
	}
}

// EntryType tags rollback journal entries.
type EntryType string

const (
	EntryBytecodeSnapshotCreated EntryType = "BYTECODE_SNAPSHOT_CREATED"
	EntryCleanupPerformed        EntryType = "CLEANUP_PERFORMED"
	EntryRollbackFailed          EntryType = "ROLLBACK_FAILED"
	EntryRollbackPerformed       EntryType = "ROLLBACK_PERFORMED"
	EntrySnapshotCreated         EntryType = "SNAPSHOT_CREATED"
)

// ProcessingResult is the outcome of handling one event.
type ProcessingResult string

const (
	ProcessingSuccess ProcessingResult = "SUCCESS"
	ProcessingFailure ProcessingResult = "FAILURE"
	ProcessingSkipped ProcessingResult = "SKIPPED"
)
