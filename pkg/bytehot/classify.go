// classify.go maps failure kinds to error types and severities.

package bytehot

// Classify returns the error type of err.
func Classify(err error) ErrorType {
	switch KindOf(err) {
	case KindBytecodeValidation:
		return ErrorTypeValidation
	case KindInstanceUpdate:
		return ErrorTypeInstanceUpdate
	case KindHotSwap:
		return ErrorTypeRedefinitionFailed
	case KindSecurity:
		return ErrorTypeSecurity
	case KindOutOfMemory, KindStackOverflow:
		return ErrorTypeCriticalSystem
	case KindNoSuchFile, KindAccessDenied:
		return ErrorTypeFileSystem
	default:
		return ErrorTypeUnknown
	}
}

// AssessSeverity returns how urgent err is.
func AssessSeverity(err error) ErrorSeverity {
	switch KindOf(err) {
	case KindOutOfMemory, KindStackOverflow:
		return ErrorSeverityCritical
	case KindBytecodeValidation, KindIllegalArgument, KindIllegalState:
		return ErrorSeverityWarning
	default:
		return ErrorSeverityError
	}
}
