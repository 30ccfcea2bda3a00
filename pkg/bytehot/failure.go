// failure.go defines the closed set of failure kinds and resolves the kind of
// an arbitrary error.

package bytehot

import (
	"os"
	"reflect"
	"runtime"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// FailureKind is the closed set of failure kinds the classifier understands.
type FailureKind int

const (
	KindGeneric FailureKind = iota
	KindOutOfMemory
	KindStackOverflow
	KindSecurity
	KindIllegalArgument
	KindIllegalState
	KindNullReference
	KindClassCast
	KindBytecodeValidation
	KindHotSwap
	KindInstanceUpdate
	KindNoSuchFile
	KindAccessDenied
)

var kindNames = map[FailureKind]string{
	KindGeneric:            "RuntimeException",
	KindOutOfMemory:        "OutOfMemoryError",
	KindStackOverflow:      "StackOverflowError",
	KindSecurity:           "SecurityException",
	KindIllegalArgument:    "IllegalArgumentException",
	KindIllegalState:       "IllegalStateException",
	KindNullReference:      "NullPointerException",
	KindClassCast:          "ClassCastException",
	KindBytecodeValidation: "BytecodeValidationException",
	KindHotSwap:            "HotSwapException",
	KindInstanceUpdate:     "InstanceUpdateException",
	KindNoSuchFile:         "NoSuchFileException",
	KindAccessDenied:       "AccessDeniedException",
}

// String returns the exception simple name conventionally used for the kind.
func (k FailureKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindGeneric]
}

// kindForClass maps a Java exception class name to its kind.
func kindForClass(class string) FailureKind {
	simple := class
	if idx := strings.LastIndex(simple, "."); idx >= 0 {
		simple = simple[idx+1:]
	}
	for kind, name := range kindNames {
		if kind != KindGeneric && name == simple {
			return kind
		}
	}
	return KindGeneric
}

// Kinded is implemented by errors that know their own failure kind.
type Kinded interface {
	Kind() FailureKind
}

// Failure is an exception reported by the agent, identified by its Java
// class name.
type Failure struct {
	// Class is the fully-qualified exception class, e.g. "java.lang.OutOfMemoryError".
	Class string

	// Message is the exception message; empty when the exception had none.
	Message string

	// Frames are the agent-reported stack frames, innermost first.
	Frames []string

	// Cause is the underlying failure, if any.
	Cause error
}

// NewFailure creates a Failure of the given class.
func NewFailure(class, message string) *Failure {
	return &Failure{Class: class, Message: message}
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return f.Class
	}
	return f.Class + ": " + f.Message
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Kind implements Kinded.
func (f *Failure) Kind() FailureKind {
	return kindForClass(f.Class)
}

// Sentinel errors for Go code that wants to signal a specific kind.
var (
	ErrOutOfMemory        = errors.New("out of memory")
	ErrStackOverflow      = errors.New("stack overflow")
	ErrSecurity           = errors.New("security violation")
	ErrIllegalArgument    = errors.New("illegal argument")
	ErrIllegalState       = errors.New("illegal state")
	ErrBytecodeValidation = errors.New("bytecode validation failed")
	ErrHotSwap            = errors.New("hot-swap failed")
	ErrInstanceUpdate     = errors.New("instance update failed")
)

var sentinelKinds = []struct {
	err  error
	kind FailureKind
}{
	{ErrOutOfMemory, KindOutOfMemory},
	{ErrStackOverflow, KindStackOverflow},
	{ErrSecurity, KindSecurity},
	{ErrIllegalArgument, KindIllegalArgument},
	{ErrIllegalState, KindIllegalState},
	{ErrBytecodeValidation, KindBytecodeValidation},
	{ErrHotSwap, KindHotSwap},
	{ErrInstanceUpdate, KindInstanceUpdate},
	{os.ErrNotExist, KindNoSuchFile},
	{os.ErrPermission, KindAccessDenied},
}

// KindOf resolves the failure kind of err. Errors that know their kind win,
// then sentinel errors, then Go runtime panics.
func KindOf(err error) FailureKind {
	if err == nil {
		return KindGeneric
	}

	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}

	for _, s := range sentinelKinds {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}

	var re runtime.Error
	if errors.As(err, &re) {
		msg := re.Error()
		switch {
		case strings.Contains(msg, "nil pointer dereference"), strings.Contains(msg, "nil map"):
			return KindNullReference
		case strings.Contains(msg, "interface conversion"):
			return KindClassCast
		}
	}

	return KindGeneric
}

// ClassName returns the fully-qualified class of err: the Java class for
// agent failures, otherwise the Go type of the innermost error.
func ClassName(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Class
	}
	return reflect.TypeOf(identityError(err)).String()
}

// identityError returns the first error in the chain with an exported type,
// skipping anonymous wrappers such as stack and message annotations.
func identityError(err error) error {
	for c := err; c != nil; c = errors.UnwrapOnce(c) {
		t := reflect.TypeOf(c)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if name := t.Name(); name != "" && unicode.IsUpper(rune(name[0])) {
			return c
		}
	}
	return errors.UnwrapAll(err)
}

// SimpleTypeName returns the exception simple name used in reports and
// generated tests.
func SimpleTypeName(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		simple := f.Class
		if idx := strings.LastIndex(simple, "."); idx >= 0 {
			simple = simple[idx+1:]
		}
		return simple
	}

	if kind := KindOf(err); kind != KindGeneric {
		return kind.String()
	}

	// Exported Go error types keep their own name, e.g. *fs.PathError.
	t := reflect.TypeOf(identityError(err))
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" && unicode.IsUpper(rune(name[0])) {
		return name
	}
	return KindGeneric.String()
}

// errorMessage returns the message of err without its class prefix.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) && f == err {
		return f.Message
	}
	return err.Error()
}

// stackTraceLength returns the number of frames recorded with err.
func stackTraceLength(err error) int {
	var f *Failure
	if errors.As(err, &f) && len(f.Frames) > 0 {
		return len(f.Frames)
	}
	if st := errors.GetReportableStackTrace(err); st != nil {
		return len(st.Frames)
	}
	return 0
}
