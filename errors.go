package sqlmap

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for the mapping core.
var (
	// ErrInvalidMutation is returned when the null cache key is updated.
	ErrInvalidMutation = errors.New("sqlmap: not allowed to update a null cache key instance")

	// ErrNotFound is matched by NotFoundError.
	ErrNotFound = errors.New("sqlmap: entity not found")

	// ErrIncomplete is matched by IncompleteElementError. A declaration that
	// fails with it references an id that is not known yet.
	ErrIncomplete = errors.New("sqlmap: incomplete element")

	// ErrUnresolvedReference is matched by UnresolvedReferenceError.
	ErrUnresolvedReference = errors.New("sqlmap: unresolved reference")

	// ErrInvalidDeclaration is matched by BuilderError.
	ErrInvalidDeclaration = errors.New("sqlmap: invalid declaration")

	// ErrMissingOperation is matched by MissingOperationError.
	ErrMissingOperation = errors.New("sqlmap: operation not found")

	// ErrAmbiguousOperation is matched by AmbiguousError.
	ErrAmbiguousOperation = errors.New("sqlmap: ambiguous short name")

	// ErrBinding is matched by BindingError.
	ErrBinding = errors.New("sqlmap: binding failed")

	// ErrTypeShape is matched by TypeShapeError.
	ErrTypeShape = errors.New("sqlmap: type shape violation")

	// ErrReflection is matched by ReflectionError.
	ErrReflection = errors.New("sqlmap: reflection failed")

	// ErrInvalidConfig is matched by ConfigError.
	ErrInvalidConfig = errors.New("sqlmap: invalid configuration")
)

// Kind names the category of a mapping entity.
type Kind string

// Entity kinds tracked by the resolution registry.
const (
	KindResultMap Kind = "result map"
	KindCacheRef  Kind = "cache reference"
	KindStatement Kind = "statement"
	KindFragment  Kind = "fragment"
	KindCache     Kind = "cache"
)

// NotFoundError is returned when a configuration lookup finds no entity
// with the given id.
type NotFoundError struct {
	Kind Kind
	ID   string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("sqlmap: %s %q not found", e.Kind, e.ID)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// NewNotFoundError returns a new NotFoundError.
func NewNotFoundError(kind Kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// IncompleteElementError reports a forward reference: the element with the
// given id needs Missing, which has not been declared yet.
type IncompleteElementError struct {
	Kind    Kind
	ID      string
	Missing string
}

// Error returns the error string.
func (e *IncompleteElementError) Error() string {
	return fmt.Sprintf("sqlmap: %s %q references unknown %q", e.Kind, e.ID, e.Missing)
}

// Is reports whether the target error matches IncompleteElementError.
func (e *IncompleteElementError) Is(err error) bool {
	return err == ErrIncomplete
}

// NewIncompleteElementError returns a new IncompleteElementError.
func NewIncompleteElementError(kind Kind, id, missing string) *IncompleteElementError {
	return &IncompleteElementError{Kind: kind, ID: id, Missing: missing}
}

// IsIncomplete returns true if the error is a recoverable forward reference.
func IsIncomplete(err error) bool {
	if err == nil {
		return false
	}
	var e *IncompleteElementError
	return errors.As(err, &e) || errors.Is(err, ErrIncomplete)
}

// UnresolvedReferenceError is the fatal form of IncompleteElementError,
// raised when an entry is still incomplete after the final resolution pass.
type UnresolvedReferenceError struct {
	Kind    Kind
	ID      string // Entry that needed the reference.
	Missing string // Id that never resolved.
}

// Error returns the error string.
func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("sqlmap: unresolved %s %q: missing reference %q", e.Kind, e.ID, e.Missing)
}

// Is reports whether the target error matches UnresolvedReferenceError.
func (e *UnresolvedReferenceError) Is(err error) bool {
	return err == ErrUnresolvedReference
}

// NewUnresolvedReferenceError returns a new UnresolvedReferenceError.
func NewUnresolvedReferenceError(kind Kind, id, missing string) *UnresolvedReferenceError {
	return &UnresolvedReferenceError{Kind: kind, ID: id, Missing: missing}
}

// IsUnresolvedReference returns true if the error is an UnresolvedReferenceError.
func IsUnresolvedReference(err error) bool {
	if err == nil {
		return false
	}
	var e *UnresolvedReferenceError
	return errors.As(err, &e)
}

// BuilderError represents a malformed declaration. It is fatal immediately.
type BuilderError struct {
	Resource string // Declaration source, if known.
	Message  string
	Cause    error
}

// Error returns the error string.
func (e *BuilderError) Error() string {
	var b strings.Builder
	b.WriteString("sqlmap: ")
	if e.Resource != "" {
		b.WriteString("error parsing ")
		b.WriteString(e.Resource)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *BuilderError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for BuilderError.
func (e *BuilderError) Is(err error) bool {
	return err == ErrInvalidDeclaration
}

// NewBuilderError returns a new BuilderError.
func NewBuilderError(message string, cause error) *BuilderError {
	return &BuilderError{Message: message, Cause: cause}
}

// Builderf formats a BuilderError without a cause.
func Builderf(format string, args ...any) *BuilderError {
	return &BuilderError{Message: fmt.Sprintf(format, args...)}
}

// IsBuilderError returns true if the error is a BuilderError.
func IsBuilderError(err error) bool {
	if err == nil {
		return false
	}
	var e *BuilderError
	return errors.As(err, &e)
}

// MissingOperationError is returned when a bound method has no statement.
type MissingOperationError struct {
	Scope string
	Name  string
}

// Error returns the error string.
func (e *MissingOperationError) Error() string {
	return fmt.Sprintf("sqlmap: invalid bound statement (not found): %s.%s", e.Scope, e.Name)
}

// Is reports whether the target error matches MissingOperationError.
func (e *MissingOperationError) Is(err error) bool {
	return err == ErrMissingOperation
}

// NewMissingOperationError returns a new MissingOperationError.
func NewMissingOperationError(scope, name string) *MissingOperationError {
	return &MissingOperationError{Scope: scope, Name: name}
}

// IsMissingOperation returns true if the error is a MissingOperationError.
func IsMissingOperation(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingOperationError
	return errors.As(err, &e) || errors.Is(err, ErrMissingOperation)
}

// AmbiguousError is returned when a short (unqualified) name is shared by
// entities declared in more than one namespace.
type AmbiguousError struct {
	Kind       Kind
	Name       string
	Candidates []string
}

// Error returns the error string.
func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("sqlmap: %s %q is ambiguous (try using the full name including the namespace): %s",
		e.Kind, e.Name, strings.Join(e.Candidates, ", "))
}

// Is reports whether the target error matches AmbiguousError.
func (e *AmbiguousError) Is(err error) bool {
	return err == ErrAmbiguousOperation
}

// IsAmbiguous returns true if the error is an AmbiguousError.
func IsAmbiguous(err error) bool {
	if err == nil {
		return false
	}
	var e *AmbiguousError
	return errors.As(err, &e)
}

// BindingError represents a failure to bind or dispatch a mapper method.
type BindingError struct {
	Operation string
	Message   string
}

// Error returns the error string.
func (e *BindingError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("sqlmap: binding %s: %s", e.Operation, e.Message)
	}
	return "sqlmap: binding: " + e.Message
}

// Is reports whether the target error matches BindingError.
func (e *BindingError) Is(err error) bool {
	return err == ErrBinding
}

// NewBindingError returns a new BindingError.
func NewBindingError(op, format string, args ...any) *BindingError {
	return &BindingError{Operation: op, Message: fmt.Sprintf(format, args...)}
}

// IsBindingError returns true if the error is a BindingError.
func IsBindingError(err error) bool {
	if err == nil {
		return false
	}
	var e *BindingError
	return errors.As(err, &e)
}

// TypeShapeError reports a declared shape that cannot hold the value being
// produced, e.g. nil for a non-nillable return type.
type TypeShapeError struct {
	Operation string
	Message   string
}

// Error returns the error string.
func (e *TypeShapeError) Error() string {
	return fmt.Sprintf("sqlmap: %s: %s", e.Operation, e.Message)
}

// Is reports whether the target error matches TypeShapeError.
func (e *TypeShapeError) Is(err error) bool {
	return err == ErrTypeShape
}

// NewTypeShapeError returns a new TypeShapeError.
func NewTypeShapeError(op, format string, args ...any) *TypeShapeError {
	return &TypeShapeError{Operation: op, Message: fmt.Sprintf(format, args...)}
}

// IsTypeShape returns true if the error is a TypeShapeError.
func IsTypeShape(err error) bool {
	if err == nil {
		return false
	}
	var e *TypeShapeError
	return errors.As(err, &e)
}

// ReflectionError represents a failed read or write through a property path.
type ReflectionError struct {
	Path    string
	Message string
	Cause   error
}

// Error returns the error string.
func (e *ReflectionError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("property %q: %s", e.Path, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("sqlmap: %s: %v", msg, e.Cause)
	}
	return "sqlmap: " + msg
}

// Unwrap returns the underlying error.
func (e *ReflectionError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches ReflectionError.
func (e *ReflectionError) Is(err error) bool {
	return err == ErrReflection
}

// NewReflectionError returns a new ReflectionError.
func NewReflectionError(path, format string, args ...any) *ReflectionError {
	return &ReflectionError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// IsReflectionError returns true if the error is a ReflectionError.
func IsReflectionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ReflectionError
	return errors.As(err, &e)
}

// ConfigError represents an invalid configuration option.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("sqlmap: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("sqlmap: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(err error) bool {
	return err == ErrInvalidConfig
}

// NewConfigError returns a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{Option: option, Value: value, Message: message}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}

// CacheError wraps a failure raised by a cache implementation.
type CacheError struct {
	Cache string
	Err   error
}

// Error returns the error string.
func (e *CacheError) Error() string {
	return fmt.Sprintf("sqlmap: cache %s: %v", e.Cache, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "sqlmap: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("sqlmap: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
