package content

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProjectNotFound indicates that no live project carries the requested id.
	ErrProjectNotFound = errors.New("content: project not found")
	// ErrSnapshotNotFound indicates that no published snapshot carries the requested slug.
	ErrSnapshotNotFound = errors.New("content: published project not found")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingCatalog    = errors.New("media catalog is required")
	errMissingActor      = errors.New("actor is required")
)

// ServiceError carries a stable operation.reason code next to the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Violation is one failed content rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every rule a payload broke. It is never retried.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Violations))
	for _, violation := range e.Violations {
		messages = append(messages, violation.Message)
	}
	return strings.Join(messages, "; ")
}

// Messages returns the human readable messages in rule order.
func (e *ValidationError) Messages() []string {
	messages := make([]string, 0, len(e.Violations))
	for _, violation := range e.Violations {
		messages = append(messages, violation.Message)
	}
	return messages
}

// TransientStoreError marks a store failure that may succeed on retry.
type TransientStoreError struct {
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store failure: %v", e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// FatalStoreError is returned once the retry budget is spent or the failure
// cannot be retried.
type FatalStoreError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *FatalStoreError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *FatalStoreError) Unwrap() error {
	return e.Err
}

// AssetCleanupError describes a post-commit cleanup step that did not finish.
// It is logged and never surfaced to the caller of the mutation.
type AssetCleanupError struct {
	AssetID    string
	StorageKey string
	Stage      string
	Err        error
}

func (e *AssetCleanupError) Error() string {
	return fmt.Sprintf("asset %s (%s) cleanup failed at %s: %v", e.AssetID, e.StorageKey, e.Stage, e.Err)
}

func (e *AssetCleanupError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the requested document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) || errors.Is(err, ErrSnapshotNotFound)
}

// IsValidation reports whether err carries content rule violations.
func IsValidation(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}
	return nil, false
}

func isTerminal(err error) bool {
	if IsNotFound(err) {
		return true
	}
	_, validation := IsValidation(err)
	return validation
}
